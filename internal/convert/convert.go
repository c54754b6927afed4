// Package convert turns the onboarding spreadsheet export (CSV) into a
// services document the services command can load.
package convert

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ColumnName         = "NAME"
	ColumnUpstream     = "UPSTREAM PATH"
	ColumnRequestPath  = "REQUEST PATH"
	ColumnAllowGroups  = "WHITELIST GROUP"
	ColumnRateLimit    = "RATE LIMIT"
	ColumnLimitBy      = "LIMIT BY"
	ColumnRequestLimit = "REQUEST SIZE LIMIT"
)

var requiredColumns = []string{
	ColumnName, ColumnUpstream, ColumnRequestPath, ColumnAllowGroups,
	ColumnRateLimit, ColumnLimitBy, ColumnRequestLimit,
}

var ErrInvalidCSV = errors.New("convert: invalid csv")

type Service struct {
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Routes  []Route  `yaml:"routes"`
	Plugins []Plugin `yaml:"plugins"`
}

type Route struct {
	Paths     []string `yaml:"paths"`
	StripPath bool     `yaml:"strip_path"`
}

type Plugin struct {
	Name   string         `yaml:"name"`
	Config map[string]any `yaml:"config,omitempty"`
}

// CSVToServices reads a header row followed by one service per row.
func CSVToServices(r io.Reader) ([]Service, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidCSV, err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidCSV, col)
		}
	}

	services := make([]Service, 0)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
		}
		field := func(col string) string {
			return strings.TrimSpace(record[index[col]])
		}

		hour, err := strconv.Atoi(field(ColumnRateLimit))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: rate limit %q is not an integer", ErrInvalidCSV, line, field(ColumnRateLimit))
		}
		services = append(services, Service{
			Name: field(ColumnName),
			URL:  field(ColumnUpstream),
			Routes: []Route{{
				Paths:     []string{field(ColumnRequestPath)},
				StripPath: true,
			}},
			Plugins: []Plugin{
				{Name: "jwt"},
				{Name: "cors"},
				{Name: "acl", Config: map[string]any{"allow": splitGroups(field(ColumnAllowGroups))}},
				{Name: "rate-limiting", Config: map[string]any{
					"policy":   "local",
					"hour":     hour,
					"limit_by": field(ColumnLimitBy),
				}},
				{Name: "request-size-limiting", Config: map[string]any{
					"allowed_payload_size": field(ColumnRequestLimit),
				}},
			},
		})
	}
	return services, nil
}

func splitGroups(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if g := strings.TrimSpace(p); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// WriteYAML emits services as a bare YAML list.
func WriteYAML(w io.Writer, services []Service) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(services); err != nil {
		return fmt.Errorf("convert: encode yaml: %w", err)
	}
	return enc.Close()
}

func Convert(r io.Reader, w io.Writer) error {
	services, err := CSVToServices(r)
	if err != nil {
		return err
	}
	return WriteYAML(w, services)
}
