// Package report renders the services registered on a gateway as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/gatewaysync/internal/admin"
)

const (
	missingURL      = "N/A"
	defaultProtocol = "http"
)

var Header = []string{"Name", "URL", "Protocol"}

// WriteServices writes one row per service in listing order.
func WriteServices(w io.Writer, services []admin.Service) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, svc := range services {
		if err := cw.Write(Row(svc)); err != nil {
			return fmt.Errorf("report: write %q: %w", svc.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row is the CSV record for one service. The gateway renders a service's
// target as protocol/host/port/path, so the URL is rebuilt from those parts
// when no url field is reported.
func Row(svc admin.Service) []string {
	protocol := strings.TrimSpace(svc.Protocol)
	if protocol == "" {
		protocol = defaultProtocol
	}
	return []string{svc.Name, serviceURL(svc, protocol), protocol}
}

func serviceURL(svc admin.Service, protocol string) string {
	if svc.URL != "" {
		return svc.URL
	}
	if svc.Host == "" {
		return missingURL
	}
	var b strings.Builder
	b.WriteString(protocol)
	b.WriteString("://")
	b.WriteString(svc.Host)
	if svc.Port > 0 {
		fmt.Fprintf(&b, ":%d", svc.Port)
	}
	b.WriteString(svc.Path)
	return b.String()
}
