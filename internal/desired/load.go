package desired

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("desired: unsupported document format")
	ErrInvalidDocument   = errors.New("desired: invalid document")
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the decoder from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadServices reads a services document: a bare list of services or an
// object with a "services" key.
func LoadServices(path string) ([]Service, error) {
	doc, err := loadFile(path, "services")
	if err != nil {
		return nil, err
	}
	if err := ValidateServices(doc.Services); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc.Services, nil
}

// LoadConsumers reads a consumers document: a bare list of consumers or an
// object with a "consumers" key.
func LoadConsumers(path string) ([]Consumer, error) {
	doc, err := loadFile(path, "consumers")
	if err != nil {
		return nil, err
	}
	if err := ValidateConsumers(doc.Consumers); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc.Consumers, nil
}

func loadFile(path, listKey string) (Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("desired load failed (%s): %w", path, err)
	}
	doc, err := Decode(data, format, listKey)
	if err != nil {
		return Document{}, fmt.Errorf("desired parse failed (%s): %w", path, err)
	}
	return doc, nil
}

// Decode parses data in format. A top-level list is treated as the value of
// listKey.
func Decode(data []byte, format Format, listKey string) (Document, error) {
	var raw any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if list, ok := raw.([]any); ok {
		raw = map[string]any{listKey: list}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	canonical, err := json.Marshal(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	dec := json.NewDecoder(bytes.NewReader(canonical))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc.finish()
	return doc, nil
}

// finish drops null plugin entries and turns json.Number leaves in free-form
// payloads into int64 or float64.
func (d *Document) finish() {
	for i := range d.Services {
		plugins := make([]Plugin, 0, len(d.Services[i].Plugins))
		for _, p := range d.Services[i].Plugins {
			if p == nil {
				continue
			}
			plugins = append(plugins, Plugin(resolveNumbers(map[string]any(p)).(map[string]any)))
		}
		d.Services[i].Plugins = plugins
	}
	for i := range d.Consumers {
		for j, rl := range d.Consumers[i].RateLimits {
			if rl == nil {
				continue
			}
			d.Consumers[i].RateLimits[j] = RateLimit(resolveNumbers(map[string]any(rl)).(map[string]any))
		}
	}
}

func resolveNumbers(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			node[k] = resolveNumbers(child)
		}
		return node
	case []any:
		for i, child := range node {
			node[i] = resolveNumbers(child)
		}
		return node
	case json.Number:
		if n, err := node.Int64(); err == nil {
			return n
		}
		if f, err := node.Float64(); err == nil {
			return f
		}
		return node.String()
	default:
		return v
	}
}
