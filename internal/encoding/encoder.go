// Package encoding writes structured documents in the formats the CLI and
// HTTP surface offer.
package encoding

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml and yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.NewValidationError("unsupported output format "+s, "format", s)
}

// ContentType is the HTTP media type for f.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Extension is the file suffix for f, including the dot.
func (f Format) Extension() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// Encode writes v to w as an indented document.
func Encode(w io.Writer, f Format, v any) error {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	switch f {
	case FormatJSON:
		enc := json.NewEncoder(buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return errors.NewInternalError("encode json document", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.NewInternalError("encode yaml document", err)
		}
		if err := enc.Close(); err != nil {
			return errors.NewInternalError("encode yaml document", err)
		}
	default:
		return errors.NewValidationError("unsupported output format "+string(f), "format", string(f))
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Marshal is Encode into a fresh byte slice.
func Marshal(f Format, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, f, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
