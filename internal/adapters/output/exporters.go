// internal/adapters/output/exporters.go
package output

import (
	"fmt"
	"io"
	"strings"

	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
)

// Formatos de exportación soportados.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

// SupportedFormats lista los formatos en orden estable.
func SupportedFormats() []string {
	return []string{FormatJSON, FormatYAML, FormatText}
}

type jsonExporter struct{}

func (jsonExporter) Format() string    { return FormatJSON }
func (jsonExporter) Extension() string { return "json" }
func (jsonExporter) Export(w io.Writer, r *domain.Report) error {
	return EncodeJSON(w, r)
}
func (jsonExporter) Load(r io.Reader) (*domain.Report, error) { return DecodeJSON(r) }

type yamlExporter struct{}

func (yamlExporter) Format() string    { return FormatYAML }
func (yamlExporter) Extension() string { return "yaml" }
func (yamlExporter) Export(w io.Writer, r *domain.Report) error {
	return EncodeYAML(w, r)
}

type textExporter struct{}

func (textExporter) Format() string    { return FormatText }
func (textExporter) Extension() string { return "txt" }
func (textExporter) Export(w io.Writer, r *domain.Report) error {
	return WriteNarrative(w, r)
}

// NewExporter retorna el exporter del formato indicado.
func NewExporter(format string) (ports.ReportExporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		return jsonExporter{}, nil
	case FormatYAML, "yml":
		return yamlExporter{}, nil
	case FormatText, "txt":
		return textExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedFormat, format, strings.Join(SupportedFormats(), ", "))
	}
}

// NewLoader retorna el loader de un formato. Sólo JSON es reversible.
func NewLoader(format string) (ports.ReportLoader, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return jsonExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: cannot load %q reports", domain.ErrUnsupportedFormat, format)
	}
}
