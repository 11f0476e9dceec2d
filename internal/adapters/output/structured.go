// internal/adapters/output/structured.go
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"reconx/internal/core/domain"
)

// Document es la forma estructurada de un Report:
// {"target", "scan_timestamp", "results": {name: payload | {"error": msg}}}.
type Document struct {
	Target        string                    `json:"target" yaml:"target"`
	ScanTimestamp string                    `json:"scan_timestamp" yaml:"scan_timestamp"`
	Results       map[string]map[string]any `json:"results" yaml:"results"`
}

// ToStructured convierte un Report en Document. Es total y determinista.
func ToStructured(report *domain.Report) Document {
	doc := Document{
		Target:        report.Target,
		ScanTimestamp: report.CompletedAt.UTC().Format(time.RFC3339Nano),
		Results:       make(map[string]map[string]any, len(report.Results)),
	}
	for name, outcome := range report.Results {
		doc.Results[name] = outcome.Envelope()
	}
	return doc
}

// FromStructured reconstruye el Report representado por doc.
// Un objeto {"error": string} como única clave se interpreta como Failure.
func FromStructured(doc Document) (*domain.Report, error) {
	target := strings.TrimSpace(doc.Target)
	if target == "" {
		return nil, fmt.Errorf("%w: missing target", domain.ErrMalformedDocument)
	}

	ts, err := time.Parse(time.RFC3339Nano, doc.ScanTimestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: scan_timestamp: %v", domain.ErrMalformedDocument, err)
	}

	report := domain.NewReport(doc.Target)
	for name, obj := range doc.Results {
		if obj == nil {
			obj = map[string]any{}
		}
		report.Set(name, domain.OutcomeFromEnvelope(obj))
	}
	report.Finalize(ts)

	return report, nil
}

// EncodeJSON escribe el Document del report como JSON indentado.
func EncodeJSON(w io.Writer, report *domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToStructured(report)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// DecodeJSON lee un Document JSON y reconstruye el Report.
func DecodeJSON(r io.Reader) (*domain.Report, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
	}
	return FromStructured(doc)
}

// EncodeYAML escribe el Document del report como YAML.
func EncodeYAML(w io.Writer, report *domain.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToStructured(report)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}
