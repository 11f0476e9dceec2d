// internal/adapters/output/structured_test.go
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"reconx/internal/core/domain"
	"reconx/internal/testutil"
)

func sampleReport() *domain.Report {
	r := domain.NewReport("example.com")
	r.Set("whois", domain.NewSuccess(map[string]any{
		"domain":      "example.com",
		"registrar":   "ACME",
		"nameservers": []string{"ns1.example.com", "ns2.example.com"},
		"dnssec":      false,
	}))
	r.Set("ports", domain.Failure("timeout"))
	r.Set("dns", domain.NewSuccess(map[string]any{
		"a":  []string{"192.0.2.1"},
		"mx": []map[string]any{{"host": "mail.example.com", "preference": 10}},
	}))
	r.Finalize(time.Date(2024, 7, 3, 10, 11, 12, 123456789, time.UTC))
	return r
}

func TestToStructured(t *testing.T) {
	doc := ToStructured(sampleReport())

	testutil.AssertEqual(t, doc.Target, "example.com", "target")
	testutil.AssertEqual(t, doc.ScanTimestamp, "2024-07-03T10:11:12.123456789Z", "timestamp")
	testutil.AssertEqual(t, len(doc.Results), 3, "results")
	testutil.AssertEqual(t, doc.Results["ports"]["error"], "timeout", "failure envelope")
	testutil.AssertEqual(t, len(doc.Results["ports"]), 1, "failure envelope has one key")
	testutil.AssertEqual(t, doc.Results["whois"]["registrar"], "ACME", "success payload")
}

func TestStructured_RoundTrip(t *testing.T) {
	original := sampleReport()

	back, err := FromStructured(ToStructured(original))
	testutil.AssertNoError(t, err, "from structured")
	testutil.AssertTrue(t, back.Equal(original), "in-memory round trip")

	var buf bytes.Buffer
	testutil.AssertNoError(t, EncodeJSON(&buf, original), "encode json")

	decoded, err := DecodeJSON(&buf)
	testutil.AssertNoError(t, err, "decode json")
	testutil.AssertTrue(t, decoded.Equal(original), "json round trip")
}

func TestStructured_RoundTrip_EmptyAndZeroTime(t *testing.T) {
	original := domain.NewReport("a.com")
	original.Set("empty", domain.Success(nil))

	var buf bytes.Buffer
	testutil.AssertNoError(t, EncodeJSON(&buf, original), "encode")
	decoded, err := DecodeJSON(&buf)

	testutil.AssertNoError(t, err, "decode")
	testutil.AssertTrue(t, decoded.Equal(original), "empty payload and zero time survive")
}

func TestEncodeJSON_Shape(t *testing.T) {
	var buf bytes.Buffer
	testutil.AssertNoError(t, EncodeJSON(&buf, sampleReport()), "encode")

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	for _, key := range []string{"target", "scan_timestamp", "results"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
	if len(raw) != 3 {
		t.Errorf("expected exactly 3 top-level keys, got %d", len(raw))
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("JSON should be pretty-printed with indentation")
	}
}

func TestEncodeYAML(t *testing.T) {
	var buf bytes.Buffer
	testutil.AssertNoError(t, EncodeYAML(&buf, sampleReport()), "encode yaml")

	var doc Document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	testutil.AssertEqual(t, doc.Target, "example.com", "yaml target")
	testutil.AssertEqual(t, doc.Results["ports"]["error"], "timeout", "yaml failure envelope")
	testutil.AssertEqual(t, doc.ScanTimestamp, "2024-07-03T10:11:12.123456789Z", "yaml timestamp")
}

func TestFromStructured_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{"missing target", Document{ScanTimestamp: "2024-01-01T00:00:00Z"}},
		{"bad timestamp", Document{Target: "a.com", ScanTimestamp: "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromStructured(tt.doc)
			testutil.AssertErrorIs(t, err, domain.ErrMalformedDocument, "malformed document")
		})
	}

	_, err := DecodeJSON(strings.NewReader("{not json"))
	testutil.AssertErrorIs(t, err, domain.ErrMalformedDocument, "invalid json")
}

func TestFromStructured_EnvelopeInterpretation(t *testing.T) {
	doc := Document{
		Target:        "a.com",
		ScanTimestamp: "2024-01-01T00:00:00Z",
		Results: map[string]map[string]any{
			"failed":  {"error": "refused"},
			"ok":      {"error": "refused", "extra": true},
			"numeric": {"error": 3.0},
			"null":    nil,
		},
	}

	r, err := FromStructured(doc)
	testutil.AssertNoError(t, err, "from structured")
	testutil.AssertTrue(t, r.Results["failed"].Equal(domain.Failure("refused")), "single error key is failure")
	testutil.AssertTrue(t, r.Results["ok"].IsSuccess(), "extra keys keep success")
	testutil.AssertTrue(t, r.Results["numeric"].IsSuccess(), "non-string error is success")
	testutil.AssertTrue(t, r.Results["null"].Equal(domain.Success(nil)), "null payload is empty success")
}

func TestNewExporter(t *testing.T) {
	for _, format := range []string{"json", "JSON", "yaml", "yml", "text", "txt", ""} {
		exp, err := NewExporter(format)
		testutil.AssertNoError(t, err, "format "+format)
		testutil.AssertNotNil(t, exp, "exporter "+format)
	}

	_, err := NewExporter("xml")
	testutil.AssertErrorIs(t, err, domain.ErrUnsupportedFormat, "xml unsupported")

	_, err = NewLoader("yaml")
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("yaml reports are export-only, got %v", err)
	}
}
