// internal/adapters/output/narrative_test.go
package output

import (
	"fmt"
	"strings"
	"testing"

	"reconx/internal/core/domain"
	"reconx/internal/testutil"
)

func TestToNarrative_Header(t *testing.T) {
	text := ToNarrative(sampleReport())

	lines := strings.Split(text, "\n")
	testutil.AssertEqual(t, lines[0], strings.Repeat("=", bannerWidth), "banner")
	testutil.AssertEqual(t, lines[1], "Reconnaissance Report", "title")
	testutil.AssertContains(t, text, "Target: example.com", "target line")
	testutil.AssertContains(t, text, "Scan time: 2024-07-03 10:11:12 UTC", "scan time")
	testutil.AssertContains(t, text, "Probes: 3 (2 succeeded, 1 failed)", "summary")
}

func TestToNarrative_SectionsSorted(t *testing.T) {
	text := ToNarrative(sampleReport())

	dns := strings.Index(text, "\nDNS\n")
	ports := strings.Index(text, "\nPORTS\n")
	whois := strings.Index(text, "\nWHOIS\n")
	if dns < 0 || ports < 0 || whois < 0 {
		t.Fatalf("missing sections in:\n%s", text)
	}
	if !(dns < ports && ports < whois) {
		t.Errorf("sections not sorted by name: dns=%d ports=%d whois=%d", dns, ports, whois)
	}
}

func TestToNarrative_Deterministic(t *testing.T) {
	r := sampleReport()
	first := ToNarrative(r)
	for i := 0; i < 5; i++ {
		testutil.AssertEqual(t, ToNarrative(r), first, "narrative must be deterministic")
	}
}

func TestToNarrative_FailureSection(t *testing.T) {
	text := ToNarrative(sampleReport())
	testutil.AssertContains(t, text, "PORTS\n"+strings.Repeat("-", sectionWidth)+"\nError: timeout\n", "failure rendered")
}

func TestToNarrative_KnownRenderers(t *testing.T) {
	r := domain.NewReport("example.com")
	r.Set("whois", domain.NewSuccess(map[string]any{
		"registrar":   "ACME",
		"nameservers": []string{"ns1.example.com"},
		"events":      map[string]any{"registration": "1995-08-14"},
		"custom":      "kept",
	}))
	r.Set("ports", domain.NewSuccess(map[string]any{
		"host":       "example.com",
		"open_ports": []map[string]any{{"port": 443, "service": "https"}, {"port": 8081}},
		"scanned":    2,
	}))
	r.Set("dns", domain.NewSuccess(map[string]any{
		"mx":     []map[string]any{{"host": "mx.example.com", "preference": 5}},
		"errors": map[string]any{"txt": "no such host"},
	}))

	text := ToNarrative(r)

	testutil.AssertContains(t, text, "Registrar: ACME", "whois registrar")
	testutil.AssertContains(t, text, "Name servers: 1\n  - ns1.example.com", "whois nameservers")
	testutil.AssertContains(t, text, "  registration: 1995-08-14", "whois events")
	testutil.AssertContains(t, text, "custom: kept", "unknown whois fields")
	testutil.AssertContains(t, text, "Open ports: 2", "ports count")
	testutil.AssertContains(t, text, "Port 443: https", "ports service")
	testutil.AssertContains(t, text, "Port 8081: unknown", "missing service")
	testutil.AssertContains(t, text, "  - mx.example.com (pref 5)", "mx record")
	testutil.AssertContains(t, text, "  txt: no such host", "dns lookup errors")
}

func TestToNarrative_GenericAndMalformed(t *testing.T) {
	r := domain.NewReport("example.com")
	r.Set("custom", domain.NewSuccess(map[string]any{"b": 2, "a": map[string]any{"z": 1, "y": true}}))
	r.Set("empty", domain.Success(nil))
	// Un payload "ports" con forma inesperada no debe romper el renderer
	r.Set("ports", domain.NewSuccess(map[string]any{"open_ports": "none"}))

	text := ToNarrative(r)

	testutil.AssertContains(t, text, "a: {\"y\":true,\"z\":1}\nb: 2\n", "generic fields sorted")
	testutil.AssertContains(t, text, "(no data)", "empty payload")
	testutil.AssertContains(t, text, "Open ports: 0", "malformed ports payload")
	testutil.AssertContains(t, text, "open_ports: none", "malformed field shown generically")
}

func TestToNarrative_LongListsTruncated(t *testing.T) {
	ns := make([]string, 15)
	for i := range ns {
		ns[i] = fmt.Sprintf("ns%d.example.com", i)
	}
	r := domain.NewReport("example.com")
	r.Set("whois", domain.NewSuccess(map[string]any{"nameservers": ns}))

	text := ToNarrative(r)
	testutil.AssertContains(t, text, "  ... and 5 more", "truncation marker")
	if strings.Contains(text, "ns10.example.com") {
		t.Error("items beyond the limit should not be printed")
	}
}
