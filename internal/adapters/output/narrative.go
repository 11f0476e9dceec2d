// internal/adapters/output/narrative.go
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"reconx/internal/core/domain"
)

const (
	bannerWidth  = 60
	sectionWidth = 40
	maxListItems = 10
)

// sectionRenderer escribe el cuerpo de la sección de un probe exitoso.
type sectionRenderer func(b *strings.Builder, payload domain.Payload)

// renderers por nombre de probe; el resto usa renderGeneric.
var renderers = map[string]sectionRenderer{
	"whois": renderWhois,
	"dns":   renderDNS,
	"ports": renderPorts,
}

// ToNarrative genera el informe de texto de un report: cabecera y una sección
// por probe ordenada por nombre. Es pura y determinista (la hora es la del report).
func ToNarrative(report *domain.Report) string {
	var b strings.Builder

	rule(&b, "=", bannerWidth)
	b.WriteString("Reconnaissance Report\n")
	rule(&b, "=", bannerWidth)
	fmt.Fprintf(&b, "Target: %s\n", report.Target)
	fmt.Fprintf(&b, "Scan time: %s\n", report.CompletedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Probes: %d (%d succeeded, %d failed)\n", len(report.Results), report.Successes(), report.Failures())
	b.WriteString("\n")

	for _, name := range report.Names() {
		outcome := report.Results[name]

		rule(&b, "-", sectionWidth)
		fmt.Fprintf(&b, "%s\n", strings.ToUpper(name))
		rule(&b, "-", sectionWidth)

		if outcome.IsFailure() {
			fmt.Fprintf(&b, "Error: %s\n", outcome.Message)
		} else if render, ok := renderers[name]; ok {
			render(&b, outcome.Payload)
		} else {
			renderGeneric(&b, outcome.Payload)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// WriteNarrative escribe ToNarrative(report) en w.
func WriteNarrative(w io.Writer, report *domain.Report) error {
	_, err := io.WriteString(w, ToNarrative(report))
	return err
}

func rule(b *strings.Builder, ch string, width int) {
	b.WriteString(strings.Repeat(ch, width))
	b.WriteString("\n")
}

func renderWhois(b *strings.Builder, p domain.Payload) {
	for _, key := range []string{"domain", "registrar", "handle", "source"} {
		if v, ok := p[key]; ok {
			fmt.Fprintf(b, "%s: %s\n", label(key), formatValue(v))
		}
	}
	if v, ok := p["dnssec"]; ok {
		fmt.Fprintf(b, "DNSSEC: %s\n", formatValue(v))
	}
	writeList(b, "Status", p["status"])
	writeList(b, "Name servers", p["nameservers"])

	if events, ok := p["events"].(map[string]any); ok && len(events) > 0 {
		b.WriteString("Events:\n")
		for _, k := range sortedKeys(events) {
			fmt.Fprintf(b, "  %s: %s\n", k, formatValue(events[k]))
		}
	}
	renderExtra(b, p, "domain", "registrar", "handle", "source", "dnssec", "status", "nameservers", "events")
}

func renderDNS(b *strings.Builder, p domain.Payload) {
	for _, key := range []string{"a", "aaaa", "ns", "txt"} {
		writeList(b, strings.ToUpper(key)+" records", p[key])
	}

	if mx, ok := p["mx"].([]any); ok {
		fmt.Fprintf(b, "MX records: %d\n", len(mx))
		for _, item := range mx {
			rec, ok := item.(map[string]any)
			if !ok {
				fmt.Fprintf(b, "  - %s\n", formatValue(item))
				continue
			}
			fmt.Fprintf(b, "  - %s (pref %s)\n", formatValue(rec["host"]), formatValue(rec["preference"]))
		}
	}

	if errs, ok := p["errors"].(map[string]any); ok && len(errs) > 0 {
		b.WriteString("Lookup errors:\n")
		for _, k := range sortedKeys(errs) {
			fmt.Fprintf(b, "  %s: %s\n", k, formatValue(errs[k]))
		}
	}
	renderExtra(b, p, "a", "aaaa", "ns", "txt", "mx", "errors")
}

func renderPorts(b *strings.Builder, p domain.Payload) {
	if host, ok := p["host"]; ok {
		fmt.Fprintf(b, "Host: %s\n", formatValue(host))
	}

	open, ok := p["open_ports"].([]any)
	fmt.Fprintf(b, "Open ports: %d\n", len(open))
	if v, exists := p["open_ports"]; exists && !ok {
		fmt.Fprintf(b, "open_ports: %s\n", formatValue(v))
	}
	for _, item := range open {
		info, ok := item.(map[string]any)
		if !ok {
			fmt.Fprintf(b, "  - %s\n", formatValue(item))
			continue
		}
		service := "unknown"
		if s, ok := info["service"].(string); ok && s != "" {
			service = s
		}
		fmt.Fprintf(b, "  Port %s: %s\n", formatValue(info["port"]), service)
	}

	if scanned, ok := p["scanned"]; ok {
		fmt.Fprintf(b, "Ports scanned: %s\n", formatValue(scanned))
	}
	renderExtra(b, p, "host", "open_ports", "scanned")
}

// renderGeneric lista los campos del payload ordenados por clave.
func renderGeneric(b *strings.Builder, p domain.Payload) {
	if len(p) == 0 {
		b.WriteString("(no data)\n")
		return
	}
	for _, k := range sortedKeys(p) {
		fmt.Fprintf(b, "%s: %s\n", k, formatValue(p[k]))
	}
}

// renderExtra lista los campos que el renderer específico no conoce.
func renderExtra(b *strings.Builder, p domain.Payload, known ...string) {
	skip := make(map[string]struct{}, len(known))
	for _, k := range known {
		skip[k] = struct{}{}
	}
	for _, k := range sortedKeys(p) {
		if _, ok := skip[k]; ok {
			continue
		}
		fmt.Fprintf(b, "%s: %s\n", k, formatValue(p[k]))
	}
}

func writeList(b *strings.Builder, title string, v any) {
	items, ok := v.([]any)
	if !ok {
		return
	}
	fmt.Fprintf(b, "%s: %d\n", title, len(items))
	for i, item := range items {
		if i == maxListItems {
			fmt.Fprintf(b, "  ... and %d more\n", len(items)-maxListItems)
			break
		}
		fmt.Fprintf(b, "  - %s\n", formatValue(item))
	}
}

func label(key string) string {
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatValue produce una representación compacta y estable de un valor JSON.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		// json.Marshal ordena las claves de los mapas
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
