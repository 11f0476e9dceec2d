// internal/core/domain/report.go
package domain

import (
	"sort"
	"time"
)

// Report agrega los outcomes de todos los probes solicitados en una ejecución.
// Invariante: las claves de Results son exactamente los nombres solicitados.
type Report struct {
	// Target objetivo del escaneo
	Target string

	// CompletedAt momento en que se cerró el report (UTC, sin reloj monotónico)
	CompletedAt time.Time

	// Results outcome por nombre de probe
	Results map[string]Outcome
}

// NewReport crea un report vacío para el target.
func NewReport(target string) *Report {
	return &Report{
		Target:  target,
		Results: make(map[string]Outcome),
	}
}

// Set registra el outcome de un probe.
func (r *Report) Set(name string, o Outcome) {
	if r.Results == nil {
		r.Results = make(map[string]Outcome)
	}
	r.Results[name] = o
}

// Has indica si ya existe outcome para el probe.
func (r *Report) Has(name string) bool {
	_, ok := r.Results[name]
	return ok
}

// Finalize fija el timestamp de finalización.
func (r *Report) Finalize(now time.Time) {
	r.CompletedAt = now.UTC().Round(0)
}

// Names retorna los nombres de probe ordenados alfabéticamente.
func (r *Report) Names() []string {
	names := make([]string, 0, len(r.Results))
	for n := range r.Results {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Failures cuenta los outcomes fallidos.
func (r *Report) Failures() int {
	n := 0
	for _, o := range r.Results {
		if o.IsFailure() {
			n++
		}
	}
	return n
}

// Successes cuenta los outcomes exitosos.
func (r *Report) Successes() int {
	return len(r.Results) - r.Failures()
}

// Equal compara dos reports (target, instante de finalización y outcomes).
func (r *Report) Equal(other *Report) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Target != other.Target || !r.CompletedAt.Equal(other.CompletedAt) {
		return false
	}
	if len(r.Results) != len(other.Results) {
		return false
	}
	for name, o := range r.Results {
		oo, ok := other.Results[name]
		if !ok || !o.Equal(oo) {
			return false
		}
	}
	return true
}
