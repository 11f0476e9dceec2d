// internal/platform/registry/probe_registry.go
package registry

import (
	"sort"
	"strings"
	"sync"

	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
)

// ProbeRegistry gestiona los probes habilitados de una sesión.
// Se construye explícitamente en el arranque y se pasa al Orchestrator;
// no existe instancia global.
type ProbeRegistry struct {
	mu       sync.RWMutex
	probes   map[string]ports.Probe
	metadata map[string]ports.ProbeMetadata
	logger   logx.Logger
}

// NewProbeRegistry crea un registry vacío.
func NewProbeRegistry(logger logx.Logger) *ProbeRegistry {
	if logger == nil {
		logger = logx.NewNop()
	}
	return &ProbeRegistry{
		probes:   make(map[string]ports.Probe),
		metadata: make(map[string]ports.ProbeMetadata),
		logger:   logger.With("component", "probe-registry"),
	}
}

// Register añade un probe bajo un nombre único.
func (r *ProbeRegistry) Register(name string, probe ports.Probe) error {
	return r.RegisterWithMetadata(name, probe, ports.ProbeMetadata{Name: name})
}

// RegisterWithMetadata añade un probe junto a su descripción.
func (r *ProbeRegistry) RegisterWithMetadata(name string, probe ports.Probe, meta ports.ProbeMetadata) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrEmptyProbeName
	}
	if probe == nil {
		return domain.ErrNilProbe
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.probes[name]; exists {
		return &domain.DuplicateNameError{Name: name}
	}

	meta.Name = name
	r.probes[name] = probe
	r.metadata[name] = meta
	r.logger.Debug("probe registered", "name", name, "active", meta.Active)

	return nil
}

// Resolve retorna los probes registrados y solicitados. Cada nombre sin registro
// produce un UnknownProbeWarning y se omite de la ejecución.
func (r *ProbeRegistry) Resolve(names []string) (map[string]ports.Probe, []domain.UnknownProbeWarning) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved := make(map[string]ports.Probe, len(names))
	var warnings []domain.UnknownProbeWarning

	for _, name := range names {
		if probe, ok := r.probes[name]; ok {
			resolved[name] = probe
			continue
		}
		warnings = append(warnings, domain.UnknownProbeWarning{Name: name})
		r.logger.Warn("probe not registered", "probe", name)
	}

	return resolved, warnings
}

// Names retorna los nombres registrados ordenados.
func (r *ProbeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.probes))
	for name := range r.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe retorna la metadata de un probe.
func (r *ProbeRegistry) Describe(name string) (ports.ProbeMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.metadata[name]
	return meta, ok
}

// IsRegistered verifica si un probe está registrado.
func (r *ProbeRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.probes[name]
	return ok
}

// Len retorna el número de probes registrados.
func (r *ProbeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.probes)
}
