// internal/core/ports/probe.go
package ports

import "context"

// Probe es el port primario para toda fuente de información de un escaneo.
// Cualquier tipo con Execute califica; el timeout es responsabilidad de cada probe.
type Probe interface {
	// Execute ejecuta el probe contra el target y retorna un objeto estructurado
	Execute(ctx context.Context, target string) (map[string]any, error)
}

// ProbeFunc adapta una función a la interfaz Probe.
type ProbeFunc func(ctx context.Context, target string) (map[string]any, error)

// Execute implementa Probe.
func (f ProbeFunc) Execute(ctx context.Context, target string) (map[string]any, error) {
	return f(ctx, target)
}

// ProbeMetadata describe un probe registrado (usado para listar probes disponibles).
type ProbeMetadata struct {
	Name        string
	Description string
	Active      bool // true si el probe toca directamente al target (p.ej. port scan)
}
