// internal/core/domain/target.go
package domain

import "strings"

// NormalizeTarget limpia espacios del target y valida que no quede vacío.
// No se aplica ninguna otra validación semántica (dominio o IP son opacos).
func NormalizeTarget(target string) (string, error) {
	t := strings.TrimSpace(target)
	if t == "" {
		return "", ErrEmptyTarget
	}
	return t, nil
}

// NormalizeProbeNames elimina vacíos y duplicados conservando el orden de aparición.
func NormalizeProbeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
