// internal/testutil/mocks.go
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Nota: los mocks implementan ports.Probe por conformidad estructural (Execute),
// sin importar ports para evitar dependencias circulares.

// MockProbe es un probe configurable que cuenta sus ejecuciones.
type MockProbe struct {
	ExecuteFunc func(ctx context.Context, target string) (map[string]any, error)

	calls      atomic.Int32
	mu         sync.Mutex
	lastTarget string
}

// Execute implementa ports.Probe.
func (m *MockProbe) Execute(ctx context.Context, target string) (map[string]any, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastTarget = target
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, target)
	}
	return map[string]any{}, nil
}

// Calls retorna el número de ejecuciones.
func (m *MockProbe) Calls() int { return int(m.calls.Load()) }

// LastTarget retorna el último target recibido.
func (m *MockProbe) LastTarget() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTarget
}

// ConstantSuccess crea un probe que siempre retorna payload.
func ConstantSuccess(payload map[string]any) *MockProbe {
	return &MockProbe{ExecuteFunc: func(context.Context, string) (map[string]any, error) {
		return payload, nil
	}}
}

// AlwaysThrows crea un probe que siempre falla con msg.
func AlwaysThrows(msg string) *MockProbe {
	return &MockProbe{ExecuteFunc: func(context.Context, string) (map[string]any, error) {
		return nil, errors.New(msg)
	}}
}

// Panics crea un probe que entra en pánico.
func Panics(v any) *MockProbe {
	return &MockProbe{ExecuteFunc: func(context.Context, string) (map[string]any, error) {
		panic(v)
	}}
}

// Gate bloquea un probe hasta que el test lo libere.
type Gate struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

// NewGate crea un gate cerrado.
func NewGate() *Gate {
	return &Gate{release: make(chan struct{}), started: make(chan struct{}, 64)}
}

// Release libera todos los probes bloqueados.
func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }

// Started se señaliza cada vez que un probe bloqueado comienza.
func (g *Gate) Started() <-chan struct{} { return g.started }

// Blocking crea un probe que espera al gate (ignorando ctx) y luego retorna payload.
func (g *Gate) Blocking(payload map[string]any) *MockProbe {
	return &MockProbe{ExecuteFunc: func(context.Context, string) (map[string]any, error) {
		g.started <- struct{}{}
		<-g.release
		return payload, nil
	}}
}

// Concurrency mide el máximo de ejecuciones simultáneas.
type Concurrency struct {
	current atomic.Int32
	max     atomic.Int32
}

// Enter registra una ejecución en curso.
func (c *Concurrency) Enter() {
	n := c.current.Add(1)
	for {
		m := c.max.Load()
		if n <= m || c.max.CompareAndSwap(m, n) {
			return
		}
	}
}

// Leave registra el fin de una ejecución.
func (c *Concurrency) Leave() { c.current.Add(-1) }

// Max retorna el máximo observado.
func (c *Concurrency) Max() int { return int(c.max.Load()) }

// Named formatea un nombre de probe indexado (probe-0, probe-1...).
func Named(i int) string { return fmt.Sprintf("probe-%d", i) }
