// internal/core/usecases/background.go
package usecases

import (
	"context"
	"sync"
)

// background cuenta el trabajo en segundo plano del orchestrator (outcomes
// tardíos y notificaciones). A diferencia de sync.WaitGroup admite altas
// mientras otro goroutine está esperando, así que varios escaneos pueden
// compartir el orchestrator y llamar a Wait en paralelo.
type background struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending int
}

func newBackground() *background {
	b := &background{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Go ejecuta fn en un goroutine contabilizado.
func (b *background) Go(fn func()) {
	b.mu.Lock()
	b.pending++
	b.mu.Unlock()

	go func() {
		defer b.done()
		fn()
	}()
}

func (b *background) done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending--
	if b.pending == 0 {
		b.cond.Broadcast()
	}
}

// Pending retorna cuántos goroutines siguen en curso.
func (b *background) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Wait bloquea hasta que no queda trabajo pendiente o ctx termina.
func (b *background) Wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.pending > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.cond.Wait()
	}
	return nil
}
