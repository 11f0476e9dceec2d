// internal/platform/resilience/breaker.go
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen indica que el breaker rechazó el intento.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State es el estado del breaker.
type State int

const (
	StateClosed   State = iota // los intentos pasan
	StateOpen                  // se rechaza hasta que venza el cooldown
	StateHalfOpen              // un único intento de prueba en curso
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker deja de intentar contra un servicio remoto tras threshold intentos
// fallidos seguidos. Cada intento cuenta, también los reintentos de una misma
// ejecución. Pasado el cooldown admite un intento de prueba: si sale bien se
// cierra y si falla vuelve a abrirse.
type Breaker struct {
	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// NewBreaker crea un breaker cerrado. Valores no positivos toman los defaults
// (5 fallos, 1 minuto).
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow decide si el próximo intento puede hacerse. Todo intento admitido debe
// cerrarse con Record o Release.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.trial = true
	case StateHalfOpen:
		if b.trial {
			return ErrCircuitOpen
		}
		b.trial = true
	}
	return nil
}

// Record anota el resultado de un intento. Retorna true si este fallo abrió el breaker.
func (b *Breaker) Record(err error) (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trial = false
	if err == nil {
		b.state = StateClosed
		b.failures = 0
		return false
	}

	b.failures++
	if b.state == StateOpen {
		return false
	}
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.now()
		return true
	}
	return false
}

// Release libera un intento admitido que no dice nada del servicio (p. ej. cancelado).
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
}

// State retorna el estado actual. Un breaker abierto con el cooldown vencido
// sigue en StateOpen hasta el siguiente Allow.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
