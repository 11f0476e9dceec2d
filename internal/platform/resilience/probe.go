// internal/platform/resilience/probe.go
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
)

// Options configura el wrapper de resiliencia.
type Options struct {
	// MaxRetries reintentos tras el primer intento fallido
	MaxRetries int

	// Backoff intervalo inicial entre intentos (crece exponencialmente)
	Backoff time.Duration

	// Breaker opcional, compartido entre todas las ejecuciones del probe
	Breaker *Breaker
}

// Probe envuelve un ports.Probe con reintentos y circuit breaker.
type Probe struct {
	name    string
	inner   ports.Probe
	retries int
	backoff time.Duration
	breaker *Breaker
	logger  logx.Logger
}

// Ensure Probe implements ports.Probe at compile time.
var _ ports.Probe = (*Probe)(nil)

// Wrap crea el wrapper para el probe registrado como name.
func Wrap(name string, probe ports.Probe, opts Options, logger logx.Logger) *Probe {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if logger == nil {
		logger = logx.NewNop()
	}

	return &Probe{
		name:    name,
		inner:   probe,
		retries: opts.MaxRetries,
		backoff: opts.Backoff,
		breaker: opts.Breaker,
		logger:  logger.With("component", "resilient-probe", "probe", name),
	}
}

// Breaker retorna el circuit breaker (nil si no hay).
func (p *Probe) Breaker() *Breaker {
	return p.breaker
}

// Execute implementa ports.Probe. Cada intento pasa antes por el breaker, así que
// un servicio caído corta los reintentos en cuanto el breaker se abre. Las
// cancelaciones del contexto no se reintentan ni cuentan como fallo.
func (p *Probe) Execute(ctx context.Context, target string) (map[string]any, error) {
	var (
		out      map[string]any
		attempts int
		lastErr  error
	)

	op := func() error {
		if err := p.admit(lastErr); err != nil {
			return backoff.Permanent(err)
		}

		attempts++
		res, err := p.inner.Execute(ctx, target)
		switch {
		case err == nil:
			p.record(nil)
			out = res
			return nil
		case ctx.Err() != nil:
			if p.breaker != nil {
				p.breaker.Release()
			}
			return backoff.Permanent(err)
		}

		p.record(err)
		lastErr = err
		p.logger.Warn("probe attempt failed", "attempt", attempts, "error", err.Error())
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.backoff
	exp.MaxInterval = time.Minute
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		switch {
		case attempts > 1:
			return nil, fmt.Errorf("probe %s failed after %d attempts: %w", p.name, attempts, err)
		case errors.Is(err, ErrCircuitOpen):
			return nil, fmt.Errorf("probe %s: %w", p.name, err)
		}
		return nil, err
	}

	if attempts > 1 {
		p.logger.Info("probe succeeded after retry", "attempts", attempts)
	}
	return out, nil
}

// admit consulta al breaker antes de un intento. Si lo rechaza conserva el
// último error del servicio para que el outcome siga diciendo qué falló.
func (p *Probe) admit(lastErr error) error {
	if p.breaker == nil {
		return nil
	}
	err := p.breaker.Allow()
	if err == nil {
		return nil
	}
	p.logger.Debug("circuit breaker rejected attempt", "state", p.breaker.State().String())
	if lastErr != nil {
		return fmt.Errorf("%w (last error: %v)", err, lastErr)
	}
	return err
}

func (p *Probe) record(err error) {
	if p.breaker == nil {
		return
	}
	if p.breaker.Record(err) {
		p.logger.Warn("circuit breaker opened", "error", err.Error())
	}
}
