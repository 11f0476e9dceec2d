// internal/adapters/storage/postgres/connect.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"

	"reconx/internal/platform/logx"
)

// PoolConfig configura la conexión a Postgres.
type PoolConfig struct {
	DSN      string
	MaxConns int32

	// RetryFor tiempo máximo reintentando la conexión inicial
	RetryFor time.Duration
}

// ConnectWithRetry abre un pool y verifica la conexión con backoff exponencial.
// Absorbe la indisponibilidad temporal de la base de datos durante el arranque.
func ConnectWithRetry(ctx context.Context, cfg PoolConfig, logger logx.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxElapsedTime = cfg.RetryFor
	if expBackoff.MaxElapsedTime <= 0 {
		expBackoff.MaxElapsedTime = 30 * time.Second
	}

	var pool *pgxpool.Pool
	attempt := 0
	operation := func() error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Warn("postgres not ready", "attempt", attempt, "error", err.Error())
			return err
		}
		pool = p
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres after retries: %w", err)
	}

	logger.Debug("postgres connected", "attempts", attempt, "max_conns", poolCfg.MaxConns)
	return pool, nil
}
