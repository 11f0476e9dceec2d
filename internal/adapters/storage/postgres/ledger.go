// internal/adapters/storage/postgres/ledger.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
	"reconx/internal/platform/telemetry"
)

// Ensure Ledger implements ports.TaskLedger at compile time.
var _ ports.TaskLedger = (*Ledger)(nil)

var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

// Códigos SQLSTATE relevantes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Ledger implementa ports.TaskLedger sobre Postgres. Cada mutación es una sentencia
// (o transacción) confirmada antes de retornar. El ledger es dueño del pool.
type Ledger struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger logx.Logger
	now    func() time.Time
}

// NewLedger crea un ledger sobre un pool con el esquema ya migrado.
func NewLedger(pool *pgxpool.Pool, tracer trace.Tracer, logger logx.Logger) *Ledger {
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	if logger == nil {
		logger = logx.NewNop()
	}
	return &Ledger{
		pool:   pool,
		tracer: tracer,
		logger: logger.With("component", "postgres-ledger"),
		// TIMESTAMPTZ tiene resolución de microsegundos
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Open conecta con reintentos, aplica migraciones y retorna el ledger.
func Open(ctx context.Context, cfg PoolConfig, tracer trace.Tracer, logger logx.Logger) (*Ledger, error) {
	if logger == nil {
		logger = logx.NewNop()
	}
	pool, err := ConnectWithRetry(ctx, cfg, logger)
	if err != nil {
		return nil, domain.NewPersistenceError("connect", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, domain.NewPersistenceError("migrate", err)
	}
	return NewLedger(pool, tracer, logger), nil
}

func attrs(kv ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(defaultDBAttributes)+len(kv))
	out = append(out, defaultDBAttributes...)
	return append(out, kv...)
}

// wrap deja pasar los errores de contrato y envuelve el resto como PersistenceError.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrDuplicateResult):
		return err
	default:
		return domain.NewPersistenceError(op, err)
	}
}

// parseID retorna false para IDs que no pueden existir (no son UUID).
func parseID(taskID string) (string, bool) {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// CreateTask inserta una task pending.
func (l *Ledger) CreateTask(ctx context.Context, target string, probes []string) (string, error) {
	id := uuid.NewString()
	if probes == nil {
		probes = []string{}
	}

	err := telemetry.ExecuteAndTrace(ctx, l.tracer, "postgres.create_task",
		attrs(attribute.String("task_id", id), attribute.String("target", target)),
		func(ctx context.Context) error {
			_, err := l.pool.Exec(ctx,
				`INSERT INTO tasks (id, target, probes, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
				id, target, probes, string(domain.TaskStatusPending), l.now(),
			)
			return err
		})
	if err != nil {
		return "", wrap("create task", err)
	}

	l.logger.Debug("task created", "task_id", id, "target", target)
	return id, nil
}

// SetStatus aplica una transición monotónica dentro de una transacción con bloqueo de fila.
func (l *Ledger) SetStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	id, ok := parseID(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	err := telemetry.ExecuteAndTrace(ctx, l.tracer, "postgres.set_status",
		attrs(attribute.String("task_id", id), attribute.String("status", string(status))),
		func(ctx context.Context) error {
			return pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
				var current string
				err := tx.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&current)
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
				}
				if err != nil {
					return err
				}

				from := domain.TaskStatus(current)
				if err := domain.CheckTransition(taskID, from, status); err != nil {
					return err
				}
				if from == status {
					return nil
				}

				var completedAt *time.Time
				if status.IsTerminal() {
					now := l.now()
					completedAt = &now
				}

				_, err = tx.Exec(ctx,
					`UPDATE tasks SET status = $2, completed_at = COALESCE($3, completed_at) WHERE id = $1`,
					id, string(status), completedAt,
				)
				return err
			})
		})
	return wrap("set status", err)
}

// RecordResult inserta el outcome; la PK (task_id, probe_name) garantiza unicidad.
func (l *Ledger) RecordResult(ctx context.Context, taskID, probeName string, outcome domain.Outcome) error {
	id, ok := parseID(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	data, err := domain.MarshalOutcome(outcome)
	if err != nil {
		return domain.NewPersistenceError("record result", err)
	}

	err = telemetry.ExecuteAndTrace(ctx, l.tracer, "postgres.record_result",
		attrs(
			attribute.String("task_id", id),
			attribute.String("probe", probeName),
			attribute.String("outcome", string(outcome.Kind)),
		),
		func(ctx context.Context) error {
			_, err := l.pool.Exec(ctx,
				`INSERT INTO stored_results (task_id, probe_name, outcome, written_at) VALUES ($1, $2, $3, $4)`,
				id, probeName, data, l.now(),
			)

			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				case pgUniqueViolation:
					return &domain.DuplicateResultError{TaskID: taskID, ProbeName: probeName}
				case pgForeignKeyViolation:
					return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
				}
			}
			return err
		})
	return wrap("record result", err)
}

// GetTask retorna la task o nil si no existe.
func (l *Ledger) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	id, ok := parseID(taskID)
	if !ok {
		return nil, nil
	}

	var task *domain.Task
	err := telemetry.ExecuteAndTrace(ctx, l.tracer, "postgres.get_task",
		attrs(attribute.String("task_id", id)),
		func(ctx context.Context) error {
			row := l.pool.QueryRow(ctx,
				`SELECT id::text, target, probes, status, created_at, completed_at FROM tasks WHERE id = $1`, id)

			t, err := scanTask(row)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			if err != nil {
				return err
			}
			task = &t
			return nil
		})
	if err != nil {
		return nil, wrap("get task", err)
	}
	return task, nil
}

// ListResults retorna los resultados por orden de escritura.
func (l *Ledger) ListResults(ctx context.Context, taskID string) ([]domain.StoredResult, error) {
	results := []domain.StoredResult{}

	id, ok := parseID(taskID)
	if !ok {
		return results, nil
	}

	err := telemetry.ExecuteAndTrace(ctx, l.tracer, "postgres.list_results",
		attrs(attribute.String("task_id", id)),
		func(ctx context.Context) error {
			rows, err := l.pool.Query(ctx,
				`SELECT probe_name, outcome, written_at FROM stored_results
				 WHERE task_id = $1 ORDER BY written_at, seq`, id)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				var (
					name      string
					raw       []byte
					writtenAt time.Time
				)
				if err := rows.Scan(&name, &raw, &writtenAt); err != nil {
					return err
				}
				outcome, err := domain.UnmarshalOutcome(raw)
				if err != nil {
					return err
				}
				results = append(results, domain.StoredResult{
					TaskID:    taskID,
					ProbeName: name,
					Outcome:   outcome,
					WrittenAt: writtenAt.UTC(),
				})
			}
			return rows.Err()
		})
	if err != nil {
		return nil, wrap("list results", err)
	}
	return results, nil
}

// ListTasks retorna las tasks más recientes primero (limit <= 0 = todas).
func (l *Ledger) ListTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	tasks := []domain.Task{}
	err := telemetry.ExecuteAndTrace(ctx, l.tracer, "postgres.list_tasks",
		attrs(attribute.Int("limit", limit)),
		func(ctx context.Context) error {
			rows, err := l.pool.Query(ctx,
				`SELECT id::text, target, probes, status, created_at, completed_at FROM tasks
				 ORDER BY created_at DESC, seq DESC LIMIT $1`, limitArg)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				t, err := scanTask(rows)
				if err != nil {
					return err
				}
				tasks = append(tasks, t)
			}
			return rows.Err()
		})
	if err != nil {
		return nil, wrap("list tasks", err)
	}
	return tasks, nil
}

// Close cierra el pool.
func (l *Ledger) Close() error {
	l.pool.Close()
	return nil
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var (
		t           domain.Task
		status      string
		completedAt *time.Time
	)
	if err := row.Scan(&t.ID, &t.Target, &t.Probes, &status, &t.CreatedAt, &completedAt); err != nil {
		return domain.Task{}, err
	}

	st, err := domain.ParseTaskStatus(status)
	if err != nil {
		return domain.Task{}, err
	}
	t.Status = st
	t.CreatedAt = t.CreatedAt.UTC()
	if completedAt != nil {
		at := completedAt.UTC()
		t.CompletedAt = &at
	}
	return t, nil
}
