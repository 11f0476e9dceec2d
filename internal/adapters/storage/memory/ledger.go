// internal/adapters/storage/memory/ledger.go
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
)

// Ensure Ledger implements ports.TaskLedger at compile time.
var _ ports.TaskLedger = (*Ledger)(nil)

var errClosed = errors.New("ledger closed")

// Ledger es un TaskLedger en memoria. Un RWMutex protege el índice de tasks y cada
// task tiene su propio mutex, de modo que escrituras sobre tasks distintas no compiten.
type Ledger struct {
	mu     sync.RWMutex
	tasks  map[string]*entry
	seq    uint64
	closed bool

	logger logx.Logger
	now    func() time.Time
}

type entry struct {
	seq     uint64 // orden de creación
	mu      sync.Mutex
	task    domain.Task
	results []domain.StoredResult
	probes  map[string]struct{}
}

// New crea un ledger vacío.
func New(logger logx.Logger) *Ledger {
	if logger == nil {
		logger = logx.NewNop()
	}
	return &Ledger{
		tasks:  make(map[string]*entry),
		logger: logger.With("component", "memory-ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) lookup(op, id string) (*entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, domain.NewPersistenceError(op, errClosed)
	}
	e, ok := l.tasks[id]
	if !ok {
		return nil, nil
	}
	return e, nil
}

// CreateTask registra una task pending con un UUID nuevo.
func (l *Ledger) CreateTask(_ context.Context, target string, probes []string) (string, error) {
	id := uuid.NewString()
	e := &entry{
		task: domain.Task{
			ID:        id,
			Target:    target,
			Probes:    append([]string(nil), probes...),
			Status:    domain.TaskStatusPending,
			CreatedAt: l.now(),
		},
		probes: make(map[string]struct{}),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", domain.NewPersistenceError("create task", errClosed)
	}
	l.seq++
	e.seq = l.seq
	l.tasks[id] = e

	l.logger.Debug("task created", "task_id", id, "target", target)
	return id, nil
}

// SetStatus aplica una transición monotónica.
func (l *Ledger) SetStatus(_ context.Context, taskID string, status domain.TaskStatus) error {
	e, err := l.lookup("set status", taskID)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := domain.CheckTransition(taskID, e.task.Status, status); err != nil {
		return err
	}
	if e.task.Status == status {
		return nil
	}

	e.task.Status = status
	if status.IsTerminal() {
		now := l.now()
		e.task.CompletedAt = &now
	}
	return nil
}

// RecordResult guarda el outcome de un probe una única vez.
func (l *Ledger) RecordResult(_ context.Context, taskID, probeName string, outcome domain.Outcome) error {
	e, err := l.lookup("record result", taskID)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.probes[probeName]; dup {
		return &domain.DuplicateResultError{TaskID: taskID, ProbeName: probeName}
	}

	// Copia profunda vía sobre JSON: el ledger no comparte mapas con el caller
	data, err := domain.MarshalOutcome(outcome)
	if err != nil {
		return domain.NewPersistenceError("record result", err)
	}
	stored, err := domain.UnmarshalOutcome(data)
	if err != nil {
		return domain.NewPersistenceError("record result", err)
	}

	e.probes[probeName] = struct{}{}
	e.results = append(e.results, domain.StoredResult{
		TaskID:    taskID,
		ProbeName: probeName,
		Outcome:   stored,
		WrittenAt: l.now(),
	})
	return nil
}

// GetTask retorna una copia de la task o nil si no existe.
func (l *Ledger) GetTask(_ context.Context, taskID string) (*domain.Task, error) {
	e, err := l.lookup("get task", taskID)
	if err != nil || e == nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	t := copyTask(e.task)
	return &t, nil
}

// ListResults retorna los resultados en orden de escritura.
func (l *Ledger) ListResults(_ context.Context, taskID string) ([]domain.StoredResult, error) {
	e, err := l.lookup("list results", taskID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return []domain.StoredResult{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.StoredResult{}, e.results...), nil
}

// ListTasks retorna las tasks más recientes primero.
func (l *Ledger) ListTasks(_ context.Context, limit int) ([]domain.Task, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, domain.NewPersistenceError("list tasks", errClosed)
	}
	entries := make([]*entry, 0, len(l.tasks))
	for _, e := range l.tasks {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	// seq es inmutable tras la creación
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	tasks := make([]domain.Task, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		tasks = append(tasks, copyTask(e.task))
		e.mu.Unlock()
	}
	return tasks, nil
}

// Close descarta el contenido; las operaciones posteriores fallan con PersistenceError.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.tasks = make(map[string]*entry)
	return nil
}

func copyTask(t domain.Task) domain.Task {
	t.Probes = append([]string(nil), t.Probes...)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}
