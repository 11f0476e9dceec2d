// internal/core/usecases/mocks_test.go
package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
	"reconx/internal/platform/registry"
)

// mockNotifier registra los eventos recibidos.
type mockNotifier struct {
	mu     sync.Mutex
	events []ports.Event
	err    error
}

func (m *mockNotifier) Notify(_ context.Context, event ports.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockNotifier) Close() error { return nil }

func (m *mockNotifier) types() map[ports.EventType]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[ports.EventType]int)
	for _, e := range m.events {
		counts[e.Type]++
	}
	return counts
}

// outcomeRecorder captura las invocaciones de OnOutcome.
type outcomeRecorder struct {
	mu    sync.Mutex
	seen  map[string]int
	late  map[string]domain.Outcome
	order []string
}

func newOutcomeRecorder() *outcomeRecorder {
	return &outcomeRecorder{seen: make(map[string]int), late: make(map[string]domain.Outcome)}
}

func (r *outcomeRecorder) handle(name string, outcome domain.Outcome, late bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[name]++
	r.order = append(r.order, name)
	if late {
		r.late[name] = outcome
	}
}

func (r *outcomeRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[name]
}

func (r *outcomeRecorder) lateOutcome(name string) (domain.Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.late[name]
	return o, ok
}

func newTestRegistry(t *testing.T, probes map[string]ports.Probe) *registry.ProbeRegistry {
	t.Helper()
	reg := registry.NewProbeRegistry(logx.NewNop())
	for name, p := range probes {
		if err := reg.Register(name, p); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	return reg
}

func newTestOrchestrator(t *testing.T, probes map[string]ports.Probe, workers int, observers ...ports.Notifier) *Orchestrator {
	t.Helper()
	return NewOrchestrator(OrchestratorOptions{
		Registry:   newTestRegistry(t, probes),
		Logger:     logx.NewNop(),
		Observers:  observers,
		MaxWorkers: workers,
	})
}

// failingLedger es un ledger en memoria mínimo cuyos métodos pueden forzarse a fallar.
type failingLedger struct {
	mu        sync.Mutex
	tasks     map[string]*domain.Task
	results   map[string][]domain.StoredResult
	failWrite bool
	nextID    int
}

func newFailingLedger() *failingLedger {
	return &failingLedger{tasks: make(map[string]*domain.Task), results: make(map[string][]domain.StoredResult)}
}

var errDiskFull = errors.New("disk full")

func (l *failingLedger) CreateTask(_ context.Context, target string, probes []string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := fmt.Sprintf("task-%d", l.nextID)
	l.tasks[id] = &domain.Task{ID: id, Target: target, Probes: probes, Status: domain.TaskStatusPending}
	return id, nil
}

func (l *failingLedger) SetStatus(_ context.Context, id string, status domain.TaskStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	task, ok := l.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if err := domain.CheckTransition(id, task.Status, status); err != nil {
		return err
	}
	task.Status = status
	return nil
}

func (l *failingLedger) RecordResult(_ context.Context, id, probe string, outcome domain.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWrite {
		return domain.NewPersistenceError("record result", errDiskFull)
	}
	l.results[id] = append(l.results[id], domain.StoredResult{TaskID: id, ProbeName: probe, Outcome: outcome})
	return nil
}

func (l *failingLedger) GetTask(_ context.Context, id string) (*domain.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	task, ok := l.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *task
	return &cp, nil
}

func (l *failingLedger) ListResults(_ context.Context, id string) ([]domain.StoredResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.StoredResult(nil), l.results[id]...), nil
}

func (l *failingLedger) ListTasks(context.Context, int) ([]domain.Task, error) { return nil, nil }

func (l *failingLedger) Close() error { return nil }
