// Package ledgertest contiene la batería de conformidad que todo TaskLedger debe pasar.
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
)

// Factory crea un ledger vacío para un subtest.
type Factory func(t *testing.T) ports.TaskLedger

// Run ejecuta la batería completa contra los ledgers creados por newLedger.
func Run(t *testing.T, newLedger Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, l ports.TaskLedger)
	}{
		{"CreateTask", testCreateTask},
		{"GetTaskAbsent", testGetTaskAbsent},
		{"StatusLifecycle", testStatusLifecycle},
		{"StatusRejectsRegression", testStatusRejectsRegression},
		{"StatusTerminalIsFinal", testStatusTerminalIsFinal},
		{"StatusDirectToFailed", testStatusDirectToFailed},
		{"StatusUnknownTask", testStatusUnknownTask},
		{"RecordAndList", testRecordAndList},
		{"RecordDuplicate", testRecordDuplicate},
		{"RecordUnknownTask", testRecordUnknownTask},
		{"RecordAfterCompletion", testRecordAfterCompletion},
		{"ListResultsAbsent", testListResultsAbsent},
		{"OutcomeFidelity", testOutcomeFidelity},
		{"ConcurrentRecords", testConcurrentRecords},
		{"ConcurrentDuplicateRecords", testConcurrentDuplicateRecords},
		{"ConcurrentTasks", testConcurrentTasks},
		{"ListTasks", testListTasks},
		{"Closed", testClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			tt.fn(t, l)
		})
	}
}

func createTask(t *testing.T, l ports.TaskLedger, target string, probes ...string) string {
	t.Helper()
	id, err := l.CreateTask(context.Background(), target, probes)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func testCreateTask(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	id := createTask(t, l, "example.com", "whois", "dns")
	other := createTask(t, l, "example.com", "whois", "dns")
	assert.NotEqual(t, id, other, "task IDs must be unique")

	task, err := l.GetTask(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, task)

	assert.Equal(t, id, task.ID)
	assert.Equal(t, "example.com", task.Target)
	assert.Equal(t, []string{"whois", "dns"}, task.Probes)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.True(t, task.CreatedAt.After(before), "created_at should be set")
	assert.Nil(t, task.CompletedAt)
}

func testGetTaskAbsent(t *testing.T, l ports.TaskLedger) {
	task, err := l.GetTask(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, task)

	task, err = l.GetTask(context.Background(), "not-a-task-id")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func testStatusLifecycle(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	id := createTask(t, l, "a.com", "whois")

	require.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusRunning))
	require.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusRunning), "same status is a no-op")

	task, err := l.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusRunning, task.Status)
	assert.Nil(t, task.CompletedAt)

	require.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusCompleted))

	task, err = l.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.False(t, task.CompletedAt.Before(task.CreatedAt))

	completedAt := *task.CompletedAt
	require.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusCompleted), "repeating terminal status is a no-op")
	task, err = l.GetTask(ctx, id)
	require.NoError(t, err)
	assert.True(t, task.CompletedAt.Equal(completedAt), "no-op must not move completed_at")
}

func testStatusRejectsRegression(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	id := createTask(t, l, "a.com", "whois")
	require.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusRunning))

	err := l.SetStatus(ctx, id, domain.TaskStatusPending)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	var te *domain.InvalidTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.TaskStatusRunning, te.From)
	assert.Equal(t, domain.TaskStatusPending, te.To)

	task, err := l.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusRunning, task.Status, "rejected transition leaves status untouched")

	require.ErrorIs(t, l.SetStatus(ctx, id, domain.TaskStatus("paused")), domain.ErrInvalidStatus)
}

func testStatusTerminalIsFinal(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	id := createTask(t, l, "a.com", "whois")
	require.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusRunning))
	require.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusCompleted))

	for _, next := range []domain.TaskStatus{domain.TaskStatusFailed, domain.TaskStatusRunning, domain.TaskStatusPending} {
		assert.ErrorIs(t, l.SetStatus(ctx, id, next), domain.ErrInvalidTransition, "completed -> %s", next)
	}

	task, err := l.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
}

func testStatusDirectToFailed(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	id := createTask(t, l, "a.com", "whois")

	require.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusFailed))

	task, err := l.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.NotNil(t, task.CompletedAt)
}

func testStatusUnknownTask(t *testing.T, l ports.TaskLedger) {
	err := l.SetStatus(context.Background(), "00000000-0000-0000-0000-000000000000", domain.TaskStatusRunning)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func testRecordAndList(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	id := createTask(t, l, "a.com", "whois", "dns", "ports")

	require.NoError(t, l.RecordResult(ctx, id, "dns", domain.NewSuccess(map[string]any{"a": []string{"192.0.2.1"}})))
	require.NoError(t, l.RecordResult(ctx, id, "whois", domain.NewSuccess(map[string]any{"registrar": "ACME"})))
	require.NoError(t, l.RecordResult(ctx, id, "ports", domain.Failure("timeout")))

	results, err := l.ListResults(ctx, id)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"dns", "whois", "ports"},
		[]string{results[0].ProbeName, results[1].ProbeName, results[2].ProbeName},
		"results are ordered by write time")
	for i, r := range results {
		assert.Equal(t, id, r.TaskID)
		assert.False(t, r.WrittenAt.IsZero())
		if i > 0 {
			assert.False(t, r.WrittenAt.Before(results[i-1].WrittenAt), "written_at ascending")
		}
	}
	assert.True(t, results[2].Outcome.Equal(domain.Failure("timeout")))
}

func testRecordDuplicate(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	id := createTask(t, l, "a.com", "whois")
	original := domain.NewSuccess(map[string]any{"registrar": "ACME"})

	require.NoError(t, l.RecordResult(ctx, id, "whois", original))

	err := l.RecordResult(ctx, id, "whois", domain.Failure("second write"))
	require.ErrorIs(t, err, domain.ErrDuplicateResult)

	var de *domain.DuplicateResultError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "whois", de.ProbeName)

	results, err := l.ListResults(ctx, id)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Outcome.Equal(original), "stored value untouched by duplicate write")
}

func testRecordUnknownTask(t *testing.T, l ports.TaskLedger) {
	err := l.RecordResult(context.Background(), "00000000-0000-0000-0000-000000000000", "whois", domain.Failure("x"))
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func testRecordAfterCompletion(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	id := createTask(t, l, "a.com", "slow")
	require.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusCompleted))

	require.NoError(t, l.RecordResult(ctx, id, "slow", domain.NewSuccess(map[string]any{"late": true})),
		"late outcomes are accepted after completion")
}

func testListResultsAbsent(t *testing.T, l ports.TaskLedger) {
	results, err := l.ListResults(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Empty(t, results)

	id := createTask(t, l, "a.com", "whois")
	results, err = l.ListResults(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func testOutcomeFidelity(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	id := createTask(t, l, "a.com", "nested", "empty", "failure")

	outcomes := map[string]domain.Outcome{
		"nested": domain.NewSuccess(map[string]any{
			"mx":      []map[string]any{{"host": "mx.a.com", "preference": 10}},
			"dnssec":  true,
			"nothing": nil,
			"ratio":   0.25,
			"unicode": "ñandú",
		}),
		"empty":   domain.NewSuccess(nil),
		"failure": domain.Failure("connection refused"),
	}
	for name, o := range outcomes {
		require.NoError(t, l.RecordResult(ctx, id, name, o))
	}

	results, err := l.ListResults(ctx, id)
	require.NoError(t, err)
	require.Len(t, results, len(outcomes))
	for _, r := range results {
		assert.True(t, r.Outcome.Equal(outcomes[r.ProbeName]), "outcome for %s: got %s", r.ProbeName, r.Outcome)
	}
}

func testConcurrentRecords(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	const n = 20

	probes := make([]string, n)
	for i := range probes {
		probes[i] = fmt.Sprintf("probe-%d", i)
	}
	id := createTask(t, l, "a.com", probes...)

	var wg sync.WaitGroup
	for _, name := range probes {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, l.RecordResult(ctx, id, name, domain.NewSuccess(map[string]any{"probe": name})))
		}(name)
	}
	wg.Wait()

	results, err := l.ListResults(ctx, id)
	require.NoError(t, err)
	assert.Len(t, results, n)
}

func testConcurrentDuplicateRecords(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	id := createTask(t, l, "a.com", "whois")

	const writers = 10
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- l.RecordResult(ctx, id, "whois", domain.NewSuccess(map[string]any{"writer": i}))
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrDuplicateResult)
	}
	assert.Equal(t, 1, ok, "exactly one write wins")

	results, err := l.ListResults(ctx, id)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func testConcurrentTasks(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()
	const n = 10

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := l.CreateTask(ctx, fmt.Sprintf("t%d.com", i), []string{"whois"})
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusRunning))
			assert.NoError(t, l.RecordResult(ctx, id, "whois", domain.Failure("x")))
			assert.NoError(t, l.SetStatus(ctx, id, domain.TaskStatusCompleted))
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		seen[id] = struct{}{}
		task, err := l.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	}
	assert.Len(t, seen, n)
}

func testListTasks(t *testing.T, l ports.TaskLedger) {
	ctx := context.Background()

	empty, err := l.ListTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	first := createTask(t, l, "first.com", "whois")
	second := createTask(t, l, "second.com", "whois")
	third := createTask(t, l, "third.com", "whois")

	all, err := l.ListTasks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third, second, first}, []string{all[0].ID, all[1].ID, all[2].ID}, "newest first")

	limited, err := l.ListTasks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, third, limited[0].ID)
}

func testClosed(t *testing.T, l ports.TaskLedger) {
	require.NoError(t, l.Close())

	_, err := l.CreateTask(context.Background(), "a.com", []string{"whois"})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, err = l.ListTasks(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}
