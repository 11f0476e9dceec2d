// internal/core/domain/task.go
package domain

import (
	"fmt"
	"time"
)

// TaskStatus estado del ciclo de vida de una task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// rank ordena los estados; los terminales comparten rango.
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusRunning:
		return 1
	case TaskStatusCompleted, TaskStatusFailed:
		return 2
	default:
		return -1
	}
}

// IsValid verifica que el estado sea conocido.
func (s TaskStatus) IsValid() bool { return s.rank() >= 0 }

// IsTerminal indica si el estado es completed o failed.
func (s TaskStatus) IsTerminal() bool { return s.rank() == 2 }

// ParseTaskStatus convierte un string en TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// CheckTransition valida la transición from -> to.
// Reglas: nunca retroceder de rango; un estado terminal no puede cambiar a otro terminal.
// Repetir el mismo estado es un no-op válido.
func CheckTransition(taskID string, from, to TaskStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if from == to {
		return nil
	}
	if to.rank() < from.rank() || (from.IsTerminal() && to.IsTerminal()) {
		return &InvalidTransitionError{TaskID: taskID, From: from, To: to}
	}
	return nil
}

// Task registro durable de un escaneo solicitado.
type Task struct {
	ID          string
	Target      string
	Probes      []string
	Status      TaskStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// StoredResult registro append-only del outcome de un probe para una task.
type StoredResult struct {
	TaskID    string
	ProbeName string
	Outcome   Outcome
	WrittenAt time.Time
}
