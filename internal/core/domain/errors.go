// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio comunes.
var (
	// Target errors
	ErrEmptyTarget = errors.New("target cannot be empty")

	// Probe errors
	ErrEmptyProbeName   = errors.New("probe name cannot be empty")
	ErrNilProbe         = errors.New("probe cannot be nil")
	ErrDuplicateName    = errors.New("probe name already registered")
	ErrNoProbesResolved = errors.New("no probes resolved for scan")

	// Ledger errors
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrDuplicateResult   = errors.New("result already recorded")
	ErrPersistence       = errors.New("persistence failure")

	// Export errors
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrMalformedDocument = errors.New("malformed structured document")
)

// Mensajes de Failure generados por el propio orquestador.
const (
	MsgProbeNotFound = "probe not found"
	MsgTimedOut      = "timed out"
)

// DuplicateNameError se devuelve al registrar dos probes con el mismo nombre.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("probe %q is already registered", e.Name)
}

func (e *DuplicateNameError) Is(target error) bool { return target == ErrDuplicateName }

// UnknownProbeWarning describe un nombre solicitado sin registro asociado.
// No es fatal: el nombre se omite de la ejecución pero aparece en el Report.
type UnknownProbeWarning struct {
	Name string
}

func (w UnknownProbeWarning) String() string {
	return fmt.Sprintf("probe %q is not registered", w.Name)
}

// InvalidTransitionError indica un intento de retroceder o reescribir el estado de una task.
type InvalidTransitionError struct {
	TaskID string
	From   TaskStatus
	To     TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: cannot transition from %s to %s", e.TaskID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// DuplicateResultError indica que ya existe un StoredResult para (task, probe).
type DuplicateResultError struct {
	TaskID    string
	ProbeName string
}

func (e *DuplicateResultError) Error() string {
	return fmt.Sprintf("task %s: result for probe %q already recorded", e.TaskID, e.ProbeName)
}

func (e *DuplicateResultError) Is(target error) bool { return target == ErrDuplicateResult }

// PersistenceError envuelve cualquier fallo del almacenamiento subyacente.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// NewPersistenceError crea un PersistenceError; devuelve nil si err es nil.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
