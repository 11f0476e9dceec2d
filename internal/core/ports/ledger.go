// internal/core/ports/ledger.go
package ports

import (
	"context"

	"reconx/internal/core/domain"
)

// TaskLedger es el port de persistencia de tasks y resultados por probe.
// Es el único escritor de transiciones de estado. Toda operación mutante es durable
// antes de retornar. Los fallos del almacenamiento se devuelven como *domain.PersistenceError.
type TaskLedger interface {
	// CreateTask inserta una task nueva en estado pending y retorna su ID
	CreateTask(ctx context.Context, target string, probes []string) (string, error)

	// SetStatus aplica una transición monotónica (domain.CheckTransition)
	SetStatus(ctx context.Context, taskID string, status domain.TaskStatus) error

	// RecordResult inserta el outcome de un probe una única vez por (task, probe)
	RecordResult(ctx context.Context, taskID, probeName string, outcome domain.Outcome) error

	// GetTask retorna la task o nil si no existe
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// ListResults retorna los resultados de la task ordenados por escritura ascendente
	ListResults(ctx context.Context, taskID string) ([]domain.StoredResult, error)

	// ListTasks retorna las tasks más recientes primero (limit <= 0 = sin límite)
	ListTasks(ctx context.Context, limit int) ([]domain.Task, error)

	// Close libera los recursos del almacenamiento
	Close() error
}
