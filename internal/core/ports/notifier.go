// internal/core/ports/notifier.go
package ports

import (
	"context"
	"time"
)

// Notifier es el port para notificaciones de eventos del sistema.
// Implementa el patrón Observer para desacoplar la lógica de escaneo
// de los mecanismos de notificación (Kafka, logs, etc.).
type Notifier interface {
	// Notify envía una notificación para un evento
	Notify(ctx context.Context, event Event) error

	// Close cierra el notifier y libera recursos
	Close() error
}

// Event representa un evento del sistema.
type Event struct {
	// Type tipo de evento
	Type EventType `json:"type"`

	// Timestamp momento del evento
	Timestamp time.Time `json:"timestamp"`

	// TaskID task asociada (vacío si el escaneo no tiene task)
	TaskID string `json:"task_id,omitempty"`

	// Target objetivo relacionado
	Target string `json:"target"`

	// Probe probe que generó el evento (vacío para eventos de escaneo)
	Probe string `json:"probe,omitempty"`

	// Message detalle opcional (p.ej. el error de un probe)
	Message string `json:"message,omitempty"`
}

// EventType define los tipos de eventos del sistema.
type EventType string

const (
	// Scan events
	EventTypeScanStarted   EventType = "scan.started"
	EventTypeScanCompleted EventType = "scan.completed"
	EventTypeScanFailed    EventType = "scan.failed"

	// Probe events
	EventTypeProbeStarted   EventType = "probe.started"
	EventTypeProbeCompleted EventType = "probe.completed"
	EventTypeProbeFailed    EventType = "probe.failed"
)

// NewEvent crea un nuevo evento.
func NewEvent(eventType EventType, target, probe string) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Target:    target,
		Probe:     probe,
	}
}
