// internal/platform/ui/symbols.go
package ui

import (
	"github.com/pterm/pterm"

	"reconx/internal/core/domain"
)

// Status representa el estado visual de un probe o una task
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSuccess
	StatusError
)

// String convierte el status a string
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Symbol retorna el símbolo Unicode para cada estado
func (s Status) Symbol() string {
	switch s {
	case StatusPending:
		return "⏸"
	case StatusRunning:
		return "⣾"
	case StatusSuccess:
		return "✓"
	case StatusError:
		return "✗"
	default:
		return "?"
	}
}

// Color retorna el color pterm para cada estado
func (s Status) Color() pterm.Color {
	switch s {
	case StatusPending:
		return pterm.FgGray
	case StatusRunning:
		return pterm.FgCyan
	case StatusSuccess:
		return pterm.FgGreen
	case StatusError:
		return pterm.FgRed
	default:
		return pterm.FgDefault
	}
}

// Render retorna símbolo y texto coloreados
func (s Status) Render(text string) string {
	return s.Color().Sprint(s.Symbol() + " " + text)
}

// OutcomeStatus mapea un outcome a su estado visual.
func OutcomeStatus(o domain.Outcome) Status {
	if o.IsFailure() {
		return StatusError
	}
	return StatusSuccess
}

// TaskStatus mapea el estado de una task a su estado visual.
func TaskStatus(s domain.TaskStatus) Status {
	switch s {
	case domain.TaskStatusRunning:
		return StatusRunning
	case domain.TaskStatusCompleted:
		return StatusSuccess
	case domain.TaskStatusFailed:
		return StatusError
	default:
		return StatusPending
	}
}

// Icons de la UI
var (
	IconTarget  = "🎯"
	IconProbes  = "🔌"
	IconWorkers = "⚙️"
	IconTime    = "⏱"
	IconFile    = "📄"
)

// Separadores
var (
	SeparatorHeavy = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
	SeparatorLight = "────────────────────────────────────────────"
)
