// internal/core/ports/exporter.go
package ports

import (
	"io"

	"reconx/internal/core/domain"
)

// ReportExporter es el port para serializar un Report en un formato concreto.
type ReportExporter interface {
	// Format retorna el nombre del formato ("json", "yaml", "text")
	Format() string

	// Extension retorna la extensión de archivo sin punto
	Extension() string

	// Export escribe el report en w
	Export(w io.Writer, report *domain.Report) error
}

// ReportLoader reconstruye un Report previamente exportado.
type ReportLoader interface {
	Load(r io.Reader) (*domain.Report, error)
}
