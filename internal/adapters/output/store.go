// internal/adapters/output/store.go
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reconx/internal/core/domain"
	"reconx/internal/platform/logx"
)

// ReportFile describe un report guardado en disco.
type ReportFile struct {
	Name     string
	Path     string
	Format   string
	Size     int64
	Modified time.Time
}

// ReportStore guarda, lista y carga reports en un directorio.
type ReportStore struct {
	dir    string
	logger logx.Logger
	now    func() time.Time
}

// NewReportStore crea un store sobre dir ("." si está vacío).
func NewReportStore(dir string, logger logx.Logger) *ReportStore {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = logx.NewNop()
	}
	return &ReportStore{dir: dir, logger: logger.With("component", "report-store"), now: time.Now}
}

// Dir retorna el directorio del store.
func (s *ReportStore) Dir() string { return s.dir }

// sanitizeTarget convierte un target en un fragmento de nombre de archivo válido.
// Ejemplo: "example.com" -> "example_com"
func sanitizeTarget(target string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, target)
}

// FileName genera <target_saneado>_<YYYYMMDD_HHMMSS>.<ext> a partir del instante del report.
func FileName(report *domain.Report, ext string, fallback time.Time) string {
	ts := report.CompletedAt
	if ts.IsZero() {
		ts = fallback
	}
	return fmt.Sprintf("%s_%s.%s", sanitizeTarget(report.Target), ts.UTC().Format("20060102_150405"), ext)
}

// Save exporta el report en el formato indicado y retorna la ruta creada.
// Nunca sobrescribe: ante colisión añade un sufijo numérico.
func (s *ReportStore) Save(report *domain.Report, format string) (string, error) {
	exporter, err := NewExporter(format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := FileName(report, exporter.Extension(), s.now())
	f, path, err := s.create(name)
	if err != nil {
		return "", err
	}

	if err := exporter.Export(f, report); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close output file: %w", err)
	}

	s.logger.Info("report saved", "path", path, "format", exporter.Format())
	return path, nil
}

func (s *ReportStore) create(name string) (*os.File, string, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	ext := filepath.Ext(name)

	for i := 0; i < 100; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i+1, ext)
		}
		path := filepath.Join(s.dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("failed to create output file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("failed to create output file: too many reports named %s", name)
}

// List retorna los reports guardados, más recientes primero.
// Un directorio inexistente equivale a una lista vacía.
func (s *ReportStore) List() ([]ReportFile, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var files []ReportFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		format, ok := formatFromExt(filepath.Ext(e.Name()))
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			s.logger.Debug("skipping report file", "name", e.Name(), "error", err.Error())
			continue
		}
		files = append(files, ReportFile{
			Name:     e.Name(),
			Path:     filepath.Join(s.dir, e.Name()),
			Format:   format,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].Modified.Equal(files[j].Modified) {
			return files[i].Modified.After(files[j].Modified)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// Load reconstruye un report guardado. Sólo los reports JSON son cargables.
func (s *ReportStore) Load(path string) (*domain.Report, error) {
	format, ok := formatFromExt(filepath.Ext(path))
	if !ok {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	loader, err := NewLoader(format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	report, err := loader.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return report, nil
}

func formatFromExt(ext string) (string, bool) {
	switch strings.ToLower(ext) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".txt":
		return FormatText, true
	default:
		return "", false
	}
}
