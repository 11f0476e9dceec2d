// internal/platform/ui/presenter.go
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"reconx/internal/adapters/output"
	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
)

// ScanInfo contiene información inicial del escaneo
type ScanInfo struct {
	TaskID   string
	Target   string
	Probes   []string
	Workers  int
	Deadline time.Duration
}

// Presenter renderiza en la terminal el progreso de los escaneos y los
// listados de la CLI usando pterm. También es un ports.Notifier: registrado
// como observer del orchestrator muestra cada probe a medida que termina.
type Presenter struct {
	mu sync.Mutex
	w  io.Writer

	// Inicio de cada probe en curso, por target/task/probe
	started map[string]time.Time

	// Probes terminados cuyo probe.started todavía no llegó
	finished map[string]struct{}

	// Targets con el report ya mostrado: su progreso posterior no se imprime
	reported map[string]bool
}

// Ensure Presenter implements ports.Notifier at compile time.
var _ ports.Notifier = (*Presenter)(nil)

// New crea un presenter que escribe en w (stdout si es nil).
func New(w io.Writer) *Presenter {
	if w == nil {
		w = os.Stdout
	}
	return &Presenter{
		w:        w,
		started:  make(map[string]time.Time),
		finished: make(map[string]struct{}),
		reported: make(map[string]bool),
	}
}

// ScanHeader muestra la configuración del escaneo.
func (p *Presenter) ScanHeader(info ScanInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reported, info.Target)

	header := pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Sprint("ReconX - Reconnaissance Scan")

	deadline := "none"
	if info.Deadline > 0 {
		deadline = formatDuration(info.Deadline)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Target:   %s\n", IconTarget, StylePrimary.Sprint(info.Target))
	fmt.Fprintf(&b, "%s Probes:   %s\n", IconProbes, strings.Join(info.Probes, ", "))
	fmt.Fprintf(&b, "%s Workers:  %d\n", IconWorkers, info.Workers)
	fmt.Fprintf(&b, "%s Deadline: %s", IconTime, deadline)
	if info.TaskID != "" {
		fmt.Fprintf(&b, "\n   Task:     %s", StyleSecondary.Sprint(info.TaskID))
	}

	box := pterm.DefaultBox.
		WithTitle("Scan Configuration").
		WithTitleTopCenter().
		WithLeftPadding(2).
		WithRightPadding(2).
		Sprint(b.String())

	fmt.Fprintln(p.w, header)
	fmt.Fprintln(p.w, box)
	fmt.Fprintln(p.w)
}

// Notify implementa ports.Notifier: una línea por probe iniciado o terminado.
func (p *Presenter) Notify(_ context.Context, event ports.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Probe != "" && p.reported[event.Target] {
		return nil
	}
	key := progressKey(event.Target, event.TaskID, event.Probe)

	switch event.Type {
	case ports.EventTypeProbeStarted:
		// Cada evento se notifica en su propio goroutine: el fin puede llegar antes
		if _, done := p.finished[key]; done {
			delete(p.finished, key)
			return nil
		}
		p.started[key] = event.Timestamp
		fmt.Fprintln(p.w, "  "+StatusRunning.Render(event.Probe+" running"))

	case ports.EventTypeProbeCompleted:
		fmt.Fprintln(p.w, "  "+StatusSuccess.Render(event.Probe+p.elapsed(key, event.Timestamp)))

	case ports.EventTypeProbeFailed:
		line := event.Probe + p.elapsed(key, event.Timestamp)
		if event.Message != "" {
			line += ": " + event.Message
		}
		fmt.Fprintln(p.w, "  "+StatusError.Render(line))

	case ports.EventTypeScanFailed:
		fmt.Fprint(p.w, pterm.Error.Sprintln("scan failed for "+event.Target+": "+event.Message))
	}
	return nil
}

func progressKey(target, taskID, probe string) string {
	return target + "\x00" + taskID + "\x00" + probe
}

// elapsed retorna " (duración)" si se conoce el inicio del probe. Si el fin llega
// antes que el inicio queda anotado para descartar ese inicio.
func (p *Presenter) elapsed(key string, end time.Time) string {
	start, ok := p.started[key]
	if !ok {
		p.finished[key] = struct{}{}
		return ""
	}
	delete(p.started, key)
	if end.Before(start) {
		return ""
	}
	return " (" + formatDuration(end.Sub(start)) + ")"
}

// Close implementa ports.Notifier.
func (p *Presenter) Close() error { return nil }

// Report muestra el resumen de un report: un outcome por fila. Las notificaciones
// de progreso del mismo target que lleguen después se descartan.
func (p *Presenter) Report(report *domain.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reported[report.Target] = true
	prefix := report.Target + "\x00"
	for key := range p.started {
		if strings.HasPrefix(key, prefix) {
			delete(p.started, key)
		}
	}
	for key := range p.finished {
		if strings.HasPrefix(key, prefix) {
			delete(p.finished, key)
		}
	}
	p.report(report)
}

func (p *Presenter) report(report *domain.Report) {
	fmt.Fprintln(p.w)
	fmt.Fprint(p.w, pterm.DefaultSection.Sprintln("Report: "+report.Target))

	if len(report.Results) == 0 {
		fmt.Fprint(p.w, pterm.Info.Sprintln("no probe results"))
		return
	}

	data := pterm.TableData{{"Probe", "Status", "Detail"}}
	for _, name := range report.Names() {
		o := report.Results[name]
		st := OutcomeStatus(o)
		data = append(data, []string{name, st.Render(string(o.Kind)), truncate(outcomeDetail(o), 72)})
	}
	p.table(data)

	summary := fmt.Sprintf("%s succeeded, %s failed",
		StyleSuccess.Sprint(report.Successes()),
		StyleError.Sprint(report.Failures()))
	if !report.CompletedAt.IsZero() {
		summary += " " + StyleSecondary.Sprint("· completed "+formatTime(report.CompletedAt))
	}
	fmt.Fprintln(p.w, summary)
}

// outcomeDetail resume un outcome en una línea.
func outcomeDetail(o domain.Outcome) string {
	if o.IsFailure() {
		return o.Message
	}
	if len(o.Payload) == 0 {
		return "empty payload"
	}
	keys := make([]string, 0, len(o.Payload))
	for k := range o.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%d fields: %s", len(keys), strings.Join(keys, ", "))
}

// Saved confirma dónde quedó guardado un report.
func (p *Presenter) Saved(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, pterm.Success.Sprintln(IconFile+" report saved to "+path))
}

// Tasks lista tasks del ledger.
func (p *Presenter) Tasks(tasks []domain.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.w, pterm.DefaultSection.Sprintln("Tasks"))
	if len(tasks) == 0 {
		fmt.Fprint(p.w, pterm.Info.Sprintln("no tasks recorded"))
		return
	}

	data := pterm.TableData{{"ID", "Target", "Status", "Probes", "Created", "Completed"}}
	for _, t := range tasks {
		completed := "-"
		if t.CompletedAt != nil {
			completed = formatTime(*t.CompletedAt)
		}
		data = append(data, []string{
			t.ID,
			truncate(t.Target, 40),
			TaskStatus(t.Status).Render(string(t.Status)),
			truncate(strings.Join(t.Probes, ","), 30),
			formatTime(t.CreatedAt),
			completed,
		})
	}
	p.table(data)
}

// Task muestra una task y el report reconstruido a partir de sus resultados.
func (p *Presenter) Task(task *domain.Task, report *domain.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "ID:        %s\n", task.ID)
	fmt.Fprintf(&b, "Target:    %s\n", task.Target)
	fmt.Fprintf(&b, "Status:    %s\n", TaskStatus(task.Status).Render(string(task.Status)))
	fmt.Fprintf(&b, "Probes:    %s\n", strings.Join(task.Probes, ", "))
	fmt.Fprintf(&b, "Created:   %s", formatTime(task.CreatedAt))
	if task.CompletedAt != nil {
		fmt.Fprintf(&b, "\nCompleted: %s", formatTime(*task.CompletedAt))
	}

	fmt.Fprintln(p.w, pterm.DefaultBox.WithTitle("Task").WithLeftPadding(2).WithRightPadding(2).Sprint(b.String()))
	if report != nil {
		p.report(report)
	}
}

// Probes lista los probes registrados marcando los habilitados por defecto.
func (p *Presenter) Probes(probes []ports.ProbeMetadata, enabled []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	on := make(map[string]bool, len(enabled))
	for _, n := range enabled {
		on[n] = true
	}

	fmt.Fprint(p.w, pterm.DefaultSection.Sprintln("Available probes"))
	data := pterm.TableData{{"Name", "Kind", "Enabled", "Description"}}
	for _, m := range probes {
		kind := "passive"
		if m.Active {
			kind = StyleWarning.Sprint("active")
		}
		enabledCol := StyleSecondary.Sprint("no")
		if on[m.Name] {
			enabledCol = StyleSuccess.Sprint("yes")
		}
		data = append(data, []string{m.Name, kind, enabledCol, m.Description})
	}
	p.table(data)
}

// ReportFiles lista los reports guardados.
func (p *Presenter) ReportFiles(dir string, files []output.ReportFile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.w, pterm.DefaultSection.Sprintln("Saved reports in "+dir))
	if len(files) == 0 {
		fmt.Fprint(p.w, pterm.Info.Sprintln("no saved reports"))
		return
	}

	data := pterm.TableData{{"File", "Format", "Size", "Modified"}}
	for _, f := range files {
		data = append(data, []string{f.Name, f.Format, formatSize(f.Size), formatTime(f.Modified)})
	}
	p.table(data)
}

// Info muestra un mensaje informativo
func (p *Presenter) Info(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, pterm.Info.Sprintln(msg))
}

// Warning muestra una advertencia
func (p *Presenter) Warning(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, pterm.Warning.Sprintln(msg))
}

// Error muestra un error
func (p *Presenter) Error(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, pterm.Error.Sprintln(msg))
}

// table renderiza una tabla con cabecera; si pterm falla cae a texto tabulado.
func (p *Presenter) table(data pterm.TableData) {
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		for _, row := range data {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
		return
	}
	fmt.Fprintln(p.w, out)
}
