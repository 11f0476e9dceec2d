package ui

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pterm/pterm"

	"reconx/internal/adapters/output"
	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
	"reconx/internal/testutil"
)

// syncBuffer permite leer lo escrito por el presenter desde el test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return pterm.RemoveColorFromString(b.buf.String())
}

func newTestPresenter() (*Presenter, *syncBuffer) {
	buf := &syncBuffer{}
	return New(buf), buf
}

func TestPresenter_ScanHeader(t *testing.T) {
	p, buf := newTestPresenter()
	p.ScanHeader(ScanInfo{
		TaskID:   "task-1",
		Target:   "example.com",
		Probes:   []string{"dns", "whois"},
		Workers:  4,
		Deadline: 30 * time.Second,
	})

	out := buf.String()
	testutil.AssertContains(t, out, "example.com", "target")
	testutil.AssertContains(t, out, "dns, whois", "probes")
	testutil.AssertContains(t, out, "30.0s", "deadline")
	testutil.AssertContains(t, out, "task-1", "task id")
}

func TestPresenter_NotifyProgress(t *testing.T) {
	p, buf := newTestPresenter()
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	started := ports.NewEvent(ports.EventTypeProbeStarted, "example.com", "dns")
	started.Timestamp = start
	completed := ports.NewEvent(ports.EventTypeProbeCompleted, "example.com", "dns")
	completed.Timestamp = start.Add(250 * time.Millisecond)
	failed := ports.NewEvent(ports.EventTypeProbeFailed, "example.com", "whois")
	failed.Message = "timed out"

	testutil.AssertNoError(t, p.Notify(ctx, started), "started")
	testutil.AssertNoError(t, p.Notify(ctx, completed), "completed")
	testutil.AssertNoError(t, p.Notify(ctx, failed), "failed")
	testutil.AssertNoError(t, p.Notify(ctx, ports.NewEvent(ports.EventTypeScanCompleted, "example.com", "")), "scan completed")

	out := buf.String()
	testutil.AssertContains(t, out, "dns running", "running line")
	testutil.AssertContains(t, out, "✓ dns (250ms)", "duration from event timestamps")
	testutil.AssertContains(t, out, "✗ whois: timed out", "failure without known start")
	testutil.AssertEqual(t, len(p.started), 0, "finished probes forgotten")
	testutil.AssertNoError(t, p.Close(), "close")
}

func TestPresenter_NotifyEndBeforeStart(t *testing.T) {
	p, buf := newTestPresenter()
	ctx := context.Background()

	completed := ports.NewEvent(ports.EventTypeProbeCompleted, "example.com", "dns")
	completed.TaskID = "task-1"
	started := ports.NewEvent(ports.EventTypeProbeStarted, "example.com", "dns")
	started.TaskID = "task-1"

	testutil.AssertNoError(t, p.Notify(ctx, completed), "completed first")
	testutil.AssertNoError(t, p.Notify(ctx, started), "started afterwards")

	testutil.AssertEqual(t, len(p.started), 0, "late start not kept")
	testutil.AssertEqual(t, len(p.finished), 0, "pending end consumed")
	out := buf.String()
	testutil.AssertContains(t, out, "✓ dns", "completion printed")
	testutil.AssertFalse(t, strings.Contains(out, "dns running"), "stale running line not printed")
}

func TestPresenter_NoProgressAfterReport(t *testing.T) {
	p, buf := newTestPresenter()
	ctx := context.Background()

	started := ports.NewEvent(ports.EventTypeProbeStarted, "example.com", "whois")
	testutil.AssertNoError(t, p.Notify(ctx, started), "started")

	report := domain.NewReport("example.com")
	report.Set("whois", domain.Failure(domain.MsgTimedOut))
	p.Report(report)
	before := buf.String()

	late := ports.NewEvent(ports.EventTypeProbeCompleted, "example.com", "whois")
	testutil.AssertNoError(t, p.Notify(ctx, late), "late completion")
	other := ports.NewEvent(ports.EventTypeProbeCompleted, "other.example", "dns")
	testutil.AssertNoError(t, p.Notify(ctx, other), "other target")

	out := buf.String()
	testutil.AssertEqual(t, strings.Count(out, "✓ whois"), 0, "no progress line after the summary")
	testutil.AssertContains(t, out, "✓ dns", "other targets still reported")
	testutil.AssertTrue(t, strings.HasPrefix(out, before), "summary stays last for its target")
	testutil.AssertEqual(t, len(p.started), 0, "entries of the reported target dropped")

	// Un escaneo nuevo del mismo target vuelve a mostrar progreso
	p.ScanHeader(ScanInfo{Target: "example.com"})
	testutil.AssertNoError(t, p.Notify(ctx, ports.NewEvent(ports.EventTypeProbeStarted, "example.com", "dns")), "new scan")
	testutil.AssertContains(t, buf.String(), "dns running", "progress resumes after a new header")
}

func TestPresenter_Report(t *testing.T) {
	p, buf := newTestPresenter()

	report := domain.NewReport("example.com")
	report.Set("dns", domain.Success(domain.Payload{"a": []any{"192.0.2.1"}, "ns": []any{}}))
	report.Set("whois", domain.Failure("domain not found in RDAP: example.com"))
	report.Finalize(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))

	p.Report(report)

	out := buf.String()
	testutil.AssertContains(t, out, "Report: example.com", "section")
	testutil.AssertContains(t, out, "2 fields: a, ns", "success detail")
	testutil.AssertContains(t, out, "domain not found in RDAP", "failure detail")
	testutil.AssertContains(t, out, "1 succeeded, 1 failed", "summary")
	testutil.AssertContains(t, out, "2026-05-01 10:00:00", "completed at")
}

func TestPresenter_EmptyListings(t *testing.T) {
	p, buf := newTestPresenter()

	p.Tasks(nil)
	p.ReportFiles("reconx_out", nil)
	p.Report(domain.NewReport("example.com"))

	out := buf.String()
	testutil.AssertContains(t, out, "no tasks recorded", "tasks")
	testutil.AssertContains(t, out, "no saved reports", "files")
	testutil.AssertContains(t, out, "no probe results", "report")
}

func TestPresenter_TasksAndTask(t *testing.T) {
	p, buf := newTestPresenter()
	created := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	done := created.Add(time.Minute)

	task := domain.Task{
		ID:          "0b6f3c1e-7c55-4a3e-9a51-2f4f3b1f6a10",
		Target:      "example.com",
		Probes:      []string{"dns", "ports"},
		Status:      domain.TaskStatusCompleted,
		CreatedAt:   created,
		CompletedAt: &done,
	}
	p.Tasks([]domain.Task{task})

	report := domain.NewReport("example.com")
	report.Set("dns", domain.Success(domain.Payload{"a": []any{}}))
	p.Task(&task, report)

	out := buf.String()
	testutil.AssertContains(t, out, task.ID, "id")
	testutil.AssertContains(t, out, "dns,ports", "probes column")
	testutil.AssertContains(t, out, "2026-03-01 08:31:00", "completed")
	testutil.AssertContains(t, out, "Report: example.com", "task report")
}

func TestPresenter_Probes(t *testing.T) {
	p, buf := newTestPresenter()
	p.Probes([]ports.ProbeMetadata{
		{Name: "dns", Description: "DNS records"},
		{Name: "ports", Description: "TCP connect scan", Active: true},
	}, []string{"dns"})

	out := buf.String()
	lines := strings.Split(out, "\n")
	var dnsLine, portsLine string
	for _, l := range lines {
		switch {
		case strings.Contains(l, "DNS records"):
			dnsLine = l
		case strings.Contains(l, "TCP connect scan"):
			portsLine = l
		}
	}
	testutil.AssertContains(t, dnsLine, "yes", "dns enabled")
	testutil.AssertContains(t, dnsLine, "passive", "dns passive")
	testutil.AssertContains(t, portsLine, "no", "ports disabled")
	testutil.AssertContains(t, portsLine, "active", "ports active")
}

func TestPresenter_ReportFilesAndSaved(t *testing.T) {
	p, buf := newTestPresenter()
	p.ReportFiles("reconx_out", []output.ReportFile{{
		Name:     "example_com_20260501_100000.json",
		Format:   "json",
		Size:     2048,
		Modified: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}})
	p.Saved("reconx_out/example_com_20260501_100000.json")

	out := buf.String()
	testutil.AssertContains(t, out, "example_com_20260501_100000.json", "file name")
	testutil.AssertContains(t, out, "2.0 KiB", "size")
	testutil.AssertContains(t, out, "report saved to reconx_out/", "saved")
}

func TestHelpers(t *testing.T) {
	testutil.AssertEqual(t, formatDuration(1500*time.Millisecond), "1.5s", "seconds")
	testutil.AssertEqual(t, formatDuration(90*time.Second), "1m30s", "minutes")
	testutil.AssertEqual(t, formatSize(512), "512 B", "bytes")
	testutil.AssertEqual(t, formatSize(3*1024*1024), "3.0 MiB", "mebibytes")
	testutil.AssertEqual(t, truncate("abcdef", 4), "abc…", "truncated")
	testutil.AssertEqual(t, truncate("abc", 4), "abc", "short")
	testutil.AssertEqual(t, formatTime(time.Time{}), "-", "zero time")
}

func TestStatusMapping(t *testing.T) {
	testutil.AssertEqual(t, OutcomeStatus(domain.Failure("x")), StatusError, "failure")
	testutil.AssertEqual(t, OutcomeStatus(domain.Success(nil)), StatusSuccess, "success")
	testutil.AssertEqual(t, TaskStatus(domain.TaskStatusRunning), StatusRunning, "running")
	testutil.AssertEqual(t, TaskStatus(domain.TaskStatusPending), StatusPending, "pending")
	testutil.AssertEqual(t, TaskStatus(domain.TaskStatusFailed).String(), "error", "failed")
}
