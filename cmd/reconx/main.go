// cmd/reconx/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"

	"reconx/internal/adapters/notify/kafka"
	"reconx/internal/adapters/output"
	"reconx/internal/adapters/storage/memory"
	"reconx/internal/adapters/storage/postgres"
	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
	"reconx/internal/core/usecases"
	"reconx/internal/platform/config"
	"reconx/internal/platform/logx"
	"reconx/internal/platform/registry"
	"reconx/internal/platform/telemetry"
	"reconx/internal/platform/ui"
	"reconx/internal/sources"
)

var (
	// Rellenables con -ldflags en build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run retorna el código de salida: 0 ok, 1 fallo de ejecución, 2 uso o configuración inválida.
func run(args []string) int {
	// 1. Config (defaults -> archivo -> ENV -> flags)
	cfg, err := config.Load(args)
	if errors.Is(err, config.ErrHelp) {
		config.PrintHelp(os.Stdout)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration load failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "Try: reconx -h for help")
		return 2
	}
	if cfg.PrintVersion {
		config.PrintVersion(os.Stdout, version, commit, date)
		return 0
	}

	// 2. Logger compartido
	logger := logx.NewWithOptions(logx.Options{
		Level:    logx.ParseLevel(cfg.Log.Level),
		Encoding: cfg.Log.Encoding,
	})

	// 3. Contexto raíz cancelado por señales
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Tracing
	tp, shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		logger.Err(err, "phase", "telemetry")
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err.Error())
		}
	}()
	tracer := tp.Tracer("reconx")

	var out io.Writer = os.Stdout
	if cfg.Output.Quiet {
		out = io.Discard
	}
	presenter := ui.New(out)
	store := output.NewReportStore(cfg.Output.Dir, logger)

	// 5. Registry con los probes integrados
	reg := registry.NewProbeRegistry(logger)
	if err := sources.RegisterBuiltins(reg, cfg, logger); err != nil {
		logger.Err(err, "phase", "registry")
		return 1
	}

	// Acciones que no necesitan ledger
	switch {
	case cfg.ListProbes:
		listProbes(reg, cfg)
		return 0
	case cfg.ListReports:
		return listReports(store, logger)
	case cfg.LoadReport != "":
		return loadReport(store, cfg.LoadReport, logger)
	}

	// 6. Ledger
	ledger, err := openLedger(ctx, cfg, tracer, logger)
	if err != nil {
		logger.Err(err, "phase", "ledger")
		return 1
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Warn("failed to close ledger", "error", err.Error())
		}
	}()

	// 7. Observers: progreso en terminal y, opcionalmente, Kafka
	observers := []ports.Notifier{presenter}
	if cfg.Kafka.Enabled {
		notifier, err := kafka.Connect(ctx, kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
			RetryFor: cfg.Kafka.RetryFor,
		}, tracer, logger)
		if err != nil {
			logger.Err(err, "phase", "kafka")
			return 1
		}
		defer func() {
			if err := notifier.Close(); err != nil {
				logger.Warn("failed to close kafka notifier", "error", err.Error())
			}
		}()
		observers = append(observers, notifier)
	}

	orch := usecases.NewOrchestrator(usecases.OrchestratorOptions{
		Registry:   reg,
		Logger:     logger,
		Observers:  observers,
		Tracer:     tracer,
		MaxWorkers: cfg.Workers,
	})
	svc := usecases.NewScanService(usecases.ScanServiceOptions{
		Orchestrator: orch,
		Ledger:       ledger,
		Logger:       logger,
		Deadline:     cfg.Deadline,
	})
	// Los outcomes tardíos y las notificaciones se drenan antes de cerrar ledger y Kafka
	defer drain(svc, cfg.DrainTimeout)

	switch {
	case cfg.ShowTask != "":
		return showTask(ctx, svc, cfg.ShowTask, logger)
	case cfg.ListTasks:
		tasks, err := svc.Tasks(ctx, cfg.TasksLimit)
		if err != nil {
			logger.Err(err, "phase", "tasks")
			return 1
		}
		ui.New(os.Stdout).Tasks(tasks)
		return 0
	}

	if cfg.Target == "" {
		fmt.Fprintln(os.Stderr, "Error: target is required")
		fmt.Fprintln(os.Stderr, "Usage: reconx -t <domain|ip> [flags]")
		fmt.Fprintln(os.Stderr, "Try: reconx -h for help")
		return 2
	}

	return scan(ctx, cfg, svc, store, presenter, logger)
}

// scan ejecuta un escaneo completo: task en el ledger, probes, resumen y guardado.
func scan(
	ctx context.Context,
	cfg config.Config,
	svc *usecases.ScanService,
	store *output.ReportStore,
	presenter *ui.Presenter,
	logger logx.Logger,
) int {
	probes := cfg.EnabledProbes()

	taskID, err := svc.Submit(ctx, cfg.Target, probes)
	if err != nil {
		logger.Err(err, "phase", "submit")
		if errors.Is(err, domain.ErrEmptyTarget) || errors.Is(err, domain.ErrNoProbesResolved) {
			return 2
		}
		return 1
	}

	logger.Info("ReconX starting",
		"version", version,
		"target", cfg.Target,
		"task_id", taskID,
		"probes", len(probes),
		"workers", cfg.Workers,
	)
	presenter.ScanHeader(ui.ScanInfo{
		TaskID:   taskID,
		Target:   cfg.Target,
		Probes:   probes,
		Workers:  cfg.Workers,
		Deadline: cfg.Deadline,
	})

	start := time.Now()
	report, runErr := svc.Execute(ctx, taskID)
	elapsed := time.Since(start)

	if report == nil {
		logger.Err(runErr, "phase", "run", "task_id", taskID, "elapsed_ms", elapsed.Milliseconds())
		return 1
	}
	if runErr != nil {
		// El report existe pero algún resultado no quedó persistido
		logger.Err(runErr, "phase", "persist", "task_id", taskID)
	}

	presenter.Report(report)

	if cfg.Output.Save {
		path, err := store.Save(report, cfg.Output.Format)
		if err != nil {
			logger.Err(err, "phase", "output")
			return 1
		}
		presenter.Saved(path)
	}

	logger.Info("ReconX finished",
		"task_id", taskID,
		"elapsed_ms", elapsed.Milliseconds(),
		"succeeded", report.Successes(),
		"failed", report.Failures(),
	)

	if runErr != nil {
		return 1
	}
	return 0
}

// drain espera al trabajo de fondo como mucho timeout. Un probe que ignora su
// contexto tras el deadline no bloquea la salida: se abandona y queda en el log.
func drain(svc *usecases.ScanService, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, _ = svc.WaitContext(ctx)
}

// openLedger crea el TaskLedger configurado.
func openLedger(ctx context.Context, cfg config.Config, tracer trace.Tracer, logger logx.Logger) (ports.TaskLedger, error) {
	switch cfg.Ledger.Driver {
	case config.LedgerPostgres:
		return postgres.Open(ctx, postgres.PoolConfig{
			DSN:      cfg.Ledger.DSN,
			MaxConns: cfg.Ledger.MaxConns,
			RetryFor: cfg.Ledger.RetryFor,
		}, tracer, logger)
	default:
		if cfg.ShowTask != "" || cfg.ListTasks {
			logger.Warn("in-memory ledger starts empty on every run; use --ledger postgres to keep tasks")
		}
		return memory.New(logger), nil
	}
}

func listProbes(reg *registry.ProbeRegistry, cfg config.Config) {
	names := reg.Names()
	metas := make([]ports.ProbeMetadata, 0, len(names))
	for _, name := range names {
		if meta, ok := reg.Describe(name); ok {
			metas = append(metas, meta)
		}
	}
	// Los listados se muestran aunque se haya pedido --quiet
	ui.New(os.Stdout).Probes(metas, cfg.EnabledProbes())
}

func listReports(store *output.ReportStore, logger logx.Logger) int {
	files, err := store.List()
	if err != nil {
		logger.Err(err, "phase", "list-reports")
		return 1
	}
	ui.New(os.Stdout).ReportFiles(store.Dir(), files)
	return 0
}

func loadReport(store *output.ReportStore, path string, logger logx.Logger) int {
	report, err := store.Load(path)
	if err != nil {
		logger.Err(err, "phase", "load", "path", path)
		return 1
	}
	ui.New(os.Stdout).Report(report)
	return 0
}

func showTask(ctx context.Context, svc *usecases.ScanService, taskID string, logger logx.Logger) int {
	task, report, err := svc.TaskReport(ctx, taskID)
	if err != nil {
		logger.Err(err, "phase", "task", "task_id", taskID)
		return 1
	}
	ui.New(os.Stdout).Task(task, report)
	return 0
}
