// internal/core/usecases/orchestrator.go
package usecases

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
)

const defaultMaxWorkers = 8

// ProbeResolver resuelve nombres de probe contra un registry.
type ProbeResolver interface {
	Resolve(names []string) (map[string]ports.Probe, []domain.UnknownProbeWarning)
}

// OutcomeHandler se invoca exactamente una vez por probe solicitado.
// late es true cuando el outcome llegó después del deadline y ya no forma parte del Report.
type OutcomeHandler func(name string, outcome domain.Outcome, late bool)

// ScanOptions configura una ejecución concreta.
type ScanOptions struct {
	// TaskID se propaga a eventos y spans (opcional)
	TaskID string

	// Deadline tiempo máximo de espera del join (0 = sin deadline)
	Deadline time.Duration

	// OnOutcome recibe cada outcome a medida que llega
	OnOutcome OutcomeHandler
}

// Orchestrator coordina la ejecución concurrente de probes y agrega sus outcomes.
type Orchestrator struct {
	registry  ProbeResolver
	logger    logx.Logger
	observers []ports.Notifier
	tracer    trace.Tracer
	now       func() time.Time

	// Límite global de probes simultáneos (compartido entre escaneos)
	sem        *semaphore.Weighted
	maxWorkers int

	// Goroutines de fondo: outcomes tardíos y notificaciones
	bg *background
}

// OrchestratorOptions configura el orchestrator.
type OrchestratorOptions struct {
	Registry   ProbeResolver
	Logger     logx.Logger
	Observers  []ports.Notifier
	Tracer     trace.Tracer
	MaxWorkers int
	Clock      func() time.Time
}

// NewOrchestrator crea una nueva instancia del orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = defaultMaxWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("reconx/orchestrator")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Orchestrator{
		registry:   opts.Registry,
		logger:     opts.Logger.With("component", "orchestrator"),
		observers:  opts.Observers,
		tracer:     opts.Tracer,
		now:        opts.Clock,
		sem:        semaphore.NewWeighted(int64(opts.MaxWorkers)),
		maxWorkers: opts.MaxWorkers,
		bg:         newBackground(),
	}
}

// RunScan ejecuta los probes solicitados contra el target sin deadline.
func (o *Orchestrator) RunScan(ctx context.Context, target string, probeNames []string) (*domain.Report, error) {
	return o.Run(ctx, target, probeNames, ScanOptions{})
}

// Run ejecuta los probes solicitados y retorna un Report cuyas claves son exactamente
// los nombres solicitados. Sólo falla por errores de entrada (target vacío o
// ningún probe solicitado); los fallos de probes quedan registrados como Failure.
func (o *Orchestrator) Run(ctx context.Context, target string, probeNames []string, opts ScanOptions) (*domain.Report, error) {
	if o.registry == nil {
		return nil, fmt.Errorf("orchestrator: %w: registry not configured", domain.ErrNoProbesResolved)
	}

	target, err := domain.NormalizeTarget(target)
	if err != nil {
		return nil, err
	}

	names := domain.NormalizeProbeNames(probeNames)
	if len(names) == 0 {
		return nil, domain.ErrNoProbesResolved
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.run_scan",
		trace.WithAttributes(
			attribute.String("target", target),
			attribute.String("task_id", opts.TaskID),
			attribute.Int("probes_requested", len(names)),
		),
	)
	defer span.End()

	resolved, warnings := o.registry.Resolve(names)
	report := domain.NewReport(target)

	o.logger.Info("starting scan",
		"target", target,
		"task_id", opts.TaskID,
		"requested", len(names),
		"resolved", len(resolved),
		"workers", o.maxWorkers,
	)
	o.notify(ctx, o.event(ports.EventTypeScanStarted, opts, target, "", ""))

	// Nombres sin registro: Failure inmediato, sin lanzar trabajo
	for _, w := range warnings {
		outcome := domain.Failure(domain.MsgProbeNotFound)
		report.Set(w.Name, outcome)
		o.deliver(opts, w.Name, outcome, false)
	}

	if len(resolved) > 0 {
		o.collect(ctx, report, resolved, target, opts)
	}

	report.Finalize(o.now())
	span.SetAttributes(
		attribute.Int("probes_failed", report.Failures()),
		attribute.Int("probes_succeeded", report.Successes()),
	)

	o.logger.Info("scan completed",
		"target", target,
		"task_id", opts.TaskID,
		"succeeded", report.Successes(),
		"failed", report.Failures(),
	)
	o.notify(ctx, o.event(ports.EventTypeScanCompleted, opts, target, "", ""))

	return report, nil
}

// collect lanza un goroutine por probe y espera el join (o el deadline).
func (o *Orchestrator) collect(
	ctx context.Context,
	report *domain.Report,
	resolved map[string]ports.Probe,
	target string,
	opts ScanOptions,
) {
	outcomes := make(chan probeOutcome, len(resolved))

	var g errgroup.Group
	for name, probe := range resolved {
		g.Go(func() error {
			outcomes <- probeOutcome{name: name, outcome: o.execute(ctx, name, probe, target, opts)}
			return nil
		})
	}

	// El canal se cierra cuando todos los probes han terminado
	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	var timeout <-chan time.Time
	if opts.Deadline > 0 {
		timer := time.NewTimer(opts.Deadline)
		defer timer.Stop()
		timeout = timer.C
	}

	for pending := len(resolved); pending > 0; {
		select {
		case po := <-outcomes:
			report.Set(po.name, po.outcome)
			o.deliver(opts, po.name, po.outcome, false)
			pending--

		case <-timeout:
			late := 0
			for name := range resolved {
				if !report.Has(name) {
					report.Set(name, domain.Failure(domain.MsgTimedOut))
					late++
				}
			}
			o.logger.Warn("scan deadline exceeded",
				"target", target,
				"task_id", opts.TaskID,
				"deadline", opts.Deadline,
				"in_flight", late,
			)

			// Los probes en vuelo siguen en background; sus outcomes se entregan como tardíos
			o.bg.Go(func() {
				for po := range outcomes {
					o.logger.Debug("late probe outcome", "probe", po.name, "task_id", opts.TaskID)
					o.deliver(opts, po.name, po.outcome, true)
				}
			})
			pending = 0
		}
	}
}

// execute ejecuta un probe individual respetando el límite global de workers.
func (o *Orchestrator) execute(
	ctx context.Context,
	name string,
	probe ports.Probe,
	target string,
	opts ScanOptions,
) domain.Outcome {
	ctx, span := o.tracer.Start(ctx, "probe.execute",
		trace.WithAttributes(
			attribute.String("probe", name),
			attribute.String("target", target),
		),
	)
	defer span.End()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Failure(err.Error())
	}
	defer o.sem.Release(1)

	o.logger.Debug("executing probe", "probe", name, "target", target)
	o.notify(ctx, o.event(ports.EventTypeProbeStarted, opts, target, name, ""))

	start := time.Now()
	outcome := runProbe(ctx, probe, target)
	elapsed := time.Since(start)

	if outcome.IsFailure() {
		span.SetStatus(codes.Error, outcome.Message)
		o.logger.Warn("probe failed",
			"probe", name,
			"error", outcome.Message,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		o.notify(ctx, o.event(ports.EventTypeProbeFailed, opts, target, name, outcome.Message))
		return outcome
	}

	o.logger.Debug("probe completed",
		"probe", name,
		"fields", len(outcome.Payload),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	o.notify(ctx, o.event(ports.EventTypeProbeCompleted, opts, target, name, ""))
	return outcome
}

// runProbe convierte retorno, error o pánico del probe en un Outcome.
func runProbe(ctx context.Context, probe ports.Probe, target string) (outcome domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = domain.Failure(fmt.Sprintf("probe panicked: %v", r))
		}
	}()

	payload, err := probe.Execute(ctx, target)
	if err != nil {
		return domain.Failure(err.Error())
	}
	return domain.NewSuccess(payload)
}

// deliver invoca el handler del caller protegiendo al orchestrator de sus pánicos.
func (o *Orchestrator) deliver(opts ScanOptions, name string, outcome domain.Outcome, late bool) {
	if opts.OnOutcome == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("outcome handler panicked", "probe", name, "panic", fmt.Sprint(r))
		}
	}()
	opts.OnOutcome(name, outcome, late)
}

// Publish envía un evento arbitrario a los observers del orchestrator.
func (o *Orchestrator) Publish(ctx context.Context, event ports.Event) {
	o.notify(ctx, event)
}

// Wait espera a que terminen los outcomes tardíos y las notificaciones pendientes.
// Es seguro llamarlo mientras otros escaneos siguen en curso.
func (o *Orchestrator) Wait() {
	_ = o.bg.Wait(context.Background())
}

// WaitContext es Wait acotado por ctx. Si ctx termina antes retorna ctx.Err()
// y el trabajo pendiente sigue en background.
func (o *Orchestrator) WaitContext(ctx context.Context) error {
	return o.bg.Wait(ctx)
}

// Pending retorna cuántos goroutines de fondo siguen en curso.
func (o *Orchestrator) Pending() int {
	return o.bg.Pending()
}

func (o *Orchestrator) event(t ports.EventType, opts ScanOptions, target, probe, msg string) ports.Event {
	ev := ports.NewEvent(t, target, probe)
	ev.TaskID = opts.TaskID
	ev.Message = msg
	return ev
}

// notify envía una notificación a todos los observers.
// Usa goroutines contabilizados y timeout para evitar leaks y bloqueos.
func (o *Orchestrator) notify(ctx context.Context, event ports.Event) {
	const notificationTimeout = 5 * time.Second

	for _, observer := range o.observers {
		o.bg.Go(func() {
			notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
			defer cancel()

			if err := observer.Notify(notifyCtx, event); err != nil {
				o.logger.Warn("notification failed",
					"event_type", event.Type,
					"error", err.Error(),
				)
			}
		})
	}
}

// probeOutcome encapsula el resultado de ejecución de un probe.
type probeOutcome struct {
	name    string
	outcome domain.Outcome
}
