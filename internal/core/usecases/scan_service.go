// internal/core/usecases/scan_service.go
package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
)

// ScanService conecta el Orchestrator con el TaskLedger: cada escaneo queda
// registrado como Task y cada outcome como StoredResult a medida que llega.
type ScanService struct {
	orch     *Orchestrator
	ledger   ports.TaskLedger
	logger   logx.Logger
	deadline time.Duration
}

// ScanServiceOptions configura el servicio.
type ScanServiceOptions struct {
	Orchestrator *Orchestrator
	Ledger       ports.TaskLedger
	Logger       logx.Logger

	// Deadline aplicado a cada ejecución (0 = sin deadline)
	Deadline time.Duration
}

// NewScanService crea el servicio.
func NewScanService(opts ScanServiceOptions) *ScanService {
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	return &ScanService{
		orch:     opts.Orchestrator,
		ledger:   opts.Ledger,
		logger:   opts.Logger.With("component", "scan-service"),
		deadline: opts.Deadline,
	}
}

// Submit valida la entrada y crea una Task en estado pending.
func (s *ScanService) Submit(ctx context.Context, target string, probeNames []string) (string, error) {
	target, err := domain.NormalizeTarget(target)
	if err != nil {
		return "", err
	}
	names := domain.NormalizeProbeNames(probeNames)
	if len(names) == 0 {
		return "", domain.ErrNoProbesResolved
	}

	id, err := s.ledger.CreateTask(ctx, target, names)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	s.logger.Debug("task submitted", "task_id", id, "target", target, "probes", len(names))
	return id, nil
}

// Execute ejecuta una Task pending: running → escaneo → completed (o failed si el
// orchestrator no llega a producir un Report).
//
// Los errores al persistir outcomes recibidos a tiempo se devuelven junto al Report;
// los de outcomes tardíos sólo se registran en el log.
func (s *ScanService) Execute(ctx context.Context, taskID string) (*domain.Report, error) {
	task, err := s.ledger.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	if err := s.ledger.SetStatus(ctx, taskID, domain.TaskStatusRunning); err != nil {
		return nil, err
	}

	// Los outcomes a tiempo llegan secuencialmente desde Run; sólo ellos tocan recordErrs
	var recordErrs []error
	onOutcome := func(name string, outcome domain.Outcome, late bool) {
		err := s.ledger.RecordResult(context.WithoutCancel(ctx), taskID, name, outcome)
		if err == nil {
			return
		}
		if late {
			s.logger.Warn("failed to persist late outcome", "task_id", taskID, "probe", name, "error", err.Error())
			return
		}
		recordErrs = append(recordErrs, err)
	}

	report, runErr := s.orch.Run(ctx, task.Target, task.Probes, ScanOptions{
		TaskID:    taskID,
		Deadline:  s.deadline,
		OnOutcome: onOutcome,
	})
	if runErr != nil {
		s.logger.Warn("scan failed", "task_id", taskID, "error", runErr.Error())

		ev := ports.NewEvent(ports.EventTypeScanFailed, task.Target, "")
		ev.TaskID = taskID
		ev.Message = runErr.Error()
		s.orch.Publish(ctx, ev)

		if err := s.ledger.SetStatus(context.WithoutCancel(ctx), taskID, domain.TaskStatusFailed); err != nil {
			return nil, errors.Join(runErr, err)
		}
		return nil, runErr
	}

	if err := s.ledger.SetStatus(context.WithoutCancel(ctx), taskID, domain.TaskStatusCompleted); err != nil {
		recordErrs = append(recordErrs, err)
	}

	if len(recordErrs) > 0 {
		return report, fmt.Errorf("task %s: %w", taskID, errors.Join(recordErrs...))
	}
	return report, nil
}

// Scan combina Submit y Execute.
func (s *ScanService) Scan(ctx context.Context, target string, probeNames []string) (string, *domain.Report, error) {
	id, err := s.Submit(ctx, target, probeNames)
	if err != nil {
		return "", nil, err
	}
	report, err := s.Execute(ctx, id)
	return id, report, err
}

// TaskReport reconstruye el Report de una Task a partir de sus StoredResult.
// Los probes sin resultado persistido no aparecen en el Report.
func (s *ScanService) TaskReport(ctx context.Context, taskID string) (*domain.Task, *domain.Report, error) {
	task, err := s.ledger.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	if task == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	results, err := s.ledger.ListResults(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	report := domain.NewReport(task.Target)
	for _, r := range results {
		report.Set(r.ProbeName, r.Outcome)
	}
	if task.CompletedAt != nil {
		report.Finalize(*task.CompletedAt)
	}
	return task, report, nil
}

// Tasks lista las tasks más recientes.
func (s *ScanService) Tasks(ctx context.Context, limit int) ([]domain.Task, error) {
	return s.ledger.ListTasks(ctx, limit)
}

// Wait espera a que se persistan los outcomes tardíos y se envíen las notificaciones.
func (s *ScanService) Wait() {
	s.orch.Wait()
}

// WaitContext drena como Wait pero se rinde cuando ctx termina. Retorna cuántos
// goroutines de fondo quedaron sin terminar junto con ctx.Err().
func (s *ScanService) WaitContext(ctx context.Context) (int, error) {
	if err := s.orch.WaitContext(ctx); err != nil {
		abandoned := s.orch.Pending()
		s.logger.Warn("abandoning background work", "pending", abandoned, "error", err.Error())
		return abandoned, err
	}
	return 0, nil
}
