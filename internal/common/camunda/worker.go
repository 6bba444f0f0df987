package camunda

import (
	"context"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"workflow-content/internal/common/config"
	"workflow-content/internal/common/logger"
	"workflow-content/internal/common/metrics"
	"workflow-content/internal/common/observability"
)

// JobHandler is implemented by every content worker.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Pool owns the job workers opened against one zeebe client.
type Pool struct {
	client  zbc.Client
	obs     *observability.Observability
	logger  logger.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

// NewPool returns a pool for client. obs may be nil.
func NewPool(client zbc.Client, obs *observability.Observability, log logger.Logger) *Pool {
	return &Pool{client: client, obs: obs, logger: log, workers: map[string]worker.JobWorker{}}
}

// Start opens a worker for taskType unless it is disabled in config.
func (p *Pool) Start(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		p.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	jw := p.client.NewJobWorker().
		JobType(taskType).
		Handler(p.instrument(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	p.mu.Lock()
	p.workers[taskType] = jw
	p.mu.Unlock()

	p.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

// Stop closes every worker and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for taskType, jw := range p.workers {
		jw.Close()
		jw.AwaitClose()
		p.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	p.workers = map[string]worker.JobWorker{}
}

func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func (p *Pool) instrument(taskType string, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		active := metrics.WorkerJobsActive.WithLabelValues(taskType)
		active.Inc()
		defer active.Dec()

		ctx := context.Background()
		if p.obs != nil {
			var span trace.Span
			ctx, span = p.obs.StartSpan(ctx, "job."+taskType,
				attribute.String("task_type", taskType),
				attribute.Int64("job_key", job.Key),
			)
			defer span.End()
		}

		start := time.Now()
		handler.Handle(client, job)
		elapsed := time.Since(start)

		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		if p.obs != nil {
			p.obs.RecordJobProcessed(ctx, "handled")
			p.obs.RecordJobDuration(ctx, elapsed, "handled")
		}
	}
}
