package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketplace/internal/queue"
)

// PoolConfig configures one per-queue worker pool.
type PoolConfig struct {
	QueueName    string
	Concurrency  int
	DequeueWait  time.Duration
	JobTimeout   time.Duration
	ErrorBackoff time.Duration
}

func (c *PoolConfig) fillDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.DequeueWait <= 0 {
		c.DequeueWait = 5 * time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = time.Second
	}
}

// Pool runs a fixed number of workers against one named queue. Each worker
// dequeues a job, invokes the registered handler, and reports the outcome
// back to the queue store. A handler fault never crashes the pool.
type Pool struct {
	cfg      PoolConfig
	store    queue.Queue
	registry *Registry
	logger   *zap.Logger

	stopIntake context.CancelFunc
	cancelJobs context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

func NewPool(cfg PoolConfig, store queue.Queue, registry *Registry, l *zap.Logger) (*Pool, error) {
	cfg.fillDefaults()
	if registry.HandlerCount(cfg.QueueName) == 0 {
		return nil, fmt.Errorf("no handlers registered for queue %q", cfg.QueueName)
	}
	return &Pool{
		cfg:      cfg,
		store:    store,
		registry: registry,
		logger:   l.With(zap.String("queue", cfg.QueueName)),
	}, nil
}

func (p *Pool) Start(parentCtx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	// Intake and execution get separate contexts: stopping intake must not
	// cancel a handler that is already holding a job.
	intakeCtx, stopIntake := context.WithCancel(parentCtx)
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	p.stopIntake = stopIntake
	p.cancelJobs = cancelJobs

	p.logger.Info("Worker pool starting", zap.Int("concurrency", p.cfg.Concurrency))
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(intakeCtx, jobCtx, i)
	}
}

// Stop stops intake and waits for in-flight jobs to finish. Job contexts are
// cancelled only once the ctx deadline expires.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopIntake()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancelJobs()
		p.logger.Info("Worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.cancelJobs()
		p.logger.Warn("Worker pool stop timed out, cancelling in-flight jobs")
		return ctx.Err()
	}
}

func (p *Pool) loop(intakeCtx, jobCtx context.Context, workerID int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker_id", workerID))
	log.Debug("Worker started")

	for {
		select {
		case <-intakeCtx.Done():
			log.Debug("Worker exiting")
			return
		default:
		}

		job, err := p.store.Dequeue(intakeCtx, p.cfg.QueueName, p.cfg.DequeueWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			log.Warn("Dequeue failed, backing off", zap.Error(err))
			select {
			case <-intakeCtx.Done():
			case <-time.After(p.cfg.ErrorBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		p.handle(jobCtx, log, job)
	}
}

func (p *Pool) handle(ctx context.Context, log *zap.Logger, job *queue.Job) {
	log = log.With(
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempts+1))

	handler, ok := p.registry.Resolve(job.Queue, job.Type)
	if !ok {
		// Contract violation; retrying cannot resolve it.
		log.Error("No handler registered for job type, burying")
		p.report(ctx, log, job, p.store.Bury(ctx, job, "unregistered job type: "+job.Type))
		return
	}

	start := time.Now()
	err := p.invoke(ctx, handler, job)
	duration := time.Since(start)

	if err == nil {
		log.Info("Job processed", zap.Duration("duration", duration))
		p.report(ctx, log, job, p.store.Ack(ctx, job))
		return
	}

	var terminal *TerminalError
	if errors.As(err, &terminal) {
		if terminal.Bury {
			log.Error("Job failed terminally, burying", zap.Error(terminal.Err))
			p.report(ctx, log, job, p.store.Bury(ctx, job, err.Error()))
		} else {
			log.Info("Job resolved with nothing to do", zap.String("reason", terminal.Err.Error()))
			p.report(ctx, log, job, p.store.Ack(ctx, job))
		}
		return
	}

	var malformed *MalformedError
	if errors.As(err, &malformed) {
		log.Error("Job payload malformed, burying", zap.Error(malformed.Err))
		p.report(ctx, log, job, p.store.Bury(ctx, job, err.Error()))
		return
	}

	// Transient: retry with the policy attached at enqueue time.
	attempt := job.Attempts + 1
	if attempt >= job.MaxAttempts {
		log.Error("Job exhausted retry budget, burying",
			zap.Int("max_attempts", job.MaxAttempts),
			zap.Error(err))
		p.report(ctx, log, job, p.store.Bury(ctx, job, err.Error()))
		return
	}
	delay := job.Backoff.Delay(attempt)
	log.Warn("Job failed, scheduling retry",
		zap.Duration("delay", delay),
		zap.Error(err))
	p.report(ctx, log, job, p.store.Retry(ctx, job, delay, err.Error()))
}

// invoke runs the handler under the per-job timeout, converting a panic
// into an ordinary failure subject to the retry rule.
func (p *Pool) invoke(ctx context.Context, handler HandlerFunc, job *queue.Job) (err error) {
	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Handler panicked",
				zap.String("job_id", job.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(jobCtx, job)
}

// report logs queue-store failures during outcome reporting. The job stays
// in-flight in that case and is recovered on the next runtime start.
func (p *Pool) report(ctx context.Context, log *zap.Logger, job *queue.Job, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Failed to report job outcome to queue store", zap.Error(err))
	}
}
