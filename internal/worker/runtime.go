package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"marketplace/internal/queue"
)

// Runtime owns the named queue handles and their worker pools. It replaces
// any ambient/global registry: everything that consumes jobs receives the
// runtime (or its registry) by reference.
type Runtime struct {
	store  queue.Queue
	pools  []*Pool
	logger *zap.Logger
}

func NewRuntime(store queue.Queue, l *zap.Logger) *Runtime {
	return &Runtime{store: store, logger: l}
}

// AddPool validates and attaches a pool for one named queue.
func (rt *Runtime) AddPool(cfg PoolConfig, registry *Registry) error {
	pool, err := NewPool(cfg, rt.store, registry, rt.logger)
	if err != nil {
		return fmt.Errorf("pool for queue %q: %w", cfg.QueueName, err)
	}
	rt.pools = append(rt.pools, pool)
	return nil
}

func (rt *Runtime) Start(ctx context.Context) {
	for _, pool := range rt.pools {
		pool.Start(ctx)
	}
	rt.logger.Info("Worker runtime started", zap.Int("pools", len(rt.pools)))
}

// Stop drains every pool: intake stops first, in-flight jobs finish or time
// out against ctx.
func (rt *Runtime) Stop(ctx context.Context) error {
	var firstErr error
	for _, pool := range rt.pools {
		if err := pool.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	rt.logger.Info("Worker runtime stopped")
	return firstErr
}
