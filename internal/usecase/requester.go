package usecase

import (
	"context"
	"sync"

	"captive-portal/internal/domain"
)

// Requester is the caller identity as established by the auth collaborator.
type Requester struct {
	ID         string
	Privileged bool
}

func requirePrivileged(r Requester) error {
	if !r.Privileged {
		return domain.ErrForbidden
	}
	return nil
}

// Runner executes jobs and returns once every job has finished.
// The sweeps hand their per-row work to a Runner; nil runs jobs one after another.
type Runner interface {
	RunAll(ctx context.Context, jobs []func(ctx context.Context))
}

func runAll(ctx context.Context, r Runner, jobs []func(ctx context.Context)) {
	if r != nil {
		r.RunAll(ctx, jobs)
		return
	}
	for _, job := range jobs {
		job(ctx)
	}
}

// SweepResult reports one expiry pass.
type SweepResult struct {
	Scanned      int
	Expired      int
	HookFailures int
}

type sweepCounter struct {
	mu  sync.Mutex
	res SweepResult
}

func (c *sweepCounter) expired() {
	c.mu.Lock()
	c.res.Expired++
	c.mu.Unlock()
}

func (c *sweepCounter) hookFailed() {
	c.mu.Lock()
	c.res.HookFailures++
	c.mu.Unlock()
}

func (c *sweepCounter) result() SweepResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res
}
