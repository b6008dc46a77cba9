package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"Encyclopedia/internal/ports"
)

// CronScheduler runs jobs on standard five-field cron expressions.
type CronScheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating expressions in loc.
func NewCronScheduler(loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{cron: cron.New(cron.WithLocation(loc))}
}

// Add registers job under spec.
func (c *CronScheduler) Add(spec string, job func()) error {
	if job == nil {
		return fmt.Errorf("cron job for %q is nil", spec)
	}
	if _, err := c.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return nil
}

// Start begins running jobs in the background; a done ctx stops them.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	c.cron.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	select {
	case <-c.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries is the number of registered jobs.
func (c *CronScheduler) Entries() int {
	return len(c.cron.Entries())
}
