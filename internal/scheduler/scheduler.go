// Package scheduler runs the ingestion pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled refresh.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a standard five-field cron expression. A run that
// is still going when the next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	expr    string
	job     Job
	entryID cron.EntryID

	mu      sync.Mutex
	ctx     context.Context
	lastErr error
	lastRun time.Time
	runs    int
}

// New validates expr and creates a Scheduler in loc (UTC when nil).
func New(expr string, loc *time.Location, job Job) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	logger := cron.PrintfLogger(log.Default())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{cron: c, expr: expr, job: job, ctx: context.Background()}
	id, err := c.AddFunc(expr, s.run)
	if err != nil {
		return nil, fmt.Errorf("adding cron entry: %w", err)
	}
	s.entryID = id
	return s, nil
}

// Start begins scheduling and stops when ctx is cancelled. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("Scheduled refresh %q, next run %s", s.expr, s.Next().Format(time.RFC3339))

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Status returns the number of completed runs, the time of the last one and
// its error.
func (s *Scheduler) Status() (runs int, last time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastRun, s.lastErr
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	log.Printf("Scheduled refresh starting")
	err := s.job(ctx)
	if err != nil {
		log.Printf("Scheduled refresh failed: %v", err)
	} else {
		log.Printf("Scheduled refresh finished in %s", time.Since(start).Round(time.Second))
	}

	s.mu.Lock()
	s.runs++
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()
}
