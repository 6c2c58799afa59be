// Package scheduler runs the periodic maintenance jobs of the back office.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/backoffice/saas/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// JobFunc is one run of a periodic job
type JobFunc func(ctx context.Context) error

// Job is a named task run every Interval
type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
	// RunOnStart runs the job once immediately after Start
	RunOnStart bool
}

// JobStatus describes the last run of a job
type JobStatus struct {
	Name      string
	Interval  time.Duration
	Runs      int
	Failures  int
	Running   bool
	LastStart time.Time
	LastEnd   time.Time
	LastError string
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	// JobTimeout bounds each run; zero means no limit
	JobTimeout time.Duration
}

type jobState struct {
	job     Job
	mu      sync.Mutex
	status  JobStatus
	trigger chan struct{}
}

// Runner executes registered jobs on their own tickers. A job never
// overlaps with itself: ticks that arrive during a run are dropped.
type Runner struct {
	config RunnerConfig
	logger *zap.Logger

	jobs      map[string]*jobState
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRunner creates a runner with no jobs
func NewRunner(config RunnerConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config: config,
		logger: logger,
		jobs:   make(map[string]*jobState),
	}
}

// Register adds a job. Jobs registered after Start begin on the next Start.
func (r *Runner) Register(job Job) error {
	if job.Name == "" || job.Interval <= 0 || job.Run == nil {
		return fmt.Errorf("%w: %q", ErrInvalidJob, job.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	r.jobs[job.Name] = &jobState{
		job:     job,
		status:  JobStatus{Name: job.Name, Interval: job.Interval},
		trigger: make(chan struct{}, 1),
	}
	return nil
}

// Start launches one loop per job
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return nil
	}
	r.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	for _, st := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, st)
	}

	r.logger.Info("Scheduler started",
		zap.Int("jobs", len(r.jobs)),
		zap.Duration("job_timeout", r.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for them until ctx expires
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// Trigger asks the job loop to run name now. A trigger while one is
// already queued is coalesced.
func (r *Runner) Trigger(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !r.isRunning {
		return ErrRunnerNotRunning
	}
	select {
	case st.trigger <- struct{}{}:
	default:
	}
	return nil
}

// RunNow executes name synchronously on the caller's goroutine
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	st, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return r.execute(ctx, st)
}

// Status returns a snapshot of every job sorted by name
func (r *Runner) Status() []JobStatus {
	r.mu.Lock()
	states := make([]*jobState, 0, len(r.jobs))
	for _, st := range r.jobs {
		states = append(states, st)
	}
	r.mu.Unlock()

	out := make([]JobStatus, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.status)
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Runner) loop(ctx context.Context, st *jobState) {
	defer r.wg.Done()

	if st.job.RunOnStart {
		_ = r.execute(ctx, st)
	}

	ticker := time.NewTicker(st.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.execute(ctx, st)
		case <-st.trigger:
			_ = r.execute(ctx, st)
		}
	}
}

func (r *Runner) execute(ctx context.Context, st *jobState) (err error) {
	st.mu.Lock()
	if st.status.Running {
		st.mu.Unlock()
		r.logger.Debug("Skipping overlapping run", zap.String("job", st.job.Name))
		return nil
	}
	st.status.Running = true
	st.status.LastStart = time.Now()
	st.mu.Unlock()

	if r.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.JobTimeout)
		defer cancel()
	}
	ctx, span := telemetry.StartSpan(ctx, "scheduler.run", telemetry.WithAttribute(telemetry.SpanAttrJob, st.job.Name))

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, rec)
			r.logger.Error("Job panicked",
				zap.String("job", st.job.Name),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
		}
		telemetry.RecordError(span, err)
		span.End()
		r.finish(st, err)
	}()

	r.logger.Debug("Running job", zap.String("job", st.job.Name))
	return st.job.Run(ctx)
}

func (r *Runner) finish(st *jobState, err error) {
	st.mu.Lock()
	st.status.Running = false
	st.status.Runs++
	st.status.LastEnd = time.Now()
	st.status.LastError = ""
	if err != nil {
		st.status.Failures++
		st.status.LastError = err.Error()
	}
	elapsed := st.status.LastEnd.Sub(st.status.LastStart)
	st.mu.Unlock()

	if err != nil {
		r.logger.Error("Job failed",
			zap.String("job", st.job.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("Job completed",
		zap.String("job", st.job.Name),
		zap.Duration("elapsed", elapsed),
	)
}
