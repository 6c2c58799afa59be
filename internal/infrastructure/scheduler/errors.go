package scheduler

import "errors"

var (
	// ErrRunnerNotRunning is returned when triggering a job on a stopped runner
	ErrRunnerNotRunning = errors.New("scheduler is not running")

	// ErrJobNotFound is returned when a job name is unknown
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJob is returned when registering a job without a name, interval or func
	ErrInvalidJob = errors.New("invalid scheduler job")

	// ErrDuplicateJob is returned when a name is registered twice
	ErrDuplicateJob = errors.New("job already registered")

	// ErrJobPanicked wraps a recovered panic inside a job
	ErrJobPanicked = errors.New("job panicked")
)
