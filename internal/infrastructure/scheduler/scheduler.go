// Package scheduler runs the rewards engine's periodic background jobs,
// chiefly the bulk rank recalculation, on interval or cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next run time after t. A zero time disables the job.
	Next(t time.Time) time.Time
	String() string
}

// JobResult is the outcome of one execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Skipped     bool
	Manual      bool
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler runs registered jobs when they are due. A job never overlaps
// itself: a tick that finds the previous execution still running records a
// skipped result and moves the schedule on.
type Scheduler struct {
	mu sync.RWMutex

	logger   *slog.Logger
	timezone *time.Location
	now      func() time.Time
	tick     time.Duration

	runOnStart bool

	jobs       map[string]*scheduledJob
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	startedAt  time.Time
	history    []JobResult
	maxHistory int

	onJobComplete func(result JobResult)
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	enabled   bool
	active    bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
	last      *JobResult
}

// SchedulerConfig contains configuration for the Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Timezone for cron schedules (default: UTC).
	Timezone *time.Location

	// MaxHistorySize bounds the in-memory run history.
	MaxHistorySize int

	// RunOnStart makes every job due immediately after Start.
	RunOnStart bool

	// TickInterval is how often due jobs are checked (default: 1s).
	TickInterval time.Duration
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:         slog.Default(),
		Timezone:       time.UTC,
		MaxHistorySize: 200,
		TickInterval:   time.Second,
	}
}

// NewScheduler creates a new Scheduler with the given configuration.
func NewScheduler(config SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if config.Logger == nil {
		config.Logger = def.Logger
	}
	if config.Timezone == nil {
		config.Timezone = def.Timezone
	}
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = def.MaxHistorySize
	}
	if config.TickInterval <= 0 {
		config.TickInterval = def.TickInterval
	}

	s := &Scheduler{
		logger:     config.Logger.With("component", "scheduler"),
		timezone:   config.Timezone,
		now:        time.Now,
		tick:       config.TickInterval,
		jobs:       make(map[string]*scheduledJob),
		maxHistory: config.MaxHistorySize,
		runOnStart: config.RunOnStart,
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(s.now().In(s.timezone)),
	}
	s.jobs[name] = sj

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", sj.nextRun.Format(time.RFC3339),
	)
	return nil
}

// SetEnabled enables or disables a job by name.
func (s *Scheduler) SetEnabled(jobName string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, exists := s.jobs[jobName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	sj.enabled = enabled
	if enabled {
		sj.nextRun = sj.schedule.Next(s.now().In(s.timezone))
	}
	s.logger.Info("job toggled", "job", jobName, "enabled", enabled)
	return nil
}

// OnJobComplete sets a callback invoked after every execution.
func (s *Scheduler) OnJobComplete(fn func(result JobResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobComplete = fn
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.startedAt = s.now()
	if s.runOnStart {
		for _, sj := range s.jobs {
			sj.nextRun = s.startedAt
		}
	}
	count := len(s.jobs)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", count)

	s.wg.Add(1)
	go s.runLoop(runCtx)
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.dispatchDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// dispatchDue starts every enabled job whose next run has passed.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now().In(s.timezone)

	s.mu.Lock()
	var due []*scheduledJob
	for _, sj := range s.jobs {
		if !sj.enabled || sj.nextRun.IsZero() || now.Before(sj.nextRun) {
			continue
		}
		sj.nextRun = sj.schedule.Next(now)
		if sj.active {
			s.record(sj, JobResult{JobName: sj.job.Name(), StartedAt: now, CompletedAt: now, Skipped: true})
			s.logger.Warn("job still running, tick skipped", "job", sj.job.Name())
			continue
		}
		sj.active = true
		due = append(due, sj)
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, sj, false)
		}(sj)
	}
}

// execute runs the job and records the result. The caller has marked sj
// active.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, manual bool) JobResult {
	name := sj.job.Name()
	startedAt := s.now()
	s.logger.Info("job started", "job", name, "manual", manual)

	err := s.safeRun(ctx, sj.job)
	completedAt := s.now()

	result := JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Manual:      manual,
		Error:       err,
	}

	s.mu.Lock()
	sj.active = false
	sj.lastRun = startedAt
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	s.record(sj, result)
	hook := s.onJobComplete
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", result.Duration.String(), "error", err)
	} else {
		s.logger.Info("job completed", "job", name, "duration", result.Duration.String())
	}
	if hook != nil {
		hook(result)
	}
	return result
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}

// record appends to the bounded history. Caller holds s.mu.
func (s *Scheduler) record(sj *scheduledJob, result JobResult) {
	sj.last = &result
	s.history = append(s.history, result)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow executes a job immediately, ignoring its schedule. It fails with
// ErrJobBusy if the job is already running.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.Lock()
	sj, exists := s.jobs[jobName]
	if !exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	if sj.active {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobBusy, jobName)
	}
	sj.active = true
	s.mu.Unlock()

	result := s.execute(ctx, sj, true)
	return &result, result.Error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo describes a registered job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Enabled     bool       `json:"enabled"`
	Running     bool       `json:"running"`
	Schedule    string     `json:"schedule"`
	LastRun     time.Time  `json:"last_run"`
	NextRun     time.Time  `json:"next_run"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	LastResult  *JobResult `json:"-"`
}

// ListJobs returns all registered jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, sj.info(name))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GetJobInfo returns information about a specific job.
func (s *Scheduler) GetJobInfo(jobName string) (*JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sj, exists := s.jobs[jobName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	info := sj.info(jobName)
	return &info, nil
}

func (sj *scheduledJob) info(name string) JobInfo {
	return JobInfo{
		Name:        name,
		Description: sj.job.Description(),
		Enabled:     sj.enabled,
		Running:     sj.active,
		Schedule:    sj.schedule.String(),
		LastRun:     sj.lastRun,
		NextRun:     sj.nextRun,
		RunCount:    sj.runCount,
		FailCount:   sj.failCount,
		LastResult:  sj.last,
	}
}

// GetHistory returns up to limit most recent results, oldest first.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobResult, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobBusy                 = errors.New("job is already running")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)
