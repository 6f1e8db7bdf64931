// Package scheduler fires jobs on a cron expression or a fixed interval,
// optionally only inside a daily time window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/logging"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
	ErrNoSchedule     = errors.New("no cron expression or interval configured")
)

// Job is run on every tick. Errors are logged; they do not stop the scheduler.
type Job func(ctx context.Context) error

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (or "H:MM").
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("time of day %q: invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q: invalid minute", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Window is a daily [Start, End) range. End before Start wraps past midnight.
type Window struct {
	Start    TimeOfDay
	End      TimeOfDay
	Location *time.Location
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	m := local.Hour()*60 + local.Minute()
	start, end := w.Start.Minutes(), w.End.Minutes()

	switch {
	case start == end:
		return true
	case start < end:
		return m >= start && m < end
	default:
		return m >= start || m < end
	}
}

func parseWindow(cfg *config.WindowConfig) (*Window, error) {
	start, err := ParseTimeOfDay(cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("window start: %w", err)
	}
	end, err := ParseTimeOfDay(cfg.End)
	if err != nil {
		return nil, fmt.Errorf("window end: %w", err)
	}
	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("window timezone: %w", err)
		}
	}
	return &Window{Start: start, End: end, Location: loc}, nil
}

// Scheduler runs its jobs on a cron schedule or fixed interval.
type Scheduler struct {
	mu       sync.Mutex
	cronExpr string
	schedule cron.Schedule
	interval time.Duration
	window   *Window
	jobs     []Job
	logger   *logging.Logger

	running bool
	cron    *cron.Cron
	cancel  context.CancelFunc
	done    chan struct{}
	nextRun time.Time
}

// New creates a scheduler with no schedule.
func New() *Scheduler {
	return &Scheduler{logger: logging.Component("scheduler")}
}

// NewFromConfig creates a scheduler from watch configuration.
func NewFromConfig(cfg *config.WatchConfig) (*Scheduler, error) {
	s := New()
	switch {
	case cfg.Cron != "" && cfg.Interval != "":
		return nil, config.ErrCronAndInterval
	case cfg.Cron != "":
		if err := s.SetCron(cfg.Cron); err != nil {
			return nil, err
		}
	case cfg.Interval != "":
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("interval %q: %w", cfg.Interval, err)
		}
		if err := s.SetInterval(d); err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoSchedule
	}

	if cfg.Window != nil {
		if err := s.SetWindow(cfg.Window); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetCron schedules by a standard five-field cron expression.
func (s *Scheduler) SetCron(expr string) error {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("cron %q: %w", expr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronExpr = expr
	s.schedule = sched
	s.interval = 0
	return nil
}

// SetInterval schedules every d.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %v", d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	s.cronExpr = ""
	s.schedule = nil
	return nil
}

// SetWindow restricts runs to a daily window.
func (s *Scheduler) SetWindow(cfg *config.WindowConfig) error {
	w, err := parseWindow(cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.window = w
	s.mu.Unlock()
	return nil
}

// IsInWindow reports whether t is inside the configured window.
// Without a window every time is.
func (s *Scheduler) IsInWindow(t time.Time) bool {
	s.mu.Lock()
	w := s.window
	s.mu.Unlock()
	return w == nil || w.Contains(t)
}

// AddJob registers a job. Jobs run sequentially in registration order.
func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
}

// Start begins scheduling. Cancelling ctx stops future ticks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.schedule == nil && s.interval <= 0 {
		return ErrNoSchedule
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.schedule != nil {
		c := cron.New()
		c.Schedule(s.schedule, cron.FuncJob(func() { s.tick(ctx) }))
		c.Start()
		s.cron = c
		s.nextRun = s.schedule.Next(time.Now())
	} else {
		s.done = make(chan struct{})
		s.nextRun = time.Now().Add(s.interval)
		go s.loop(ctx, s.interval, s.done)
	}

	s.running = true
	s.logger.InfoCtx("scheduler started", map[string]any{
		"cron":     s.cronExpr,
		"interval": s.interval.String(),
		"next_run": s.nextRun,
	})
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.nextRun = time.Now().Add(interval)
			s.mu.Unlock()
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := time.Now()

	s.mu.Lock()
	if s.schedule != nil {
		s.nextRun = s.schedule.Next(now)
	}
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	if !s.IsInWindow(now) {
		s.logger.Debug("outside window, skipping scheduled run")
		return
	}
	for _, job := range jobs {
		if err := job(ctx); err != nil {
			s.logger.WarnCtx("scheduled job failed", map[string]any{"error": err})
		}
	}
}

// Stop halts scheduling and waits for a running tick to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.cancel()
	c, done := s.cron, s.done
	s.cron, s.done = nil, nil
	s.nextRun = time.Time{}
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if done != nil {
		<-done
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns when the next tick is due, or the zero time when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}
