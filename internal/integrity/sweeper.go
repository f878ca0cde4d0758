// Package integrity periodically checks that no thread has more than one
// active plan and reports any that do.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/josephgoksu/deepagent/internal/telemetry"
	cronv3 "github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep every five minutes.
const DefaultSchedule = "@every 5m"

var parser = cronv3.NewParser(cronv3.SecondOptional | cronv3.Minute | cronv3.Hour | cronv3.Dom | cronv3.Month | cronv3.Dow | cronv3.Descriptor)

// Checker reports threads holding more than one active plan.
type Checker interface {
	ThreadsWithMultipleActivePlans(ctx context.Context) (map[string]int, error)
}

// Tracker receives violation events.
type Tracker interface {
	Track(event string, properties map[string]any)
}

// Violation is one thread with too many active plans.
type Violation struct {
	ThreadID    string `json:"thread_id"`
	ActivePlans int    `json:"active_plans"`
}

// Sweeper runs RunOnce on a cron schedule.
type Sweeper struct {
	checker  Checker
	tracker  Tracker
	logger   *slog.Logger
	schedule string
	timeout  time.Duration

	mu   sync.Mutex
	cron *cronv3.Cron
}

// Options configures a Sweeper.
type Options struct {
	Schedule string        // Cron spec or descriptor; DefaultSchedule when empty
	Timeout  time.Duration // Per-sweep deadline; 30s when zero
	Tracker  Tracker
	Logger   *slog.Logger
}

// ValidateSchedule reports whether spec parses.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(strings.TrimSpace(spec)); err != nil {
		return fmt.Errorf("invalid integrity schedule %q: %w", spec, err)
	}
	return nil
}

// NewSweeper returns a stopped Sweeper.
func NewSweeper(checker Checker, opts Options) *Sweeper {
	s := &Sweeper{
		checker:  checker,
		tracker:  opts.Tracker,
		logger:   opts.Logger,
		schedule: strings.TrimSpace(opts.Schedule),
		timeout:  opts.Timeout,
	}
	if s.schedule == "" {
		s.schedule = DefaultSchedule
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Start schedules the sweep. Calling Start on a running Sweeper is an error.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("integrity sweeper already running")
	}

	c := cronv3.New(cronv3.WithParser(parser))
	if _, err := c.AddFunc(s.schedule, s.tick); err != nil {
		return fmt.Errorf("schedule integrity sweep: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("integrity sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("integrity sweep failed", "error", err)
	}
}

// RunOnce checks every thread once and returns the violations, sorted by thread id.
func (s *Sweeper) RunOnce(ctx context.Context) ([]Violation, error) {
	counts, err := s.checker.ThreadsWithMultipleActivePlans(ctx)
	if err != nil {
		return nil, err
	}

	violations := make([]Violation, 0, len(counts))
	for threadID, n := range counts {
		violations = append(violations, Violation{ThreadID: threadID, ActivePlans: n})
	}
	sort.Slice(violations, func(i, j int) bool { return violations[i].ThreadID < violations[j].ThreadID })

	for _, v := range violations {
		s.logger.Warn("thread has multiple active plans",
			"thread_id", v.ThreadID, "active_plans", v.ActivePlans)
		if s.tracker != nil {
			s.tracker.Track(telemetry.EventIntegrityViolated, map[string]any{"thread_id": v.ThreadID, "active_plans": v.ActivePlans})
		}
	}
	s.logger.Debug("integrity sweep finished", "violations", len(violations))
	return violations, nil
}
