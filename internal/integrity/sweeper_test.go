package integrity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/josephgoksu/deepagent/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	counts map[string]int
	err    error
	calls  atomic.Int32
}

func (f *fakeChecker) ThreadsWithMultipleActivePlans(context.Context) (map[string]int, error) {
	f.calls.Add(1)
	return f.counts, f.err
}

type recordingTracker struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingTracker) Track(event string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestRunOnce_ReportsViolations(t *testing.T) {
	var logs bytes.Buffer
	tracker := &recordingTracker{}
	s := NewSweeper(&fakeChecker{counts: map[string]int{"t2": 3, "t1": 2}}, Options{
		Tracker: tracker,
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	})

	got, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Violation{{ThreadID: "t1", ActivePlans: 2}, {ThreadID: "t2", ActivePlans: 3}}, got)
	assert.Equal(t, []string{telemetry.EventIntegrityViolated, telemetry.EventIntegrityViolated}, tracker.events)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "thread_id=t1")
}

func TestRunOnce_Clean(t *testing.T) {
	tracker := &recordingTracker{}
	s := NewSweeper(&fakeChecker{counts: map[string]int{}}, Options{Tracker: tracker})

	got, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, tracker.events)
}

func TestRunOnce_CheckerError(t *testing.T) {
	boom := errors.New("db locked")
	_, err := NewSweeper(&fakeChecker{err: boom}, Options{}).RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStartStop(t *testing.T) {
	checker := &fakeChecker{counts: map[string]int{}}
	s := NewSweeper(checker, Options{Schedule: "@every 1s"})

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start")

	assert.Eventually(t, func() bool { return checker.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx)

	require.NoError(t, s.Start(), "restart after stop")
	s.Stop(ctx)
}

func TestValidateSchedule(t *testing.T) {
	for _, ok := range []string{"@every 5m", "*/10 * * * *", "0 3 * * *", "@hourly"} {
		assert.NoError(t, ValidateSchedule(ok), ok)
	}
	assert.Error(t, ValidateSchedule("every five minutes"))

	s := NewSweeper(&fakeChecker{}, Options{Schedule: "nonsense"})
	assert.Error(t, s.Start())
}
