package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
)

// Client records usage events. planning.EventTracker and integrity.Tracker
// are both satisfied by it.
type Client interface {
	// Track never blocks and never fails; dropped events are not reported.
	Track(event string, properties map[string]any)
	Close() error
}

// Properties is the property bag passed to Track.
type Properties = map[string]any

// MaxStringProperty is the longest string value forwarded. Longer values are
// assumed to be user content (titles, messages, note bodies) and are dropped.
const MaxStringProperty = 64

// Keys whose values identify a conversation or plan. They are forwarded only
// as a pseudonym derived from the installation's anonymous id.
var pseudonymKeys = map[string]string{
	"thread_id": "thread",
	"plan_id":   "plan",
	"note_id":   "note",
}

type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// Recorder sends shaped events to PostHog under the installation's anonymous id.
type Recorder struct {
	mu     sync.Mutex
	sink   enqueuer // nil once closed
	anonID string
	base   map[string]any
}

// Options selects and configures a Client.
type Options struct {
	Enabled  bool
	APIKey   string
	Endpoint string
	Version  string
	DataDir  string
}

// New returns a Recorder when telemetry is enabled and an API key is set,
// otherwise a NoopClient.
func New(opts Options) (Client, error) {
	if !opts.Enabled || opts.APIKey == "" {
		return NewNoopClient(), nil
	}
	cfg, err := LoadConfig(opts.DataDir, true)
	if err != nil {
		return nil, err
	}

	phConfig := posthog.Config{
		BatchSize: 10,
		Interval:  time.Second,
		// Transport warnings must not reach stdout or the MCP stdio stream.
		Logger: quietPostHogLogger{},
	}
	if opts.Endpoint != "" {
		phConfig.Endpoint = opts.Endpoint
	}
	ph, err := posthog.NewWithConfig(opts.APIKey, phConfig)
	if err != nil {
		return nil, err
	}
	return newRecorder(ph, cfg.AnonymousID, opts.Version), nil
}

func newRecorder(sink enqueuer, anonID, version string) *Recorder {
	return &Recorder{
		sink:   sink,
		anonID: anonID,
		base: map[string]any{
			"os":      runtime.GOOS,
			"arch":    runtime.GOARCH,
			"version": version,
			// No person profiles.
			"$process_person_profile": false,
		},
	}
}

// Track shapes properties and enqueues the event.
func (r *Recorder) Track(event string, properties map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sink == nil {
		return
	}

	props := posthog.NewProperties()
	for k, v := range r.base {
		props.Set(k, v)
	}
	for k, v := range Shape(r.anonID, properties) {
		props.Set(k, v)
	}
	props.Set("area", Area(event))

	_ = r.sink.Enqueue(posthog.Capture{
		DistinctId: r.anonID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes pending events. Later calls to Track are dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sink == nil {
		return nil
	}
	sink := r.sink
	r.sink = nil
	return sink.Close()
}

// Shape returns the subset of properties safe to send. Scalars pass through,
// strings up to MaxStringProperty pass through, identifier keys are replaced
// by a pseudonym salted with anonID, and everything else is dropped.
func Shape(anonID string, properties map[string]any) map[string]any {
	out := make(map[string]any, len(properties))
	for k, v := range properties {
		if alias, ok := pseudonymKeys[k]; ok {
			if id, ok := v.(string); ok && id != "" {
				out[alias] = Pseudonym(anonID, id)
			}
			continue
		}
		switch val := v.(type) {
		case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
			out[k] = val
		case string:
			if len(val) <= MaxStringProperty {
				out[k] = val
			}
		}
	}
	return out
}

// Pseudonym maps id to a stable 12 character token for this installation.
func Pseudonym(anonID, id string) string {
	sum := sha256.Sum256([]byte(anonID + "\x00" + id))
	return hex.EncodeToString(sum[:6])
}

// Area is the event family: "plan_step_updated" -> "plan".
func Area(event string) string {
	if i := strings.IndexByte(event, '_'); i > 0 {
		return event[:i]
	}
	return event
}

// NoopClient discards every event.
type NoopClient struct{}

func (NoopClient) Track(string, map[string]any) {}
func (NoopClient) Close() error                 { return nil }

// NewNoopClient returns a client that does nothing.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

type quietPostHogLogger struct{}

func (quietPostHogLogger) Debugf(string, ...interface{}) {}
func (quietPostHogLogger) Logf(string, ...interface{})   {}
func (quietPostHogLogger) Warnf(string, ...interface{})  {}
func (quietPostHogLogger) Errorf(string, ...interface{}) {}
