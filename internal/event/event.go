// Package event provides the engine's leveled event dispatch and owns the
// process logging it is built on.
//
// Components report what they are doing by handing typed events to a Handler
// rather than logging directly; the Handler applies its own level threshold
// before surfacing an event through charmbracelet/log. A single process-wide
// default Handler is used by the engine with last-writer-wins semantics,
// matching the engine's single-pipeline-per-process contract.
//
// Configure must be called once during CLI initialization, before any
// component asks for the default Handler or a Logger; charmbracelet/log
// copies state into child loggers at creation time, so later changes to the
// defaults do not propagate.
package event

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Level indicates how significant an event is. A Handler surfaces events at
// or above its threshold and drops the rest.
type Level int

// Event levels ordered from least to most significant.
const (
	LevelDebug Level = iota
	LevelVerbose
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the lower-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelVerbose:
		return "verbose"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single occurrence reported by the engine or a component.
type Event interface {
	// Name identifies the kind of event (e.g. "schedule_run").
	Name() string

	// EventLevel is the significance of this event.
	EventLevel() Level

	// Message is the human-readable form of the event.
	Message() string
}

// Contexter is implemented by events that carry structured key/value context
// beyond their message.
type Contexter interface {
	Context() []any
}

// Configure sets up the process logging defaults and installs a matching
// default Handler. Call once during CLI initialization.
//
//   - verbose lowers the threshold to debug (every event is surfaced)
//   - quiet raises it to error; quiet wins over verbose so that scheduled
//     environments can always suppress noise
//
// Output format follows AUTO_TRANSFORM_LOG_FORMAT: "json" produces NDJSON
// for CI and scheduled runs, anything else the human-readable text form.
// All output goes to stderr; stdout is reserved for structured output
// (schema JSON, tables).
func Configure(verbose, quiet bool) *Handler {
	threshold := LevelInfo
	logLevel := log.InfoLevel
	if verbose {
		threshold = LevelDebug
		logLevel = log.DebugLevel
	}
	if quiet {
		threshold = LevelError
		logLevel = log.ErrorLevel
	}

	log.SetLevel(logLevel)
	log.SetOutput(os.Stderr)
	if os.Getenv("AUTO_TRANSFORM_LOG_FORMAT") == "json" {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}

	h := NewHandler(nil)
	h.threshold = threshold
	SetDefault(h)
	return h
}

// Logger returns a component-prefixed logger inheriting the Configure
// defaults, for the few places (the CLI's error reporting) that log directly
// instead of emitting events.
func Logger(component string) *log.Logger {
	return log.WithPrefix(component)
}

// Handler dispatches events at or above its threshold. The zero value is not
// usable; create handlers with NewHandler.
type Handler struct {
	logger    *log.Logger
	threshold Level
	runID     string
}

// NewHandler creates a Handler writing through the given logger with a debug
// threshold (every event surfaced, leaving filtering to the logger). A nil
// logger uses the "event" component logger. Each Handler carries a run ID
// that tags every event from one invocation.
func NewHandler(logger *log.Logger) *Handler {
	if logger == nil {
		logger = Logger("event")
	}
	return &Handler{
		logger:    logger,
		threshold: LevelDebug,
		runID:     uuid.NewString(),
	}
}

// RunID returns the identifier tagging all events from this Handler.
func (h *Handler) RunID() string {
	return h.runID
}

// Threshold returns the minimum level the Handler surfaces.
func (h *Handler) Threshold() Level {
	return h.threshold
}

// Handle dispatches a single event at its level, dropping events below the
// Handler's threshold. Verbose events are surfaced at debug; the distinction
// is preserved in the event name field.
func (h *Handler) Handle(e Event) {
	if e.EventLevel() < h.threshold {
		return
	}
	args := []any{"event", e.Name(), "run_id", h.runID}
	if c, ok := e.(Contexter); ok {
		args = append(args, c.Context()...)
	}
	switch e.EventLevel() {
	case LevelError:
		h.logger.Error(e.Message(), args...)
	case LevelWarning:
		h.logger.Warn(e.Message(), args...)
	case LevelInfo:
		h.logger.Info(e.Message(), args...)
	default:
		h.logger.Debug(e.Message(), args...)
	}
}

var (
	defaultMu      sync.Mutex
	defaultHandler *Handler
)

// Default returns the process-wide Handler, creating one on first use.
func Default() *Handler {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHandler == nil {
		defaultHandler = NewHandler(nil)
	}
	return defaultHandler
}

// SetDefault replaces the process-wide Handler. Last writer wins.
func SetDefault(h *Handler) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultHandler = h
}
