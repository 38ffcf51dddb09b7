package provisioning

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/go-logr/logr"
)

// Observer defines the interface for structured observability during provisioning.
type Observer interface {
	// Printf logs a free-form progress line.
	Printf(format string, v ...any)

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "validation", "indexer")
	Message   string            // Human-readable message
	Resource  string            // Node name or resource ID if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventPhaseStarted indicates a provisioning phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a provisioning phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a provisioning phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventResourceCreating indicates an instance is being launched.
	EventResourceCreating EventType = "resource.creating"
	// EventResourceCreated indicates an instance was launched.
	EventResourceCreated EventType = "resource.created"
	// EventResourceExists indicates an existing instance was adopted.
	EventResourceExists EventType = "resource.exists"
	// EventResourceFailed indicates a resource operation failed.
	EventResourceFailed EventType = "resource.failed"

	// EventNodeTransition indicates a node moved between lifecycle states.
	EventNodeTransition EventType = "node.transition"

	// EventValidationWarning indicates a validation warning.
	EventValidationWarning EventType = "validation.warning"
	// EventValidationError indicates a validation error.
	EventValidationError EventType = "validation.error"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// LogrObserver implements Observer on top of a logr.Logger.
type LogrObserver struct {
	log    logr.Logger
	fields map[string]string
}

// NewLogrObserver creates an observer writing to log.
func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{log: log, fields: map[string]string{}}
}

// Logger returns the underlying logger with the observer's context fields attached.
func (o *LogrObserver) Logger() logr.Logger {
	return o.log.WithValues(keyValues(o.fields)...)
}

// Printf logs a formatted info line.
func (o *LogrObserver) Printf(format string, v ...any) {
	o.Logger().Info(fmt.Sprintf(format, v...))
}

// Event implements Observer. Failures and validation errors are logged at
// error level, everything else at info.
func (o *LogrObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	merged := make(map[string]string, len(o.fields)+len(event.Fields))
	maps.Copy(merged, o.fields)
	maps.Copy(merged, event.Fields)

	kv := []any{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	kv = append(kv, keyValues(merged)...)

	switch event.Type {
	case EventPhaseFailed, EventResourceFailed, EventValidationError:
		o.log.Error(nil, event.Message, kv...)
	case EventProgress:
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

// Progress implements Observer.
func (o *LogrObserver) Progress(phase string, current, total int) {
	pct := 0
	if total > 0 {
		pct = (current * 100) / total
	}
	o.Event(Event{
		Type:    EventProgress,
		Phase:   phase,
		Message: "progress",
		Fields: map[string]string{
			"current": fmt.Sprint(current),
			"total":   fmt.Sprint(total),
			"percent": fmt.Sprint(pct),
		},
	})
}

// WithFields implements Observer.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	maps.Copy(merged, o.fields)
	maps.Copy(merged, fields)
	return &LogrObserver{log: o.log, fields: merged}
}

func keyValues(fields map[string]string) []any {
	kv := make([]any, 0, len(fields)*2)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		kv = append(kv, k, fields[k])
	}
	return kv
}

func logrFromContext(ctx context.Context) logr.Logger {
	if ctx == nil {
		return logr.Discard()
	}
	return logr.FromContextOrDiscard(ctx)
}

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogResourceCreating logs an instance launch.
func LogResourceCreating(observer Observer, phase, nodeName string) {
	observer.Event(Event{
		Type:     EventResourceCreating,
		Phase:    phase,
		Resource: nodeName,
		Message:  "launching instance",
	})
}

// LogResourceCreated logs a launched instance.
func LogResourceCreated(observer Observer, phase, nodeName, instanceID string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Phase:    phase,
		Resource: nodeName,
		Message:  "instance launched",
		Fields:   map[string]string{"id": instanceID},
	})
}

// LogResourceExists logs an adopted instance.
func LogResourceExists(observer Observer, phase, nodeName, instanceID string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Phase:    phase,
		Resource: nodeName,
		Message:  "adopting existing instance",
		Fields:   map[string]string{"id": instanceID},
	})
}

// LogNodeTransition logs a lifecycle change of a node.
func LogNodeTransition(observer Observer, phase, nodeName, from, to string) {
	observer.Event(Event{
		Type:     EventNodeTransition,
		Phase:    phase,
		Resource: nodeName,
		Message:  fmt.Sprintf("%s -> %s", from, to),
		Fields:   map[string]string{"from": from, "status": to},
	})
}
