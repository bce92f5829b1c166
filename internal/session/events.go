package session

import "log/slog"

// EventKind tells success from failure.
type EventKind int

const (
	EventSuccess EventKind = iota
	EventError
)

func (k EventKind) String() string {
	if k == EventError {
		return "error"
	}
	return "success"
}

// Event is a one-time outcome of an operation, published once per attempt.
// Phase is the phase after the outcome was applied.
type Event struct {
	Op      Op
	Kind    EventKind
	Phase   Phase
	Message string
	Err     error
}

// emitLocked publishes without blocking; a full buffer drops the event.
// Callers hold mu.
func (c *Controller) emitLocked(op Op, msg string, err error) {
	if c.closed {
		return
	}
	ev := Event{Op: op, Kind: EventSuccess, Phase: c.phase, Message: msg}
	if err != nil {
		ev.Kind = EventError
		ev.Err = err
		ev.Message = Message(err)
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event buffer full, dropping event",
			slog.String("op", string(op)),
			slog.String("kind", ev.Kind.String()),
		)
	}
}
