package installer

// EventKind names a package task transition.
type EventKind int

const (
	// EventResolving fires when a task holds a concurrency permit and
	// starts resolving its version range.
	EventResolving EventKind = iota

	// EventInstalling fires when a tarball download begins.
	EventInstalling

	// EventInstalled fires after extraction finished and the
	// completion marker was written.
	EventInstalled

	// EventSkipped fires when a completed install was already on disk.
	EventSkipped

	// EventDuplicate fires when another task already claimed the same
	// name and version.
	EventDuplicate

	// EventFailed fires when a task errors.
	EventFailed
)

// String returns the kind as a short verb for display.
func (k EventKind) String() string {
	switch k {
	case EventResolving:
		return "resolving"
	case EventInstalling:
		return "installing"
	case EventInstalled:
		return "installed"
	case EventSkipped:
		return "skipped"
	case EventDuplicate:
		return "duplicate"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event describes one package task transition. Events are emitted from
// task goroutines; handlers must be safe for concurrent use.
type Event struct {
	Kind EventKind

	// Key is the requested name@range, stable across all of one task's
	// transitions.
	Key string

	// Resolved is name@version, set once resolution succeeded.
	Resolved string

	// Err carries the cause for EventFailed.
	Err error
}
