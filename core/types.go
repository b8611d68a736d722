package core

// NotificationKind categorizes the notifications a stream delivers
type NotificationKind string

const (
	NotificationNext      NotificationKind = "next"
	NotificationError     NotificationKind = "error"
	NotificationCompleted NotificationKind = "completed"
)

// IsTerminal reports whether no further notification may follow this kind
func (k NotificationKind) IsTerminal() bool {
	return k == NotificationError || k == NotificationCompleted
}

// ProjectionKind identifies the shape of a projection result once it has been
// classified
type ProjectionKind string

const (
	// ProjectionSequence is a finite, eagerly available sequence of values
	ProjectionSequence ProjectionKind = "sequence"

	// ProjectionAsync is a single-value asynchronous handle
	ProjectionAsync ProjectionKind = "async"

	// ProjectionStream is a value that already satisfies the Stream capability
	ProjectionStream ProjectionKind = "stream"
)
