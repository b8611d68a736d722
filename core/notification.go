package core

// Notification is a materialized observer call
type Notification[T any] struct {
	Kind  NotificationKind
	Value T
	Err   error
}

// Next creates an OnNext notification
func Next[T any](value T) Notification[T] {
	return Notification[T]{Kind: NotificationNext, Value: value}
}

// Error creates an OnError notification
func Error[T any](err error) Notification[T] {
	return Notification[T]{Kind: NotificationError, Err: err}
}

// Completed creates an OnCompleted notification
func Completed[T any]() Notification[T] {
	return Notification[T]{Kind: NotificationCompleted}
}

// Accept replays the notification onto an observer
func (n Notification[T]) Accept(observer Observer[T]) {
	switch n.Kind {
	case NotificationNext:
		observer.OnNext(n.Value)
	case NotificationError:
		observer.OnError(n.Err)
	case NotificationCompleted:
		observer.OnCompleted()
	}
}
