package protocol

// OutputMessageType defines server-to-client message types
type OutputMessageType string

const (
	// Lifecycle
	OutputStreamStart OutputMessageType = "stream.start" // Subscription opened
	OutputStreamEnd   OutputMessageType = "stream.end"   // Stream completed

	// Streaming content
	OutputStreamNext OutputMessageType = "stream.next" // One emitted value

	// Errors
	OutputStreamError OutputMessageType = "stream.error" // Stream failed
)

// OutputMessage represents a message to client
type OutputMessage struct {
	Type      OutputMessageType `json:"type"`
	ID        string            `json:"id"`                 // Server-generated message ID
	SessionID string            `json:"sessionId"`          // Session identifier
	StreamID  string            `json:"streamId,omitempty"` // Subscription the message belongs to
	Payload   any               `json:"payload"`
	Timestamp int64             `json:"timestamp"`
}

// StartPayload for stream.start
type StartPayload struct {
	StreamID string `json:"streamId"`
}

// NextPayload for stream.next
type NextPayload struct {
	Sequence int `json:"sequence"` // Position of the value in the output, from 0
	Value    any `json:"value"`
}

// EndPayload for stream.end
type EndPayload struct {
	StreamID string `json:"streamId"`
	Count    int    `json:"count"` // Number of values delivered
}

// ErrorCode classifies a stream failure
type ErrorCode string

const (
	ErrorCodeMapper     ErrorCode = "MAPPER_FAILURE"
	ErrorCodeAsync      ErrorCode = "ASYNC_REJECTION"
	ErrorCodeProjection ErrorCode = "INVALID_PROJECTION"
	ErrorCodeSource     ErrorCode = "SOURCE_FAILURE"
)

// ErrorPayload for stream.error
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Index   *int      `json:"index,omitempty"` // Element index for mapper failures
}
