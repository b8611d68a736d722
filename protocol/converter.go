package protocol

import (
	"errors"
	"time"

	"github.com/creastat/reactive"
	"github.com/creastat/reactive/core"
	"github.com/google/uuid"
)

// NotificationToMessage converts a stream notification to an output message.
// sequence is the number of values delivered before this notification.
func NotificationToMessage[T any](n core.Notification[T], sessionID, streamID string, sequence int) *OutputMessage {
	msg := &OutputMessage{
		ID:        generateMessageID(),
		SessionID: sessionID,
		StreamID:  streamID,
		Timestamp: time.Now().UnixMilli(),
	}

	switch n.Kind {
	case core.NotificationNext:
		msg.Type = OutputStreamNext
		msg.Payload = NextPayload{
			Sequence: sequence,
			Value:    n.Value,
		}

	case core.NotificationError:
		msg.Type = OutputStreamError
		msg.Payload = NewErrorPayload(n.Err)

	case core.NotificationCompleted:
		msg.Type = OutputStreamEnd
		msg.Payload = EndPayload{
			StreamID: streamID,
			Count:    sequence,
		}

	default:
		// Unknown notification kind, skip
		return nil
	}

	return msg
}

// NewErrorPayload classifies err into an error payload
func NewErrorPayload(err error) ErrorPayload {
	payload := ErrorPayload{Code: ErrorCodeSource}
	if err == nil {
		return payload
	}
	payload.Message = err.Error()

	var mapperErr *reactive.MapperError
	var projectionErr *reactive.ProjectionError
	var rejection *reactive.AsyncRejectionError

	switch {
	case errors.As(err, &mapperErr):
		index := mapperErr.Index
		payload.Index = &index
		payload.Code = ErrorCodeMapper
		if errors.As(err, &projectionErr) {
			payload.Code = ErrorCodeProjection
		}
	case errors.As(err, &projectionErr):
		payload.Code = ErrorCodeProjection
	case errors.As(err, &rejection):
		payload.Code = ErrorCodeAsync
	}

	return payload
}

// NewStreamStartMessage creates a stream.start message
func NewStreamStartMessage(sessionID, streamID string) *OutputMessage {
	return &OutputMessage{
		Type:      OutputStreamStart,
		ID:        generateMessageID(),
		SessionID: sessionID,
		StreamID:  streamID,
		Payload: StartPayload{
			StreamID: streamID,
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

func generateMessageID() string {
	return "msg-" + uuid.NewString()
}
