package stages

import (
	"encoding/json"
	"sync"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/reactive"
	"github.com/creastat/reactive/core"
	"github.com/creastat/reactive/protocol"
	"github.com/gorilla/websocket"
)

// WebSocketSinkConfig holds WebSocket sink configuration
type WebSocketSinkConfig struct {
	Conn      *websocket.Conn
	SessionID string
	StreamID  string // ID to correlate stream.start, stream.next and stream.end
	Logger    telemetry.Logger
}

// WebSocketObserver sends stream notifications to a WebSocket connection as
// JSON protocol messages. After a failed write the remaining notifications are
// dropped so the upstream stream can finish its work.
type WebSocketObserver[T any] struct {
	config WebSocketSinkConfig
	logger telemetry.Logger

	mu       sync.Mutex
	sequence int
	err      error
	done     chan struct{}
	once     sync.Once

	subscription reactive.Assignable
}

// NewWebSocketObserver creates a new WebSocket observer
func NewWebSocketObserver[T any](config WebSocketSinkConfig) *WebSocketObserver[T] {
	return &WebSocketObserver[T]{
		config: config,
		logger: moduleLogger(config.Logger, "websocket_sink"),
		done:   make(chan struct{}),
	}
}

// SendStream announces the stream with a stream.start message and subscribes
// a new observer to it
func SendStream[T any](stream core.Stream[T], config WebSocketSinkConfig) *WebSocketObserver[T] {
	ws := NewWebSocketObserver[T](config)
	ws.mu.Lock()
	ws.write(protocol.NewStreamStartMessage(config.SessionID, config.StreamID))
	ws.mu.Unlock()
	ws.subscription.Set(stream.Subscribe(ws))
	return ws
}

func (ws *WebSocketObserver[T]) OnNext(value T) {
	ws.send(core.Next(value))
}

func (ws *WebSocketObserver[T]) OnError(err error) {
	ws.logger.Warn("Stream failed", telemetry.Err(err), telemetry.String("session_id", ws.config.SessionID))
	ws.send(core.Error[T](err))
	ws.finish()
}

func (ws *WebSocketObserver[T]) OnCompleted() {
	ws.send(core.Completed[T]())
	ws.finish()
}

// Dispose cancels the subscription made by SendStream
func (ws *WebSocketObserver[T]) Dispose() {
	ws.subscription.Dispose()
	ws.finish()
}

// Done is closed once the stream terminates or the observer is disposed
func (ws *WebSocketObserver[T]) Done() <-chan struct{} {
	return ws.done
}

// Err returns the first write error, if any
func (ws *WebSocketObserver[T]) Err() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.err
}

// Sent returns the number of values written so far
func (ws *WebSocketObserver[T]) Sent() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.sequence
}

func (ws *WebSocketObserver[T]) send(n core.Notification[T]) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.err != nil {
		return
	}

	msg := protocol.NotificationToMessage(n, ws.config.SessionID, ws.config.StreamID, ws.sequence)
	if msg == nil {
		ws.logger.Debug("Skipping unknown notification kind", telemetry.String("session_id", ws.config.SessionID))
		return
	}

	if ws.write(msg) && n.Kind == core.NotificationNext {
		ws.sequence++
	}
}

// write must be called with mu held
func (ws *WebSocketObserver[T]) write(msg *protocol.OutputMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		// Log error but keep the connection usable
		ws.logger.Error("Failed to marshal message", telemetry.Err(err), telemetry.String("session_id", ws.config.SessionID), telemetry.String("type", string(msg.Type)))
		return false
	}

	if err := ws.config.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.logger.Error("Failed to send message to WebSocket", telemetry.Err(err), telemetry.String("session_id", ws.config.SessionID), telemetry.String("type", string(msg.Type)))
		ws.err = err
		return false
	}

	ws.logger.Debug("Sent message to WebSocket", telemetry.String("type", string(msg.Type)), telemetry.String("session_id", ws.config.SessionID))
	return true
}

func (ws *WebSocketObserver[T]) finish() {
	ws.once.Do(func() { close(ws.done) })
}
