package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 20
)

// Conn wraps a websocket with serialized envelope writes. Reads must come
// from a single goroutine.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// NewConn wraps ws.
func NewConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(maxMessageSize)
	return &Conn{ws: ws}
}

// Send writes one envelope.
func (c *Conn) Send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Emit encodes data and writes it as event.
func (c *Conn) Emit(event, requestID string, data any) error {
	env, err := NewEnvelope(event, requestID, data)
	if err != nil {
		return err
	}
	return c.Send(env)
}

// Receive reads the next envelope. Binary frames are delivered as
// send_audio_data with the raw frame as audio.
func (c *Conn) Receive() (Envelope, error) {
	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		return Envelope{}, err
	}

	if kind == websocket.BinaryMessage {
		return NewEnvelope(SendAudioData, "", AudioData{Audio: data})
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &MalformedError{Err: err}
	}
	if env.Event == "" {
		return Envelope{}, &MalformedError{Err: fmt.Errorf("missing event name")}
	}
	return env, nil
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

// MalformedError is returned by Receive for a frame that is not an envelope.
// The connection is still usable.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string { return "malformed envelope: " + e.Err.Error() }

func (e *MalformedError) Unwrap() error { return e.Err }
