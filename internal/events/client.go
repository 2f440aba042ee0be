package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/assistant"
)

var (
	// ErrClosed is returned once the channel is closed.
	ErrClosed = errors.New("event channel closed")
	// ErrRemote wraps a failure reported by the other side.
	ErrRemote = errors.New("remote error")
)

// Handler receives events that do not answer a pending request.
type Handler func(Envelope)

// ClientOptions configures a Client.
type ClientOptions struct {
	Logger zerolog.Logger
}

// Client is the requesting side of the event channel. Responses are matched
// to requests by request id, so overlapping requests are safe.
type Client struct {
	conn   *Conn
	logger zerolog.Logger

	mu       sync.Mutex
	handlers map[string][]Handler
	pending  map[string]chan Envelope

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to the event channel at url.
func Dial(ctx context.Context, url string, opts ClientOptions) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(NewConn(ws), opts), nil
}

// NewClient starts reading from conn.
func NewClient(conn *Conn, opts ClientOptions) *Client {
	c := &Client{
		conn:     conn,
		logger:   opts.Logger.With().Str("component", "events_client").Logger(),
		handlers: make(map[string][]Handler),
		pending:  make(map[string]chan Envelope),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// On registers fn for event. Handlers run on the read goroutine.
func (c *Client) On(event string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// Emit sends an event without waiting for a response.
func (c *Client) Emit(event string, data any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return c.conn.Emit(event, "", data)
}

// Request sends event with a fresh request id and waits for the response
// carrying the same id. An error event answering the request is returned
// as ErrRemote.
func (c *Client) Request(ctx context.Context, event string, data any) (Envelope, error) {
	return c.RequestWithID(ctx, uuid.NewString(), event, data)
}

// RequestWithID is Request with a caller-chosen id. The response slot is
// registered before the request is written.
func (c *Client) RequestWithID(ctx context.Context, id, event string, data any) (Envelope, error) {
	env, err := NewEnvelope(event, id, data)
	if err != nil {
		return Envelope{}, err
	}

	ch := make(chan Envelope, 1)
	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		return Envelope{}, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.conn.Send(env); err != nil {
		return Envelope{}, fmt.Errorf("send %s: %w", event, err)
	}

	select {
	case resp := <-ch:
		if resp.Event == Error {
			var payload ErrorPayload
			if err := resp.Decode(&payload); err != nil {
				return resp, fmt.Errorf("%w: %s failed", ErrRemote, event)
			}
			return resp, fmt.Errorf("%w: %s", ErrRemote, payload.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case <-c.done:
		return Envelope{}, ErrClosed
	}
}

// Complete asks the server's voice assistant for a reply.
func (c *Client) Complete(ctx context.Context, req assistant.CompletionRequest) (string, error) {
	history := make([]HistoryMessage, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, HistoryMessage{Role: m.Role, Content: m.Content})
	}

	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	env, err := c.RequestWithID(ctx, id, VoiceAssistantInput, AssistantInput{
		Text:    req.Text,
		History: history,
		Context: req.Context,
	})
	if err != nil {
		return "", err
	}

	var resp AssistantResponse
	if err := env.Decode(&resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return resp.Text, nil
}

// Done is closed when the channel stops reading.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the channel stopped, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the channel. Pending requests fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		if c.err == nil {
			c.err = ErrClosed
		}
		close(c.done)
		c.mu.Unlock()
	}()

	for {
		env, err := c.conn.Receive()
		if err != nil {
			var malformed *MalformedError
			if errors.As(err, &malformed) {
				c.logger.Warn().Err(err).Msg("ignoring malformed event")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("event channel read error")
			}
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	c.mu.Lock()
	if env.RequestID != "" {
		if ch, ok := c.pending[env.RequestID]; ok {
			delete(c.pending, env.RequestID)
			c.mu.Unlock()
			ch <- env
			return
		}
	}
	handlers := append([]Handler(nil), c.handlers[env.Event]...)
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug().Str("event", env.Event).Msg("unhandled event")
		return
	}
	for _, h := range handlers {
		h(env)
	}
}

// isClosed must be called with mu held.
func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
