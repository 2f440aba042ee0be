package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrEmptyQuery is returned for blank utterances.
	ErrEmptyQuery = errors.New("empty query")
	// ErrBusy is returned while a reply is playing or a query is in flight.
	ErrBusy = errors.New("assistant is busy")
)

// Role tags who produced an utterance.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Utterance is one turn of the conversation. History order is turn order.
type Utterance struct {
	Role Role
	Text string
	At   time.Time
}

// Message is the wire shape of a history entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is sent to the completion provider for one user query.
type CompletionRequest struct {
	RequestID string
	Text      string
	History   []Message
	Context   string // knowledge base article the assistant answers from
}

// Completer produces the assistant's reply to one query.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ConversationOptions configures a Conversation.
type ConversationOptions struct {
	Context  string
	Logger   zerolog.Logger
	OnStatus func(string)

	now func() time.Time
}

// Conversation coordinates turn-taking between the user, the completion
// provider, and the playback controller. Only one query is in flight.
type Conversation struct {
	ctrl      *PlaybackController
	completer Completer
	opts      ConversationOptions
	logger    zerolog.Logger
	now       func() time.Time

	mu        sync.Mutex
	history   []Utterance
	inFlight  bool
	lastQuery string
	closed    bool
}

// NewConversation creates a conversation driving ctrl.
func NewConversation(ctrl *PlaybackController, completer Completer, opts ConversationOptions) *Conversation {
	now := opts.now
	if now == nil {
		now = time.Now
	}
	return &Conversation{
		ctrl:      ctrl,
		completer: completer,
		opts:      opts,
		logger:    opts.Logger.With().Str("component", "conversation").Logger(),
		now:       now,
	}
}

// Process is the entry point for every recognized utterance: a command while
// a reply is active, otherwise a new query.
func (c *Conversation) Process(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.ctrl.HandleUtterance(text) {
		return nil
	}
	return c.HandleUserQuery(ctx, text)
}

// HandleUserQuery sends text to the completion provider and starts speaking
// the reply. It blocks until the reply arrives or fails.
func (c *Conversation) HandleUserQuery(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyQuery
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.inFlight || c.ctrl.Active() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.lastQuery = text
	c.history = append(c.history, Utterance{Role: RoleUser, Text: text, At: c.now()})
	req := CompletionRequest{
		RequestID: uuid.New().String(),
		Text:      text,
		History:   toMessages(c.history),
		Context:   c.opts.Context,
	}
	c.mu.Unlock()

	c.status(StatusProcessing)
	logger := c.logger.With().Str("request_id", req.RequestID).Logger()
	logger.Debug().Str("query", text).Msg("sending query")

	reply, err := c.completer.Complete(ctx, req)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() { c.inFlight = false }()

	if err != nil {
		logger.Error().Err(err).Msg("completion failed")
		c.status(StatusNoResponse)
		return fmt.Errorf("complete query: %w", err)
	}
	if c.closed {
		return ErrClosed
	}

	c.history = append(c.history, Utterance{Role: RoleAssistant, Text: reply, At: c.now()})
	sections := SplitSections(reply)
	logger.Debug().Int("sections", len(sections)).Msg("reply received")

	return c.ctrl.Start(sections)
}

// RepeatLast replays the last finished reply, or asks the last query again
// when there is no reply left to replay.
func (c *Conversation) RepeatLast(ctx context.Context) error {
	if c.ctrl.RepeatLast() {
		return nil
	}

	c.mu.Lock()
	query := c.lastQuery
	c.mu.Unlock()
	if query == "" {
		return ErrEmptyQuery
	}
	return c.HandleUserQuery(ctx, query)
}

// History returns a copy of the conversation so far.
func (c *Conversation) History() []Utterance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Utterance(nil), c.history...)
}

// Busy reports whether a new query would be rejected.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight || c.ctrl.Active()
}

// Close ends the session and releases the playback controller.
func (c *Conversation) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.ctrl.Close()
}

func (c *Conversation) status(s string) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(s)
	}
}

func toMessages(history []Utterance) []Message {
	out := make([]Message, len(history))
	for i, u := range history {
		out[i] = Message{Role: string(u.Role), Content: u.Text}
	}
	return out
}
