package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/observability"
)

// State is the playback state of one assistant session.
type State int

const (
	StateIdle State = iota
	StateSpeaking
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status strings reported to the presentation layer.
const (
	StatusListening  = "Listening..."
	StatusProcessing = "Processing..."
	StatusSpeaking   = "Speaking..."
	StatusPaused     = "Paused"
	StatusSpeechErr  = "Error creating speech"
	StatusPlaybackEr = "Error playing audio"
	StatusNoResponse = "Error: Couldn't get a response"
)

// DefaultDebounce is how long intents are ignored after a new synthesis
// request or an applied intent.
const DefaultDebounce = time.Second

// NoDebounce disables the intent guard.
const NoDebounce time.Duration = -1

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("assistant closed")
	// ErrNoSections is returned by Start for an empty reply.
	ErrNoSections = errors.New("no sections to play")
)

// Synthesizer turns one section of text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Clip is one synthesized section handed to the player.
type Clip struct {
	ID      uint64
	Section int
	Audio   []byte
}

// Player owns the single audio output. Completion and failure of a clip are
// reported back through PlaybackListener with the clip ID.
type Player interface {
	Play(clip Clip) error
	Pause()
	Resume() error
	Restart() error
	Stop()
}

// PlaybackListener receives clip lifecycle callbacks from a Player.
type PlaybackListener interface {
	OnClipEnded(clipID uint64)
	OnPlaybackError(clipID uint64, err error)
}

// Transition is emitted on every state change.
type Transition struct {
	From    State
	To      State
	Section int
}

// ControllerOptions configures a PlaybackController.
type ControllerOptions struct {
	// Debounce is the intent guard window. Zero uses DefaultDebounce and a
	// negative value turns the guard off.
	Debounce time.Duration
	Logger   zerolog.Logger

	// Observers run with the controller locked and must not call back into it.
	OnTransition func(Transition)
	OnStatus     func(string)

	now func() time.Time
}

// PlaybackController plays a reply one section at a time and applies voice
// commands against it. At most one synthesis or playback is outstanding.
type PlaybackController struct {
	synth  Synthesizer
	player Player
	opts   ControllerOptions
	logger zerolog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	state         State
	sections      []Section
	current       int
	clipID        uint64 // ID of the one clip allowed to report back
	cancelClip    context.CancelFunc
	pending       *Clip // synthesized while paused, not yet handed to the player
	playing       bool  // player holds the current clip
	ended         bool  // current clip finished while paused
	readyToRepeat bool
	guardUntil    time.Time
	closed        bool
}

// NewPlaybackController creates a controller in the Idle state.
func NewPlaybackController(synth Synthesizer, player Player, opts ControllerOptions) *PlaybackController {
	switch {
	case opts.Debounce == 0:
		opts.Debounce = DefaultDebounce
	case opts.Debounce < 0:
		opts.Debounce = 0
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PlaybackController{
		synth:  synth,
		player: player,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "playback").Logger(),
		now:    now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// State returns the current playback state.
func (c *PlaybackController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentSection returns the index of the section being played.
func (c *PlaybackController) CurrentSection() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Sections returns the sections of the active reply.
func (c *PlaybackController) Sections() []Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Section(nil), c.sections...)
}

// Active reports whether a reply is being spoken or is paused.
func (c *PlaybackController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateSpeaking || c.state == StatePaused
}

// ReadyToRepeat reports whether the last reply finished and can be replayed.
func (c *PlaybackController) ReadyToRepeat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyToRepeat
}

// Start begins speaking a new reply at section 0, superseding anything
// still playing.
func (c *PlaybackController) Start(sections []Section) error {
	if len(sections) == 0 {
		return ErrNoSections
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.sections = append([]Section(nil), sections...)
	c.readyToRepeat = false
	c.speakLocked(0)
	return nil
}

// HandleUtterance classifies text against the current state and applies it
// when it is a command. It reports whether the utterance was consumed as a
// command; commands inside the debounce window are consumed and dropped.
func (c *PlaybackController) HandleUtterance(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	intent := ClassifyIntent(text, c.state, c.current)
	if intent.Kind == IntentNone {
		return false
	}

	now := c.now()
	if now.Before(c.guardUntil) {
		c.logger.Debug().Str("intent", intent.Kind.String()).Msg("intent suppressed by debounce")
		return true
	}
	c.guardUntil = now.Add(c.opts.Debounce)

	c.applyLocked(intent)
	return true
}

// Apply executes an already classified intent, bypassing the debounce guard.
func (c *PlaybackController) Apply(intent Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.applyLocked(intent)
}

func (c *PlaybackController) applyLocked(intent Intent) {
	observability.RecordIntent(intent.Kind.String())
	c.logger.Debug().
		Str("intent", intent.Kind.String()).
		Int("section", intent.Section).
		Bool("current", intent.Current).
		Str("state", c.state.String()).
		Msg("applying intent")

	switch intent.Kind {
	case IntentStop:
		if c.state != StateSpeaking {
			return
		}
		if c.playing {
			c.player.Pause()
		}
		c.setState(StatePaused)
		c.status(StatusPaused)

	case IntentContinue:
		if c.state != StatePaused {
			return
		}
		c.setState(StateSpeaking)
		c.status(StatusSpeaking)
		c.resumeLocked()

	case IntentRepeat:
		if c.state != StateSpeaking && c.state != StatePaused {
			return
		}
		if !intent.Current && intent.Section >= 0 && intent.Section < len(c.sections) {
			c.speakLocked(intent.Section)
			return
		}
		c.restartLocked()
	}
}

// resumeLocked continues the current clip after a pause.
func (c *PlaybackController) resumeLocked() {
	switch {
	case c.ended:
		c.advanceLocked()
	case c.pending != nil:
		clip := *c.pending
		c.pending = nil
		c.playLocked(clip)
	case c.playing:
		if err := c.player.Resume(); err != nil {
			c.failLocked(StatusPlaybackEr, err)
		}
	}
	// Otherwise synthesis is still running and will start playback itself.
}

// restartLocked plays the current section again from the beginning.
func (c *PlaybackController) restartLocked() {
	if c.ended {
		// Nothing loaded in the player any more.
		c.speakLocked(c.current)
		return
	}

	c.transition(StateSpeaking, true)
	c.status(StatusSpeaking)

	switch {
	case c.pending != nil:
		clip := *c.pending
		c.pending = nil
		c.playLocked(clip)
	case c.playing:
		if err := c.player.Restart(); err != nil {
			c.failLocked(StatusPlaybackEr, err)
		}
	}
	// Otherwise synthesis is still running and playback starts at 0 anyway.
}

// speakLocked supersedes any outstanding clip and synthesizes section index.
func (c *PlaybackController) speakLocked(index int) {
	if c.cancelClip != nil {
		c.cancelClip()
	}
	if c.playing {
		c.player.Stop()
	}
	c.playing = false
	c.ended = false
	c.pending = nil

	c.clipID++
	id := c.clipID
	c.current = index
	c.guardUntil = c.now().Add(c.opts.Debounce)

	c.transition(StateSpeaking, true)
	c.status(StatusSpeaking)

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelClip = cancel
	text := c.sections[index].Content

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.synthesize(ctx, id, index, text)
	}()
}

func (c *PlaybackController) synthesize(ctx context.Context, id uint64, index int, text string) {
	start := time.Now()
	audio, err := c.synth.Synthesize(ctx, text)
	observability.ObserveProvider("tts", start, err == nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || id != c.clipID {
		// Superseded while synthesizing.
		return
	}
	if err != nil {
		c.failLocked(StatusSpeechErr, fmt.Errorf("synthesize section %d: %w", index, err))
		return
	}

	clip := Clip{ID: id, Section: index, Audio: audio}
	if c.state == StatePaused {
		c.pending = &clip
		return
	}
	c.playLocked(clip)
}

func (c *PlaybackController) playLocked(clip Clip) {
	if err := c.player.Play(clip); err != nil {
		c.failLocked(StatusPlaybackEr, fmt.Errorf("play section %d: %w", clip.Section, err))
		return
	}
	c.playing = true
}

// OnClipEnded advances to the next section, or finishes the reply after the
// last one. Stale clip IDs are ignored.
func (c *PlaybackController) OnClipEnded(clipID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || clipID != c.clipID {
		return
	}
	c.playing = false

	switch c.state {
	case StateSpeaking:
		c.advanceLocked()
	case StatePaused:
		// Finished just as the pause arrived; Continue moves on.
		c.ended = true
	}
}

func (c *PlaybackController) advanceLocked() {
	c.ended = false

	next := c.current + 1
	if next < len(c.sections) {
		c.speakLocked(next)
		return
	}

	c.readyToRepeat = true
	c.setState(StateIdle)
	c.status(StatusListening)
}

// OnPlaybackError moves to Error and recovers to Idle. Stale clip IDs are
// ignored.
func (c *PlaybackController) OnPlaybackError(clipID uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || clipID != c.clipID {
		return
	}
	c.failLocked(StatusPlaybackEr, err)
}

func (c *PlaybackController) failLocked(status string, err error) {
	c.logger.Error().Err(err).Int("section", c.current).Msg("playback failed")
	observability.RecordError("playback", "assistant")

	if c.cancelClip != nil {
		c.cancelClip()
	}
	if c.playing {
		c.player.Stop()
	}
	c.playing = false
	c.ended = false
	c.pending = nil
	c.clipID++ // invalidate callbacks for the failed clip

	c.setState(StateError)
	c.status(status)
	c.recoverLocked()
}

// Recover returns the controller from Error to Idle. It is a no-op in any
// other state.
func (c *PlaybackController) Recover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recoverLocked()
}

func (c *PlaybackController) recoverLocked() {
	if c.state != StateError {
		return
	}
	c.readyToRepeat = false
	c.setState(StateIdle)
}

// RepeatLast replays the last finished reply from section 0. It reports
// false when there is nothing ready to repeat.
func (c *PlaybackController) RepeatLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state != StateIdle || !c.readyToRepeat || len(c.sections) == 0 {
		return false
	}
	c.readyToRepeat = false
	c.speakLocked(0)
	return true
}

// Close stops playback, cancels synthesis, and waits for it to exit.
// The controller cannot be used afterwards.
func (c *PlaybackController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	if c.playing {
		c.player.Stop()
	}
	c.playing = false
	c.pending = nil
	c.sections = nil
	c.setState(StateIdle)
	c.mu.Unlock()

	c.wg.Wait()
}

// Wait blocks until no synthesis is outstanding.
func (c *PlaybackController) Wait() {
	c.wg.Wait()
}

func (c *PlaybackController) setState(to State) {
	c.transition(to, false)
}

// transition changes state and notifies observers. With force set, a
// Speaking to Speaking move (new section or restart) is reported too.
func (c *PlaybackController) transition(to State, force bool) {
	from := c.state
	if from == to && !force {
		return
	}
	c.state = to
	observability.RecordPlaybackTransition(from.String(), to.String())
	if c.opts.OnTransition != nil {
		c.opts.OnTransition(Transition{From: from, To: to, Section: c.current})
	}
}

func (c *PlaybackController) status(s string) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(s)
	}
}
