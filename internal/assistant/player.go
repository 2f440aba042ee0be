package assistant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lakshya820/VoicetoVoice/internal/audio"
)

var errNoClip = errors.New("no clip loaded")

// stopper is the part of *time.Timer the player needs.
type stopper interface {
	Stop() bool
}

// ClockPlayer plays clips on a wall clock: a clip "ends" after its MP3
// duration has elapsed. When Dir is set every clip is also written there so
// an external player can pick it up.
type ClockPlayer struct {
	Dir     string
	Bitrate int

	afterFunc func(time.Duration, func()) stopper
	now       func() time.Time

	mu        sync.Mutex
	listener  PlaybackListener
	clip      *Clip
	timer     stopper
	startedAt time.Time
	remaining time.Duration
	paused    bool
	run       uint64 // bumped on every start so stale timers are ignored
}

// NewClockPlayer creates a player writing clips into dir (optional).
func NewClockPlayer(dir string) *ClockPlayer {
	return &ClockPlayer{
		Dir:     dir,
		Bitrate: audio.SynthesisBitrate,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		now: time.Now,
	}
}

// Bind sets the listener notified when clips end.
func (p *ClockPlayer) Bind(l PlaybackListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = l
}

// Play replaces the current clip and starts it from the beginning.
func (p *ClockPlayer) Play(clip Clip) error {
	if p.Dir != "" {
		name := filepath.Join(p.Dir, fmt.Sprintf("clip-%03d-section-%d.mp3", clip.ID, clip.Section+1))
		if err := os.WriteFile(name, clip.Audio, 0o644); err != nil {
			return fmt.Errorf("write clip: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTimerLocked()
	p.clip = &clip
	p.paused = false
	p.startLocked(audio.MP3Duration(len(clip.Audio), p.Bitrate))
	return nil
}

// Pause stops the clock and remembers how much of the clip is left.
func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clip == nil || p.paused {
		return
	}
	p.stopTimerLocked()
	p.remaining -= p.now().Sub(p.startedAt)
	if p.remaining < 0 {
		p.remaining = 0
	}
	p.paused = true
}

// Resume continues a paused clip.
func (p *ClockPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clip == nil {
		return errNoClip
	}
	if !p.paused {
		return nil
	}
	p.paused = false
	p.startLocked(p.remaining)
	return nil
}

// Restart plays the current clip again from time 0.
func (p *ClockPlayer) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clip == nil {
		return errNoClip
	}
	p.stopTimerLocked()
	p.paused = false
	p.startLocked(audio.MP3Duration(len(p.clip.Audio), p.Bitrate))
	return nil
}

// Stop unloads the current clip.
func (p *ClockPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTimerLocked()
	p.clip = nil
	p.paused = false
}

func (p *ClockPlayer) startLocked(d time.Duration) {
	p.run++
	run := p.run
	p.remaining = d
	p.startedAt = p.now()
	p.timer = p.afterFunc(d, func() { p.finish(run) })
}

func (p *ClockPlayer) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *ClockPlayer) finish(run uint64) {
	p.mu.Lock()
	if p.clip == nil || p.run != run || p.paused {
		p.mu.Unlock()
		return
	}
	id := p.clip.ID
	p.clip = nil
	p.timer = nil
	listener := p.listener
	p.mu.Unlock()

	// Called without the player lock: the listener may call back into Play.
	if listener != nil {
		listener.OnClipEnded(id)
	}
}
