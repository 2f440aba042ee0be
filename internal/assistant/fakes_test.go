package assistant

import (
	"context"
	"errors"
	"sync"
	"time"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Unix(1700000000, 0)}
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeSynth returns the text as audio. When gate is set, each call waits
// for a value (or cancellation) before returning.
type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	gate  chan struct{}
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	gate := s.gate
	err := s.fail[text]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (s *fakeSynth) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakePlayer struct {
	mu       sync.Mutex
	played   []Clip
	pauses   int
	resumes  int
	restarts int
	stops    int
	playing  bool
	maxLive  int
	failPlay error
}

func (p *fakePlayer) Play(clip Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPlay != nil {
		return p.failPlay
	}
	if p.playing {
		// A second clip without Stop would overlap.
		p.maxLive = 2
	} else if p.maxLive == 0 {
		p.maxLive = 1
	}
	p.played = append(p.played, clip)
	p.playing = true
	return nil
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
}

func (p *fakePlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumes++
	return nil
}

func (p *fakePlayer) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts++
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.playing = false
}

// end simulates the audio element finishing the last clip.
func (p *fakePlayer) end() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	if len(p.played) == 0 {
		return 0
	}
	return p.played[len(p.played)-1].ID
}

func (p *fakePlayer) Played() []Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Clip(nil), p.played...)
}

func (p *fakePlayer) counts() (pauses, resumes, restarts int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauses, p.resumes, p.restarts
}

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
	statuses    []string
}

func (r *recorder) onTransition(t Transition) {
	r.mu.Lock()
	r.transitions = append(r.transitions, t)
	r.mu.Unlock()
}

func (r *recorder) onStatus(s string) {
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

func (r *recorder) lastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *recorder) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.transitions...)
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []CompletionRequest
	reply    string
	err      error
	gate     chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeCompleter) Requests() []CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CompletionRequest(nil), f.requests...)
}

var errBoom = errors.New("boom")
