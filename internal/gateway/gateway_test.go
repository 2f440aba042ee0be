package gateway

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/assessment"
	"github.com/lakshya820/VoicetoVoice/internal/events"
	"github.com/lakshya820/VoicetoVoice/internal/llm"
	"github.com/lakshya820/VoicetoVoice/internal/store"
	"github.com/lakshya820/VoicetoVoice/internal/stt"
)

const waitFor = 5 * time.Second

type fakeAnswerer struct {
	mu      sync.Mutex
	article string
	history []llm.Message
}

func (f *fakeAnswerer) Answer(ctx context.Context, article string, history []llm.Message, text string) (string, error) {
	f.mu.Lock()
	f.article, f.history = article, history
	f.mu.Unlock()
	if text == "fail" {
		return "", errors.New("provider down")
	}
	return "1. Open settings. 2. Choose reset.", nil
}

// fakeChat answers the assessment prompts by their opening words.
type fakeChat struct{}

func (fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	system, user := req.Messages[0].Content, req.Messages[1].Content
	switch {
	case strings.HasPrefix(system, "You will be provided with statements"):
		if user == "i has a cat" {
			return "I have a cat", nil
		}
		return user, nil
	case strings.HasPrefix(system, "Please evaluate"):
		return "8", nil
	default:
		return "Strengths: clear. Weaknesses: none. Opportunities: more. Threats: few.", nil
	}
}

type fakeSentiment struct{}

func (fakeSentiment) BatchSentiment(ctx context.Context, texts []string) ([]assessment.SentimentScore, error) {
	scores := make([]assessment.SentimentScore, len(texts))
	for i := range scores {
		scores[i] = assessment.SentimentScore{Positive: 0.9, Negative: 0.05, Neutral: 0.05}
	}
	return scores, nil
}

// countingSink records how many analysis rows were written.
type countingSink struct {
	*store.Store
	mu       sync.Mutex
	analysis int
}

func (s *countingSink) InsertAnalysis(ctx context.Context, rec store.AnalysisRecord) (int64, error) {
	s.mu.Lock()
	s.analysis++
	s.mu.Unlock()
	return s.Store.InsertAnalysis(ctx, rec)
}

func (s *countingSink) analysisWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

type fakeSTT struct {
	started chan struct{}
	release chan struct{}
	out     chan *stt.TranscriptionResult

	mu        sync.Mutex
	active    bool
	sent      [][]byte
	closeOnce sync.Once
}

func newFakeSTT() *fakeSTT {
	return &fakeSTT{
		started: make(chan struct{}),
		release: make(chan struct{}),
		out:     make(chan *stt.TranscriptionResult, 10),
	}
}

func (f *fakeSTT) Start(ctx context.Context) error {
	close(f.started)
	<-f.release
	f.mu.Lock()
	f.active = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSTT) SendAudio(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return stt.ErrNotActive
	}
	f.sent = append(f.sent, append([]byte(nil), b...))
	return nil
}

func (f *fakeSTT) Transcripts() <-chan *stt.TranscriptionResult { return f.out }

func (f *fakeSTT) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeSTT) Close() error {
	f.closeOnce.Do(func() { close(f.out) })
	f.mu.Lock()
	f.active = false
	f.mu.Unlock()
	return nil
}

func (f *fakeSTT) sentBytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Join(f.sent, nil)
}

type fixture struct {
	t        *testing.T
	url      string
	answerer *fakeAnswerer
	sink     *countingSink
	stt      *fakeSTT
	gw       *Gateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		t:        t,
		answerer: &fakeAnswerer{},
		sink:     &countingSink{Store: st},
		stt:      newFakeSTT(),
	}
	f.gw = New(Dependencies{
		Assistant:  f.answerer,
		Pipeline:   assessment.NewPipeline(fakeChat{}, assessment.PipelineOptions{}),
		Aggregator: assessment.NewAggregator(fakeSentiment{}, assessment.AggregatorOptions{}),
		Sink:       f.sink,
		STT:        func() stt.STTClient { return f.stt },
	}, Options{AudioBufferSize: 1024})

	srv := httptest.NewServer(f.gw)
	t.Cleanup(srv.Close)
	f.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return f
}

func (f *fixture) dial() *events.Client {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	c, err := events.Dial(ctx, f.url, events.ClientOptions{})
	if err != nil {
		f.t.Fatalf("Dial() failed: %v", err)
	}
	f.t.Cleanup(func() { c.Close() })
	return c
}

// waitConnected blocks until the hub has n sessions.
func (f *fixture) waitConnected(n int) {
	f.t.Helper()
	deadline := time.Now().Add(waitFor)
	for f.gw.Hub().Count() != n {
		if time.Now().After(deadline) {
			f.t.Fatalf("Expected %d sessions, have %d", n, f.gw.Hub().Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func subscribe(c *events.Client, event string) <-chan events.Envelope {
	ch := make(chan events.Envelope, 10)
	c.On(event, func(env events.Envelope) { ch <- env })
	return ch
}

func next(t *testing.T, ch <-chan events.Envelope, event string) events.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(waitFor):
		t.Fatalf("Timed out waiting for %s", event)
		return events.Envelope{}
	}
}

func TestGateway_VoiceAssistant(t *testing.T) {
	f := newFixture(t)
	c := f.dial()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	env, err := c.RequestWithID(ctx, "req-42", events.VoiceAssistantInput, events.AssistantInput{
		Text:    "how do I reset",
		History: []events.HistoryMessage{{Role: "user", Content: "how do I reset"}},
		Context: "Reset article",
	})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	if env.RequestID != "req-42" {
		t.Errorf("Expected request id to be echoed, got %q", env.RequestID)
	}

	var resp events.AssistantResponse
	if err := env.Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Text != "1. Open settings. 2. Choose reset." {
		t.Errorf("Unexpected response %+v", resp)
	}

	f.answerer.mu.Lock()
	defer f.answerer.mu.Unlock()
	if f.answerer.article != "Reset article" || len(f.answerer.history) != 1 {
		t.Errorf("Unexpected completion input: article=%q history=%v", f.answerer.article, f.answerer.history)
	}
}

func TestGateway_VoiceAssistantFailure(t *testing.T) {
	f := newFixture(t)
	c := f.dial()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	for _, text := range []string{"fail", "   "} {
		env, err := c.Request(ctx, events.VoiceAssistantInput, events.AssistantInput{Text: text})
		if err != nil {
			t.Fatalf("Request() failed: %v", err)
		}
		var resp events.AssistantResponse
		env.Decode(&resp)
		if resp.Success || resp.Error != assistantFailure {
			t.Errorf("%q: expected failure response, got %+v", text, resp)
		}
	}
}

func TestGateway_AssessmentBroadcastAndSavesOnce(t *testing.T) {
	f := newFixture(t)
	examinee := f.dial()
	observer := f.dial()
	f.waitConnected(2)

	grammar := subscribe(observer, events.GrammarCorrectionResult)
	swot := subscribe(observer, events.SWOTAnalysisResult)
	sentiment := subscribe(observer, events.SentimentToFrontend)
	saved := subscribe(observer, events.DataSavedToDatabase)

	examinee.Emit(events.LexSentiment, []assessment.SentimentScore{{Positive: 0.9, Negative: 0.05, Neutral: 0.05}})
	examinee.Emit(events.LexAnswers, []string{"i has a cat", "fine", "ok", "yes"})
	examinee.Emit(events.LexQuestions, []string{"q1", "q2", "q3", "q4"})

	var g assessment.GrammarResult
	next(t, grammar, events.GrammarCorrectionResult).Decode(&g)
	if g.Total != 75 || g.Comment != "Grammar: Met Expectations" {
		t.Errorf("Unexpected grammar result %+v", g)
	}

	var swotText string
	next(t, swot, events.SWOTAnalysisResult).Decode(&swotText)
	if !strings.HasPrefix(swotText, "Strengths:") {
		t.Errorf("Unexpected SWOT text %q", swotText)
	}

	var s assessment.SentimentResult
	next(t, sentiment, events.SentimentToFrontend).Decode(&s)
	if s.FinalCSI < 1.0374 || s.FinalCSI > 1.0376 {
		t.Errorf("Expected final_csi 1.0375, got %v", s.FinalCSI)
	}

	var ack events.Saved
	next(t, saved, events.DataSavedToDatabase).Decode(&ack)
	if !ack.Success || ack.ID != 1 {
		t.Errorf("Unexpected save ack %+v", ack)
	}

	// Repeated questions for a completed session do not write again.
	examinee.Emit(events.LexQuestions, []string{"q1", "q2", "q3", "q4"})
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	if _, err := examinee.Request(ctx, events.VoiceAssistantInput, events.AssistantInput{Text: "sync"}); err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := f.sink.analysisWrites(); n != 1 {
		t.Errorf("Expected exactly one analysis write, got %d", n)
	}

	rec, err := f.sink.LatestAnalysis(context.Background())
	if err != nil || rec == nil {
		t.Fatalf("LatestAnalysis() = %v, %v", rec, err)
	}
	if !strings.Contains(rec.SentimentScore, "final_csi") {
		t.Errorf("Expected sentiment JSON to be stored, got %q", rec.SentimentScore)
	}
}

func TestGateway_AnswersWithQuestions(t *testing.T) {
	f := newFixture(t)
	c := f.dial()
	saved := subscribe(c, events.DataSavedToDatabase)

	c.Emit(events.LexAnswers, map[string][]string{
		"answers":   {"fine"},
		"questions": {"how are you"},
	})
	next(t, saved, events.DataSavedToDatabase)
}

func TestGateway_StreamingTranscription(t *testing.T) {
	f := newFixture(t)
	c := f.dial()
	transcripts := subscribe(c, events.ReceiveAudioText)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	c.Emit(events.StartStream, nil)
	select {
	case <-f.stt.started:
	case <-time.After(waitFor):
		t.Fatal("Stream was not started")
	}

	// Audio sent while the stream connects is held, then flushed.
	c.Emit(events.SendAudioData, events.AudioData{Audio: []byte{1, 2, 3, 4}})
	if _, err := c.Request(ctx, events.VoiceAssistantInput, events.AssistantInput{Text: "sync"}); err != nil {
		t.Fatal(err)
	}
	close(f.stt.release)

	deadline := time.Now().Add(waitFor)
	for !bytes.Equal(f.stt.sentBytes(), []byte{1, 2, 3, 4}) {
		if time.Now().After(deadline) {
			t.Fatalf("Expected buffered audio to be flushed, got %v", f.stt.sentBytes())
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.Emit(events.SendAudioData, events.AudioData{Audio: []byte{5, 6}})
	if _, err := c.Request(ctx, events.VoiceAssistantInput, events.AssistantInput{Text: "sync"}); err != nil {
		t.Fatal(err)
	}
	if got := f.stt.sentBytes(); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Expected live audio to be forwarded, got %v", got)
	}

	f.stt.out <- &stt.TranscriptionResult{Text: "reset my", IsFinal: false}
	f.stt.out <- &stt.TranscriptionResult{Text: "reset my password", IsFinal: true}
	f.stt.out <- &stt.TranscriptionResult{Text: "reset my password", IsFinal: true}
	f.stt.out <- &stt.TranscriptionResult{Text: "thanks", IsFinal: true}

	want := []events.Transcript{
		{Text: "reset my"},
		{Text: "reset my password", IsFinal: true},
		{Text: "thanks", IsFinal: true},
	}
	for _, w := range want {
		var got events.Transcript
		next(t, transcripts, events.ReceiveAudioText).Decode(&got)
		if got != w {
			t.Errorf("Expected %+v, got %+v", w, got)
		}
	}

	c.Emit(events.EndStream, nil)
	deadline = time.Now().Add(waitFor)
	for f.stt.IsActive() {
		if time.Now().After(deadline) {
			t.Fatal("Expected stream to be closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGateway_StreamingDisabled(t *testing.T) {
	f := newFixture(t)
	f.gw.deps.STT = nil
	c := f.dial()
	errs := subscribe(c, events.Error)

	c.Emit(events.StartStream, nil)
	var p events.ErrorPayload
	next(t, errs, events.Error).Decode(&p)
	if p.Event != events.StartStream {
		t.Errorf("Unexpected error payload %+v", p)
	}
}

func TestGateway_ChatbotSession(t *testing.T) {
	f := newFixture(t)
	c := f.dial()

	base := time.Now().Add(-time.Minute).UnixMilli()
	data := events.ChatbotSessionData{SessionID: "chat-1", Turns: []events.ChatTurn{
		{Role: "assistant", Text: "How can I help?", Timestamp: base},
		{Role: "user", Text: "my laptop is slow", Timestamp: base + 4000, TypingStartedAt: base + 1000},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	env, err := c.Request(ctx, events.ChatbotSessionComplete, data)
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	if env.Event != events.ChatbotScoreResult {
		t.Fatalf("Expected %s, got %s", events.ChatbotScoreResult, env.Event)
	}
	var res ChatbotResult
	env.Decode(&res)
	if res.ID != 1 || res.AverageResponseTime != 4 || res.CSIScore < 1.0374 || res.CSIScore > 1.0376 {
		t.Errorf("Unexpected chatbot result %+v", res)
	}

	rec, err := f.sink.LatestChatbotScore(ctx)
	if err != nil || rec == nil || rec.ID != 1 {
		t.Fatalf("LatestChatbotScore() = %+v, %v", rec, err)
	}

	// A session is scored once; the repeat is answered with an error.
	env, err = c.Request(ctx, events.ChatbotSessionComplete, data)
	if !errors.Is(err, events.ErrRemote) {
		t.Fatalf("Expected ErrRemote for repeated session, got %v", err)
	}
	var p events.ErrorPayload
	env.Decode(&p)
	if p.Event != events.ChatbotSessionComplete {
		t.Errorf("Unexpected error payload %+v", p)
	}
	if rec, _ := f.sink.LatestChatbotScore(ctx); rec == nil || rec.ID != 1 {
		t.Errorf("Expected no second row, latest is %+v", rec)
	}
}

func TestGateway_ChatbotSessionsOnOneConnection(t *testing.T) {
	f := newFixture(t)
	c := f.dial()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	base := time.Now().Add(-time.Minute).UnixMilli()
	for i, sessionID := range []string{"chat-1", "chat-2"} {
		env, err := c.Request(ctx, events.ChatbotSessionComplete, events.ChatbotSessionData{
			SessionID: sessionID,
			Turns: []events.ChatTurn{
				{Role: "assistant", Text: "How can I help?", Timestamp: base},
				{Role: "user", Text: "printer jammed", Timestamp: base + int64(i+2)*1000},
			},
		})
		if err != nil {
			t.Fatalf("%s: Request() failed: %v", sessionID, err)
		}
		var res ChatbotResult
		env.Decode(&res)
		if res.ID != int64(i+1) || res.AverageResponseTime != float64(i+2) {
			t.Errorf("%s: unexpected result %+v", sessionID, res)
		}
	}

	rec, err := f.sink.LatestChatbotScore(ctx)
	if err != nil || rec == nil || rec.ID != 2 {
		t.Errorf("Expected second simulation to be stored, latest is %+v, %v", rec, err)
	}
}

func TestGateway_SpeechAssessment(t *testing.T) {
	f := newFixture(t)
	c := f.dial()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	env, err := c.Request(ctx, events.SpeechAssessmentComplete, events.SpeechAssessmentData{
		Trials: []assessment.SpeechScore{
			{Accuracy: 80, Fluency: 70, Completeness: 100, Pronunciation: 75},
			{Accuracy: 90, Fluency: 80, Completeness: 90, Pronunciation: 85},
		},
	})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	var res SpeechResult
	env.Decode(&res)
	if res.ID != 1 || res.Accuracy != 85 || res.Fluency != 75 || res.Completeness != 95 || res.Pronunciation != 80 {
		t.Errorf("Unexpected speech result %+v", res)
	}
}

func TestGateway_SpeechAssessmentsOnOneConnection(t *testing.T) {
	f := newFixture(t)
	c := f.dial()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	trial := events.SpeechAssessmentData{Trials: []assessment.SpeechScore{{Accuracy: 80, Fluency: 70, Completeness: 90, Pronunciation: 75}}}
	for i, sessionID := range []string{"speech-1", "speech-2"} {
		trial.SessionID = sessionID
		env, err := c.Request(ctx, events.SpeechAssessmentComplete, trial)
		if err != nil {
			t.Fatalf("%s: Request() failed: %v", sessionID, err)
		}
		var res SpeechResult
		env.Decode(&res)
		if res.ID != int64(i+1) {
			t.Errorf("%s: expected row %d, got %+v", sessionID, i+1, res)
		}
	}

	trial.SessionID = "speech-1"
	if _, err := c.Request(ctx, events.SpeechAssessmentComplete, trial); !errors.Is(err, events.ErrRemote) {
		t.Errorf("Expected repeated session to be rejected, got %v", err)
	}
}

func TestGateway_SpeechFailureAnswersRequest(t *testing.T) {
	f := newFixture(t)
	c := f.dial()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	start := time.Now()
	_, err := c.Request(ctx, events.SpeechAssessmentComplete, events.SpeechAssessmentData{SessionID: "empty"})
	if !errors.Is(err, events.ErrRemote) {
		t.Fatalf("Expected ErrRemote, got %v", err)
	}
	if !strings.Contains(err.Error(), assessment.ErrNoTrials.Error()) {
		t.Errorf("Expected no-trials message, got %q", err)
	}
	if elapsed := time.Since(start); elapsed > waitFor/2 {
		t.Errorf("Expected a prompt failure, took %v", elapsed)
	}
}

// stuckSTT never finishes connecting and never answers IsActive.
type stuckSTT struct {
	started chan struct{}
	block   chan struct{}
	out     chan *stt.TranscriptionResult
	once    sync.Once
}

func (f *stuckSTT) Start(ctx context.Context) error {
	close(f.started)
	select {
	case <-f.block:
	case <-ctx.Done():
	}
	return ctx.Err()
}

func (f *stuckSTT) SendAudio([]byte) error { return stt.ErrNotActive }

func (f *stuckSTT) Transcripts() <-chan *stt.TranscriptionResult { return f.out }

func (f *stuckSTT) IsActive() bool {
	<-f.block
	return false
}

func (f *stuckSTT) Close() error {
	f.once.Do(func() { close(f.out) })
	return nil
}

func TestGateway_AudioWhileConnectingKeepsReadLoop(t *testing.T) {
	f := newFixture(t)
	stuck := &stuckSTT{
		started: make(chan struct{}),
		block:   make(chan struct{}),
		out:     make(chan *stt.TranscriptionResult),
	}
	t.Cleanup(func() { close(stuck.block) })
	f.gw.deps.STT = func() stt.STTClient { return stuck }
	c := f.dial()

	c.Emit(events.StartStream, nil)
	select {
	case <-stuck.started:
	case <-time.After(waitFor):
		t.Fatal("Stream was not started")
	}
	c.Emit(events.SendAudioData, events.AudioData{Audio: []byte{1, 2, 3, 4}})

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	env, err := c.Request(ctx, events.VoiceAssistantInput, events.AssistantInput{Text: "still there?"})
	if err != nil {
		t.Fatalf("Expected the session to keep serving events, got %v", err)
	}
	var resp events.AssistantResponse
	env.Decode(&resp)
	if !resp.Success {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestScoringKey(t *testing.T) {
	if got := scoringKey("chat-1", "req-1"); got != "chat-1" {
		t.Errorf("Expected session id to win, got %q", got)
	}
	if got := scoringKey("", "req-1"); got != "request:req-1" {
		t.Errorf("Expected request key, got %q", got)
	}
	if scoringKey("", "") == scoringKey("", "") {
		t.Error("Expected anonymous triggers to get distinct keys")
	}
}

func TestGateway_DisconnectRemovesSession(t *testing.T) {
	f := newFixture(t)
	c := f.dial()
	f.waitConnected(1)

	c.Close()
	f.waitConnected(0)
}

func TestGateway_ShutdownClosesSessions(t *testing.T) {
	f := newFixture(t)
	clients := []*events.Client{f.dial(), f.dial()}
	f.waitConnected(2)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	if err := f.gw.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if n := f.gw.Hub().Count(); n != 0 {
		t.Errorf("Expected no open sessions, have %d", n)
	}
	for i, c := range clients {
		select {
		case <-c.Done():
		case <-time.After(waitFor):
			t.Errorf("client %d: connection still open after shutdown", i)
		}
	}

	// Late connections are turned away.
	late := f.dial()
	select {
	case <-late.Done():
	case <-time.After(waitFor):
		t.Error("Expected a connection after shutdown to be closed")
	}
	f.waitConnected(0)
}

func TestSession_ReplyFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	g := New(Dependencies{}, Options{Logger: zerolog.New(&buf)})
	s := newSession(context.Background(), g, &events.Conn{})
	defer s.cancel()

	// A channel cannot be encoded, so the write fails before reaching the socket.
	s.reply(events.ChatbotScoreResult, "req-9", make(chan int))

	out := buf.String()
	if !strings.Contains(out, "failed to send response") || !strings.Contains(out, "req-9") {
		t.Errorf("Expected failed reply to be logged, got %q", out)
	}
}

func TestToTurns(t *testing.T) {
	turns := toTurns([]events.ChatTurn{
		{Role: "assistant", Text: "hi", Timestamp: 1000},
		{Role: "user", Text: "hello", Timestamp: 5000, TypingStartedAt: 2000},
	})
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if !turns[0].TypingStarted.IsZero() {
		t.Error("Expected no typing start for assistant turn")
	}
	if got := turns[1].At.Sub(turns[1].TypingStarted); got != 3*time.Second {
		t.Errorf("Expected 3s typing time, got %v", got)
	}
}
