package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/assessment"
	"github.com/lakshya820/VoicetoVoice/internal/audio"
	"github.com/lakshya820/VoicetoVoice/internal/events"
	"github.com/lakshya820/VoicetoVoice/internal/llm"
	"github.com/lakshya820/VoicetoVoice/internal/observability"
	"github.com/lakshya820/VoicetoVoice/internal/stt"
)

const assistantFailure = "Failed to process your request"

// Session holds the state of one event channel connection.
type Session struct {
	id   string
	gw   *Gateway
	conn *events.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	assessment *assessment.Session
	chatbots   map[string]*assessment.ChatbotSession
	speeches   map[string]*assessment.SpeechSession

	// Streaming transcription. Audio is held in preroll until the stream
	// is live.
	streamMu sync.Mutex
	stream   stt.STTClient
	live     bool // stream started; set by the start goroutine, never by asking the client
	preroll  *audio.RingBuffer
	vad      *audio.VADDetector

	metrics *observability.Metrics
	logger  zerolog.Logger
}

func newSession(ctx context.Context, g *Gateway, conn *events.Conn) *Session {
	id := fmt.Sprintf("conn-%s", uuid.New().String())
	correlationID := observability.NewCorrelationID()

	s := &Session{
		id:      id,
		gw:      g,
		conn:    conn,
		preroll: audio.NewRingBuffer(g.opts.AudioBufferSize),
		vad:     audio.NewVADDetector(g.opts.VAD),
		metrics: observability.NewSessionMetrics(id),
		logger: g.opts.Logger.With().
			Str("correlation_id", correlationID).
			Str("connection_id", id).
			Logger(),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.resetAssessment()
	s.chatbots = make(map[string]*assessment.ChatbotSession)
	s.speeches = make(map[string]*assessment.SpeechSession)
	return s
}

func (s *Session) resetAssessment() {
	s.assessment = assessment.NewSession(s.gw.deps.Pipeline, s.gw.deps.Sink, assessment.SessionOptions{
		Divisor: s.gw.opts.CSIDivisor,
		Logger:  s.logger,
	})
}

// run reads events until the connection fails or ctx is done.
func (s *Session) run() {
	s.metrics.RecordSessionStart()
	s.logger.Info().Msg("event channel connected")

	defer func() {
		s.cancel()
		s.stopStream()
		s.conn.Close()
		s.wg.Wait()
		s.metrics.RecordSessionEnd()
		s.logger.Info().Msg("event channel disconnected")
	}()

	go func() {
		<-s.ctx.Done()
		s.conn.Close()
	}()

	for {
		env, err := s.conn.Receive()
		if err != nil {
			var malformed *events.MalformedError
			if errors.As(err, &malformed) {
				s.logger.Warn().Err(err).Msg("malformed event")
				s.emitError("", "", "malformed event")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		s.metrics.RecordEvent(env.Event, "in")
		s.dispatch(env)
	}
}

func (s *Session) dispatch(env events.Envelope) {
	switch env.Event {
	case events.VoiceAssistantInput:
		s.handleAssistantInput(env)

	case events.StartStream:
		s.startStream(env)

	case events.SendAudioData:
		s.handleAudio(env)

	case events.EndStream:
		s.stopStream()

	case events.LexAnswers:
		s.handleAnswers(env)

	case events.LexQuestions:
		s.handleQuestions(env)

	case events.LexSentiment:
		s.handleSentiment(env)

	case events.ChatbotSessionComplete:
		s.handleChatbotComplete(env)

	case events.SpeechAssessmentComplete:
		s.handleSpeechComplete(env)

	default:
		s.logger.Debug().Str("event", env.Event).Msg("unknown event")
	}
}

// goRun runs fn off the read loop. The session waits for it before closing.
func (s *Session) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Session) emit(event, requestID string, data any) error {
	if err := s.conn.Emit(event, requestID, data); err != nil {
		return err
	}
	s.metrics.RecordEvent(event, "out")
	return nil
}

// emitError reports a failure handling event. A non-empty requestID routes
// the error to the caller waiting on that request.
func (s *Session) emitError(event, requestID, message string) {
	if err := s.emit(events.Error, requestID, events.ErrorPayload{Event: event, Message: message}); err != nil {
		s.logger.Warn().Err(err).Str("event", event).Str("request_id", requestID).Msg("failed to send error event")
	}
}

// reply sends the response to a request and logs a failed write.
func (s *Session) reply(event, requestID string, data any) {
	if err := s.emit(event, requestID, data); err != nil {
		s.logger.Warn().Err(err).Str("event", event).Str("request_id", requestID).Msg("failed to send response")
	}
}

// Voice assistant

func (s *Session) handleAssistantInput(env events.Envelope) {
	var in events.AssistantInput
	if err := env.Decode(&in); err != nil || strings.TrimSpace(in.Text) == "" {
		s.logger.Warn().Err(err).Msg("invalid voice assistant input")
		s.reply(events.VoiceAssistantResponse, env.RequestID, events.AssistantResponse{Success: false, Error: assistantFailure})
		return
	}

	history := make([]llm.Message, 0, len(in.History))
	for _, m := range in.History {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	s.goRun(func() {
		s.logger.Info().Str("request_id", env.RequestID).Str("text", in.Text).Msg("voice assistant input")

		s.metrics.RecordProviderStart("assistant")
		text, err := s.gw.deps.Assistant.Answer(s.ctx, in.Context, history, in.Text)
		s.metrics.RecordProviderEnd("assistant", err == nil)

		resp := events.AssistantResponse{Success: true, Text: text}
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", env.RequestID).Msg("voice assistant completion failed")
			s.metrics.RecordError("completion_error", "assistant")
			resp = events.AssistantResponse{Success: false, Error: assistantFailure}
		}
		s.reply(events.VoiceAssistantResponse, env.RequestID, resp)
	})
}

// Streaming transcription

func (s *Session) startStream(env events.Envelope) {
	if s.gw.deps.STT == nil {
		s.emitError(events.StartStream, env.RequestID, "transcription is not configured")
		return
	}

	s.streamMu.Lock()
	if s.stream != nil {
		s.streamMu.Unlock()
		return
	}
	client := s.gw.deps.STT()
	s.stream = client
	s.live = false
	s.preroll.Clear()
	s.vad.Reset()
	s.streamMu.Unlock()

	s.goRun(func() {
		if err := client.Start(s.ctx); err != nil {
			s.logger.Error().Err(err).Msg("failed to start transcription stream")
			s.metrics.RecordError("stt_start_error", "stt")
			s.emitError(events.StartStream, env.RequestID, "failed to start transcription")
			s.dropStream(client)
			return
		}
		s.logger.Info().Msg("transcription stream started")
		s.flushPreroll(client)
		s.processTranscriptions(client)
	})
}

// processTranscriptions forwards results until the stream is closed.
func (s *Session) processTranscriptions(client stt.STTClient) {
	var lastFinal string
	for result := range client.Transcripts() {
		if result.Text == "" {
			continue
		}
		// Deepgram may repeat a final result.
		if result.IsFinal {
			if result.Text == lastFinal {
				continue
			}
			lastFinal = result.Text
		}
		if err := s.emit(events.ReceiveAudioText, "", events.Transcript{Text: result.Text, IsFinal: result.IsFinal}); err != nil {
			s.logger.Debug().Err(err).Msg("failed to send transcript")
		}
	}
}

func (s *Session) handleAudio(env events.Envelope) {
	var data events.AudioData
	if err := env.Decode(&data); err != nil {
		s.logger.Warn().Err(err).Msg("invalid audio payload")
		return
	}
	if len(data.Audio) == 0 {
		return
	}
	s.metrics.RecordAudioBytes("in", int64(len(data.Audio)))

	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if s.stream == nil {
		s.logger.Debug().Msg("audio received without an open stream")
		return
	}

	for _, ev := range s.vad.Feed(data.Audio) {
		s.logger.Debug().Str("vad", ev.String()).Msg("voice activity")
	}

	if !s.live {
		if n := s.preroll.Write(data.Audio); n < len(data.Audio) {
			s.logger.Debug().Int("dropped", len(data.Audio)-n).Msg("preroll buffer overflow")
		}
		return
	}

	s.sendPrerollLocked(s.stream)
	if err := s.stream.SendAudio(data.Audio); err != nil {
		s.logger.Error().Err(err).Msg("error sending audio to transcriber")
		s.metrics.RecordError("stt_send_error", "stt")
	}
}

// flushPreroll marks the stream live and sends what was buffered while it
// connected.
func (s *Session) flushPreroll(client stt.STTClient) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.stream == client {
		s.live = true
		s.sendPrerollLocked(client)
	}
}

func (s *Session) sendPrerollLocked(client stt.STTClient) {
	if s.preroll.IsEmpty() {
		return
	}
	if err := client.SendAudio(s.preroll.Drain()); err != nil {
		s.logger.Error().Err(err).Msg("error sending buffered audio to transcriber")
		s.metrics.RecordError("stt_send_error", "stt")
	}
}

func (s *Session) dropStream(client stt.STTClient) {
	s.streamMu.Lock()
	if s.stream == client {
		s.stream = nil
		s.live = false
		s.preroll.Clear()
	}
	s.streamMu.Unlock()
	client.Close()
}

func (s *Session) stopStream() {
	s.streamMu.Lock()
	client := s.stream
	s.stream = nil
	s.live = false
	s.preroll.Clear()
	s.streamMu.Unlock()

	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		s.logger.Error().Err(err).Msg("error closing transcription stream")
	}
	s.logger.Info().Msg("transcription stream closed")
}

// Interview assessment

// answersPayload accepts either a bare answer list or answers sent together
// with their questions.
type answersPayload struct {
	Answers   []string `json:"answers"`
	Questions []string `json:"questions"`
}

func (s *Session) handleAnswers(env events.Envelope) {
	var answers []string
	var questions []string
	if err := env.Decode(&answers); err != nil {
		var p answersPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Answers == nil {
			s.emitError(env.Event, env.RequestID, "answers must be a list of strings")
			return
		}
		answers, questions = p.Answers, p.Questions
	}

	s.mu.Lock()
	if s.assessment.Completed() {
		s.resetAssessment()
	}
	sess := s.assessment
	s.mu.Unlock()

	ready := sess.SetAnswers(answers)
	if questions != nil {
		ready = sess.SetQuestions(questions)
	}
	if ready {
		s.runAssessment(sess)
	}
}

func (s *Session) handleQuestions(env events.Envelope) {
	var questions []string
	if err := env.Decode(&questions); err != nil {
		s.emitError(env.Event, env.RequestID, "questions must be a list of strings")
		return
	}

	s.mu.Lock()
	sess := s.assessment
	s.mu.Unlock()

	if sess.SetQuestions(questions) {
		s.runAssessment(sess)
	}
}

func (s *Session) handleSentiment(env events.Envelope) {
	var scores []assessment.SentimentScore
	if err := env.Decode(&scores); err != nil {
		s.emitError(env.Event, env.RequestID, "sentiment must be a list of scores")
		return
	}

	s.mu.Lock()
	sess := s.assessment
	s.mu.Unlock()
	sess.SetSentiment(scores)
}

func (s *Session) runAssessment(sess *assessment.Session) {
	s.goRun(func() {
		out, err := sess.Run(s.ctx)
		if err != nil {
			if !errors.Is(err, assessment.ErrAlreadyCompleted) {
				s.logger.Error().Err(err).Msg("assessment failed")
			}
			return
		}

		for _, stageErr := range out.Result.Errors {
			s.emitError(events.LexAnswers, "", stageErr.Error())
		}

		hub := s.gw.hub
		hub.Broadcast(events.GrammarCorrectionResult, out.Result.Grammar)
		hub.Broadcast(events.SWOTAnalysisResult, out.Result.SWOTText)
		hub.Broadcast(events.SentimentToFrontend, out.Sentiment)

		if out.SaveErr != nil {
			s.metrics.RecordError("persistence_error", "assessment")
			s.emitError(events.DataSavedToDatabase, "", "failed to save results")
			return
		}
		hub.Broadcast(events.DataSavedToDatabase, events.Saved{Success: true, ID: out.RecordID})
	})
}

// Simulated chat and speech trials

// ChatbotResult is the payload of chatbotScoreResult.
type ChatbotResult struct {
	assessment.ChatbotScore
	ID int64 `json:"id"`
}

// SpeechResult is the payload of speechScoreResult.
type SpeechResult struct {
	assessment.SpeechScore
	ID int64 `json:"id"`
}

// scoringKey identifies a chat or speech session. Without a session id the
// request id is used, and without either every trigger is its own session.
func scoringKey(sessionID, requestID string) string {
	switch {
	case sessionID != "":
		return sessionID
	case requestID != "":
		return "request:" + requestID
	default:
		return "anon:" + uuid.NewString()
	}
}

func (s *Session) chatbotSession(key string) *assessment.ChatbotSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chatbots[key]
	if !ok {
		cs = assessment.NewChatbotSession(s.gw.deps.Aggregator, s.gw.deps.Sink)
		s.chatbots[key] = cs
	}
	return cs
}

func (s *Session) speechSession(key string) *assessment.SpeechSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.speeches[key]
	if !ok {
		ss = assessment.NewSpeechSession(s.gw.deps.Sink)
		s.speeches[key] = ss
	}
	return ss
}

func (s *Session) handleChatbotComplete(env events.Envelope) {
	var data events.ChatbotSessionData
	if err := env.Decode(&data); err != nil {
		s.emitError(env.Event, env.RequestID, "invalid chatbot session")
		return
	}
	turns := toTurns(data.Turns)
	chat := s.chatbotSession(scoringKey(data.SessionID, env.RequestID))

	s.goRun(func() {
		score, id, err := chat.Complete(s.ctx, turns, time.Now())
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", data.SessionID).Msg("chatbot scoring failed")
			s.emitError(env.Event, env.RequestID, err.Error())
			return
		}
		s.reply(events.ChatbotScoreResult, env.RequestID, ChatbotResult{ChatbotScore: score, ID: id})
	})
}

func (s *Session) handleSpeechComplete(env events.Envelope) {
	var data events.SpeechAssessmentData
	if err := env.Decode(&data); err != nil {
		s.emitError(env.Event, env.RequestID, "invalid speech assessment")
		return
	}
	speech := s.speechSession(scoringKey(data.SessionID, env.RequestID))

	s.goRun(func() {
		score, id, err := speech.Complete(s.ctx, data.Trials)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", data.SessionID).Msg("speech scoring failed")
			s.emitError(env.Event, env.RequestID, err.Error())
			return
		}
		s.reply(events.SpeechScoreResult, env.RequestID, SpeechResult{SpeechScore: score, ID: id})
	})
}

// toTurns converts wire turns with millisecond timestamps.
func toTurns(in []events.ChatTurn) []assessment.Turn {
	turns := make([]assessment.Turn, 0, len(in))
	for _, t := range in {
		turn := assessment.Turn{
			Role: t.Role,
			Text: t.Text,
			At:   time.UnixMilli(t.Timestamp),
		}
		if t.TypingStartedAt > 0 {
			turn.TypingStarted = time.UnixMilli(t.TypingStartedAt)
		}
		turns = append(turns, turn)
	}
	return turns
}
