// Package events defines the JSON event channel spoken between the browser
// or terminal client and the server over a websocket.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/lakshya820/VoicetoVoice/internal/assessment"
)

// Event names.
const (
	// Voice assistant
	VoiceAssistantInput    = "voice_assistant_input"
	VoiceAssistantResponse = "voice_assistant_response"

	// Streaming transcription
	StartStream      = "startGoogleCloudStream"
	EndStream        = "endGoogleCloudStream"
	SendAudioData    = "send_audio_data"
	ReceiveAudioText = "receive_audio_text"

	// Interview assessment
	LexAnswers              = "lexanswers"
	LexQuestions            = "lexquestions"
	LexSentiment            = "lexsentiment"
	GrammarCorrectionResult = "grammarCorrectionResult"
	SWOTAnalysisResult      = "swotAnalysisResult"
	SentimentToFrontend     = "lexsentimenttofrontend"
	DataSavedToDatabase     = "dataSavedToDatabase"

	// Simulated chat and speech trials
	ChatbotSessionComplete   = "chatbot_session_complete"
	ChatbotScoreResult       = "chatbotScoreResult"
	SpeechAssessmentComplete = "speech_assessment_complete"
	SpeechScoreResult        = "speechScoreResult"

	Error = "error"
)

// Envelope is one message on the channel. RequestID correlates a response
// with the request that caused it.
type Envelope struct {
	Event     string          `json:"event"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data into an envelope.
func NewEnvelope(event, requestID string, data any) (Envelope, error) {
	env := Envelope{Event: event, RequestID: requestID}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return env, fmt.Errorf("encode %s payload: %w", event, err)
	}
	env.Data = raw
	return env, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}

// HistoryMessage is one prior turn sent with a voice assistant query.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AssistantInput is the payload of voice_assistant_input.
type AssistantInput struct {
	Text    string           `json:"text"`
	History []HistoryMessage `json:"history"`
	Context string           `json:"context"`
}

// AssistantResponse is the payload of voice_assistant_response.
type AssistantResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AudioData is the payload of send_audio_data: 16kHz mono PCM16, base64
// in JSON.
type AudioData struct {
	Audio []byte `json:"audio"`
}

// Transcript is the payload of receive_audio_text.
type Transcript struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// Saved acknowledges a persistence write.
type Saved struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

// ErrorPayload reports a failure while handling an event.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// ChatTurn is one message of a simulated chat. Timestamps are unix
// milliseconds. TypingStartedAt is set on user turns only.
type ChatTurn struct {
	Role            string `json:"role"`
	Text            string `json:"text"`
	Timestamp       int64  `json:"timestamp"`
	TypingStartedAt int64  `json:"typingStartedAt,omitempty"`
}

// ChatbotSessionData is the payload of chatbot_session_complete. A session
// is scored once per SessionID.
type ChatbotSessionData struct {
	SessionID string     `json:"sessionId,omitempty"`
	Turns     []ChatTurn `json:"turns"`
}

// SpeechAssessmentData is the payload of speech_assessment_complete. A
// session is scored once per SessionID.
type SpeechAssessmentData struct {
	SessionID string                   `json:"sessionId,omitempty"`
	Trials    []assessment.SpeechScore `json:"trials"`
}
