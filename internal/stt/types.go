package stt

import "context"

// Audio format the gateway forwards: 16kHz mono signed 16-bit PCM.
const (
	Encoding   = "linear16"
	SampleRate = 16000
	Channels   = 1
)

// TranscriptionResult represents a transcription result from Deepgram
type TranscriptionResult struct {
	// Text is the transcribed text
	Text string

	// IsFinal indicates if this is a final transcription (true) or interim (false)
	IsFinal bool

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64

	// StartTime is the start time of the utterance in seconds
	StartTime float64

	// Duration is the duration of the utterance in seconds
	Duration float64
}

// STTClient is the interface for streaming speech-to-text clients
type STTClient interface {
	// Start opens the transcription stream
	Start(ctx context.Context) error

	// SendAudio sends an audio chunk to the STT service
	SendAudio(audioData []byte) error

	// Transcripts returns the channel of transcription results. It is
	// closed by Close.
	Transcripts() <-chan *TranscriptionResult

	// IsActive returns whether the stream is open
	IsActive() bool

	// Close finishes the stream and releases resources
	Close() error
}

// Factory creates a streaming client for one connection.
type Factory func() STTClient
