package tts

import "context"

// OutputFormat is the audio format requested from the speech service:
// 16kHz mono MP3 at 32 kbit/s.
const OutputFormat = "audio-16khz-32kbitrate-mono-mp3"

// TTSClient defines the interface for a Text-to-Speech client
type TTSClient interface {
	// Synthesize converts text to one complete audio clip
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// IsActive returns whether a synthesis request is in flight
	IsActive() bool
}
