package audio

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Number of consecutive silence frames to mark as end of speech
	FrameSize       int     // Number of samples per frame
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,  // 200ms of silence (10 frames * 20ms)
		FrameSize:       320, // 20ms at 16kHz
	}
}

// VADEvent marks a speech boundary in the audio stream.
type VADEvent int

const (
	SpeechStarted VADEvent = iota + 1
	SpeechEnded
)

func (e VADEvent) String() string {
	switch e {
	case SpeechStarted:
		return "speech_started"
	case SpeechEnded:
		return "speech_ended"
	default:
		return "unknown"
	}
}

// VADDetector performs Voice Activity Detection on a PCM16 byte stream.
// It is used to detect barge-in while the assistant is talking.
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
	partial        []byte // bytes of an incomplete frame
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	if config.FrameSize <= 0 {
		config.FrameSize = DefaultVADConfig().FrameSize
	}
	return &VADDetector{config: config}
}

// Feed consumes raw PCM16 bytes of any length and returns the speech
// boundaries found in the complete frames.
func (v *VADDetector) Feed(data []byte) []VADEvent {
	frameBytes := v.config.FrameSize * BytesPerSample
	buf := append(v.partial, data...)

	var events []VADEvent
	for len(buf) >= frameBytes {
		_, started, ended := v.ProcessFrame(BytesToSamples(buf[:frameBytes]))
		if started {
			events = append(events, SpeechStarted)
		}
		if ended {
			events = append(events, SpeechEnded)
		}
		buf = buf[frameBytes:]
	}
	v.partial = append(v.partial[:0:0], buf...)

	return events
}

// ProcessFrame processes an audio frame and returns whether speech is detected
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
	v.partial = nil
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// DetectSilence detects if audio samples represent silence
func DetectSilence(samples []int16, threshold float64) bool {
	return CalculateRMS(samples) < threshold
}
