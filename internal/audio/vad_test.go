package audio

import (
	"testing"
)

func testVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       320,
	}
}

func constantFrame(n int, amplitude int16) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return samples
}

func TestVADDetector_ProcessFrame_Speech(t *testing.T) {
	vad := NewVADDetector(testVADConfig())
	samples := constantFrame(320, 5000)

	for i := 0; i < 5; i++ {
		isSpeaking, speechStarted, _ := vad.ProcessFrame(samples)
		if !isSpeaking {
			t.Errorf("Expected speech detection on frame %d", i)
		}
		if i == 0 && !speechStarted {
			t.Error("Expected speech to start on first frame")
		}
		if i > 0 && speechStarted {
			t.Errorf("Expected speech start only once, got it on frame %d", i)
		}
	}
}

func TestVADDetector_ProcessFrame_Silence(t *testing.T) {
	vad := NewVADDetector(testVADConfig())
	samples := constantFrame(320, 10)

	for i := 0; i < 15; i++ {
		isSpeaking, _, _ := vad.ProcessFrame(samples)
		if isSpeaking {
			t.Errorf("Expected silence on frame %d", i)
		}
	}
}

func TestVADDetector_ProcessFrame_SpeechToSilence(t *testing.T) {
	vad := NewVADDetector(testVADConfig())
	high := constantFrame(320, 5000)
	low := constantFrame(320, 10)

	for i := 0; i < 5; i++ {
		vad.ProcessFrame(high)
	}

	for i := 0; i < 9; i++ {
		isSpeaking, _, ended := vad.ProcessFrame(low)
		if !isSpeaking || ended {
			t.Fatalf("Expected speech to continue through silence frame %d", i)
		}
	}

	isSpeaking, _, ended := vad.ProcessFrame(low)
	if isSpeaking || !ended {
		t.Error("Expected speech to end after 10 silence frames")
	}
}

func TestVADDetector_FeedSplitsFrames(t *testing.T) {
	vad := NewVADDetector(testVADConfig())
	speech := SamplesToBytes(constantFrame(320, 5000))

	// Half a frame is held back until the rest arrives.
	if events := vad.Feed(speech[:320]); len(events) != 0 {
		t.Fatalf("Expected no events for a partial frame, got %v", events)
	}
	events := vad.Feed(speech[320:])
	if len(events) != 1 || events[0] != SpeechStarted {
		t.Fatalf("Expected [SpeechStarted], got %v", events)
	}

	silence := SamplesToBytes(constantFrame(320*10, 0))
	events = vad.Feed(silence)
	if len(events) != 1 || events[0] != SpeechEnded {
		t.Fatalf("Expected [SpeechEnded], got %v", events)
	}
}

func TestVADDetector_Threshold(t *testing.T) {
	lowThreshold := NewVADDetector(&VADConfig{EnergyThreshold: 100.0, SilenceFrames: 10, FrameSize: 320})
	highThreshold := NewVADDetector(&VADConfig{EnergyThreshold: 5000.0, SilenceFrames: 10, FrameSize: 320})

	samples := constantFrame(320, 1000)

	if isSpeaking, _, _ := lowThreshold.ProcessFrame(samples); !isSpeaking {
		t.Error("Expected low threshold to detect speech")
	}
	if isSpeaking, _, _ := highThreshold.ProcessFrame(samples); isSpeaking {
		t.Error("Expected high threshold to not detect speech")
	}
}

func TestVADDetector_Reset(t *testing.T) {
	vad := NewVADDetector(testVADConfig())
	vad.ProcessFrame(constantFrame(320, 5000))

	if !vad.IsSpeaking() {
		t.Fatal("Expected speech to be detected")
	}

	vad.Reset()
	if vad.IsSpeaking() {
		t.Error("Expected speech state to be false after reset")
	}
}

func TestDefaultVADConfig(t *testing.T) {
	config := DefaultVADConfig()
	if config.EnergyThreshold != 500.0 {
		t.Errorf("Expected default EnergyThreshold 500.0, got %f", config.EnergyThreshold)
	}
	if config.SilenceFrames != 10 {
		t.Errorf("Expected default SilenceFrames 10, got %d", config.SilenceFrames)
	}
	if config.FrameSize != 320 {
		t.Errorf("Expected default FrameSize 320, got %d", config.FrameSize)
	}
}

func TestDetectSilence(t *testing.T) {
	if DetectSilence([]int16{5000, 5000, 5000}, 1000.0) {
		t.Error("Expected high energy samples to not be silence")
	}
	if !DetectSilence([]int16{10, 10, 10}, 1000.0) {
		t.Error("Expected low energy samples to be silence")
	}
}
