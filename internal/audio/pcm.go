package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Browser microphone audio arrives as 16kHz mono 16-bit little-endian PCM.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
)

// SynthesisBitrate is the bitrate of synthesized MP3 clips
// (audio-16khz-32kbitrate-mono-mp3).
const SynthesisBitrate = 32000

// BytesToSamples decodes little-endian PCM16. A trailing odd byte is ignored.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// SamplesToBytes encodes samples as little-endian PCM16.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// PCMDuration returns the playing time of n bytes of microphone PCM.
func PCMDuration(n int) time.Duration {
	bytesPerSecond := SampleRate * Channels * BytesPerSample
	return time.Duration(float64(n) / float64(bytesPerSecond) * float64(time.Second))
}

// MP3Duration estimates the playing time of a constant-bitrate MP3 clip.
func MP3Duration(n int, bitrate int) time.Duration {
	if bitrate <= 0 {
		bitrate = SynthesisBitrate
	}
	return time.Duration(float64(n*8) / float64(bitrate) * float64(time.Second))
}
