package assessment

import (
	"errors"
	"math"
)

// ErrNoTrials is returned when there is nothing to average.
var ErrNoTrials = errors.New("no speech trials")

// SpeechScore is one pronunciation assessment on a 0-100 scale. A trial and
// the averaged result share this shape.
type SpeechScore struct {
	Accuracy      float64 `json:"accuracyScore"`
	Fluency       float64 `json:"fluencyScore"`
	Completeness  float64 `json:"completenessScore"`
	Pronunciation float64 `json:"pronunciationScore"`
}

// AverageSpeechScores averages the trials of one assessment, rounded to two
// decimals.
func AverageSpeechScores(trials []SpeechScore) (SpeechScore, error) {
	if len(trials) == 0 {
		return SpeechScore{}, ErrNoTrials
	}

	var sum SpeechScore
	for _, t := range trials {
		sum.Accuracy += t.Accuracy
		sum.Fluency += t.Fluency
		sum.Completeness += t.Completeness
		sum.Pronunciation += t.Pronunciation
	}

	n := float64(len(trials))
	return SpeechScore{
		Accuracy:      round2(sum.Accuracy / n),
		Fluency:       round2(sum.Fluency / n),
		Completeness:  round2(sum.Completeness / n),
		Pronunciation: round2(sum.Pronunciation / n),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
