package assistant

import (
	"regexp"
	"strconv"
	"strings"
)

// IntentKind tags a control intent.
type IntentKind int

const (
	IntentNone IntentKind = iota // Not a command: treat as a new query
	IntentStop
	IntentContinue
	IntentRepeat
)

func (k IntentKind) String() string {
	switch k {
	case IntentStop:
		return "stop"
	case IntentContinue:
		return "continue"
	case IntentRepeat:
		return "repeat"
	default:
		return "none"
	}
}

// Intent is a voice command interpreted against the active playback.
// For IntentRepeat, Current means "the section now playing"; otherwise
// Section is the zero-based target.
type Intent struct {
	Kind    IntentKind
	Section int
	Current bool
}

var (
	stopPattern     = regexp.MustCompile(`\b(stop|pause|wait|hold on)\b`)
	continuePattern = regexp.MustCompile(`\b(go on|continue|resume|keep going)\b`)
	repeatPattern   = regexp.MustCompile(`\b(repeat|say.+again|go.+back)\b`)
	sectionRef      = regexp.MustCompile(`\b(step|section|point|number)\s+(\d+)\b`)

	missedPhrases   = []string{"couldn't get", "didn't understand", "missed that", "say that again"}
	previousPhrases = []string{"last step", "previous step"}
)

// ClassifyIntent interprets an utterance heard while the assistant is in
// state. Utterances are only commands while Speaking or Paused; in any other
// state every utterance is a new query.
func ClassifyIntent(text string, state State, current int) Intent {
	if state != StateSpeaking && state != StatePaused {
		return Intent{Kind: IntentNone}
	}

	text = strings.ToLower(text)

	switch {
	case stopPattern.MatchString(text):
		return Intent{Kind: IntentStop}

	case continuePattern.MatchString(text):
		return Intent{Kind: IntentContinue}

	case repeatPattern.MatchString(text):
		if m := sectionRef.FindStringSubmatch(text); m != nil {
			// Spoken references are 1-based.
			if n, err := strconv.Atoi(m[2]); err == nil && n >= 1 {
				return Intent{Kind: IntentRepeat, Section: n - 1}
			}
			return repeatCurrent()
		}
		if containsAny(text, previousPhrases) {
			return Intent{Kind: IntentRepeat, Section: max(current-1, 0)}
		}
		return repeatCurrent()

	case containsAny(text, missedPhrases):
		return repeatCurrent()
	}

	return Intent{Kind: IntentNone}
}

func repeatCurrent() Intent {
	return Intent{Kind: IntentRepeat, Current: true}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
