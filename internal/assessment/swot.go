package assessment

import "strings"

// SWOT is the parsed four-part analysis.
type SWOT struct {
	Strengths     string `json:"Strengths"`
	Weaknesses    string `json:"Weaknesses"`
	Opportunities string `json:"Opportunities"`
	Threats       string `json:"Threats"`
}

var swotLabels = []string{"Strengths:", "Weaknesses:", "Opportunities:", "Threats:"}

// ParseSWOT splits text on the literal labels, in order. A label that is
// missing, or that only appears before an earlier label, leaves its part
// empty.
func ParseSWOT(text string) SWOT {
	parts := make([]string, len(swotLabels))

	pos := 0
	for i, label := range swotLabels {
		idx := strings.Index(text[pos:], label)
		if idx < 0 {
			continue
		}
		start := pos + idx + len(label)
		end := len(text)
		if next := nextLabel(text, start); next >= 0 {
			end = next
		}
		parts[i] = strings.TrimSpace(text[start:end])
		pos = start
	}

	return SWOT{
		Strengths:     parts[0],
		Weaknesses:    parts[1],
		Opportunities: parts[2],
		Threats:       parts[3],
	}
}

// nextLabel returns the offset of the first label at or after from, or -1.
func nextLabel(text string, from int) int {
	best := -1
	for _, label := range swotLabels {
		if idx := strings.Index(text[from:], label); idx >= 0 && (best < 0 || from+idx < best) {
			best = from + idx
		}
	}
	return best
}
