package assistant

import (
	"regexp"
	"strings"
)

// Section is one independently speakable chunk of an assistant reply.
type Section struct {
	Index   int
	Content string
}

// sentencesPerSection is how many sentences are grouped into one section
// when a reply has no numbered steps.
const sentencesPerSection = 2

var (
	stepMarker = regexp.MustCompile(`\b\d+\.\s+`)
	sentence   = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// SplitSections segments text into ordered sections. Numbered steps
// ("1. ", "2. ") win; otherwise sentences are grouped in pairs. Text that
// yields no sections is returned whole as section 0.
func SplitSections(text string) []Section {
	sections := splitOnSteps(text)
	if sections == nil {
		sections = splitOnSentences(text)
	}
	if len(sections) == 0 {
		return []Section{{Index: 0, Content: text}}
	}
	return sections
}

// splitOnSteps returns nil when text has no step markers.
func splitOnSteps(text string) []Section {
	markers := stepMarker.FindAllStringIndex(text, -1)
	if len(markers) == 0 {
		return nil
	}

	var sections []Section
	add := func(chunk string) {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			sections = append(sections, Section{Index: len(sections), Content: chunk})
		}
	}

	// Text before the first marker is its own section.
	add(text[:markers[0][0]])
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		add(text[m[0]:end])
	}
	return sections
}

func splitOnSentences(text string) []Section {
	spans := sentence.FindAllStringIndex(text, -1)

	// Each sentence absorbs any gap before it so no characters are lost.
	var sentences []string
	prev := 0
	for _, s := range spans {
		sentences = append(sentences, text[prev:s[1]])
		prev = s[1]
	}
	if tail := text[prev:]; strings.TrimSpace(tail) != "" {
		sentences = append(sentences, tail)
	}

	var sections []Section
	var group strings.Builder
	count := 0
	flush := func() {
		if chunk := strings.TrimSpace(group.String()); chunk != "" {
			sections = append(sections, Section{Index: len(sections), Content: chunk})
		}
		group.Reset()
		count = 0
	}

	for _, s := range sentences {
		group.WriteString(s)
		count++
		if count >= sentencesPerSection {
			flush()
		}
	}
	flush()

	return sections
}
