package detect

import "strings"

// questionPhrases mark a last line that asks the user something.
var questionPhrases = []string{
	"(y/n)",
	"(yes/no)",
	"do you want",
	"would you like",
	"should i",
	"shall i",
	"can i",
	"may i",
	"please confirm",
	"proceed?",
	"which option",
	"what would you",
	"approve",
	"permission",
}

// askUserMarker appears when the assistant invoked the AskUserQuestion tool.
const askUserMarker = "askuserquestion"

// LooksLikeQuestion reports whether text appears to wait on a yes/no or clarifying
// answer. Only the last non-blank line is checked for phrases and a trailing '?';
// the AskUserQuestion marker may appear anywhere. Matching is case-insensitive.
func LooksLikeQuestion(text string) bool {
	last := lastNonBlankLine(text)
	if last == "" {
		return false
	}

	lastLower := strings.ToLower(last)
	for _, phrase := range questionPhrases {
		if strings.Contains(lastLower, phrase) {
			return true
		}
	}

	if strings.HasSuffix(last, "?") {
		return true
	}

	return strings.Contains(strings.ToLower(text), askUserMarker)
}

// lastNonBlankLine returns the last line of text with content, trimmed.
func lastNonBlankLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
