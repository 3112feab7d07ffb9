package detect

import "testing"

func TestLooksLikeQuestion(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Should I proceed?", true},
		{"Done.", false},
		{"please confirm before continuing", true},
		{"", false},
		{"   \n\t\n", false},

		// phrase set, case-insensitive, last line only
		{"Proceed? (y/n)", true},
		{"Overwrite config (YES/NO)", true},
		{"Do you want me to push", true},
		{"Would you like a summary", true},
		{"Shall I continue", true},
		{"Can I delete the branch", true},
		{"May I run the migration", true},
		{"Which option fits best", true},
		{"What would you prefer", true},
		{"Waiting for you to approve the plan", true},
		{"This needs permission to write", true},
		{"Should I refactor?\n\nI updated the files.", false},

		// trailing question mark on the last non-blank line
		{"Updated three files.\nAnything else?  \n\n", true},
		{"Is this right? I think so.", false},

		// AskUserQuestion marker anywhere in the text
		{"Calling AskUserQuestion now\nWaiting.", true},
	}

	for _, tt := range tests {
		if got := LooksLikeQuestion(tt.text); got != tt.want {
			t.Errorf("LooksLikeQuestion(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestLastNonBlankLine(t *testing.T) {
	if got := lastNonBlankLine("a\n  b  \n \n"); got != "b" {
		t.Errorf("lastNonBlankLine = %q, want %q", got, "b")
	}
	if got := lastNonBlankLine(""); got != "" {
		t.Errorf("lastNonBlankLine(\"\") = %q", got)
	}
}
