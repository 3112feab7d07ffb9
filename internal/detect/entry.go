// Package detect decodes Claude Code session log lines and classifies assistant text.
package detect

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Kind is the record type of one session log line.
type Kind int

const (
	KindOther Kind = iota
	KindUser
	KindAssistant
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAssistant:
		return "assistant"
	case KindSystem:
		return "system"
	default:
		return "other"
	}
}

// SubtypeTurnDuration marks the end of one assistant turn.
const SubtypeTurnDuration = "turn_duration"

var (
	// ErrEmptyLine is returned for blank lines.
	ErrEmptyLine = errors.New("empty line")
	// ErrNotEntry is returned when a line is not a JSON object with a string "type".
	ErrNotEntry = errors.New("not a session entry")
)

// Entry is the part of a session log record needed for state inference.
type Entry struct {
	Kind       Kind
	Subtype    string // only meaningful for KindSystem
	Text       string // plain text of assistant content, may be empty
	HasToolUse bool   // assistant content contains a tool_use block
	RawType    string // the "type" field as written
}

// IsTurnEnd reports whether the entry is the system record closing a turn.
func (e Entry) IsTurnEnd() bool {
	return e.Kind == KindSystem && e.Subtype == SubtypeTurnDuration
}

// rawEntry mirrors the JSONL fields we read. Everything else (cost, durations,
// usage, uuids) is ignored by the decoder.
type rawEntry struct {
	Type    *string     `json:"type"`
	Subtype string      `json:"subtype"`
	Message *rawMessage `json:"message"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Decode parses one session log line. A malformed line yields an error and must
// not stop the caller from decoding later lines.
func Decode(line []byte) (Entry, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Entry{}, ErrEmptyLine
	}

	var raw rawEntry
	if err := json.Unmarshal(line, &raw); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	if raw.Type == nil {
		return Entry{}, ErrNotEntry
	}

	e := Entry{RawType: *raw.Type}
	switch *raw.Type {
	case "user":
		e.Kind = KindUser
	case "assistant":
		e.Kind = KindAssistant
		if raw.Message != nil {
			e.Text, e.HasToolUse = extractContent(raw.Message.Content)
		}
	case "system":
		e.Kind = KindSystem
		e.Subtype = raw.Subtype
	default:
		e.Kind = KindOther
	}
	return e, nil
}

// DecodeString is Decode for string input.
func DecodeString(line string) (Entry, error) {
	return Decode([]byte(line))
}

// extractContent returns the plain text and tool-use flag of message content,
// which is either a bare string or an ordered list of typed blocks. Content of any
// other shape is treated as empty.
func extractContent(content json.RawMessage) (string, bool) {
	if len(content) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s, false
	}

	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return "", false
	}

	var texts []string
	hasToolUse := false
	for _, b := range blocks {
		switch b.Type {
		case "text":
			texts = append(texts, b.Text)
		case "tool_use":
			hasToolUse = true
		}
	}
	return strings.Join(texts, "\n"), hasToolUse
}
