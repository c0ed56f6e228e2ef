package domain

import (
	"strings"
)

// MutationIntent is the first-line flag the respondent puts on every reply.
type MutationIntent string

const (
	IntentNone   MutationIntent = "NULL"
	IntentMutate MutationIntent = "UPDATE"
)

// NullPrefix is prepended to replies that arrive without a flag line.
const NullPrefix = "NULL \n \n"

// Turn is one message inside an agent thread.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"-"`
}

// Exchange is the outcome of one respondent turn.
type Exchange struct {
	UserID    UserID
	Utterance string
	Reply     string
	Intent    MutationIntent

	// Transcript holds the thread turns, newest first, with the reply already normalized.
	Transcript []Turn
}

// ParseIntent reads the flag from the first line of a reply. Replies without a
// recognizable flag get the NULL prefix so every stored reply carries one.
func ParseIntent(reply string) (string, MutationIntent) {
	trimmed := strings.TrimLeft(reply, " \t\r\n")
	firstLine := trimmed
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		firstLine = trimmed[:i]
	}
	firstLine = strings.TrimSpace(firstLine)

	switch {
	case strings.HasPrefix(firstLine, string(IntentMutate)):
		return reply, IntentMutate
	case strings.HasPrefix(firstLine, string(IntentNone)):
		return reply, IntentNone
	default:
		return NullPrefix + reply, IntentNone
	}
}
