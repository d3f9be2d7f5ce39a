package conversation

import "strings"

// DefaultUtterance stands in for the latest user message when no text can be
// recovered from it.
const DefaultUtterance = "Give me a summary of my portfolio"

// Turn is a message reduced to plain text for replay to the reasoning service.
type Turn struct {
	Role Role
	Text string
}

// Normalize reduces the history to user and assistant turns that carry text.
// Tool and system messages are dropped from the replay.
func Normalize(c Conversation) []Turn {
	ret := make([]Turn, 0, len(c))
	for _, m := range c {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		text := m.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		ret = append(ret, Turn{Role: m.Role, Text: text})
	}
	return ret
}

// LatestUserText returns the text of the most recent user message. If that
// message carries no recoverable text, or there is no user message at all,
// fallback is returned (DefaultUtterance when fallback is empty).
func LatestUserText(c Conversation, fallback string) string {
	if fallback == "" {
		fallback = DefaultUtterance
	}
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role != RoleUser {
			continue
		}
		if text := strings.TrimSpace(c[i].Text()); text != "" {
			return text
		}
		return fallback
	}
	return fallback
}

// EnsureUserTurn appends the fallback utterance when the replay does not end
// with a user turn, so a reasoning call always has something to answer.
func EnsureUserTurn(turns []Turn, latest string) []Turn {
	if len(turns) > 0 && turns[len(turns)-1].Role == RoleUser {
		return turns
	}
	return append(turns, Turn{Role: RoleUser, Text: latest})
}
