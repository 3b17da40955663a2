package transcript

import "errors"

// Sender identifies who spoke a line of a call transcript.
type Sender string

const (
	SenderAssistant Sender = "assistant"
	SenderClient    Sender = "client"
	SenderSystem    Sender = "system"
)

// Line prefixes used by stored chatlogs.
const (
	prefixAssistant = "AI:"
	prefixClient    = "User:"
	prefixSeparator = "---"
)

// ErrUnknownSender is returned when encoding a line for a sender outside the
// three known roles.
var ErrUnknownSender = errors.New("unknown sender")

// Message is a single turn of a conversation. ID is the 1-based position of
// the source line among the transcript's non-blank lines.
type Message struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
	Sender  Sender `json:"sender"`
}

// Report is the result of ParseReport: the parsed messages plus any non-blank
// lines that carried no recognised prefix.
type Report struct {
	Messages  []Message `json:"messages"`
	Unmatched []string  `json:"unmatched"`
}

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	switch s {
	case SenderAssistant, SenderClient, SenderSystem:
		return true
	}
	return false
}
