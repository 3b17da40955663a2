package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FromChatlog decodes a stored chatlog. Older records hold a JSON array of
// messages; everything else is treated as a line-prefixed transcript.
func FromChatlog(chatlog string) []Message {
	trimmed := strings.TrimSpace(chatlog)
	if strings.HasPrefix(trimmed, "[") {
		var msgs []Message
		if err := json.Unmarshal([]byte(trimmed), &msgs); err == nil {
			return renumber(msgs)
		}
	}
	return Parse(chatlog)
}

// Line encodes a single chatlog line for sender.
func Line(sender Sender, text string) (string, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	switch sender {
	case SenderAssistant:
		return prefixAssistant + " " + text, nil
	case SenderClient:
		return prefixClient + " " + text, nil
	case SenderSystem:
		if !strings.HasPrefix(text, prefixSeparator) {
			text = prefixSeparator + " " + text
		}
		return text, nil
	}
	return "", fmt.Errorf("encode line for %q: %w", sender, ErrUnknownSender)
}

// Format renders msgs in the line-prefix convention understood by Parse.
// Messages with an unknown sender are skipped.
func Format(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		line, err := Line(m.Sender, m.Message)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

// renumber drops entries with unknown senders. Entries without an ID, or
// repeating one already used, get fresh IDs above the largest explicit one.
func renumber(msgs []Message) []Message {
	next := 1
	for _, m := range msgs {
		if m.Sender.Valid() && m.ID >= next {
			next = m.ID + 1
		}
	}

	out := make([]Message, 0, len(msgs))
	seen := make(map[int]bool, len(msgs))
	for _, m := range msgs {
		if !m.Sender.Valid() {
			continue
		}
		if m.ID <= 0 || seen[m.ID] {
			m.ID = next
			next++
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out
}
