package transcript

import "strings"

// Parse converts a raw newline-delimited transcript into ordered messages.
//
// Blank lines are discarded. "AI:" lines become assistant messages, "User:"
// lines client messages and "---" lines system separators. Lines with any
// other prefix are dropped; use ParseReport to see them.
func Parse(raw string) []Message {
	return ParseReport(raw).Messages
}

// ParseValue parses v when it is a string (or *string) and returns an empty
// sequence for anything else, nil included.
func ParseValue(v any) []Message {
	switch s := v.(type) {
	case string:
		return Parse(s)
	case *string:
		if s != nil {
			return Parse(*s)
		}
	}
	return []Message{}
}

// ParseReport is Parse plus the list of unmatched lines.
func ParseReport(raw string) Report {
	r := Report{Messages: []Message{}, Unmatched: []string{}}

	pos := 0
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pos++

		msg, ok := classify(line)
		if !ok {
			r.Unmatched = append(r.Unmatched, line)
			continue
		}
		msg.ID = pos
		r.Messages = append(r.Messages, msg)
	}

	return r
}

func classify(line string) (Message, bool) {
	switch {
	case strings.HasPrefix(line, prefixAssistant):
		return Message{
			Sender:  SenderAssistant,
			Message: strings.TrimSpace(line[len(prefixAssistant):]),
		}, true
	case strings.HasPrefix(line, prefixClient):
		return Message{
			Sender:  SenderClient,
			Message: strings.TrimSpace(line[len(prefixClient):]),
		}, true
	case strings.HasPrefix(line, prefixSeparator):
		return Message{Sender: SenderSystem, Message: line}, true
	}
	return Message{}, false
}
