package vapi

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Status is the lifecycle state Vapi reports for a call.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusForwarding Status = "forwarding"
	StatusEnded      Status = "ended"
)

// Terminal reports whether no further status changes will happen.
func (s Status) Terminal() bool {
	return s == StatusEnded
}

type Call struct {
	ID          string        `json:"id"`
	Status      Status        `json:"status"`
	EndedReason string        `json:"endedReason,omitempty"`
	Transcript  string        `json:"transcript,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	CreatedAt   string        `json:"createdAt,omitempty"`
	Messages    []CallMessage `json:"messages,omitempty"`
	Analysis    *Analysis     `json:"analysis,omitempty"`
}

type Analysis struct {
	Summary        string         `json:"summary,omitempty"`
	StructuredData map[string]any `json:"structuredData,omitempty"`
}

type CallMessage struct {
	Role      string     `json:"role"`
	Message   string     `json:"message,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

type ToolCall struct {
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// CallSummary prefers the analysis summary over the top-level one.
func (c *Call) CallSummary() string {
	if c.Analysis != nil && c.Analysis.Summary != "" {
		return c.Analysis.Summary
	}
	return c.Summary
}

// UnknownPolicy is returned by ExtractPolicyNumber when nothing matches.
const UnknownPolicy = "Unknown"

var policyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)insurance number is\s+([0-9\s]+)`),
	regexp.MustCompile(`(?i)policy number is\s+([0-9\s]+)`),
	regexp.MustCompile(`(?i)policy number\s+([0-9\s]+)`),
	regexp.MustCompile(`(?i)insurance number\s+([0-9\s]+)`),
	regexp.MustCompile(`(?i)my number is\s+([0-9\s]+)`),
	regexp.MustCompile(`(?i)my policy is\s+([0-9\s]+)`),
}

// ExtractPolicyNumber finds the caller's policy number: first in the
// structured analysis, then in confirmUser tool-call arguments, then spoken
// in the transcript.
func ExtractPolicyNumber(c *Call) string {
	if c == nil {
		return UnknownPolicy
	}

	if c.Analysis != nil {
		if v, ok := c.Analysis.StructuredData["policy_number"]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}

	for _, m := range c.Messages {
		if m.Role != "tool_calls" {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.Type != "function" || tc.Function.Name != "confirmUser" {
				continue
			}
			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				continue
			}
			if s := stringify(args["policy_number"]); s != "" {
				return s
			}
		}
	}

	for _, re := range policyPatterns {
		if m := re.FindStringSubmatch(c.Transcript); m != nil {
			if s := strings.Join(strings.Fields(m[1]), ""); s != "" {
				return s
			}
		}
	}

	return UnknownPolicy
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
