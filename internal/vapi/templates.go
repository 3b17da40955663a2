package vapi

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/readysetinsure/dashboard/internal/customer"
)

// ErrTemplateNotFound is returned for an unknown template key.
var ErrTemplateNotFound = errors.New("call template not found")

// Template is the script an outbound call starts from.
type Template struct {
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description" json:"description"`
	FirstMessage string `yaml:"first_message" json:"first_message"`
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`
}

// Templates is keyed by template key, e.g. "claim_follow_up".
type Templates map[string]Template

// LoadTemplates reads a template file. JSON files load too since JSON is
// valid YAML. A missing file yields DefaultTemplates.
func LoadTemplates(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultTemplates(), nil
		}
		return nil, fmt.Errorf("read templates: %w", err)
	}

	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for key, tpl := range t {
		if tpl.FirstMessage == "" || tpl.SystemPrompt == "" {
			return nil, fmt.Errorf("template %q: first_message and system_prompt are required", key)
		}
	}
	return t, nil
}

// Get returns the template for key.
func (t Templates) Get(key string) (Template, error) {
	tpl, ok := t[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, key)
	}
	return tpl, nil
}

// Keys returns the template keys in sorted order.
func (t Templates) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type CreateCallRequest struct {
	Assistant     Assistant    `json:"assistant"`
	PhoneNumberID string       `json:"phoneNumberId"`
	Customer      CallCustomer `json:"customer"`
}

type Assistant struct {
	FirstMessage string `json:"firstMessage"`
	Model        Model  `json:"model"`
	Voice        string `json:"voice"`
}

type Model struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Messages []ModelMessage `json:"messages"`
}

type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CallCustomer struct {
	Number string `json:"number"`
}

// BuildCallRequest fills tpl in for c. The customer's details, plus any
// notes, are appended to the system prompt.
func BuildCallRequest(tpl Template, c customer.Customer, notes, phoneNumberID string) CreateCallRequest {
	var sb strings.Builder
	sb.WriteString(tpl.SystemPrompt)
	sb.WriteString("\n\nCustomer Information:\n")
	fmt.Fprintf(&sb, "- Name: %s\n", orUnknown(c.Name))
	fmt.Fprintf(&sb, "- Policy Number: %s\n", orUnknown(c.PolicyNumber))
	fmt.Fprintf(&sb, "- Status: %s\n", orUnknown(string(c.Status)))
	fmt.Fprintf(&sb, "- Email: %s\n", orUnknown(c.Email))
	if notes = strings.TrimSpace(notes); notes != "" {
		fmt.Fprintf(&sb, "\nAdditional Notes:\n%s\n", notes)
	}

	return CreateCallRequest{
		Assistant: Assistant{
			FirstMessage: tpl.FirstMessage,
			Model: Model{
				Provider: "openai",
				Model:    "gpt-3.5-turbo",
				Messages: []ModelMessage{{Role: "system", Content: sb.String()}},
			},
			Voice: "jennifer-playht",
		},
		PhoneNumberID: phoneNumberID,
		Customer:      CallCustomer{Number: c.Phone},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// DefaultTemplates are used when no template file exists.
func DefaultTemplates() Templates {
	return Templates{
		"claim_follow_up": {
			Name:         "Claim Follow-up",
			Description:  "Follow up with customers regarding their recent claims",
			FirstMessage: "Hello, this is Ready Set Insure calling to follow up on your recent claim. Is now a good time to talk?",
			SystemPrompt: "You are a helpful customer service representative from Ready Set Insure. You're calling to follow up on a customer's recent insurance claim. Be empathetic, clear, and concise. Gather any additional information needed for the claim and answer any questions they might have. If the customer has specific questions about coverage amounts or policy details, let them know you'll note their concerns and have a claims specialist contact them.",
		},
		"policy_renewal": {
			Name:         "Policy Renewal",
			Description:  "Remind customers about upcoming policy renewals",
			FirstMessage: "Hello, I'm calling from Ready Set Insure about your insurance policy that's coming up for renewal soon. Do you have a moment to discuss your options?",
			SystemPrompt: "You are a customer service representative from Ready Set Insure. You're calling about the customer's insurance policy that's up for renewal. Remind them about the renewal date, briefly discuss any changes to their coverage or premiums, and answer basic questions. For detailed rate questions, note them and have a policy specialist call back.",
		},
		"feedback_survey": {
			Name:         "Customer Feedback",
			Description:  "Collect feedback on recent customer interactions",
			FirstMessage: "Hello, I'm calling from Ready Set Insure. We value your feedback and would appreciate a few minutes of your time to discuss your recent experience with us. Is now a good time?",
			SystemPrompt: "You are a customer service representative from Ready Set Insure conducting a brief satisfaction survey. Ask about the customer's recent experience, collect specific feedback on what went well and what could be improved, and thank them for their time.",
		},
		"claim_status_update": {
			Name:         "Claim Status Update",
			Description:  "Proactively update customers on their claim status",
			FirstMessage: "Hello, I'm calling from Ready Set Insure with an update on your recent insurance claim. Do you have a moment to talk?",
			SystemPrompt: "You are a customer service representative from Ready Set Insure calling to provide an update on a customer's insurance claim. Explain the current status, actions taken and next steps. Be clear about timeframes and offer a claims specialist callback for details you don't have.",
		},
		"payment_reminder": {
			Name:         "Payment Reminder",
			Description:  "Friendly reminder about upcoming or missed payments",
			FirstMessage: "Hello, I'm calling from Ready Set Insure regarding your insurance policy payment. Is this a good time to talk?",
			SystemPrompt: "You are a customer service representative from Ready Set Insure calling about a payment matter. Be informative for upcoming payments and understanding but clear for missed ones. Avoid threatening language. Explain payment options if asked and offer the billing department for complex account issues.",
		},
		"test_call": {
			Name:         "Test Call",
			Description:  "A simple test call with minimal conversation",
			FirstMessage: "Hello, this is a test call from Ready Set Insure. How are you today?",
			SystemPrompt: "You are making a quick test call. Keep the conversation very brief, verify that the connection works, thank them for their time, and end the call.",
		},
	}
}
