// Package customer holds the insured-customer record shared by the backend
// client, the Postgres directory and the HTTP API.
package customer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/readysetinsure/dashboard/internal/transcript"
	"github.com/readysetinsure/dashboard/internal/weekday"
)

var (
	// ErrInvalidStatus is returned by ParseStatus for unknown values.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrNotFound is returned by a Directory with no client for a policy number.
	ErrNotFound = errors.New("customer not found")
)

// Status is the assistance state of a customer case.
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusPending    Status = "pending"
	StatusComplete   Status = "complete"
)

// ParseStatus validates s. An empty string defaults to incomplete, the
// dashboard's work queue.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "":
		return StatusIncomplete, nil
	case StatusIncomplete, StatusPending, StatusComplete:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Tone is the colour the dashboard uses for a status badge.
func (s Status) Tone() string {
	switch s {
	case StatusIncomplete:
		return "red"
	case StatusPending:
		return "yellow"
	default:
		return "green"
	}
}

// Customer is a client record as stored by the backend. Date is when the case
// was opened.
type Customer struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Status       Status  `json:"status"`
	Date         *string `json:"date,omitempty"`
	PolicyNumber string  `json:"policy_number"`
	DOB          *string `json:"dob,omitempty"`
	Sex          string  `json:"sex,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Summary      string  `json:"summary,omitempty"`
	Chatlog      string  `json:"chatlog,omitempty"`
}

// OpenedOn returns the parsed case-open date.
func (c Customer) OpenedOn() (time.Time, bool) {
	if c.Date == nil {
		return time.Time{}, false
	}
	return weekday.ParseDate(*c.Date)
}

// Age is the difference in calendar years between now and the date of birth.
func (c Customer) Age(now time.Time) (int, bool) {
	if c.DOB == nil {
		return 0, false
	}
	dob, ok := weekday.ParseDate(*c.DOB)
	if !ok {
		return 0, false
	}
	return now.Year() - dob.Year(), true
}

// DateField adapts a customer to weekday.Aggregate.
func DateField(c Customer) (string, bool) {
	if c.Date == nil {
		return "", false
	}
	return *c.Date, true
}

// Detail is the per-customer view: the record, its parsed chat history and
// derived fields.
type Detail struct {
	Customer Customer             `json:"customer"`
	Messages []transcript.Message `json:"messages"`
	Age      *int                 `json:"age,omitempty"`
	Tone     string               `json:"tone"`
}

// NewDetail builds the detail view for c as of now.
func NewDetail(c Customer, now time.Time) Detail {
	d := Detail{
		Customer: c,
		Messages: transcript.FromChatlog(c.Chatlog),
		Tone:     c.Status.Tone(),
	}
	if age, ok := c.Age(now); ok {
		d.Age = &age
	}
	return d
}

// Directory looks customers up.
type Directory interface {
	ListByStatus(ctx context.Context, status Status) ([]Customer, error)
	Get(ctx context.Context, policyNumber string) (*Customer, error)
}

// Updater writes case changes back to the system of record.
type Updater interface {
	UpdateSummary(ctx context.Context, policyNumber, summary string) error
	AppendChatlog(ctx context.Context, policyNumber string, sender transcript.Sender, message string) error
	MarkIncomplete(ctx context.Context, policyNumber string) error
}
