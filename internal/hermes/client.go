package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATS subjects for call events.
const (
	SubjectCallStatus    = "rsi.call.status"
	SubjectCallEnded     = "rsi.call.ended"
	SubjectCallRequested = "rsi.call.requested"
)

// CallStatusEvent is published for every call status change.
type CallStatusEvent struct {
	EventID      string    `json:"event_id"`
	CallID       string    `json:"call_id"`
	PolicyNumber string    `json:"policy_number,omitempty"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Final        bool      `json:"final"`
	At           time.Time `json:"at"`
}

// NewCallStatusEvent stamps a fresh event ID.
func NewCallStatusEvent(callID, policyNumber, status, reason string, final bool, at time.Time) CallStatusEvent {
	return CallStatusEvent{
		EventID:      uuid.NewString(),
		CallID:       callID,
		PolicyNumber: policyNumber,
		Status:       status,
		Reason:       reason,
		Final:        final,
		At:           at,
	}
}

// CallRequest asks the dashboard to place an outbound call.
type CallRequest struct {
	PolicyNumber string `json:"policy_number"`
	Template     string `json:"template"`
	Notes        string `json:"notes,omitempty"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("rsi-dashboard"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
