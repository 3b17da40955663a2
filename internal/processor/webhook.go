package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadWebhook marks a server message that could not be understood.
var ErrBadWebhook = errors.New("malformed webhook")

// webhookEnvelope is the Vapi server-message wrapper.
type webhookEnvelope struct {
	Message struct {
		Type string `json:"type"`
		Call struct {
			ID string `json:"id"`
		} `json:"call"`
	} `json:"message"`
}

const endOfCallReport = "end-of-call-report"

// HandleWebhook processes a Vapi server message. Only end-of-call reports
// trigger work; every other message type is acknowledged and ignored.
// It returns the message type.
func (p *Processor) HandleWebhook(ctx context.Context, body []byte) (string, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadWebhook, err)
	}

	msgType := env.Message.Type
	if msgType != endOfCallReport {
		p.logger.Debug("ignoring webhook", "type", msgType)
		return msgType, nil
	}
	if env.Message.Call.ID == "" {
		return msgType, fmt.Errorf("%w: end-of-call report without call id", ErrBadWebhook)
	}

	return msgType, p.ProcessEndedCall(ctx, env.Message.Call.ID)
}
