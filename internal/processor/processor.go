package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/readysetinsure/dashboard/internal/callwatch"
	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/hermes"
	"github.com/readysetinsure/dashboard/internal/transcript"
	"github.com/readysetinsure/dashboard/internal/vapi"
)

var (
	ErrCallsDisabled = errors.New("outbound calls are not configured")
	ErrNoPhone       = errors.New("customer has no phone number")
	ErrUnknownPolicy = errors.New("could not determine policy number for call")
)

// processTimeout bounds the write-back of one ended call.
const processTimeout = 30 * time.Second

// processedLimit caps how many finished call IDs are remembered for
// duplicate suppression. The oldest are forgotten first.
const processedLimit = 1024

// Caller is the subset of the Vapi client the processor needs.
type Caller interface {
	CreateCall(ctx context.Context, req vapi.CreateCallRequest) (*vapi.Call, error)
	GetCall(ctx context.Context, id string) (*vapi.Call, error)
}

type Watcher interface {
	Watch(callID string) error
}

type Publisher interface {
	Publish(subject string, data any) error
}

// Processor runs the outbound call workflow: place the call, track it, and
// write the transcript and summary back to the customer record once it ends.
type Processor struct {
	directory     customer.Directory
	updater       customer.Updater
	caller        Caller
	templates     vapi.Templates
	phoneNumberID string
	watcher       Watcher
	publisher     Publisher
	logger        *slog.Logger

	mu           sync.Mutex
	callPolicies map[string]string // call ID → policy number for calls we placed
	appended     map[string]int    // call ID → transcript lines already in the chatlog
	processed    map[string]bool   // call IDs claimed or written back
	finished     []string          // written-back call IDs, oldest first
}

// New returns a Processor. caller may be nil, in which case StartCall fails
// with ErrCallsDisabled.
func New(dir customer.Directory, upd customer.Updater, caller Caller, templates vapi.Templates, phoneNumberID string, logger *slog.Logger) *Processor {
	return &Processor{
		directory:     dir,
		updater:       upd,
		caller:        caller,
		templates:     templates,
		phoneNumberID: phoneNumberID,
		logger:        logger,
		callPolicies:  make(map[string]string),
		appended:      make(map[string]int),
		processed:     make(map[string]bool),
	}
}

// SetWatcher wires the call watcher. It is separate from New because the
// watcher reports back through HandleUpdate.
func (p *Processor) SetWatcher(w Watcher) {
	p.watcher = w
}

// SetPublisher enables call events on the bus.
func (p *Processor) SetPublisher(pub Publisher) {
	p.publisher = pub
}

// Enabled reports whether outbound calls can be placed.
func (p *Processor) Enabled() bool {
	return p.caller != nil
}

// Templates returns the loaded call templates.
func (p *Processor) Templates() vapi.Templates {
	return p.templates
}

// StartCall places an outbound call to the customer with policyNumber using
// the given template and starts watching it.
func (p *Processor) StartCall(ctx context.Context, policyNumber, templateKey, notes string) (*vapi.Call, error) {
	if p.caller == nil {
		return nil, ErrCallsDisabled
	}

	tpl, err := p.templates.Get(templateKey)
	if err != nil {
		return nil, err
	}

	c, err := p.directory.Get(ctx, policyNumber)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	if c.Phone == "" {
		return nil, ErrNoPhone
	}

	call, err := p.caller.CreateCall(ctx, vapi.BuildCallRequest(tpl, *c, notes, p.phoneNumberID))
	if err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}

	p.mu.Lock()
	p.callPolicies[call.ID] = policyNumber
	p.mu.Unlock()

	p.logger.Info("outbound call placed",
		"call_id", call.ID,
		"policy_number", policyNumber,
		"template", templateKey,
	)

	marker := fmt.Sprintf("--- outbound call %s (%s) %s", call.ID, tpl.Name, time.Now().UTC().Format(time.RFC3339))
	if err := p.updater.AppendChatlog(ctx, policyNumber, transcript.SenderSystem, marker); err != nil {
		p.logger.Warn("failed to record call start in chatlog", "call_id", call.ID, "error", err)
	}

	if p.watcher != nil {
		if err := p.watcher.Watch(call.ID); err != nil {
			p.logger.Warn("failed to watch call", "call_id", call.ID, "error", err)
		}
	}

	return call, nil
}

// HandleUpdate is the call watcher hook. It publishes the update and writes
// the call back once it has ended.
func (p *Processor) HandleUpdate(u callwatch.Update) {
	policy := p.policyFor(u.CallID)

	if p.publisher != nil {
		evt := hermes.NewCallStatusEvent(u.CallID, policy, string(u.Status), u.Reason, u.Final, u.At)
		if err := p.publisher.Publish(hermes.SubjectCallStatus, evt); err != nil {
			p.logger.Warn("failed to publish call status", "call_id", u.CallID, "error", err)
		}
		if u.Final {
			if err := p.publisher.Publish(hermes.SubjectCallEnded, evt); err != nil {
				p.logger.Warn("failed to publish call ended", "call_id", u.CallID, "error", err)
			}
		}
	}

	if !u.Final || u.Reason != callwatch.ReasonEnded {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()
	if err := p.ProcessEndedCall(ctx, u.CallID); err != nil {
		p.logger.Error("failed to process ended call", "call_id", u.CallID, "error", err)
	}
}

// HandleCallRequested is the NATS handler for rsi.call.requested.
func (p *Processor) HandleCallRequested(subject string, data []byte) {
	var req hermes.CallRequest
	if err := json.Unmarshal(data, &req); err != nil {
		p.logger.Error("failed to parse call request", "error", err)
		return
	}
	if req.PolicyNumber == "" || req.Template == "" {
		p.logger.Warn("call request missing policy_number or template", "subject", subject)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()
	if _, err := p.StartCall(ctx, req.PolicyNumber, req.Template, req.Notes); err != nil {
		p.logger.Error("requested call failed", "policy_number", req.PolicyNumber, "error", err)
	}
}

// ProcessEndedCall writes an ended call's transcript and summary to the
// customer record and puts the customer back on the work queue. Each call is
// written back at most once. A failed attempt may be retried and resumes
// after the last transcript line that reached the chatlog.
func (p *Processor) ProcessEndedCall(ctx context.Context, callID string) error {
	if p.caller == nil {
		return ErrCallsDisabled
	}
	if !p.claim(callID) {
		p.logger.Debug("call already processed", "call_id", callID)
		return nil
	}

	if err := p.writeBack(ctx, callID); err != nil {
		p.release(callID)
		return err
	}
	p.finish(callID)
	return nil
}

func (p *Processor) writeBack(ctx context.Context, callID string) error {
	call, err := p.caller.GetCall(ctx, callID)
	if err != nil {
		return fmt.Errorf("fetch call: %w", err)
	}

	policy := p.policyFor(callID)
	if policy == "" {
		policy = vapi.ExtractPolicyNumber(call)
	}
	if policy == vapi.UnknownPolicy {
		return ErrUnknownPolicy
	}

	report := transcript.ParseReport(call.Transcript)
	if len(report.Unmatched) > 0 {
		p.logger.Warn("transcript lines without a speaker prefix dropped",
			"call_id", callID,
			"count", len(report.Unmatched),
		)
	}

	done := p.appendedFor(callID)
	for i := done; i < len(report.Messages); i++ {
		m := report.Messages[i]
		if err := p.updater.AppendChatlog(ctx, policy, m.Sender, m.Message); err != nil {
			return fmt.Errorf("append chatlog: %w", err)
		}
		p.setAppended(callID, i+1)
	}

	if summary := call.CallSummary(); summary != "" {
		if err := p.updater.UpdateSummary(ctx, policy, summary); err != nil {
			return fmt.Errorf("update summary: %w", err)
		}
	}

	if err := p.updater.MarkIncomplete(ctx, policy); err != nil {
		return fmt.Errorf("mark incomplete: %w", err)
	}

	p.logger.Info("call written back",
		"call_id", callID,
		"policy_number", policy,
		"messages", len(report.Messages),
		"ended_reason", call.EndedReason,
	)
	return nil
}

func (p *Processor) policyFor(callID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callPolicies[callID]
}

func (p *Processor) claim(callID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.processed[callID] {
		return false
	}
	p.processed[callID] = true
	return true
}

func (p *Processor) release(callID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.processed, callID)
}

func (p *Processor) appendedFor(callID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.appended[callID]
}

func (p *Processor) setAppended(callID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appended[callID] = n
}

// finish drops per-call state once a call is written back and keeps at most
// processedLimit finished IDs.
func (p *Processor) finish(callID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.callPolicies, callID)
	delete(p.appended, callID)

	p.finished = append(p.finished, callID)
	for len(p.finished) > processedLimit {
		delete(p.processed, p.finished[0])
		p.finished = p.finished[1:]
	}
}
