package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/readysetinsure/dashboard/internal/callwatch"
	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/hermes"
	"github.com/readysetinsure/dashboard/internal/transcript"
	"github.com/readysetinsure/dashboard/internal/vapi"
)

type fakeDirectory struct {
	customers map[string]customer.Customer
}

func (f *fakeDirectory) ListByStatus(ctx context.Context, status customer.Status) ([]customer.Customer, error) {
	var out []customer.Customer
	for _, c := range f.customers {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDirectory) Get(ctx context.Context, policy string) (*customer.Customer, error) {
	c, ok := f.customers[policy]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

type chatEntry struct {
	policy  string
	sender  transcript.Sender
	message string
}

type fakeUpdater struct {
	mu         sync.Mutex
	chat       []chatEntry
	summaries  map[string]string
	incomplete []string
	failAppend bool
	failOnCall int // fail only the Nth AppendChatlog attempt, 1-based
	attempts   int
}

func newFakeUpdater() *fakeUpdater {
	return &fakeUpdater{summaries: make(map[string]string)}
}

func (f *fakeUpdater) UpdateSummary(ctx context.Context, policy, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[policy] = summary
	return nil
}

func (f *fakeUpdater) AppendChatlog(ctx context.Context, policy string, sender transcript.Sender, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failAppend || f.attempts == f.failOnCall {
		return errors.New("backend down")
	}
	f.chat = append(f.chat, chatEntry{policy, sender, message})
	return nil
}

func (f *fakeUpdater) MarkIncomplete(ctx context.Context, policy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incomplete = append(f.incomplete, policy)
	return nil
}

type fakeCaller struct {
	created []vapi.CreateCallRequest
	calls   map[string]*vapi.Call
	gets    int
}

func (f *fakeCaller) CreateCall(ctx context.Context, req vapi.CreateCallRequest) (*vapi.Call, error) {
	f.created = append(f.created, req)
	return &vapi.Call{ID: "call-1", Status: vapi.StatusQueued}, nil
}

func (f *fakeCaller) GetCall(ctx context.Context, id string) (*vapi.Call, error) {
	f.gets++
	c, ok := f.calls[id]
	if !ok {
		return nil, errors.New("no such call")
	}
	return c, nil
}

type fakeWatcher struct {
	watched []string
}

func (f *fakeWatcher) Watch(callID string) error {
	f.watched = append(f.watched, callID)
	return nil
}

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	events []published
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.events = append(f.events, published{subject, data})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(caller Caller) (*Processor, *fakeUpdater) {
	dir := &fakeDirectory{customers: map[string]customer.Customer{
		"P100": {Name: "Ada Lovelace", PolicyNumber: "P100", Phone: "+15550100", Status: customer.StatusPending},
		"P200": {Name: "No Phone", PolicyNumber: "P200"},
	}}
	upd := newFakeUpdater()
	return New(dir, upd, caller, vapi.DefaultTemplates(), "phone-1", testLogger()), upd
}

func firstTemplateKey(t *testing.T, p *Processor) string {
	t.Helper()
	keys := p.Templates().Keys()
	if len(keys) == 0 {
		t.Fatal("no default templates")
	}
	return keys[0]
}

func TestStartCall(t *testing.T) {
	caller := &fakeCaller{}
	p, upd := newTestProcessor(caller)
	w := &fakeWatcher{}
	p.SetWatcher(w)

	call, err := p.StartCall(context.Background(), "P100", firstTemplateKey(t, p), "asked about renewal")
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if call.ID != "call-1" {
		t.Errorf("call id = %q, want call-1", call.ID)
	}
	if len(caller.created) != 1 {
		t.Fatalf("created %d calls, want 1", len(caller.created))
	}
	if got := caller.created[0].Customer.Number; got != "+15550100" {
		t.Errorf("dialled %q, want +15550100", got)
	}
	if len(w.watched) != 1 || w.watched[0] != "call-1" {
		t.Errorf("watched = %v, want [call-1]", w.watched)
	}
	if p.policyFor("call-1") != "P100" {
		t.Errorf("call not mapped to policy")
	}
	if len(upd.chat) != 1 || upd.chat[0].sender != transcript.SenderSystem {
		t.Errorf("expected one system chatlog marker, got %+v", upd.chat)
	}
}

func TestStartCallErrors(t *testing.T) {
	p, _ := newTestProcessor(&fakeCaller{})
	key := firstTemplateKey(t, p)
	ctx := context.Background()

	if _, err := p.StartCall(ctx, "P100", "no-such-template", ""); !errors.Is(err, vapi.ErrTemplateNotFound) {
		t.Errorf("unknown template: got %v", err)
	}
	if _, err := p.StartCall(ctx, "P999", key, ""); !errors.Is(err, customer.ErrNotFound) {
		t.Errorf("unknown customer: got %v", err)
	}
	if _, err := p.StartCall(ctx, "P200", key, ""); !errors.Is(err, ErrNoPhone) {
		t.Errorf("missing phone: got %v", err)
	}

	disabled, _ := newTestProcessor(nil)
	if disabled.Enabled() {
		t.Error("processor without caller reports enabled")
	}
	if _, err := disabled.StartCall(ctx, "P100", key, ""); !errors.Is(err, ErrCallsDisabled) {
		t.Errorf("disabled: got %v", err)
	}
}

func TestProcessEndedCall(t *testing.T) {
	caller := &fakeCaller{calls: map[string]*vapi.Call{
		"call-9": {
			ID:         "call-9",
			Status:     vapi.StatusEnded,
			Transcript: "AI: Hello, this is Ready Set Insure.\nUser: Hi, my policy number is P 100.\nnoise line\nAI: Thanks, goodbye.",
			Analysis:   &vapi.Analysis{Summary: "Customer confirmed details."},
		},
	}}
	p, upd := newTestProcessor(caller)
	p.mu.Lock()
	p.callPolicies["call-9"] = "P100"
	p.mu.Unlock()

	if err := p.ProcessEndedCall(context.Background(), "call-9"); err != nil {
		t.Fatalf("ProcessEndedCall: %v", err)
	}

	if len(upd.chat) != 3 {
		t.Fatalf("appended %d lines, want 3: %+v", len(upd.chat), upd.chat)
	}
	if upd.chat[0].sender != transcript.SenderAssistant || upd.chat[1].sender != transcript.SenderClient {
		t.Errorf("unexpected senders: %+v", upd.chat)
	}
	if upd.summaries["P100"] != "Customer confirmed details." {
		t.Errorf("summary = %q", upd.summaries["P100"])
	}
	if len(upd.incomplete) != 1 || upd.incomplete[0] != "P100" {
		t.Errorf("incomplete = %v", upd.incomplete)
	}

	// Second delivery of the same call is a no-op.
	if err := p.ProcessEndedCall(context.Background(), "call-9"); err != nil {
		t.Fatalf("second ProcessEndedCall: %v", err)
	}
	if caller.gets != 1 {
		t.Errorf("GetCall called %d times, want 1", caller.gets)
	}
}

func TestProcessEndedCallExtractsPolicy(t *testing.T) {
	caller := &fakeCaller{calls: map[string]*vapi.Call{
		"call-x": {
			ID:         "call-x",
			Status:     vapi.StatusEnded,
			Transcript: "AI: Hi.",
			Analysis:   &vapi.Analysis{StructuredData: map[string]any{"policy_number": "P100"}},
		},
	}}
	p, upd := newTestProcessor(caller)

	if err := p.ProcessEndedCall(context.Background(), "call-x"); err != nil {
		t.Fatalf("ProcessEndedCall: %v", err)
	}
	if len(upd.incomplete) != 1 || upd.incomplete[0] != "P100" {
		t.Errorf("incomplete = %v", upd.incomplete)
	}
}

func TestProcessEndedCallRetriesAfterFailure(t *testing.T) {
	caller := &fakeCaller{calls: map[string]*vapi.Call{
		"call-9": {ID: "call-9", Status: vapi.StatusEnded, Transcript: "AI: Hi."},
	}}
	p, upd := newTestProcessor(caller)
	p.callPolicies["call-9"] = "P100"

	upd.failAppend = true
	if err := p.ProcessEndedCall(context.Background(), "call-9"); err == nil {
		t.Fatal("expected error when backend fails")
	}

	upd.failAppend = false
	if err := p.ProcessEndedCall(context.Background(), "call-9"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(upd.incomplete) != 1 {
		t.Errorf("incomplete = %v, want one entry after retry", upd.incomplete)
	}
}

func TestProcessEndedCallResumesPartialChatlog(t *testing.T) {
	caller := &fakeCaller{calls: map[string]*vapi.Call{
		"call-9": {ID: "call-9", Status: vapi.StatusEnded, Transcript: "AI: one\nUser: two\nAI: three"},
	}}
	p, upd := newTestProcessor(caller)
	p.callPolicies["call-9"] = "P100"
	upd.failOnCall = 3

	if err := p.ProcessEndedCall(context.Background(), "call-9"); err == nil {
		t.Fatal("expected error when the third append fails")
	}
	if err := p.ProcessEndedCall(context.Background(), "call-9"); err != nil {
		t.Fatalf("retry: %v", err)
	}

	var got []string
	for _, e := range upd.chat {
		got = append(got, e.message)
	}
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("chatlog after retry = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chatlog[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(upd.incomplete) != 1 {
		t.Errorf("incomplete = %v, want one entry", upd.incomplete)
	}
}

func TestProcessEndedCallClearsCallState(t *testing.T) {
	caller := &fakeCaller{calls: map[string]*vapi.Call{
		"call-9": {ID: "call-9", Status: vapi.StatusEnded, Transcript: "AI: Hi."},
	}}
	p, _ := newTestProcessor(caller)
	p.callPolicies["call-9"] = "P100"

	if err := p.ProcessEndedCall(context.Background(), "call-9"); err != nil {
		t.Fatalf("ProcessEndedCall: %v", err)
	}
	if len(p.callPolicies) != 0 || len(p.appended) != 0 {
		t.Errorf("per-call state left behind: policies=%v appended=%v", p.callPolicies, p.appended)
	}
	if !p.processed["call-9"] {
		t.Error("finished call should still be remembered")
	}
}

func TestProcessedSetIsBounded(t *testing.T) {
	p, _ := newTestProcessor(&fakeCaller{})

	for i := 0; i <= processedLimit; i++ {
		id := fmt.Sprintf("call-%d", i)
		if !p.claim(id) {
			t.Fatalf("claim %s failed", id)
		}
		p.finish(id)
	}

	if len(p.processed) != processedLimit || len(p.finished) != processedLimit {
		t.Errorf("processed=%d finished=%d, want %d", len(p.processed), len(p.finished), processedLimit)
	}
	if p.processed["call-0"] {
		t.Error("oldest call should have been forgotten")
	}
	if !p.processed[fmt.Sprintf("call-%d", processedLimit)] {
		t.Error("newest call should be remembered")
	}
}

func TestProcessEndedCallUnknownPolicy(t *testing.T) {
	caller := &fakeCaller{calls: map[string]*vapi.Call{
		"call-u": {ID: "call-u", Status: vapi.StatusEnded, Transcript: "AI: Hello?"},
	}}
	p, _ := newTestProcessor(caller)

	if err := p.ProcessEndedCall(context.Background(), "call-u"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("got %v, want ErrUnknownPolicy", err)
	}
}

func TestHandleUpdatePublishes(t *testing.T) {
	caller := &fakeCaller{calls: map[string]*vapi.Call{
		"call-1": {ID: "call-1", Status: vapi.StatusEnded, Transcript: "User: bye"},
	}}
	p, upd := newTestProcessor(caller)
	pub := &fakePublisher{}
	p.SetPublisher(pub)
	p.callPolicies["call-1"] = "P100"

	now := time.Now()
	p.HandleUpdate(callwatch.Update{CallID: "call-1", Status: vapi.StatusInProgress, At: now})
	if len(pub.events) != 1 || pub.events[0].subject != hermes.SubjectCallStatus {
		t.Fatalf("events = %+v", pub.events)
	}
	if len(upd.incomplete) != 0 {
		t.Error("in-progress update triggered write-back")
	}

	p.HandleUpdate(callwatch.Update{CallID: "call-1", Status: vapi.StatusEnded, At: now, Final: true, Reason: callwatch.ReasonEnded})
	if len(pub.events) != 3 || pub.events[2].subject != hermes.SubjectCallEnded {
		t.Fatalf("events = %+v", pub.events)
	}
	evt, ok := pub.events[2].data.(hermes.CallStatusEvent)
	if !ok || evt.PolicyNumber != "P100" || !evt.Final {
		t.Errorf("ended event = %+v", pub.events[2].data)
	}
	if len(upd.incomplete) != 1 {
		t.Errorf("ended update did not trigger write-back")
	}
}

func TestHandleUpdateTimeoutSkipsWriteBack(t *testing.T) {
	caller := &fakeCaller{}
	p, upd := newTestProcessor(caller)

	p.HandleUpdate(callwatch.Update{CallID: "call-1", Final: true, Reason: callwatch.ReasonTimeout})
	if caller.gets != 0 || len(upd.incomplete) != 0 {
		t.Error("timed-out watch should not write back")
	}
}

func TestHandleCallRequested(t *testing.T) {
	caller := &fakeCaller{}
	p, _ := newTestProcessor(caller)

	data, _ := json.Marshal(hermes.CallRequest{PolicyNumber: "P100", Template: firstTemplateKey(t, p)})
	p.HandleCallRequested(hermes.SubjectCallRequested, data)
	if len(caller.created) != 1 {
		t.Errorf("created %d calls, want 1", len(caller.created))
	}

	p.HandleCallRequested(hermes.SubjectCallRequested, []byte("not json"))
	p.HandleCallRequested(hermes.SubjectCallRequested, []byte(`{"policy_number":"P100"}`))
	if len(caller.created) != 1 {
		t.Errorf("invalid requests placed calls: %d", len(caller.created))
	}
}

func TestHandleWebhook(t *testing.T) {
	caller := &fakeCaller{calls: map[string]*vapi.Call{
		"call-1": {ID: "call-1", Status: vapi.StatusEnded, Transcript: "AI: Thanks."},
	}}
	p, upd := newTestProcessor(caller)
	p.callPolicies["call-1"] = "P100"
	ctx := context.Background()

	typ, err := p.HandleWebhook(ctx, []byte(`{"message":{"type":"status-update","call":{"id":"call-1"}}}`))
	if err != nil || typ != "status-update" {
		t.Fatalf("status-update: %q %v", typ, err)
	}
	if caller.gets != 0 {
		t.Error("status-update triggered processing")
	}

	typ, err = p.HandleWebhook(ctx, []byte(`{"message":{"type":"end-of-call-report","call":{"id":"call-1"}}}`))
	if err != nil || typ != "end-of-call-report" {
		t.Fatalf("end-of-call-report: %q %v", typ, err)
	}
	if len(upd.incomplete) != 1 {
		t.Errorf("incomplete = %v", upd.incomplete)
	}

	if _, err := p.HandleWebhook(ctx, []byte(`{"message":{"type":"end-of-call-report"}}`)); !errors.Is(err, ErrBadWebhook) {
		t.Error("expected error for report without call id")
	}
	if _, err := p.HandleWebhook(ctx, []byte(`{`)); !errors.Is(err, ErrBadWebhook) {
		t.Error("expected error for malformed body")
	}
}
