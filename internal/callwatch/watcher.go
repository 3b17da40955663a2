// Package callwatch polls Vapi for the status of in-flight calls until they
// end, time out or are stopped.
package callwatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/readysetinsure/dashboard/internal/vapi"
)

var (
	ErrNotWatching = errors.New("call is not being watched")
	ErrClosed      = errors.New("watcher closed")
)

// Why a watch finished.
const (
	ReasonEnded   = "ended"
	ReasonTimeout = "timeout"
	ReasonStopped = "stopped"
)

// subscriberBuffer is how many updates a slow subscriber may lag behind
// before older updates are dropped.
const subscriberBuffer = 8

// Fetcher is the subset of the Vapi client the watcher needs.
type Fetcher interface {
	GetCall(ctx context.Context, id string) (*vapi.Call, error)
}

// Update is emitted whenever a watched call changes status, and once more
// with Final set when the watch finishes.
type Update struct {
	CallID      string      `json:"call_id"`
	Status      vapi.Status `json:"status"`
	EndedReason string      `json:"ended_reason,omitempty"`
	At          time.Time   `json:"at"`
	Final       bool        `json:"final"`
	Reason      string      `json:"reason,omitempty"`
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	// OnUpdate is called from the polling goroutine for every update.
	OnUpdate func(Update)
}

type Watcher struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	onUpdate func(Update)
	logger   *slog.Logger

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	watches map[string]*watch
}

type watch struct {
	id      uuid.UUID
	cancel  context.CancelFunc
	subs    map[int]chan Update
	nextSub int
	last    *Update
}

func New(fetcher Fetcher, opts Options, logger *slog.Logger) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	root, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fetcher:  fetcher,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		onUpdate: opts.OnUpdate,
		logger:   logger,
		root:     root,
		cancel:   cancel,
		watches:  make(map[string]*watch),
	}
}

// Watch starts polling callID in the background. Watching an already watched
// call is a no-op.
func (w *Watcher) Watch(callID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, ok := w.watches[callID]; ok {
		return nil
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if w.timeout > 0 {
		ctx, cancel = context.WithTimeout(w.root, w.timeout)
	} else {
		ctx, cancel = context.WithCancel(w.root)
	}

	wt := &watch{
		id:     uuid.New(),
		cancel: cancel,
		subs:   make(map[int]chan Update),
	}
	w.watches[callID] = wt

	w.wg.Add(1)
	go w.run(ctx, callID, wt)

	w.logger.Info("watching call", "call_id", callID, "watch_id", wt.id)
	return nil
}

// Watching reports whether callID has an active watch.
func (w *Watcher) Watching(callID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watches[callID]
	return ok
}

// Stop cancels the watch for callID. Subscribers receive a final update
// with reason "stopped".
func (w *Watcher) Stop(callID string) error {
	w.mu.Lock()
	wt, ok := w.watches[callID]
	w.mu.Unlock()
	if !ok {
		return ErrNotWatching
	}
	wt.cancel()
	return nil
}

// Subscribe returns a channel of updates for callID. The latest known update,
// if any, is delivered first. The channel is closed after the final update;
// call the returned func to unsubscribe early.
func (w *Watcher) Subscribe(callID string) (<-chan Update, func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	wt, ok := w.watches[callID]
	if !ok {
		return nil, nil, ErrNotWatching
	}

	ch := make(chan Update, subscriberBuffer)
	if wt.last != nil {
		ch <- *wt.last
	}
	id := wt.nextSub
	wt.nextSub++
	wt.subs[id] = ch

	unsubscribe := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if c, ok := wt.subs[id]; ok {
			delete(wt.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe, nil
}

// Close stops every watch and waits for the polling goroutines to exit.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context, callID string, wt *watch) {
	defer w.wg.Done()
	defer wt.cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last vapi.Status
	poll := func() bool {
		call, err := w.fetcher.GetCall(ctx, callID)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("call status check failed", "call_id", callID, "error", err)
			}
			return false
		}
		if call.Status == last {
			return false
		}
		last = call.Status

		u := Update{
			CallID:      callID,
			Status:      call.Status,
			EndedReason: call.EndedReason,
			At:          time.Now().UTC(),
		}
		if call.Status.Terminal() {
			u.Final = true
			u.Reason = ReasonEnded
		}
		w.emit(u)
		return u.Final
	}

	if poll() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			reason := ReasonStopped
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				reason = ReasonTimeout
			}
			w.logger.Info("call watch finished", "call_id", callID, "watch_id", wt.id, "reason", reason)
			w.emit(Update{
				CallID: callID,
				Status: last,
				At:     time.Now().UTC(),
				Final:  true,
				Reason: reason,
			})
			return
		case <-ticker.C:
			if poll() {
				w.logger.Info("call watch finished", "call_id", callID, "watch_id", wt.id, "reason", ReasonEnded)
				return
			}
		}
	}
}

func (w *Watcher) emit(u Update) {
	if w.onUpdate != nil {
		w.onUpdate(u)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wt, ok := w.watches[u.CallID]
	if !ok {
		return
	}
	wt.last = &u
	for _, ch := range wt.subs {
		deliver(ch, u)
	}
	if u.Final {
		for id, ch := range wt.subs {
			delete(wt.subs, id)
			close(ch)
		}
		delete(w.watches, u.CallID)
	}
}

// deliver never blocks. When ch is full the oldest queued update is dropped
// so the newest one, in particular the final one, always lands.
func deliver(ch chan Update, u Update) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}
