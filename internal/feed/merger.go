package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/opsync/internal/bus"
	"github.com/roach88/opsync/internal/journal"
	"github.com/roach88/opsync/internal/model"
	"github.com/roach88/opsync/internal/remote"
)

// TopicChanged is published after every window change so the
// presentation layer re-reads Snapshot.
const TopicChanged = "feed:changed"

const (
	// DefaultPollInterval is the background refresh cadence.
	DefaultPollInterval = 8 * time.Second
	initialPollLimit    = 10
	refreshPollLimit    = 2
	pushBuffer          = 64
)

// Merger owns the live feed window. Run is the single writer: polls and
// push events funnel into one loop, so the window's dual-key invariant
// never races. Snapshot is safe from any goroutine.
type Merger struct {
	client   remote.Client
	bus      *bus.Bus
	jrnl     *journal.Journal
	clock    model.Clock
	interval time.Duration
	pushes   chan any

	mu     sync.Mutex
	window *Window
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithPollInterval overrides the background refresh cadence. Tests use
// a short interval.
func WithPollInterval(d time.Duration) MergerOption {
	return func(m *Merger) { m.interval = d }
}

// WithClock sets the ingestion timestamp source.
func WithClock(c model.Clock) MergerOption {
	return func(m *Merger) { m.clock = c }
}

// WithJournal records every ingestion decision.
func WithJournal(j *journal.Journal) MergerOption {
	return func(m *Merger) { m.jrnl = j }
}

// WithWindow replaces the default window, e.g. one with a test
// capacity or a fixed ID generator.
func WithWindow(w *Window) MergerOption {
	return func(m *Merger) { m.window = w }
}

// NewMerger creates a Merger polling client and subscribing to push
// topics on b.
func NewMerger(client remote.Client, b *bus.Bus, opts ...MergerOption) *Merger {
	m := &Merger{
		client:   client,
		bus:      b,
		clock:    model.SystemClock{},
		interval: DefaultPollInterval,
		pushes:   make(chan any, pushBuffer),
		window:   NewWindow(DefaultCapacity, nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current window contents, newest first.
func (m *Merger) Snapshot() []model.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window.Snapshot()
}

// Run drives the feed until ctx is cancelled: an initial deep poll,
// then a refresh ticker and push events interleaved in one loop.
// Returns ctx.Err() on teardown.
func (m *Merger) Run(ctx context.Context) error {
	subCreated := m.bus.Subscribe(remote.EventPaymentCreated, m.enqueue)
	subCancelled := m.bus.Subscribe(remote.EventOrderCancelled, m.enqueue)
	defer subCreated.Unsubscribe()
	defer subCancelled.Unsubscribe()

	m.poll(ctx, initialPollLimit)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.poll(ctx, refreshPollLimit)
		case ev := <-m.pushes:
			m.handlePush(ctx, ev)
		}
	}
}

// enqueue is the bus handler; it hands the event to the Run loop.
// Emit must never block on a slow feed, so overflow drops with a warn.
func (m *Merger) enqueue(payload any) {
	select {
	case m.pushes <- payload:
	default:
		slog.Warn("feed push buffer full, event dropped", "event", payload)
	}
}

func (m *Merger) poll(ctx context.Context, limit int) {
	page, err := m.client.List(ctx, model.Filter{Kind: model.KindLiveTransaction, Limit: limit})
	if err != nil {
		// Polls degrade: the window keeps its last contents.
		slog.Warn("feed poll failed", "limit", limit, "error", err)
		return
	}

	m.mu.Lock()
	res := m.window.MergePoll(page.Items)
	m.mu.Unlock()

	for _, id := range res.Accepted {
		m.record(ctx, journal.FeedRecord{Source: "poll", Event: "accepted", TxnID: id, At: m.clock.Now()})
	}
	for _, id := range res.Refreshed {
		m.record(ctx, journal.FeedRecord{Source: "poll", Event: "merged", TxnID: id, At: m.clock.Now()})
	}
	for _, id := range res.Dropped {
		m.record(ctx, journal.FeedRecord{Source: "poll", Event: "dropped_duplicate", TxnID: id, At: m.clock.Now()})
	}
	if res.Changed() {
		m.notify()
	}
	slog.Debug("feed poll merged",
		"fetched", len(page.Items), "accepted", len(res.Accepted),
		"refreshed", len(res.Refreshed), "dropped", len(res.Dropped))
}

func (m *Merger) handlePush(ctx context.Context, payload any) {
	switch ev := payload.(type) {
	case remote.PaymentCreated:
		m.mu.Lock()
		ent, accepted := m.window.ApplyCreated(ev, m.clock)
		m.mu.Unlock()

		if !accepted {
			slog.Warn("push payment dropped as duplicate",
				"txn_id", ent.ID, "order_id", ent.OrderID)
			m.record(ctx, journal.FeedRecord{Source: "push", Event: "dropped_duplicate", TxnID: ent.ID, OrderID: ent.OrderID, At: m.clock.Now()})
			return
		}
		m.record(ctx, journal.FeedRecord{Source: "push", Event: "accepted", TxnID: ent.ID, OrderID: ent.OrderID, At: m.clock.Now()})
		m.notify()

	case remote.OrderCancelled:
		m.mu.Lock()
		rewrote := m.window.ApplyCancelled(ev)
		m.mu.Unlock()

		event := "status_rewrite"
		if !rewrote {
			event = "unmatched"
		}
		m.record(ctx, journal.FeedRecord{Source: "push", Event: event, OrderID: ev.OrderID, At: m.clock.Now()})
		if rewrote {
			m.notify()
		}

	default:
		slog.Warn("unrecognized push payload", "payload", payload)
	}
}

func (m *Merger) notify() {
	if m.bus != nil {
		m.bus.Emit(TopicChanged, struct{}{})
	}
}

func (m *Merger) record(ctx context.Context, rec journal.FeedRecord) {
	if m.jrnl == nil {
		return
	}
	if err := m.jrnl.RecordFeedEvent(ctx, rec); err != nil {
		slog.Warn("journal write failed", "txn_id", rec.TxnID, "error", err)
	}
}
