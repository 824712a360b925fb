// Package coordinator implements optimistic mutation over a remote
// entity collection.
//
// A Coordinator owns one in-memory working set of entities of a single
// kind. Apply speculatively transitions the local entity using the
// transition table, publishes the optimistic state so subscribers render
// immediately, posts the mutation to the backend, then reconciles:
// adopt the server entity wholesale on success, restore the snapshot
// verbatim on any failure.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/opsync/internal/bus"
	"github.com/roach88/opsync/internal/journal"
	"github.com/roach88/opsync/internal/model"
	"github.com/roach88/opsync/internal/remote"
	"github.com/roach88/opsync/internal/transition"
)

// Change types published on the bus after every working-set update.
const (
	ChangeUpdated    = "updated"     // optimistic or confirmed status change
	ChangeRemoved    = "removed"     // entity left the working set
	ChangeRolledBack = "rolled_back" // mutation failed, snapshot restored
	ChangeLoaded     = "loaded"      // working set replaced from the backend
)

// ChangeEvent is the bus payload for working-set changes. Subscribers
// re-read the coordinator; the event carries identity, not state.
type ChangeEvent struct {
	Kind model.Kind
	ID   string
	Type string
}

// Coordinator is the optimistic mutation engine for one entity kind.
//
// Thread-safety model:
//   - all exported methods are safe from any goroutine
//   - the working set and summary counters mutate under one mutex, so
//     a list render and its counter badge can never disagree
//   - the remote call in Apply runs outside the lock; per-entity
//     in-flight markers serialize concurrent mutations of one entity
type Coordinator struct {
	kind   model.Kind
	client remote.Client
	table  *transition.Table
	clock  model.Clock
	bus    *bus.Bus         // optional
	jrnl   *journal.Journal // optional

	mu       sync.Mutex
	order    []string // render order, insertion-stable
	byID     map[string]model.Entity
	inflight map[string]model.Action
	summary  *model.Summary // optional, nil disables counter tracking
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the timestamp source for optimistic transitions.
// Tests pass a deterministic clock; the default is wall time.
func WithClock(c model.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithBus publishes a ChangeEvent on topic "<kind>:changed" after every
// working-set update.
func WithBus(b *bus.Bus) Option {
	return func(co *Coordinator) { co.bus = b }
}

// WithJournal records every mutation outcome. Journal failures are
// logged and swallowed: diagnostics never affect the working set.
func WithJournal(j *journal.Journal) Option {
	return func(co *Coordinator) { co.jrnl = j }
}

// WithSummary attaches counter tracking. The summary moves in the same
// critical section as the working set: an optimistic removal decrements
// the category counter in the same lock hold, and a rollback restores
// both together.
func WithSummary(s *model.Summary) Option {
	return func(co *Coordinator) { co.summary = s }
}

// New creates a Coordinator for one entity kind.
func New(kind model.Kind, client remote.Client, table *transition.Table, opts ...Option) *Coordinator {
	c := &Coordinator{
		kind:     kind,
		client:   client,
		table:    table,
		clock:    model.SystemClock{},
		byID:     make(map[string]model.Entity),
		inflight: make(map[string]model.Action),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Topic returns the bus topic this coordinator publishes on.
func (c *Coordinator) Topic() string {
	return string(c.kind) + ":changed"
}

// Load replaces the working set with a fresh page from the backend.
// In-flight mutations are not interrupted; their reconciliation applies
// on top of the new set.
func (c *Coordinator) Load(ctx context.Context, filter model.Filter) error {
	if filter.Kind == "" {
		filter.Kind = c.kind
	}
	page, err := c.client.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("load %s working set: %w", c.kind, err)
	}

	c.mu.Lock()
	c.order = c.order[:0]
	c.byID = make(map[string]model.Entity, len(page.Items))
	for _, ent := range page.Items {
		if _, dup := c.byID[ent.ID]; dup {
			continue
		}
		c.order = append(c.order, ent.ID)
		c.byID[ent.ID] = ent
	}
	c.mu.Unlock()

	slog.Debug("working set loaded",
		"kind", c.kind, "count", len(page.Items), "total", page.Total)
	c.notify(ChangeEvent{Kind: c.kind, Type: ChangeLoaded})
	return nil
}

// Seed replaces the working set directly, bypassing the backend. Used
// by the scenario harness and by callers hydrating from a push payload.
func (c *Coordinator) Seed(entities []model.Entity) {
	c.mu.Lock()
	c.order = c.order[:0]
	c.byID = make(map[string]model.Entity, len(entities))
	for _, ent := range entities {
		if _, dup := c.byID[ent.ID]; dup {
			continue
		}
		c.order = append(c.order, ent.ID)
		c.byID[ent.ID] = ent
	}
	c.mu.Unlock()
	c.notify(ChangeEvent{Kind: c.kind, Type: ChangeLoaded})
}

// Entities returns the working set in render order.
func (c *Coordinator) Entities() []model.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Entity, 0, len(c.order))
	for _, id := range c.order {
		if ent, ok := c.byID[id]; ok {
			out = append(out, ent)
		}
	}
	return out
}

// Get returns the entity with the given id, if present.
func (c *Coordinator) Get(id string) (model.Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.byID[id]
	return ent, ok
}

// InFlight reports whether a mutation for id is awaiting reconciliation.
func (c *Coordinator) InFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[id]
	return ok
}

// Summary returns a copy of the counter summary, or a zero summary when
// counter tracking is disabled.
func (c *Coordinator) Summary() model.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return *model.NewSummary()
	}
	return *c.summary.Clone()
}

// pending is the rollback snapshot for one in-flight mutation.
type pending struct {
	prev        model.Entity
	prevIdx     int // position in order, for restoring optimistic removals
	removed     bool
	prevSummary *model.Summary
	predicted   model.Status
	rule        transition.Rule
}

// Apply runs one optimistic mutation: predict the next status from the
// transition table, update the local entity (and counters) immediately,
// post the action to the backend, then reconcile.
//
// On success the server's entity replaces the local one wholesale, so
// server-computed fields are never clobbered by the speculation. On any
// failure (transport or semantic) the pre-mutation snapshot is restored
// verbatim, timestamp included, and the error is returned for surfacing.
//
// A second Apply for the same id while one is in flight returns
// *BusyError without touching state.
func (c *Coordinator) Apply(ctx context.Context, id string, action model.Action, metadata map[string]string) (model.Entity, error) {
	c.mu.Lock()
	if prior, busy := c.inflight[id]; busy {
		c.mu.Unlock()
		return model.Entity{}, &BusyError{ID: id, InFlight: prior}
	}
	ent, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return model.Entity{}, &NotFoundError{Kind: c.kind, ID: id}
	}

	next, err := c.table.Next(c.kind, ent.Status, action)
	if err != nil {
		c.mu.Unlock()
		return model.Entity{}, err
	}
	rule, _ := c.table.Rule(c.kind, action)

	pend := pending{prev: ent, prevIdx: c.indexLocked(id), predicted: next, rule: rule}

	optimistic := ent
	optimistic.Status = next
	optimistic.LastUpdatedAt = c.clock.Now()
	c.byID[id] = optimistic

	changeType := ChangeUpdated
	if rule.OptimisticRemove {
		pend.removed = true
		c.removeFromOrderLocked(id)
		if c.summary != nil {
			pend.prevSummary = c.summary.Clone()
			c.adjustSummaryLocked(ent, action)
		}
		changeType = ChangeRemoved
	}

	c.inflight[id] = action
	c.mu.Unlock()

	slog.Debug("optimistic transition applied",
		"kind", c.kind, "id", id, "action", action,
		"from", ent.Status, "to", next)
	c.notify(ChangeEvent{Kind: c.kind, ID: id, Type: changeType})

	server, mutateErr := c.client.Mutate(ctx, id, action, metadata)

	c.mu.Lock()
	delete(c.inflight, id)

	if mutateErr != nil {
		c.rollbackLocked(id, pend)
		c.mu.Unlock()

		slog.Warn("mutation rejected, snapshot restored",
			"kind", c.kind, "id", id, "action", action, "error", mutateErr)
		c.record(ctx, journal.MutationRecord{
			Kind: c.kind, EntityID: id, Action: action,
			PrevStatus: pend.prev.Status, PredictedStatus: next,
			Outcome: journal.OutcomeRolledBack, FinalStatus: pend.prev.Status,
			Error: mutateErr.Error(), At: c.clock.Now(),
		})
		c.notify(ChangeEvent{Kind: c.kind, ID: id, Type: ChangeRolledBack})
		return model.Entity{}, fmt.Errorf("apply %s to %s/%s: %w", action, c.kind, id, mutateErr)
	}

	// Confirmed. Adopt the server entity wholesale, then honor removal
	// semantics: Removes rules take the entity out only now that the
	// backend agrees; OptimisticRemove rules already did.
	finalChange := ChangeUpdated
	switch {
	case rule.OptimisticRemove:
		delete(c.byID, id)
		finalChange = ChangeRemoved
	case rule.Removes:
		c.removeFromOrderLocked(id)
		delete(c.byID, id)
		if c.summary != nil {
			c.adjustSummaryLocked(ent, action)
		}
		finalChange = ChangeRemoved
	default:
		c.byID[id] = server
	}
	c.mu.Unlock()

	slog.Info("mutation confirmed",
		"kind", c.kind, "id", id, "action", action, "status", server.Status)
	c.record(ctx, journal.MutationRecord{
		Kind: c.kind, EntityID: id, Action: action,
		PrevStatus: pend.prev.Status, PredictedStatus: next,
		Outcome: journal.OutcomeConfirmed, FinalStatus: server.Status,
		At: c.clock.Now(),
	})
	c.notify(ChangeEvent{Kind: c.kind, ID: id, Type: finalChange})
	return server, nil
}

// Clear removes a finished alert from the working set through the same
// optimistic path. Clearing is an absorbing transition: the entity is
// gone after the backend confirms, so the removal is deferred like any
// other Removes rule.
func (c *Coordinator) Clear(ctx context.Context, id string) error {
	_, err := c.Apply(ctx, id, model.ActionClear, nil)
	return err
}

// rollbackLocked restores the pre-mutation snapshot: the entity verbatim
// (original timestamp included), its position in render order, and the
// counter summary. Caller holds c.mu.
func (c *Coordinator) rollbackLocked(id string, pend pending) {
	c.byID[id] = pend.prev
	if pend.removed {
		c.insertIntoOrderLocked(id, pend.prevIdx)
	}
	if pend.prevSummary != nil {
		*c.summary = *pend.prevSummary
	}
}

// adjustSummaryLocked moves the counters for a removal-on-decision
// action. Caller holds c.mu.
func (c *Coordinator) adjustSummaryLocked(ent model.Entity, action model.Action) {
	if ent.Category != "" {
		if n := c.summary.Counters[ent.Category]; n > 0 {
			c.summary.Counters[ent.Category] = n - 1
		}
	}
	if action == model.ActionApprove {
		c.summary.ApprovedToday++
	}
}

func (c *Coordinator) indexLocked(id string) int {
	for i, v := range c.order {
		if v == id {
			return i
		}
	}
	return -1
}

func (c *Coordinator) removeFromOrderLocked(id string) {
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Coordinator) insertIntoOrderLocked(id string, idx int) {
	if idx < 0 || idx > len(c.order) {
		idx = len(c.order)
	}
	c.order = append(c.order, "")
	copy(c.order[idx+1:], c.order[idx:])
	c.order[idx] = id
}

func (c *Coordinator) notify(ev ChangeEvent) {
	if c.bus != nil {
		c.bus.Emit(c.Topic(), ev)
	}
}

func (c *Coordinator) record(ctx context.Context, rec journal.MutationRecord) {
	if c.jrnl == nil {
		return
	}
	if err := c.jrnl.RecordMutation(ctx, rec); err != nil {
		slog.Warn("journal write failed", "kind", c.kind, "id", rec.EntityID, "error", err)
	}
}

// Auxiliary runs a best-effort secondary fetch alongside a confirmed
// mutation (order details for an alert, payment history for a task).
// Failures degrade to the zero value and false: an auxiliary read never
// rolls back a mutation that the backend already accepted.
func Auxiliary[T any](ctx context.Context, name string, fetch func(context.Context) (T, error)) (T, bool) {
	v, err := fetch(ctx)
	if err != nil {
		slog.Warn("auxiliary fetch degraded", "fetch", name, "error", err)
		var zero T
		return zero, false
	}
	return v, true
}
