// Package feed merges polled pages and realtime push events into one
// bounded live-transaction window.
//
// The window holds the most recent transactions, newest first, and
// enforces two identity keys at once: no two elements share an ID, and
// no two share a non-empty OrderID. Polls and pushes race against each
// other (a pushed payment usually shows up in the next poll too), so
// every ingestion path dedups against both keys. A re-polled ID is the
// same entity reported again: the newer server snapshot replaces the
// window copy. An OrderID collision under a different ID is two
// ingestion paths minting different synthetic ids for one business
// transaction: there the first arrival wins and the later payload drops.
package feed

import (
	"github.com/google/uuid"

	"github.com/roach88/opsync/internal/model"
	"github.com/roach88/opsync/internal/remote"
)

// DefaultCapacity is the window cap. Older elements fall off the end.
const DefaultCapacity = 20

// IDGenerator mints synthetic ids for push payments that arrive without
// one. Implemented by UUIDv7Generator (production) and
// testutil.FixedIDGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator mints time-sortable UUIDv7 ids. Stateless, safe for
// concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Window is the bounded live feed, newest first. Not safe for concurrent
// use; Merger serializes access.
type Window struct {
	capacity int
	gen      IDGenerator
	items    []model.Entity
	byID     map[string]struct{}
	byOrder  map[string]struct{}
}

// NewWindow creates an empty window. A non-positive capacity means
// DefaultCapacity; a nil generator means UUIDv7Generator.
func NewWindow(capacity int, gen IDGenerator) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	return &Window{
		capacity: capacity,
		gen:      gen,
		byID:     make(map[string]struct{}),
		byOrder:  make(map[string]struct{}),
	}
}

// Len returns the current element count.
func (w *Window) Len() int { return len(w.items) }

// Snapshot returns a copy of the window, newest first.
func (w *Window) Snapshot() []model.Entity {
	out := make([]model.Entity, len(w.items))
	copy(out, w.items)
	return out
}

// MergeResult reports what one poll merge did, for journaling.
type MergeResult struct {
	Accepted  []string // ids new to the window, prepended
	Refreshed []string // ids already present, replaced by the newer payload
	Dropped   []string // ids dropped as duplicates (either key)
}

// Changed reports whether the merge modified the window.
func (r MergeResult) Changed() bool {
	return len(r.Accepted) > 0 || len(r.Refreshed) > 0
}

// MergePoll folds a polled batch into the window: incoming before
// existing, first occurrence per ID and per non-empty OrderID wins over
// the concatenated sequence, truncated to capacity. An incoming item
// whose ID is already in the window replaces the older copy and moves
// forward with the batch. Merging the same batch twice leaves the
// window unchanged the second time.
func (w *Window) MergePoll(items []model.Entity) MergeResult {
	var res MergeResult
	fresh := make([]model.Entity, 0, len(items))
	refreshed := make(map[string]struct{})
	for _, ent := range items {
		if containsKey(fresh, ent) || w.orderHeldByOther(ent) {
			res.Dropped = append(res.Dropped, ent.ID)
			continue
		}
		fresh = append(fresh, ent)
		if _, ok := w.byID[ent.ID]; ok {
			refreshed[ent.ID] = struct{}{}
			res.Refreshed = append(res.Refreshed, ent.ID)
		} else {
			res.Accepted = append(res.Accepted, ent.ID)
		}
	}
	if len(fresh) == 0 {
		return res
	}
	if len(refreshed) > 0 {
		kept := w.items[:0]
		for _, ent := range w.items {
			if _, ok := refreshed[ent.ID]; !ok {
				kept = append(kept, ent)
			}
		}
		w.items = kept
	}
	w.items = append(fresh, w.items...)
	w.truncate()
	w.reindex()
	return res
}

// ApplyCreated ingests a push payment. A payload without a txn id gets a
// synthetic one. Returns the constructed entity and whether it entered
// the window; duplicates by either key are dropped, first arrival wins.
func (w *Window) ApplyCreated(ev remote.PaymentCreated, at model.Clock) (model.Entity, bool) {
	ent := model.Entity{
		ID:          ev.TxnID,
		Kind:        model.KindLiveTransaction,
		Status:      ev.Status,
		OrderID:     ev.OrderID,
		Amount:      ev.Amount,
		Currency:    ev.Currency,
		Description: ev.Description,
	}
	if ent.ID == "" {
		ent.ID = w.gen.Generate()
	}
	if ent.Status == "" {
		ent.Status = model.StatusPending
	}
	if at != nil {
		ent.LastUpdatedAt = at.Now()
	}
	if w.duplicate(ent) {
		return ent, false
	}
	w.items = append([]model.Entity{ent}, w.items...)
	w.truncate()
	w.reindex()
	return ent, true
}

// ApplyCancelled rewrites the status of the transaction matching the
// cancelled order, in place. Position and window size are unchanged.
// Returns false when no element matches.
func (w *Window) ApplyCancelled(ev remote.OrderCancelled) bool {
	if ev.OrderID == "" {
		return false
	}
	for i := range w.items {
		if w.items[i].OrderID == ev.OrderID {
			w.items[i].Status = model.StatusCancelled
			return true
		}
	}
	return false
}

func (w *Window) duplicate(ent model.Entity) bool {
	if _, ok := w.byID[ent.ID]; ok {
		return true
	}
	if ent.OrderID != "" {
		if _, ok := w.byOrder[ent.OrderID]; ok {
			return true
		}
	}
	return false
}

// orderHeldByOther reports whether an element with a different ID
// already holds the incoming item's non-empty OrderID.
func (w *Window) orderHeldByOther(ent model.Entity) bool {
	if ent.OrderID == "" {
		return false
	}
	if _, ok := w.byOrder[ent.OrderID]; !ok {
		return false
	}
	for _, e := range w.items {
		if e.OrderID == ent.OrderID {
			return e.ID != ent.ID
		}
	}
	return false
}

func containsKey(items []model.Entity, ent model.Entity) bool {
	for _, e := range items {
		if e.ID == ent.ID {
			return true
		}
		if ent.OrderID != "" && e.OrderID == ent.OrderID {
			return true
		}
	}
	return false
}

func (w *Window) truncate() {
	if len(w.items) > w.capacity {
		w.items = w.items[:w.capacity]
	}
}

func (w *Window) reindex() {
	clear(w.byID)
	clear(w.byOrder)
	for _, ent := range w.items {
		w.byID[ent.ID] = struct{}{}
		if ent.OrderID != "" {
			w.byOrder[ent.OrderID] = struct{}{}
		}
	}
}
