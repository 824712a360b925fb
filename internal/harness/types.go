package harness

import (
	"fmt"

	"github.com/roach88/opsync/internal/model"
)

// TraceEvent is one recorded scenario step outcome. Traces carry no
// timestamps so golden files stay byte-stable.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"` // "mutation", "poll", "push_created", "push_cancelled"

	// Mutation fields.
	ID      string `json:"id,omitempty"`
	Action  string `json:"action,omitempty"`
	From    string `json:"from,omitempty"`
	Outcome string `json:"outcome,omitempty"` // "confirmed", "rolled_back", "rejected"
	Final   string `json:"final,omitempty"`
	Error   string `json:"error,omitempty"`

	// Feed fields.
	Accepted  []string `json:"accepted,omitempty"`
	Refreshed []string `json:"refreshed,omitempty"`
	Dropped   []string `json:"dropped,omitempty"`
	OrderID  string   `json:"order_id,omitempty"`
	Entered  bool     `json:"entered,omitempty"`
	Rewrote  bool     `json:"rewrote,omitempty"`
}

// canonicalMap converts the event for canonical JSON output. Only set
// fields appear, so traces stay compact and stable.
func (e TraceEvent) canonicalMap() map[string]any {
	m := map[string]any{"seq": e.Seq, "type": e.Type}
	setStr := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	setStr("id", e.ID)
	setStr("action", e.Action)
	setStr("from", e.From)
	setStr("outcome", e.Outcome)
	setStr("final", e.Final)
	setStr("error", e.Error)
	setStr("order_id", e.OrderID)
	if e.Accepted != nil {
		m["accepted"] = toAnySlice(e.Accepted)
	}
	if e.Refreshed != nil {
		m["refreshed"] = toAnySlice(e.Refreshed)
	}
	if e.Dropped != nil {
		m["dropped"] = toAnySlice(e.Dropped)
	}
	if e.Type == "push_created" {
		m["entered"] = e.Entered
	}
	if e.Type == "push_cancelled" {
		m["rewrote"] = e.Rewrote
	}
	return m
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Result is the outcome of running one scenario.
type Result struct {
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Final state, for expectation checks and inspection.
	Entities []model.Entity `json:"-"`
	Feed     []model.Entity `json:"-"`
	Summary  model.Summary  `json:"-"`
}

// NewResult creates an empty passing result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a failed expectation and marks the result failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
