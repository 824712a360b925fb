package model

import "time"

// Kind identifies an entity family. Each kind has its own status set and
// its own transition rules.
type Kind string

const (
	KindAlert           Kind = "alert"
	KindApprovalTask    Kind = "approval_task"
	KindLiveTransaction Kind = "live_transaction"
	KindCustomerPayment Kind = "customer_payment"
)

// Kinds lists all known kinds in declaration order.
var Kinds = []Kind{KindAlert, KindApprovalTask, KindLiveTransaction, KindCustomerPayment}

// Status is an enumerated entity state from a kind-specific closed set.
type Status string

const (
	// Alert statuses.
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in_progress"
	StatusResolved     Status = "resolved"
	StatusDismissed    Status = "dismissed"
	// StatusCleared is the absorbing state for alerts removed from the
	// working set entirely. Cleared entities are never displayed.
	StatusCleared Status = "cleared"

	// Approval task statuses.
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"

	// Payment / live transaction statuses.
	StatusDeclined  Status = "declined"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Action is a user-triggered operation on an entity.
type Action string

const (
	ActionDismiss      Action = "dismiss"
	ActionResolve      Action = "resolve"
	ActionAcknowledge  Action = "acknowledge"
	ActionCheckGateway Action = "check_gateway"
	ActionReviewTxn    Action = "review_txn"
	ActionReconcile    Action = "reconcile"
	ActionAddNote      Action = "add_note"
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionRetryPayment Action = "retry_payment"
	ActionClear        Action = "clear"
)

// Entity is the synchronized record. ID is opaque and stable; OrderID is
// an optional business correlation key used for feed de-duplication.
// LastUpdatedAt is monotonically non-decreasing per ID under correct
// operation (a rollback restores the pre-mutation value verbatim, which
// is the one permitted regression).
type Entity struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Status        Status    `json:"status"`
	OrderID       string    `json:"order_id,omitempty"`
	Amount        int64     `json:"amount"` // minor units (cents)
	Currency      string    `json:"currency,omitempty"`
	Description   string    `json:"description,omitempty"`
	Severity      string    `json:"severity,omitempty"`
	Category      string    `json:"category,omitempty"` // task category, e.g. "refund"
	RetryEligible bool      `json:"retry_eligible,omitempty"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Equal reports whether two entities are field-for-field identical,
// including LastUpdatedAt. Used by rollback-completeness checks.
func (e Entity) Equal(other Entity) bool {
	return e.ID == other.ID &&
		e.Kind == other.Kind &&
		e.Status == other.Status &&
		e.OrderID == other.OrderID &&
		e.Amount == other.Amount &&
		e.Currency == other.Currency &&
		e.Description == other.Description &&
		e.Severity == other.Severity &&
		e.Category == other.Category &&
		e.RetryEligible == other.RetryEligible &&
		e.LastUpdatedAt.Equal(other.LastUpdatedAt)
}

// CanonicalMap returns the entity as a map suitable for MarshalCanonical.
// Timestamps are rendered as RFC 3339 UTC strings; zero-value optional
// fields are omitted so traces stay compact and stable.
func (e Entity) CanonicalMap() map[string]any {
	m := map[string]any{
		"id":     e.ID,
		"kind":   string(e.Kind),
		"status": string(e.Status),
		"amount": e.Amount,
	}
	if e.OrderID != "" {
		m["order_id"] = e.OrderID
	}
	if e.Currency != "" {
		m["currency"] = e.Currency
	}
	if e.Description != "" {
		m["description"] = e.Description
	}
	if e.Severity != "" {
		m["severity"] = e.Severity
	}
	if e.Category != "" {
		m["category"] = e.Category
	}
	if e.RetryEligible {
		m["retry_eligible"] = true
	}
	if !e.LastUpdatedAt.IsZero() {
		m["last_updated_at"] = e.LastUpdatedAt.UTC().Format(time.RFC3339)
	}
	return m
}

// Page is one page of a backend list response.
type Page struct {
	Items      []Entity `json:"items"`
	Total      int      `json:"total"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// Filter narrows a backend list request. Zero values mean "no filter".
type Filter struct {
	Kind   Kind   `json:"kind,omitempty"`
	Status Status `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

// Summary holds the aggregate counters displayed next to an approval
// queue. Counters is keyed by task category (e.g. "refund"). The summary
// and the pending list form a single consistency unit: an optimistic
// decision adjusts both, and a failed decision restores both.
type Summary struct {
	Counters      map[string]int `json:"counters"`
	ApprovedToday int            `json:"approved_today"`
}

// NewSummary creates an empty summary.
func NewSummary() *Summary {
	return &Summary{Counters: make(map[string]int)}
}

// Clone returns a deep copy. Used to snapshot the summary before an
// optimistic decision so a rollback can restore it verbatim.
func (s *Summary) Clone() *Summary {
	if s == nil {
		return nil
	}
	c := &Summary{
		Counters:      make(map[string]int, len(s.Counters)),
		ApprovedToday: s.ApprovedToday,
	}
	for k, v := range s.Counters {
		c.Counters[k] = v
	}
	return c
}
