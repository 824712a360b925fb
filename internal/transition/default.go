package transition

import "github.com/roach88/opsync/internal/model"

// Default returns the built-in transition table. It mirrors the backend's
// authoritative table; `opsync diff` compares the two exports during
// integration testing to catch drift.
func Default() *Table {
	active := []model.Status{model.StatusOpen, model.StatusAcknowledged, model.StatusInProgress}

	return New(map[model.Kind]KindSpec{
		model.KindAlert: {
			Statuses: []model.Status{
				model.StatusOpen, model.StatusAcknowledged, model.StatusInProgress,
				model.StatusResolved, model.StatusDismissed, model.StatusCleared,
			},
			Terminal: []model.Status{model.StatusResolved, model.StatusDismissed, model.StatusCleared},
			Rules: map[model.Action]Rule{
				model.ActionAcknowledge: {
					Next: model.StatusAcknowledged,
					From: []model.Status{model.StatusOpen},
				},
				model.ActionCheckGateway: {Next: model.StatusInProgress, From: active},
				model.ActionReviewTxn:    {Next: model.StatusInProgress, From: active},
				model.ActionReconcile:    {Next: model.StatusInProgress, From: active},
				model.ActionResolve: {
					Next: model.StatusResolved, Terminal: true, Removes: true,
					From: active,
				},
				model.ActionDismiss: {
					Next: model.StatusDismissed, Terminal: true, Removes: true,
					From: active,
				},
				// Clearing moves a finished alert out of the working set
				// entirely (absorbing state, never displayed).
				model.ActionClear: {
					Next: model.StatusCleared, Terminal: true, Removes: true,
					From: []model.Status{model.StatusResolved, model.StatusDismissed},
				},
				model.ActionAddNote: {NoChange: true},
			},
		},

		model.KindApprovalTask: {
			Statuses: []model.Status{model.StatusPending, model.StatusApproved, model.StatusRejected},
			Terminal: []model.Status{model.StatusApproved, model.StatusRejected},
			Rules: map[model.Action]Rule{
				// Decisions hide the task optimistically; the pending
				// list and the summary counters move together.
				model.ActionApprove: {
					Next: model.StatusApproved, Terminal: true, OptimisticRemove: true,
					From: []model.Status{model.StatusPending},
				},
				model.ActionReject: {
					Next: model.StatusRejected, Terminal: true, OptimisticRemove: true,
					From: []model.Status{model.StatusPending},
				},
				model.ActionAddNote: {NoChange: true},
			},
		},

		model.KindCustomerPayment: {
			Statuses: []model.Status{model.StatusPending, model.StatusDeclined, model.StatusCompleted},
			Terminal: []model.Status{model.StatusCompleted},
			Rules: map[model.Action]Rule{
				// Retry eligibility is a payload flag independent of
				// status; the transition itself lands on pending.
				model.ActionRetryPayment: {
					Next: model.StatusPending,
					From: []model.Status{model.StatusDeclined, model.StatusPending},
				},
				model.ActionAddNote: {NoChange: true},
			},
		},

		// Live transactions are feed-only: status rewrites arrive via
		// push events (order:cancelled), not via user actions.
		model.KindLiveTransaction: {
			Statuses: []model.Status{model.StatusPending, model.StatusCompleted, model.StatusCancelled},
			Terminal: []model.Status{model.StatusCompleted, model.StatusCancelled},
			Rules:    map[model.Action]Rule{},
		},
	})
}
