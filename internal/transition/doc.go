// Package transition holds the status transition table: the single
// source of truth for the action -> next-status mapping used both for
// optimistic prediction and for display.
//
// The table is plain static data so it can be unit-tested exhaustively
// and diffed against the backend's authoritative table during
// integration testing. It must be kept in exact lockstep with the
// backend: its output is shown to the user before the backend confirms.
//
// Tables come from two places: the built-in Default() table, and CUE
// documents compiled by internal/compiler. Diff() reports rule-level
// differences between any two tables.
package transition
