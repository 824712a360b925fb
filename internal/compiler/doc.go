// Package compiler turns CUE transition-table documents into
// transition.Table values.
//
// Authoring the table in CUE keeps it static data with schema checking
// at compile time; the same document can be handed to the backend team
// and diffed against their authoritative table. Expected shape:
//
//	table: {
//		alert: {
//			statuses: ["open", "acknowledged", "dismissed"]
//			terminal: ["dismissed"]
//			actions: {
//				dismiss:  {next: "dismissed", terminal: true, removes: true}
//				add_note: {no_change: true}
//			}
//		}
//	}
//
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
package compiler
