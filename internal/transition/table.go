package transition

import (
	"fmt"
	"slices"

	"github.com/roach88/opsync/internal/model"
)

// Rule describes the outcome of one action on one kind.
//
// Exactly one of Next/NoChange is meaningful: a NoChange rule (e.g.
// add_note) leaves the current status untouched and all other flags
// false.
type Rule struct {
	// Next is the predicted status after the action.
	Next model.Status
	// NoChange marks an action that never changes status.
	NoChange bool
	// Terminal marks Next as a terminal status (no further transition
	// via normal action flow).
	Terminal bool
	// Removes marks an action whose confirmed success removes the entity
	// from the visible working set. Removal is deferred until the server
	// confirms; the optimistic step only updates status.
	Removes bool
	// OptimisticRemove marks an action that hides the entity from the
	// working set at optimistic time (approval decisions). A failed
	// mutation restores the entity together with any aggregate counters.
	OptimisticRemove bool
	// From restricts the statuses the action may be applied from.
	// Empty means any declared status.
	From []model.Status
}

// KindSpec declares one kind's closed status set and its rules.
type KindSpec struct {
	Statuses []model.Status
	Terminal []model.Status
	Rules    map[model.Action]Rule
}

// Table maps (kind, action) to a Rule. Immutable after construction in
// well-formed usage; the coordinator and the CLI share one instance.
type Table struct {
	kinds map[model.Kind]KindSpec
}

// New builds a table from kind specs. The specs map is copied so later
// caller mutation cannot corrupt the table.
func New(kinds map[model.Kind]KindSpec) *Table {
	copied := make(map[model.Kind]KindSpec, len(kinds))
	for k, spec := range kinds {
		rules := make(map[model.Action]Rule, len(spec.Rules))
		for a, r := range spec.Rules {
			r.From = slices.Clone(r.From)
			rules[a] = r
		}
		copied[k] = KindSpec{
			Statuses: slices.Clone(spec.Statuses),
			Terminal: slices.Clone(spec.Terminal),
			Rules:    rules,
		}
	}
	return &Table{kinds: copied}
}

// Next returns the predicted status for applying action to an entity of
// the given kind in the given current status.
//
// Undefined combinations return *UndefinedError rather than silently
// leaving the status unchanged; only rules declared NoChange may do
// that.
func (t *Table) Next(kind model.Kind, current model.Status, action model.Action) (model.Status, error) {
	spec, ok := t.kinds[kind]
	if !ok {
		return "", &UndefinedError{Kind: kind, Current: current, Action: action, Reason: "unknown kind"}
	}

	rule, ok := spec.Rules[action]
	if !ok {
		return "", &UndefinedError{Kind: kind, Current: current, Action: action, Reason: "no rule for action"}
	}

	if len(rule.From) > 0 && !slices.Contains(rule.From, current) {
		return "", &UndefinedError{
			Kind: kind, Current: current, Action: action,
			Reason: fmt.Sprintf("not applicable from status %q", current),
		}
	}

	if rule.NoChange {
		return current, nil
	}
	return rule.Next, nil
}

// Rule returns the rule for (kind, action) and whether it exists.
func (t *Table) Rule(kind model.Kind, action model.Action) (Rule, bool) {
	spec, ok := t.kinds[kind]
	if !ok {
		return Rule{}, false
	}
	rule, ok := spec.Rules[action]
	return rule, ok
}

// Kind returns the spec for a kind and whether it exists.
func (t *Table) Kind(kind model.Kind) (KindSpec, bool) {
	spec, ok := t.kinds[kind]
	return spec, ok
}

// KindNames returns the declared kinds in lexical order, for
// deterministic iteration in Validate and Diff.
func (t *Table) KindNames() []model.Kind {
	names := make([]model.Kind, 0, len(t.kinds))
	for k := range t.kinds {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// IsTerminal reports whether status is terminal for kind.
func (t *Table) IsTerminal(kind model.Kind, status model.Status) bool {
	spec, ok := t.kinds[kind]
	if !ok {
		return false
	}
	return slices.Contains(spec.Terminal, status)
}

// Validate checks internal consistency:
//   - every rule's Next status is declared for its kind
//   - every From status is declared
//   - Terminal on a rule matches the kind's terminal set
//   - terminal statuses are a subset of declared statuses
//   - NoChange rules carry no other flags
//
// Returns all problems found, not just the first.
func (t *Table) Validate() []error {
	var errs []error

	for _, kind := range t.KindNames() {
		spec := t.kinds[kind]

		declared := func(s model.Status) bool {
			return slices.Contains(spec.Statuses, s)
		}

		for _, term := range spec.Terminal {
			if !declared(term) {
				errs = append(errs, fmt.Errorf("%s: terminal status %q not declared", kind, term))
			}
		}

		for _, action := range sortedActions(spec.Rules) {
			rule := spec.Rules[action]

			if rule.NoChange {
				if rule.Next != "" || rule.Terminal || rule.Removes || rule.OptimisticRemove {
					errs = append(errs, fmt.Errorf("%s.%s: no_change rule must not set next or flags", kind, action))
				}
				continue
			}

			if rule.Next == "" {
				errs = append(errs, fmt.Errorf("%s.%s: rule has neither next nor no_change", kind, action))
				continue
			}
			if !declared(rule.Next) {
				errs = append(errs, fmt.Errorf("%s.%s: next status %q not declared", kind, action, rule.Next))
			}
			if rule.Terminal != slices.Contains(spec.Terminal, rule.Next) {
				errs = append(errs, fmt.Errorf("%s.%s: terminal flag disagrees with kind terminal set for %q", kind, action, rule.Next))
			}
			for _, from := range rule.From {
				if !declared(from) {
					errs = append(errs, fmt.Errorf("%s.%s: from status %q not declared", kind, action, from))
				}
			}
		}
	}

	return errs
}

func sortedActions(rules map[model.Action]Rule) []model.Action {
	actions := make([]model.Action, 0, len(rules))
	for a := range rules {
		actions = append(actions, a)
	}
	slices.Sort(actions)
	return actions
}
