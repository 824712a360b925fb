package transition

import (
	"fmt"
	"slices"

	"github.com/roach88/opsync/internal/model"
)

// Change is one rule-level difference between two tables.
type Change struct {
	Kind   model.Kind
	Action model.Action // empty for kind-level differences
	Field  string       // "statuses", "terminal", "rule", "next", ...
	Left   string
	Right  string
}

func (c Change) String() string {
	if c.Action == "" {
		return fmt.Sprintf("%s: %s: %s != %s", c.Kind, c.Field, c.Left, c.Right)
	}
	return fmt.Sprintf("%s.%s: %s: %s != %s", c.Kind, c.Action, c.Field, c.Left, c.Right)
}

// Diff reports every difference between two tables in deterministic
// order (kinds, then actions, lexically). An empty result means the
// tables agree rule-for-rule. Used to diff the local table against the
// backend's exported table during integration testing.
func Diff(left, right *Table) []Change {
	var changes []Change

	kinds := unionKinds(left, right)
	for _, kind := range kinds {
		l, lok := left.kinds[kind]
		r, rok := right.kinds[kind]

		switch {
		case !lok:
			changes = append(changes, Change{Kind: kind, Field: "kind", Left: "(absent)", Right: "declared"})
			continue
		case !rok:
			changes = append(changes, Change{Kind: kind, Field: "kind", Left: "declared", Right: "(absent)"})
			continue
		}

		if !statusSetsEqual(l.Statuses, r.Statuses) {
			changes = append(changes, Change{
				Kind: kind, Field: "statuses",
				Left: fmt.Sprint(sortedStatuses(l.Statuses)), Right: fmt.Sprint(sortedStatuses(r.Statuses)),
			})
		}
		if !statusSetsEqual(l.Terminal, r.Terminal) {
			changes = append(changes, Change{
				Kind: kind, Field: "terminal",
				Left: fmt.Sprint(sortedStatuses(l.Terminal)), Right: fmt.Sprint(sortedStatuses(r.Terminal)),
			})
		}

		for _, action := range unionActions(l.Rules, r.Rules) {
			lr, lok := l.Rules[action]
			rr, rok := r.Rules[action]

			switch {
			case !lok:
				changes = append(changes, Change{Kind: kind, Action: action, Field: "rule", Left: "(absent)", Right: "declared"})
				continue
			case !rok:
				changes = append(changes, Change{Kind: kind, Action: action, Field: "rule", Left: "declared", Right: "(absent)"})
				continue
			}

			changes = append(changes, diffRule(kind, action, lr, rr)...)
		}
	}

	return changes
}

func diffRule(kind model.Kind, action model.Action, l, r Rule) []Change {
	var changes []Change
	add := func(field, left, right string) {
		changes = append(changes, Change{Kind: kind, Action: action, Field: field, Left: left, Right: right})
	}

	if l.Next != r.Next {
		add("next", string(l.Next), string(r.Next))
	}
	if l.NoChange != r.NoChange {
		add("no_change", fmt.Sprint(l.NoChange), fmt.Sprint(r.NoChange))
	}
	if l.Terminal != r.Terminal {
		add("terminal", fmt.Sprint(l.Terminal), fmt.Sprint(r.Terminal))
	}
	if l.Removes != r.Removes {
		add("removes", fmt.Sprint(l.Removes), fmt.Sprint(r.Removes))
	}
	if l.OptimisticRemove != r.OptimisticRemove {
		add("optimistic_remove", fmt.Sprint(l.OptimisticRemove), fmt.Sprint(r.OptimisticRemove))
	}
	if !statusSetsEqual(l.From, r.From) {
		add("from", fmt.Sprint(sortedStatuses(l.From)), fmt.Sprint(sortedStatuses(r.From)))
	}
	return changes
}

func unionKinds(a, b *Table) []model.Kind {
	seen := make(map[model.Kind]bool)
	for k := range a.kinds {
		seen[k] = true
	}
	for k := range b.kinds {
		seen[k] = true
	}
	kinds := make([]model.Kind, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func unionActions(a, b map[model.Action]Rule) []model.Action {
	seen := make(map[model.Action]bool)
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	actions := make([]model.Action, 0, len(seen))
	for k := range seen {
		actions = append(actions, k)
	}
	slices.Sort(actions)
	return actions
}

func statusSetsEqual(a, b []model.Status) bool {
	return slices.Equal(sortedStatuses(a), sortedStatuses(b))
}

func sortedStatuses(in []model.Status) []model.Status {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
