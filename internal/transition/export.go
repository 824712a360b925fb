package transition

import (
	"fmt"

	"github.com/roach88/opsync/internal/model"
)

// Export is the serialized form of a Table, matching the shape the
// backend team exports for integration diffing. YAML field names are the
// wire contract; keep them stable.
type Export struct {
	Kinds map[string]KindExport `yaml:"kinds" json:"kinds"`
}

// KindExport serializes one kind's spec.
type KindExport struct {
	Statuses []string              `yaml:"statuses" json:"statuses"`
	Terminal []string              `yaml:"terminal" json:"terminal"`
	Actions  map[string]RuleExport `yaml:"actions" json:"actions"`
}

// RuleExport serializes one rule.
type RuleExport struct {
	Next             string   `yaml:"next,omitempty" json:"next,omitempty"`
	NoChange         bool     `yaml:"no_change,omitempty" json:"no_change,omitempty"`
	Terminal         bool     `yaml:"terminal,omitempty" json:"terminal,omitempty"`
	Removes          bool     `yaml:"removes,omitempty" json:"removes,omitempty"`
	OptimisticRemove bool     `yaml:"optimistic_remove,omitempty" json:"optimistic_remove,omitempty"`
	From             []string `yaml:"from,omitempty" json:"from,omitempty"`
}

// ToExport converts a Table to its serialized form.
func (t *Table) ToExport() Export {
	out := Export{Kinds: make(map[string]KindExport, len(t.kinds))}
	for kind, spec := range t.kinds {
		ke := KindExport{
			Statuses: statusStrings(spec.Statuses),
			Terminal: statusStrings(spec.Terminal),
			Actions:  make(map[string]RuleExport, len(spec.Rules)),
		}
		for action, rule := range spec.Rules {
			ke.Actions[string(action)] = RuleExport{
				Next:             string(rule.Next),
				NoChange:         rule.NoChange,
				Terminal:         rule.Terminal,
				Removes:          rule.Removes,
				OptimisticRemove: rule.OptimisticRemove,
				From:             statusStrings(rule.From),
			}
		}
		out.Kinds[string(kind)] = ke
	}
	return out
}

// FromExport builds a Table from its serialized form. The result is not
// validated; call Validate separately so the caller can report every
// problem at once.
func FromExport(ex Export) (*Table, error) {
	if len(ex.Kinds) == 0 {
		return nil, fmt.Errorf("table export declares no kinds")
	}

	kinds := make(map[model.Kind]KindSpec, len(ex.Kinds))
	for kindName, ke := range ex.Kinds {
		spec := KindSpec{
			Statuses: statusValues(ke.Statuses),
			Terminal: statusValues(ke.Terminal),
			Rules:    make(map[model.Action]Rule, len(ke.Actions)),
		}
		for actionName, re := range ke.Actions {
			if re.NoChange && re.Next != "" {
				return nil, fmt.Errorf("%s.%s: both next and no_change set", kindName, actionName)
			}
			spec.Rules[model.Action(actionName)] = Rule{
				Next:             model.Status(re.Next),
				NoChange:         re.NoChange,
				Terminal:         re.Terminal,
				Removes:          re.Removes,
				OptimisticRemove: re.OptimisticRemove,
				From:             statusValues(re.From),
			}
		}
		kinds[model.Kind(kindName)] = spec
	}
	return New(kinds), nil
}

func statusStrings(in []model.Status) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func statusValues(in []string) []model.Status {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Status, len(in))
	for i, s := range in {
		out[i] = model.Status(s)
	}
	return out
}
