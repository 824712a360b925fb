package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/opsync/internal/model"
	"github.com/roach88/opsync/internal/transition"
)

// CompileError reports a structural problem in a table document, with
// CUE source position when available.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileTable parses the "table" struct of a CUE value into a
// transition.Table. The result is structurally complete but not
// validated; callers run Table.Validate to collect semantic problems.
//
// Typical use:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(doc)
//	table, err := compiler.CompileTable(v.LookupPath(cue.ParsePath("table")))
func CompileTable(v cue.Value) (*transition.Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "table", Message: "table struct is required"}
	}

	kinds := make(map[model.Kind]transition.KindSpec)

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		kindName := iter.Selector().Unquoted()
		spec, err := compileKind(iter.Value(), kindName)
		if err != nil {
			return nil, err
		}
		kinds[model.Kind(kindName)] = spec
	}

	if len(kinds) == 0 {
		return nil, &CompileError{Field: "table", Message: "at least one kind is required", Pos: v.Pos()}
	}

	return transition.New(kinds), nil
}

func compileKind(v cue.Value, kindName string) (transition.KindSpec, error) {
	spec := transition.KindSpec{Rules: make(map[model.Action]transition.Rule)}

	statuses, err := compileStatusList(v.LookupPath(cue.ParsePath("statuses")), kindName+".statuses", true)
	if err != nil {
		return spec, err
	}
	spec.Statuses = statuses

	terminal, err := compileStatusList(v.LookupPath(cue.ParsePath("terminal")), kindName+".terminal", false)
	if err != nil {
		return spec, err
	}
	spec.Terminal = terminal

	actionsVal := v.LookupPath(cue.ParsePath("actions"))
	if !actionsVal.Exists() {
		// Feed-only kinds (live transactions) declare no actions.
		return spec, nil
	}

	iter, iterErr := actionsVal.Fields()
	if iterErr != nil {
		return spec, formatCUEError(iterErr)
	}
	for iter.Next() {
		actionName := iter.Selector().Unquoted()
		rule, err := compileRule(iter.Value(), kindName+"."+actionName)
		if err != nil {
			return spec, err
		}
		spec.Rules[model.Action(actionName)] = rule
	}

	return spec, nil
}

func compileRule(v cue.Value, field string) (transition.Rule, error) {
	var rule transition.Rule

	noChange, err := compileBool(v.LookupPath(cue.ParsePath("no_change")), field+".no_change")
	if err != nil {
		return rule, err
	}
	rule.NoChange = noChange

	nextVal := v.LookupPath(cue.ParsePath("next"))
	if nextVal.Exists() {
		if noChange {
			return rule, &CompileError{Field: field, Message: "both next and no_change set", Pos: v.Pos()}
		}
		next, err := nextVal.String()
		if err != nil {
			return rule, formatCUEError(err)
		}
		rule.Next = model.Status(next)
	} else if !noChange {
		return rule, &CompileError{Field: field, Message: "rule needs next or no_change", Pos: v.Pos()}
	}

	if rule.Terminal, err = compileBool(v.LookupPath(cue.ParsePath("terminal")), field+".terminal"); err != nil {
		return rule, err
	}
	if rule.Removes, err = compileBool(v.LookupPath(cue.ParsePath("removes")), field+".removes"); err != nil {
		return rule, err
	}
	if rule.OptimisticRemove, err = compileBool(v.LookupPath(cue.ParsePath("optimistic_remove")), field+".optimistic_remove"); err != nil {
		return rule, err
	}

	from, err := compileStatusList(v.LookupPath(cue.ParsePath("from")), field+".from", false)
	if err != nil {
		return rule, err
	}
	rule.From = from

	return rule, nil
}

func compileStatusList(v cue.Value, field string, required bool) ([]model.Status, error) {
	if !v.Exists() {
		if required {
			return nil, &CompileError{Field: field, Message: "list is required"}
		}
		return nil, nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []model.Status
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, model.Status(s))
	}

	if required && len(out) == 0 {
		return nil, &CompileError{Field: field, Message: "list must not be empty", Pos: v.Pos()}
	}
	return out, nil
}

func compileBool(v cue.Value, field string) (bool, error) {
	if !v.Exists() {
		return false, nil
	}
	b, err := v.Bool()
	if err != nil {
		return false, &CompileError{Field: field, Message: "expected bool", Pos: v.Pos()}
	}
	return b, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
