package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opsync/internal/model"
)

func TestDiff_IdenticalTablesAgree(t *testing.T) {
	assert.Empty(t, Diff(Default(), Default()))
}

func TestDiff_RoundTripThroughExport(t *testing.T) {
	exported := Default().ToExport()
	rebuilt, err := FromExport(exported)
	require.NoError(t, err)

	assert.Empty(t, Diff(Default(), rebuilt))
	assert.Empty(t, rebuilt.Validate())
}

func TestDiff_DetectsNextDrift(t *testing.T) {
	left := Default()

	ex := Default().ToExport()
	rule := ex.Kinds["alert"].Actions["dismiss"]
	rule.Next = "resolved" // backend drifted
	ex.Kinds["alert"].Actions["dismiss"] = rule
	right, err := FromExport(ex)
	require.NoError(t, err)

	changes := Diff(left, right)
	require.Len(t, changes, 1)
	assert.Equal(t, model.KindAlert, changes[0].Kind)
	assert.Equal(t, model.ActionDismiss, changes[0].Action)
	assert.Equal(t, "next", changes[0].Field)
	assert.Equal(t, "dismissed", changes[0].Left)
	assert.Equal(t, "resolved", changes[0].Right)
}

func TestDiff_DetectsMissingRule(t *testing.T) {
	ex := Default().ToExport()
	delete(ex.Kinds["alert"].Actions, "clear")
	right, err := FromExport(ex)
	require.NoError(t, err)

	changes := Diff(Default(), right)
	require.Len(t, changes, 1)
	assert.Equal(t, "rule", changes[0].Field)
	assert.Equal(t, "declared", changes[0].Left)
	assert.Equal(t, "(absent)", changes[0].Right)
}

func TestDiff_DetectsMissingKind(t *testing.T) {
	ex := Default().ToExport()
	delete(ex.Kinds, "customer_payment")
	right, err := FromExport(ex)
	require.NoError(t, err)

	changes := Diff(Default(), right)
	require.Len(t, changes, 1)
	assert.Equal(t, model.KindCustomerPayment, changes[0].Kind)
	assert.Equal(t, "kind", changes[0].Field)
}

func TestDiff_DeterministicOrder(t *testing.T) {
	ex := Default().ToExport()
	delete(ex.Kinds["alert"].Actions, "dismiss")
	delete(ex.Kinds["approval_task"].Actions, "approve")
	right, err := FromExport(ex)
	require.NoError(t, err)

	first := Diff(Default(), right)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Diff(Default(), right))
	}
	// Kinds are reported lexically: alert before approval_task.
	require.Len(t, first, 2)
	assert.Equal(t, model.KindAlert, first[0].Kind)
	assert.Equal(t, model.KindApprovalTask, first[1].Kind)
}

func TestFromExport_RejectsEmptyAndContradictory(t *testing.T) {
	_, err := FromExport(Export{})
	assert.Error(t, err)

	_, err = FromExport(Export{Kinds: map[string]KindExport{
		"alert": {
			Statuses: []string{"open"},
			Actions:  map[string]RuleExport{"add_note": {Next: "open", NoChange: true}},
		},
	}})
	assert.Error(t, err)
}

func TestChange_String(t *testing.T) {
	c := Change{Kind: model.KindAlert, Action: model.ActionDismiss, Field: "next", Left: "dismissed", Right: "resolved"}
	assert.Equal(t, "alert.dismiss: next: dismissed != resolved", c.String())

	k := Change{Kind: model.KindAlert, Field: "kind", Left: "declared", Right: "(absent)"}
	assert.Equal(t, "alert: kind: declared != (absent)", k.String())
}
