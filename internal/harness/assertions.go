package harness

import "github.com/roach88/opsync/internal/model"

// checkExpectations validates the final state against the scenario's
// expect block. Entity checks compare id and status in order; seeded
// fields beyond those are the runner's concern, not the scenario's.
func checkExpectations(scenario *Scenario, result *Result) {
	if scenario.Expect.Entities != nil {
		compareList("entities", scenario.Expect.Entities, result.Entities, result)
	}
	if scenario.Expect.Feed != nil {
		compareList("feed", scenario.Expect.Feed, result.Feed, result)
	}
	if want := scenario.Expect.Summary; want != nil {
		for k, v := range want.Counters {
			if got := result.Summary.Counters[k]; got != v {
				result.AddError("summary counter %q: want %d, got %d", k, v, got)
			}
		}
		if result.Summary.ApprovedToday != want.ApprovedToday {
			result.AddError("summary approved_today: want %d, got %d",
				want.ApprovedToday, result.Summary.ApprovedToday)
		}
	}
}

func compareList(what string, want []EntitySeed, got []model.Entity, result *Result) {
	if len(want) != len(got) {
		result.AddError("%s: want %d elements, got %d", what, len(want), len(got))
		return
	}
	for i, w := range want {
		g := got[i]
		if w.ID != g.ID {
			result.AddError("%s[%d]: want id %s, got %s", what, i, w.ID, g.ID)
		}
		if w.Status != "" && model.Status(w.Status) != g.Status {
			result.AddError("%s[%d] (%s): want status %s, got %s", what, i, g.ID, w.Status, g.Status)
		}
		if w.OrderID != "" && w.OrderID != g.OrderID {
			result.AddError("%s[%d] (%s): want order_id %s, got %s", what, i, g.ID, w.OrderID, g.OrderID)
		}
	}
}
