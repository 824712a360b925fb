package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/opsync/internal/model"
)

// Scenario is one conformance scenario: a seeded working set, a step
// sequence driving mutations and feed ingestion, and expectations on
// the final state.
type Scenario struct {
	// Name uniquely identifies the scenario; golden traces are stored
	// under testdata/golden/<name>.golden.
	Name string `yaml:"name"`

	Description string `yaml:"description,omitempty"`

	// Kind is the entity kind the coordinator manages.
	Kind model.Kind `yaml:"kind"`

	// Table optionally names a CUE transition-table file, relative to
	// the scenario file. Empty means the built-in table.
	Table string `yaml:"table,omitempty"`

	// Entities seed the coordinator's working set.
	Entities []EntitySeed `yaml:"entities,omitempty"`

	// Summary seeds the counter summary. Omit to disable tracking.
	Summary *SummarySeed `yaml:"summary,omitempty"`

	Steps []Step `yaml:"steps"`

	Expect Expectations `yaml:"expect"`

	// dir is where the scenario file lives, for resolving Table.
	dir string
}

// EntitySeed is the YAML shape of a seeded or expected entity.
type EntitySeed struct {
	ID          string `yaml:"id"`
	Status      string `yaml:"status"`
	OrderID     string `yaml:"order_id,omitempty"`
	Amount      int64  `yaml:"amount,omitempty"`
	Currency    string `yaml:"currency,omitempty"`
	Description string `yaml:"description,omitempty"`
	Severity    string `yaml:"severity,omitempty"`
	Category    string `yaml:"category,omitempty"`
}

// SummarySeed is the YAML shape of the counter summary.
type SummarySeed struct {
	Counters      map[string]int `yaml:"counters,omitempty"`
	ApprovedToday int            `yaml:"approved_today,omitempty"`
}

// Step is one scenario step. Exactly one field must be set.
type Step struct {
	Apply         *ApplyStep         `yaml:"apply,omitempty"`
	Poll          *PollStep          `yaml:"poll,omitempty"`
	PushCreated   *PushCreatedStep   `yaml:"push_created,omitempty"`
	PushCancelled *PushCancelledStep `yaml:"push_cancelled,omitempty"`
}

// ApplyStep runs one optimistic mutation against a scripted backend.
type ApplyStep struct {
	ID       string            `yaml:"id"`
	Action   string            `yaml:"action"`
	Metadata map[string]string `yaml:"metadata,omitempty"`

	// Backend scripts the Mutate response. Required unless the
	// transition itself is expected to be rejected locally.
	Backend *BackendScript `yaml:"backend,omitempty"`

	// ExpectError names the expected failure class: "transport",
	// "semantic", "undefined", "not_found". Empty means success.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// BackendScript is the scripted Mutate response for one apply step.
type BackendScript struct {
	// Status is the server entity's status on success.
	Status string `yaml:"status,omitempty"`

	// Fail forces a failure: "transport" or "semantic".
	Fail string `yaml:"fail,omitempty"`

	// Code is the semantic error code (default "conflict").
	Code string `yaml:"code,omitempty"`

	Message string `yaml:"message,omitempty"`
}

// PollStep merges a polled batch into the feed window.
type PollStep struct {
	Items []EntitySeed `yaml:"items"`
}

// PushCreatedStep ingests a payment:created push event.
type PushCreatedStep struct {
	TxnID       string `yaml:"txn_id,omitempty"`
	OrderID     string `yaml:"order_id,omitempty"`
	Amount      int64  `yaml:"amount,omitempty"`
	Currency    string `yaml:"currency,omitempty"`
	Status      string `yaml:"status,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// PushCancelledStep ingests an order:cancelled push event.
type PushCancelledStep struct {
	OrderID string `yaml:"order_id"`
}

// Expectations validate the final state. All checks are id/status
// subset matches in order.
type Expectations struct {
	Entities []EntitySeed `yaml:"entities,omitempty"`
	Feed     []EntitySeed `yaml:"feed,omitempty"`
	Summary  *SummarySeed `yaml:"summary,omitempty"`
}

// seedBase is the LastUpdatedAt applied to every seeded entity so
// scenario runs are reproducible.
var seedBase = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

// Entity converts a seed to the model type.
func (s EntitySeed) Entity(kind model.Kind) model.Entity {
	return model.Entity{
		ID:            s.ID,
		Kind:          kind,
		Status:        model.Status(s.Status),
		OrderID:       s.OrderID,
		Amount:        s.Amount,
		Currency:      s.Currency,
		Description:   s.Description,
		Severity:      s.Severity,
		Category:      s.Category,
		LastUpdatedAt: seedBase,
	}
}

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)

	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

// LoadScenarioDir loads every *.yaml scenario under dir, sorted by
// filename.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	var out []*Scenario
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	for i, step := range s.Steps {
		n := 0
		if step.Apply != nil {
			n++
			if step.Apply.ID == "" || step.Apply.Action == "" {
				return fmt.Errorf("step %d: apply needs id and action", i)
			}
		}
		if step.Poll != nil {
			n++
		}
		if step.PushCreated != nil {
			n++
		}
		if step.PushCancelled != nil {
			n++
			if step.PushCancelled.OrderID == "" {
				return fmt.Errorf("step %d: push_cancelled needs order_id", i)
			}
		}
		if n != 1 {
			return fmt.Errorf("step %d: exactly one of apply/poll/push_created/push_cancelled", i)
		}
	}
	return nil
}
