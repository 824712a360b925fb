package coordinator

import (
	"errors"
	"fmt"

	"github.com/roach88/opsync/internal/model"
)

// BusyError rejects a mutation because another mutation for the same
// entity is still awaiting reconciliation. Callers retry after the
// in-flight one settles; concurrent mutations of one entity would make
// the rollback snapshot ambiguous.
type BusyError struct {
	ID       string
	InFlight model.Action
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("entity %s busy: %s in flight", e.ID, e.InFlight)
}

// NotFoundError rejects a mutation for an entity outside the working set.
type NotFoundError struct {
	Kind model.Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not in working set", e.Kind, e.ID)
}

// IsBusy reports whether err is a *BusyError.
func IsBusy(err error) bool {
	var be *BusyError
	return errors.As(err, &be)
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
