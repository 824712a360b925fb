package transition

import (
	"errors"
	"fmt"

	"github.com/roach88/opsync/internal/model"
)

// UndefinedError reports a (kind, status, action) combination the table
// does not define. The coordinator refuses such actions outright instead
// of guessing a status the backend might disagree with.
type UndefinedError struct {
	Kind    model.Kind
	Current model.Status
	Action  model.Action
	Reason  string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("undefined transition: kind=%s status=%s action=%s: %s",
		e.Kind, e.Current, e.Action, e.Reason)
}

// IsUndefined reports whether err is an undefined-transition error.
// Uses errors.As to handle wrapped errors.
func IsUndefined(err error) bool {
	var ue *UndefinedError
	return errors.As(err, &ue)
}
