// Package remote defines the typed client contract for the backend and
// its HTTP implementation.
//
// The client is a pure pass-through: no retries, no caching, no local
// state. Failures surface as *TransportError (the request never produced
// a usable response) or *SemanticError (the backend understood the
// request and rejected it); the coordinator treats both identically for
// rollback, callers may distinguish them for messaging.
package remote

import (
	"context"

	"github.com/roach88/opsync/internal/model"
)

// Client is the per-entity-family backend contract.
type Client interface {
	// List fetches a page of entities matching the filter.
	List(ctx context.Context, filter model.Filter) (model.Page, error)

	// GetByID fetches a single entity. Missing ids surface as a
	// *SemanticError with code "not_found".
	GetByID(ctx context.Context, id string) (model.Entity, error)

	// Mutate applies an action to an entity and returns the server's
	// authoritative post-mutation entity. The server may apply side
	// effects beyond status (fee adjustments and the like), so callers
	// must adopt the returned entity wholesale, never merge.
	Mutate(ctx context.Context, id string, action model.Action, metadata map[string]string) (model.Entity, error)
}
