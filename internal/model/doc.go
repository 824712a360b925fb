// Package model defines the entity model shared by the opsync engine.
//
// An Entity is the unit of synchronization: an alert, an approval task,
// a live transaction, or a customer payment. The engine treats every
// field except ID, Status, OrderID and LastUpdatedAt as opaque payload.
//
// The package also provides canonical JSON serialization (RFC 8785
// subset) used for deterministic trace output and table diffing. Amounts
// are integer minor units (cents) so canonical JSON never has to encode
// a float.
package model
