/*
store.go - Persistence adapter contract

PURPOSE:
  Defines the interface between the ledger engine and the backing store.
  The engine never branches on backend type; backend selection happens once
  at startup.

CONTRACT:
  Load():  Full load of all four entity collections. A backend facing an
           empty store initializes the seed group set first, so every Load
           returns a complete state.
  Save():  Persists the full state. Versioned backends compare the caller's
           last-seen token against the remote state and fail with
           ErrVersionConflict when another writer got there first.

OPTIONAL VERSIONING:
  Only the document backend can detect concurrent modification. Rather than
  letting behavior differ silently, SupportsVersioning() makes the capability
  explicit: unversioned backends return false and ignore the expected token.

IMPLEMENTATIONS:
  - store/document: file-versioned JSON document (content-hash token)
  - store/sqlite:   normalized relational store (no token)
  - ledger/store:   in-memory (tests and development)

SEE ALSO:
  - service.go: The only caller of Save
*/
package ledger

import "context"

// VersionToken is an opaque value identifying a specific persisted state.
// Empty means the backend does not version.
type VersionToken string

// Store is the persistence adapter every backend implements.
type Store interface {
	// Load returns the full ledger state and the current version token.
	// When no prior state exists the backend persists the seed state and
	// returns it.
	Load(ctx context.Context) (*State, VersionToken, error)

	// Save persists the full state. For versioned backends, expected is the
	// caller's last-seen token; a mismatch fails with ErrVersionConflict
	// and nothing is written. The returned token identifies the newly
	// persisted state.
	Save(ctx context.Context, st *State, expected VersionToken) (VersionToken, error)

	// SupportsVersioning reports whether Save detects concurrent writers.
	SupportsVersioning() bool
}
