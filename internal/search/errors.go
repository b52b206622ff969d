package search

import (
	"errors"
	"fmt"
)

// ErrNoCollaborator is wrapped when a tier has nothing configured to run it.
var ErrNoCollaborator = errors.New("no collaborator configured")

// TierUnavailableError records why a fallback tier produced nothing. It is
// kept in Status and never returned from the item accessors.
type TierUnavailableError struct {
	Tier Tier
	Err  error
}

func (e *TierUnavailableError) Error() string {
	return fmt.Sprintf("search: tier %s unavailable: %v", e.Tier, e.Err)
}

func (e *TierUnavailableError) Unwrap() error { return e.Err }
