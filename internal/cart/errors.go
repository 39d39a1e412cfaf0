package cart

import (
	"errors"
	"fmt"
)

var ErrNotAuthenticated = errors.New("cart is not synced with an authenticated user")

// PartialClearError reports an authenticated clear that stopped part way.
// Lines deleted before the failure stay deleted.
type PartialClearError struct {
	Deleted   int
	Remaining int
	Err       error
}

func (e *PartialClearError) Error() string {
	return fmt.Sprintf("cart cleared partially (%d deleted, %d remaining): %v", e.Deleted, e.Remaining, e.Err)
}

func (e *PartialClearError) Unwrap() error {
	return e.Err
}

// MergeError is returned when the login merge failed. The anonymous lines are
// gone and the server cart was loaded instead.
type MergeError struct {
	Lines int
	Err   error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("failed to merge %d cart lines: %v", e.Lines, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}
