package reconciler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBatchTooLarge rejects a batch above the configured record limit.
var ErrBatchTooLarge = errors.New("sync batch too large")

const (
	CodeValidation       = "validation_error"
	CodeIdentityConflict = "identity_conflict"
)

// ValidationError rejects one record that is malformed or references
// something that does not exist. The rest of the batch is unaffected.
type ValidationError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Entity, e.ID, e.Reason)
}

// IdentityConflictError rejects a resubmitted id whose fields differ from the
// stored record. The stored record is left untouched.
type IdentityConflictError struct {
	Entity string
	ID     string
	Fields []string
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists with different %s", e.Entity, e.ID, strings.Join(e.Fields, ", "))
}

// AuthorizationError rejects the whole batch.
type AuthorizationError struct {
	UserID  string
	AgentID string
	Reason  string
}

func (e *AuthorizationError) Error() string {
	if e.AgentID != "" {
		return fmt.Sprintf("user %s may not submit for agent %s: %s", e.UserID, e.AgentID, e.Reason)
	}
	return fmt.Sprintf("user %s: %s", e.UserID, e.Reason)
}

// TransientStoreError aborts the call; the client retries the same batch.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }
