package notifications

import (
	"fmt"

	"github.com/charlesng35/notifystream/internal/database"
)

// ValidationError reports caller input that was rejected before anything was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("notifications: invalid %s: %s", e.Field, e.Reason)
}

// StoreError reports a failed storage operation. Batch writes that fail leave
// nothing persisted. MissingReference marks writes naming a user that does not exist.
type StoreError struct {
	Op               string
	Conflict         bool
	MissingReference bool
	Err              error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("notifications: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{
		Op:               op,
		Conflict:         database.IsUniqueViolation(err),
		MissingReference: database.IsForeignKeyViolation(err),
		Err:              err,
	}
}
