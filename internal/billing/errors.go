package billing

import (
	"errors"
	"fmt"
)

// Error codes surfaced to API callers. Domain errors keep a stable code so
// clients can branch on them without parsing messages.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotFound          = "NOT_FOUND"
	CodeTransaction       = "TRANSACTION_ERROR"
	CodeNotification      = "NOTIFICATION_ERROR"
)

// ValidationError reports malformed or out-of-range input. It is always
// local to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Code() string { return CodeValidation }

func validationErr(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError reports a status change the transition table does
// not permit.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Code() string { return CodeInvalidTransition }

// NotFoundError reports a missing plan or installment.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Code() string { return CodeNotFound }

// TransactionError wraps a store-level conflict or abort that survived the
// single retry performed by the service façade.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed: %v", e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

func (e *TransactionError) Code() string { return CodeTransaction }

// NotificationError wraps an external send failure. It is recorded per item
// in the reminder run report and never propagated to the batch caller.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed: %v", e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

func (e *NotificationError) Code() string { return CodeNotification }

// ErrNoContact is returned by a Notifier when the resolved contact lacks the
// address the channel needs. The dispatcher records it as a skip, not an error.
var ErrNoContact = errors.New("no contact address for channel")

// IsDomainError reports whether err is one of the locally-caused errors that
// must surface to the caller unchanged (never retried).
func IsDomainError(err error) bool {
	var ve *ValidationError
	var te *InvalidTransitionError
	var ne *NotFoundError
	return errors.As(err, &ve) || errors.As(err, &te) || errors.As(err, &ne)
}
