package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidTicket is returned when a ticket cannot enter the pipeline.
var ErrInvalidTicket = errors.New("invalid ticket")

// InvalidTicketError wraps ErrInvalidTicket with the reason.
type InvalidTicketError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidTicketError) Error() string {
	return fmt.Sprintf("invalid ticket: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *InvalidTicketError) Unwrap() error {
	return ErrInvalidTicket
}

// Is checks if the error matches ErrInvalidTicket.
func (e *InvalidTicketError) Is(target error) bool {
	return target == ErrInvalidTicket
}
