package kitchen

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTicketTransition = errors.New("invalid ticket transition")
	ErrOrderNotAccepted        = errors.New("order is not accepted")
	ErrTicketExists            = errors.New("ticket already exists for station")
	ErrTicketClosed            = errors.New("ticket is bumped")
)

type TicketTransitionError struct {
	From string
	To   string
}

func (e *TicketTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTicketTransition, e.From, e.To)
}

func (e *TicketTransitionError) Is(target error) bool {
	return target == ErrInvalidTicketTransition
}
