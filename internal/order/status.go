package order

import "fmt"

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  nil,
	StatusRefunded:   nil,
}

// AllowedTransitions lists the statuses reachable from s in one step.
func AllowedTransitions(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CheckTransition classifies a requested move.
func CheckTransition(from, to Status) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrNoOpTransition, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// PaymentEffect is the payment status a transition into s forces, if any.
func (s Status) PaymentEffect() (PaymentStatus, bool) {
	switch s {
	case StatusDelivered:
		return PaymentPaid, true
	case StatusCancelled, StatusRefunded:
		return PaymentRefunded, true
	default:
		return "", false
	}
}
