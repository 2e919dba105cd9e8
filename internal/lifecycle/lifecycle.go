// Package lifecycle holds the application status state machine. It performs
// no I/O; callers load the current status, ask for a decision and persist it.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/garnizeh/ats/pkg/models"
)

var (
	// ErrInvalidTransition is returned when next is not reachable from current.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotWithdrawable is returned when a candidate withdraws after review began.
	ErrNotWithdrawable = errors.New("application cannot be withdrawn")
)

// TransitionError describes a rejected transition. It unwraps to ErrInvalidTransition.
type TransitionError struct {
	From models.Status
	To   models.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// transitions lists HR-driven moves. Terminal states map to nothing.
// Withdrawal is candidate-driven and handled by ValidateWithdraw.
var transitions = map[models.Status][]models.Status{
	models.StatusSubmitted:   {models.StatusUnderReview, models.StatusRejected},
	models.StatusUnderReview: {models.StatusShortlisted, models.StatusRejected},
	models.StatusShortlisted: {models.StatusHired, models.StatusRejected},
	models.StatusRejected:    nil,
	models.StatusHired:       nil,
	models.StatusWithdrawn:   nil,
}

// Initial is the status assigned to every new application.
func Initial() models.Status { return models.StatusSubmitted }

// Allowed returns the statuses HR may move an application to from current.
// The result is a fresh slice and empty for terminal or unknown statuses.
func Allowed(current models.Status) []models.Status {
	next := transitions[current]
	out := make([]models.Status, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s models.Status) bool {
	next, known := transitions[s]
	return known && len(next) == 0
}

// Validate accepts next when it equals current or is listed in Allowed(current).
func Validate(current, next models.Status) error {
	if current == next {
		return nil
	}
	for _, s := range transitions[current] {
		if s == next {
			return nil
		}
	}
	return &TransitionError{From: current, To: next}
}

// ValidateWithdraw accepts a candidate withdrawal only from SUBMITTED.
func ValidateWithdraw(current models.Status) error {
	if current != models.StatusSubmitted {
		return fmt.Errorf("status %s: %w", current, ErrNotWithdrawable)
	}
	return nil
}

// Notifies reports whether moving from current to next must trigger exactly
// one notification. Self-transitions never notify.
func Notifies(current, next models.Status) bool {
	if current == next {
		return false
	}
	switch next {
	case models.StatusShortlisted, models.StatusHired, models.StatusRejected:
		return true
	}
	return false
}
