// Package ranking splits a job's eligible applications into the ones that
// advance and the ones that are rejected.
package ranking

import (
	"errors"
	"fmt"
	"sort"

	"github.com/garnizeh/ats/pkg/models"
)

var (
	ErrNoEligibleApplications = errors.New("no eligible applications")
	ErrInsufficientCandidates = errors.New("insufficient candidates")
	ErrInvalidCount           = errors.New("count must be at least 1")
)

// InsufficientError reports a request for more candidates than are eligible.
type InsufficientError struct {
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient candidates: requested %d, only %d eligible", e.Requested, e.Available)
}

func (e *InsufficientError) Unwrap() error { return ErrInsufficientCandidates }

// Eligible reports whether a bulk decision may touch an application in status s.
func Eligible(s models.Status) bool {
	return s == models.StatusSubmitted || s == models.StatusUnderReview
}

// Partition orders apps by score descending, unscored last, ties by submission
// time then id, and splits the first n off as advance. apps is not modified.
// It fails when apps is empty or shorter than n.
func Partition(apps []models.Application, n int) (advance, reject []models.Application, err error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("%w, got %d", ErrInvalidCount, n)
	}
	if len(apps) == 0 {
		return nil, nil, ErrNoEligibleApplications
	}
	if len(apps) < n {
		return nil, nil, &InsufficientError{Requested: n, Available: len(apps)}
	}

	ordered := make([]models.Application, len(apps))
	copy(ordered, apps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return less(&ordered[i], &ordered[j])
	})

	return ordered[:n:n], ordered[n:], nil
}

func less(a, b *models.Application) bool {
	switch {
	case a.Score != nil && b.Score == nil:
		return true
	case a.Score == nil && b.Score != nil:
		return false
	case a.Score != nil && *a.Score != *b.Score:
		return *a.Score > *b.Score
	}
	if a.SubmittedAt != b.SubmittedAt {
		return a.SubmittedAt < b.SubmittedAt
	}
	return a.ID < b.ID
}
