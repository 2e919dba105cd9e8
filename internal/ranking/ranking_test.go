package ranking_test

import (
	"errors"
	"testing"

	"github.com/garnizeh/ats/internal/ranking"
	"github.com/garnizeh/ats/pkg/models"
)

func score(v float64) *float64 { return &v }

func ids(apps []models.Application) []int64 {
	out := make([]int64, len(apps))
	for i, a := range apps {
		out[i] = a.ID
	}
	return out
}

func equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPartition_TieBrokenBySubmissionAndNullLast(t *testing.T) {
	apps := []models.Application{
		{ID: 1, Score: nil, SubmittedAt: 100},
		{ID: 2, Score: score(80), SubmittedAt: 300},
		{ID: 3, Score: score(90), SubmittedAt: 400},
		{ID: 4, Score: score(80), SubmittedAt: 200},
	}

	advance, reject, err := ranking.Partition(apps, 2)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if got := ids(advance); !equal(got, []int64{3, 4}) {
		t.Fatalf("advance = %v, want [3 4]", got)
	}
	if got := ids(reject); !equal(got, []int64{2, 1}) {
		t.Fatalf("reject = %v, want [2 1]", got)
	}
	if apps[0].ID != 1 {
		t.Fatalf("input slice was reordered")
	}
}

func TestPartition_UnscoredNeverAhead(t *testing.T) {
	apps := []models.Application{
		{ID: 1, Score: nil, SubmittedAt: 1},
		{ID: 2, Score: score(0), SubmittedAt: 2},
	}
	advance, _, err := ranking.Partition(apps, 1)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if advance[0].ID != 2 {
		t.Fatalf("unscored application advanced ahead of a scored one")
	}
}

func TestPartition_SameTimestampFallsBackToID(t *testing.T) {
	apps := []models.Application{
		{ID: 9, Score: score(50), SubmittedAt: 10},
		{ID: 5, Score: score(50), SubmittedAt: 10},
	}
	advance, reject, err := ranking.Partition(apps, 1)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if advance[0].ID != 5 || reject[0].ID != 9 {
		t.Fatalf("unexpected tie break: %v %v", ids(advance), ids(reject))
	}
}

func TestPartition_AllAdvance(t *testing.T) {
	apps := []models.Application{{ID: 1, Score: score(1)}, {ID: 2}}
	advance, reject, err := ranking.Partition(apps, 2)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if len(advance) != 2 || len(reject) != 0 {
		t.Fatalf("expected everyone to advance, got %v / %v", ids(advance), ids(reject))
	}
}

func TestPartition_Errors(t *testing.T) {
	if _, _, err := ranking.Partition(nil, 1); !errors.Is(err, ranking.ErrNoEligibleApplications) {
		t.Fatalf("expected ErrNoEligibleApplications, got %v", err)
	}
	// empty set is reported before the size check
	if _, _, err := ranking.Partition(nil, 5); !errors.Is(err, ranking.ErrNoEligibleApplications) {
		t.Fatalf("expected ErrNoEligibleApplications for empty set, got %v", err)
	}

	_, _, err := ranking.Partition([]models.Application{{ID: 1}}, 3)
	if !errors.Is(err, ranking.ErrInsufficientCandidates) {
		t.Fatalf("expected ErrInsufficientCandidates, got %v", err)
	}
	var ie *ranking.InsufficientError
	if !errors.As(err, &ie) || ie.Requested != 3 || ie.Available != 1 {
		t.Fatalf("expected InsufficientError{3,1}, got %#v", err)
	}

	if _, _, err := ranking.Partition([]models.Application{{ID: 1}}, 0); !errors.Is(err, ranking.ErrInvalidCount) {
		t.Fatalf("expected ErrInvalidCount for n=0, got %v", err)
	}
}

func TestEligible(t *testing.T) {
	for _, s := range models.Statuses {
		want := s == models.StatusSubmitted || s == models.StatusUnderReview
		if ranking.Eligible(s) != want {
			t.Fatalf("Eligible(%s) = %v", s, !want)
		}
	}
}
