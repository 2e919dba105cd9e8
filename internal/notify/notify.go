// Package notify decides which candidate message a status change produces and
// delivers it asynchronously. Delivery failures are logged and never reach
// application state.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	imodels "github.com/garnizeh/ats/internal/models"
	"github.com/garnizeh/ats/pkg/models"
)

// Kind is the type of outbound message.
type Kind string

const (
	KindSubmission Kind = "submission"
	KindShortlist  Kind = "shortlist"
	KindOffer      Kind = "offer"
	KindRejection  Kind = "rejection"
)

// Recipient identifies the candidate a notice goes to.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Notice is one message ready for a Sender. Fields carries template values.
type Notice struct {
	Kind      Kind              `json:"kind"`
	Recipient Recipient         `json:"recipient"`
	Subject   string            `json:"subject"`
	Fields    map[string]string `json:"fields"`
}

// Sender delivers a notice.
type Sender interface {
	Send(ctx context.Context, n Notice) error
}

// RecipientOf returns the candidate of app as a Recipient.
func RecipientOf(app *models.Application) Recipient {
	return Recipient{Name: app.CandidateName, Email: app.CandidateEmail}
}

// NoticeFor maps a new status to its notice. Only SHORTLISTED, HIRED and
// REJECTED produce one. A rejection carries the evaluation feedback when ev is
// non-nil.
func NoticeFor(status models.Status, app *models.Application, ev *models.Evaluation) (Notice, bool) {
	n := Notice{
		Recipient: RecipientOf(app),
		Fields: map[string]string{
			"candidate_name": app.CandidateName,
			"job_title":      app.JobTitle,
		},
	}

	switch status {
	case models.StatusShortlisted:
		n.Kind = KindShortlist
		n.Subject = "Good News! You've been Shortlisted for " + app.JobTitle
	case models.StatusHired:
		n.Kind = KindOffer
		n.Subject = "Congratulations! Offer for " + app.JobTitle
	case models.StatusRejected:
		n.Kind = KindRejection
		n.Subject = "Update on your application for " + app.JobTitle
		if ev != nil {
			n.Fields["strengths"] = ev.Strengths
			n.Fields["weaknesses"] = ev.Weaknesses
			n.Fields["improvement_tips"] = ev.ImprovementTips
		}
	default:
		return Notice{}, false
	}

	return n, true
}

// SubmissionNotice acknowledges a new application.
func SubmissionNotice(app *models.Application) Notice {
	return Notice{
		Kind:      KindSubmission,
		Recipient: RecipientOf(app),
		Subject:   "Application Received: " + app.JobTitle,
		Fields: map[string]string{
			"candidate_name": app.CandidateName,
			"job_title":      app.JobTitle,
		},
	}
}

// TaskHandler returns an outbox handler that decodes a Notice and hands it to d.
func TaskHandler(d *Dispatcher) func(ctx context.Context, t *imodels.Task) error {
	return func(ctx context.Context, t *imodels.Task) error {
		var n Notice
		if err := json.Unmarshal(t.Payload, &n); err != nil {
			return fmt.Errorf("decode notice: %w", err)
		}
		d.Dispatch(n)
		return nil
	}
}
