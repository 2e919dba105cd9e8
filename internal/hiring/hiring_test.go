package hiring_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garnizeh/ats/internal/db"
	"github.com/garnizeh/ats/internal/db/dbtest"
	"github.com/garnizeh/ats/internal/hiring"
	"github.com/garnizeh/ats/internal/lifecycle"
	"github.com/garnizeh/ats/internal/notify"
	"github.com/garnizeh/ats/internal/outbox"
	"github.com/garnizeh/ats/internal/pipeline"
	"github.com/garnizeh/ats/internal/repository/sqlite"
	"github.com/garnizeh/ats/pkg/models"
)

type memResumes struct {
	mu    sync.Mutex
	files map[string][]byte
	seq   int
}

func (m *memResumes) Store(ctx context.Context, data []byte, ext string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.seq++
	loc := fmt.Sprintf("resume-%d%s", m.seq, ext)
	m.files[loc] = data
	return loc, nil
}

func (m *memResumes) Delete(ctx context.Context, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, locator)
	return nil
}

func (m *memResumes) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type textExtractor struct{ err error }

func (e textExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return strings.TrimPrefix(string(data), "%PDF-"), nil
}

type fixture struct {
	svc     *hiring.Service
	repo    *sqlite.SQLiteRepo
	d       *db.DB
	resumes *memResumes
	hrID    int64
	otherHR int64
	job     *models.Job
	now     time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupOn(t, dbtest.Open(t))
}

func setupOn(t *testing.T, d *db.DB) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := sqlite.New(d, nil)

	f := &fixture{repo: repo, d: d, resumes: &memResumes{}, now: time.UnixMilli(1_700_000_000_000)}
	f.hrID = f.user(t, "Hana HR", models.RoleHR)
	f.otherHR = f.user(t, "Olaf HR", models.RoleHR)

	maxLen := 10
	f.job = &models.Job{HRID: f.hrID, Title: "Backend Engineer", Description: "Go services", Active: true,
		Questions: []models.Question{
			{Text: "Why us?", Mandatory: true, DisplayOrder: 1},
			{Text: "Nickname", MaxLength: &maxLen, DisplayOrder: 2},
		}}
	if _, err := repo.CreateJob(ctx, f.job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	f.svc = hiring.New(repo, f.resumes, textExtractor{}, hiring.Options{
		PublicBaseURL: "http://files.local/uploads/",
		Now:           func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) user(t *testing.T, name string, role models.Role) int64 {
	t.Helper()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
	id, err := f.repo.CreateUser(context.Background(), &models.User{Name: name, Email: email, Role: role})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return id
}

func (f *fixture) answers() []hiring.AnswerInput {
	return []hiring.AnswerInput{{QuestionID: f.job.Questions[0].ID, Text: "Great team"}}
}

func (f *fixture) submit(t *testing.T, name string) *models.Application {
	t.Helper()
	cand := f.user(t, name, models.RoleCandidate)
	app, err := f.svc.Submit(context.Background(), hiring.SubmitRequest{
		JobID: f.job.ID, CandidateID: cand, Resume: []byte("%PDF-" + name), Answers: f.answers(),
	})
	if err != nil {
		t.Fatalf("Submit(%s): %v", name, err)
	}
	return app
}

type queuedTask struct {
	Type    string
	Payload string
}

func (f *fixture) tasks(t *testing.T) []queuedTask {
	t.Helper()
	rows, err := f.d.QueryRows(context.Background(), `SELECT type, payload FROM outbox_tasks ORDER BY id`)
	if err != nil {
		t.Fatalf("query tasks: %v", err)
	}
	defer rows.Close()
	var out []queuedTask
	for rows.Next() {
		var q queuedTask
		if err := rows.Scan(&q.Type, &q.Payload); err != nil {
			t.Fatalf("scan task: %v", err)
		}
		out = append(out, q)
	}
	return out
}

func (f *fixture) notices(t *testing.T) []notify.Notice {
	t.Helper()
	var out []notify.Notice
	for _, q := range f.tasks(t) {
		if q.Type != outbox.TypeNotify {
			continue
		}
		var n notify.Notice
		if err := json.Unmarshal([]byte(q.Payload), &n); err != nil {
			t.Fatalf("decode notice: %v", err)
		}
		out = append(out, n)
	}
	return out
}

func (f *fixture) clearTasks(t *testing.T) {
	t.Helper()
	if _, err := f.d.Exec(context.Background(), `DELETE FROM outbox_tasks`); err != nil {
		t.Fatalf("clear tasks: %v", err)
	}
}

func (f *fixture) status(t *testing.T, id int64) models.Status {
	t.Helper()
	app, err := f.repo.GetApplication(context.Background(), id)
	if err != nil || app == nil {
		t.Fatalf("GetApplication(%d): %v", id, err)
	}
	return app.Status
}

func (f *fixture) score(t *testing.T, id int64, v float64) {
	t.Helper()
	ev := &models.Evaluation{Strengths: "Go", Weaknesses: "SQL", ImprovementTips: "Practice joins", Confidence: 70, ModelUsed: "test"}
	if err := f.repo.SaveEvaluation(context.Background(), id, v, "summary", ev); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
}

func TestSubmit_CommitsApplicationAndTasks(t *testing.T) {
	f := setup(t)
	app := f.submit(t, "Ada Lovelace")

	if app.Status != models.StatusSubmitted || app.Processed || app.Version != 1 {
		t.Fatalf("unexpected application: %#v", app)
	}
	if f.resumes.count() != 1 || !strings.HasSuffix(app.ResumeLocator, ".pdf") {
		t.Fatalf("resume not stored: %q", app.ResumeLocator)
	}

	tasks := f.tasks(t)
	if len(tasks) != 2 || tasks[0].Type != outbox.TypeEvaluate || tasks[1].Type != outbox.TypeNotify {
		t.Fatalf("expected evaluate + notify tasks, got %+v", tasks)
	}
	var p pipeline.EvaluatePayload
	if err := json.Unmarshal([]byte(tasks[0].Payload), &p); err != nil || p.ApplicationID != app.ID || p.ResumeText != "Ada Lovelace" {
		t.Fatalf("unexpected evaluate payload %s (%v)", tasks[0].Payload, err)
	}
	n := f.notices(t)[0]
	if n.Kind != notify.KindSubmission || n.Subject != "Application Received: Backend Engineer" || n.Recipient.Email != "ada.lovelace@example.com" {
		t.Fatalf("unexpected submission notice %+v", n)
	}

	answers, _ := f.repo.ListAnswers(context.Background(), app.ID)
	if len(answers) != 1 || answers[0].Text != "Great team" {
		t.Fatalf("answers not stored: %+v", answers)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cand := f.user(t, "Cara Cand", models.RoleCandidate)
	pdf := []byte("%PDF-resume")
	long := "this answer is far too long"

	closedJob := &models.Job{HRID: f.hrID, Title: "Closed", Status: models.JobClosed, Active: false}
	if _, err := f.repo.CreateJob(ctx, closedJob); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	past := f.now.Add(-time.Hour).UnixMilli()
	expired := &models.Job{HRID: f.hrID, Title: "Expired", Active: true, Deadline: &past}
	if _, err := f.repo.CreateJob(ctx, expired); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	cases := []struct {
		name string
		req  hiring.SubmitRequest
		want error
	}{
		{"hr cannot apply", hiring.SubmitRequest{JobID: f.job.ID, CandidateID: f.hrID, Resume: pdf, Answers: f.answers()}, hiring.ErrForbidden},
		{"unknown job", hiring.SubmitRequest{JobID: 999, CandidateID: cand, Resume: pdf}, hiring.ErrNotFound},
		{"closed job", hiring.SubmitRequest{JobID: closedJob.ID, CandidateID: cand, Resume: pdf}, hiring.ErrJobClosed},
		{"past deadline", hiring.SubmitRequest{JobID: expired.ID, CandidateID: cand, Resume: pdf}, hiring.ErrJobClosed},
		{"empty resume", hiring.SubmitRequest{JobID: f.job.ID, CandidateID: cand, Answers: f.answers()}, hiring.ErrInvalidResume},
		{"not a pdf", hiring.SubmitRequest{JobID: f.job.ID, CandidateID: cand, Resume: []byte("plain text"), Answers: f.answers()}, hiring.ErrInvalidResume},
		{"missing mandatory", hiring.SubmitRequest{JobID: f.job.ID, CandidateID: cand, Resume: pdf,
			Answers: []hiring.AnswerInput{{QuestionID: f.job.Questions[0].ID, Text: "   "}}}, hiring.ErrInvalidAnswers},
		{"too long", hiring.SubmitRequest{JobID: f.job.ID, CandidateID: cand, Resume: pdf,
			Answers: append(f.answers(), hiring.AnswerInput{QuestionID: f.job.Questions[1].ID, Text: long})}, hiring.ErrInvalidAnswers},
		{"unknown question", hiring.SubmitRequest{JobID: f.job.ID, CandidateID: cand, Resume: pdf,
			Answers: append(f.answers(), hiring.AnswerInput{QuestionID: 4242, Text: "?"})}, hiring.ErrInvalidAnswers},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if len(f.tasks(t)) != 0 || f.resumes.count() != 0 {
		t.Fatalf("rejected submissions must leave no tasks or files")
	}
}

func TestSubmit_DuplicateAndExtractFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	app := f.submit(t, "Dup Dave")

	_, err := f.svc.Submit(ctx, hiring.SubmitRequest{JobID: f.job.ID, CandidateID: app.CandidateID, Resume: []byte("%PDF-x"), Answers: f.answers()})
	if !errors.Is(err, hiring.ErrDuplicateApplication) {
		t.Fatalf("expected ErrDuplicateApplication, got %v", err)
	}

	broken := hiring.New(f.repo, f.resumes, textExtractor{err: errors.New("corrupt xref table")}, hiring.Options{Now: func() time.Time { return f.now }})
	cand := f.user(t, "Eve Broken", models.RoleCandidate)
	_, err = broken.Submit(ctx, hiring.SubmitRequest{JobID: f.job.ID, CandidateID: cand, Resume: []byte("%PDF-x"), Answers: f.answers()})
	if !errors.Is(err, hiring.ErrInvalidResume) {
		t.Fatalf("expected ErrInvalidResume, got %v", err)
	}
	if f.resumes.count() != 1 {
		t.Fatalf("resume of failed submission must be removed, files=%d", f.resumes.count())
	}
}

func TestTransition_NotifiesOnlyOnNotifyingStatuses(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	app := f.submit(t, "Nia Notify")
	f.clearTasks(t)
	f.score(t, app.ID, 77)

	steps := []struct {
		next    models.Status
		notices int
	}{
		{models.StatusUnderReview, 0},
		{models.StatusShortlisted, 1},
		{models.StatusHired, 2},
	}
	for _, st := range steps {
		if _, err := f.svc.Transition(ctx, app.ID, f.hrID, st.next, ""); err != nil {
			t.Fatalf("Transition to %s: %v", st.next, err)
		}
		if got := len(f.notices(t)); got != st.notices {
			t.Fatalf("after %s expected %d notices, got %d", st.next, st.notices, got)
		}
	}

	ns := f.notices(t)
	if ns[0].Kind != notify.KindShortlist || ns[1].Kind != notify.KindOffer {
		t.Fatalf("unexpected notice kinds %s, %s", ns[0].Kind, ns[1].Kind)
	}
	if f.status(t, app.ID) != models.StatusHired {
		t.Fatalf("status not persisted")
	}
}

func TestTransition_RejectionCarriesFeedback(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	scored := f.submit(t, "Ray Scored")
	unscored := f.submit(t, "Uma Unscored")
	f.clearTasks(t)
	f.score(t, scored.ID, 40)

	for _, id := range []int64{scored.ID, unscored.ID} {
		if _, err := f.svc.Transition(ctx, id, f.hrID, models.StatusRejected, "Not a fit"); err != nil {
			t.Fatalf("reject %d: %v", id, err)
		}
	}

	ns := f.notices(t)
	if len(ns) != 2 {
		t.Fatalf("expected 2 rejection notices, got %d", len(ns))
	}
	if ns[0].Fields["strengths"] != "Go" || ns[0].Fields["improvement_tips"] != "Practice joins" {
		t.Fatalf("rejection should carry feedback: %+v", ns[0].Fields)
	}
	if _, ok := ns[1].Fields["strengths"]; ok {
		t.Fatalf("unscored rejection must not carry feedback: %+v", ns[1].Fields)
	}

	app, _ := f.repo.GetApplication(ctx, scored.ID)
	if app.HRNotes == nil || *app.HRNotes != "Not a fit" {
		t.Fatalf("notes not stored: %v", app.HRNotes)
	}
}

func TestTransition_Guards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	app := f.submit(t, "Gus Guard")
	f.clearTasks(t)

	if _, err := f.svc.Transition(ctx, app.ID, f.otherHR, models.StatusUnderReview, ""); !errors.Is(err, hiring.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	if _, err := f.svc.Transition(ctx, 999, f.hrID, models.StatusUnderReview, ""); !errors.Is(err, hiring.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err := f.svc.Transition(ctx, app.ID, f.hrID, models.StatusHired, "")
	var te *lifecycle.TransitionError
	if !errors.Is(err, lifecycle.ErrInvalidTransition) || !errors.As(err, &te) || te.From != models.StatusSubmitted {
		t.Fatalf("expected invalid transition from SUBMITTED, got %v", err)
	}
	if f.status(t, app.ID) != models.StatusSubmitted || len(f.tasks(t)) != 0 {
		t.Fatalf("rejected transition must not change anything")
	}
}

func TestTransition_SelfTransitionNotes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	app := f.submit(t, "Sam Self")

	got, err := f.svc.Transition(ctx, app.ID, f.hrID, models.StatusSubmitted, "  ")
	if err != nil || got.Version != 1 {
		t.Fatalf("blank self-transition should be a no-op: %v version=%d", err, got.Version)
	}

	got, err = f.svc.Transition(ctx, app.ID, f.hrID, models.StatusSubmitted, "call back Monday")
	if err != nil {
		t.Fatalf("self-transition: %v", err)
	}
	stored, _ := f.repo.GetApplication(ctx, app.ID)
	if stored.Status != models.StatusSubmitted || stored.HRNotes == nil || *stored.HRNotes != "call back Monday" || stored.Version != got.Version {
		t.Fatalf("notes not updated: %#v", stored)
	}
}

func TestWithdraw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.submit(t, "Walt Withdraw")
	b := f.submit(t, "Bea Busy")

	if _, err := f.svc.Withdraw(ctx, a.ID, b.CandidateID); !errors.Is(err, hiring.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Withdraw(ctx, a.ID, a.CandidateID); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if f.status(t, a.ID) != models.StatusWithdrawn {
		t.Fatalf("status not WITHDRAWN")
	}

	if _, err := f.svc.Transition(ctx, b.ID, f.hrID, models.StatusUnderReview, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if _, err := f.svc.Withdraw(ctx, b.ID, b.CandidateID); !errors.Is(err, lifecycle.ErrNotWithdrawable) {
		t.Fatalf("expected ErrNotWithdrawable, got %v", err)
	}
}

func TestAllowedActions(t *testing.T) {
	f := setup(t)
	app := f.submit(t, "Al Allowed")

	acts, err := f.svc.AllowedActions(context.Background(), app.ID, f.hrID)
	if err != nil {
		t.Fatalf("AllowedActions: %v", err)
	}
	if acts.Current != models.StatusSubmitted || len(acts.Allowed) != 2 ||
		acts.Allowed[0] != models.StatusUnderReview || acts.Allowed[1] != models.StatusRejected {
		t.Fatalf("unexpected actions %+v", acts)
	}
}

// submitAt creates an application with a fixed submission time and optional score.
func (f *fixture) submitAt(t *testing.T, name string, at int64, score *float64) int64 {
	t.Helper()
	f.now = time.UnixMilli(at)
	app := f.submit(t, name)
	if score != nil {
		f.score(t, app.ID, *score)
	}
	return app.ID
}

func ptr(v float64) *float64 { return &v }

func TestShortlistTop_RanksAndNotifiesRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	base := f.now.UnixMilli()
	a := f.submitAt(t, "A Ninety", base+100, ptr(90))
	b := f.submitAt(t, "B Eighty Late", base+300, ptr(80))
	c := f.submitAt(t, "C Eighty Early", base+200, ptr(80))
	d := f.submitAt(t, "D Unscored", base+50, nil)
	f.clearTasks(t)

	res, err := f.svc.ShortlistTop(ctx, f.job.ID, f.hrID, 2)
	if err != nil {
		t.Fatalf("ShortlistTop: %v", err)
	}
	if fmt.Sprint(res.Advanced) != fmt.Sprint([]int64{a, c}) || fmt.Sprint(res.Rejected) != fmt.Sprint([]int64{b, d}) {
		t.Fatalf("advanced=%v rejected=%v", res.Advanced, res.Rejected)
	}

	for _, id := range []int64{a, c} {
		app, _ := f.repo.GetApplication(ctx, id)
		if app.Status != models.StatusUnderReview || app.HRNotes == nil || *app.HRNotes != "Auto-selected for review based on Top 2 AI Score" {
			t.Fatalf("application %d not advanced: %#v", id, app)
		}
	}
	for _, id := range []int64{b, d} {
		app, _ := f.repo.GetApplication(ctx, id)
		if app.Status != models.StatusRejected || app.HRNotes == nil || *app.HRNotes != "Auto-rejected: Did not make Top 2 cut" {
			t.Fatalf("application %d not rejected: %#v", id, app)
		}
	}

	ns := f.notices(t)
	if len(ns) != 2 || ns[0].Kind != notify.KindRejection || ns[1].Kind != notify.KindRejection {
		t.Fatalf("expected one rejection notice per rejected application, got %+v", ns)
	}
}

func TestShortlistTop_SkipsIneligibleAndKeepsUnderReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.submit(t, "Una Review")
	b := f.submit(t, "Sid Shortlisted")
	c := f.submit(t, "Cy Submitted")
	f.score(t, a.ID, 50)
	f.score(t, c.ID, 60)
	for _, st := range []models.Status{models.StatusUnderReview, models.StatusShortlisted} {
		if _, err := f.svc.Transition(ctx, b.ID, f.hrID, st, ""); err != nil {
			t.Fatalf("Transition: %v", err)
		}
	}
	if _, err := f.svc.Transition(ctx, a.ID, f.hrID, models.StatusUnderReview, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	res, err := f.svc.ShortlistTop(ctx, f.job.ID, f.hrID, 2)
	if err != nil {
		t.Fatalf("ShortlistTop: %v", err)
	}
	if len(res.Advanced) != 2 || len(res.Rejected) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.status(t, a.ID) != models.StatusUnderReview || f.status(t, c.ID) != models.StatusUnderReview {
		t.Fatalf("eligible applications should be under review")
	}
	if f.status(t, b.ID) != models.StatusShortlisted {
		t.Fatalf("shortlisted application must not be touched")
	}
}

func TestShortlistTop_Failures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.ShortlistTop(ctx, f.job.ID, f.hrID, 1); !errors.Is(err, hiring.ErrNoEligibleApplications) {
		t.Fatalf("expected ErrNoEligibleApplications, got %v", err)
	}

	a := f.submit(t, "One")
	b := f.submit(t, "Two")
	f.clearTasks(t)

	if _, err := f.svc.ShortlistTop(ctx, f.job.ID, f.otherHR, 1); !errors.Is(err, hiring.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.ShortlistTop(ctx, f.job.ID, f.hrID, 3); !errors.Is(err, hiring.ErrInsufficientCandidates) {
		t.Fatalf("expected ErrInsufficientCandidates, got %v", err)
	}
	if f.status(t, a.ID) != models.StatusSubmitted || f.status(t, b.ID) != models.StatusSubmitted || len(f.tasks(t)) != 0 {
		t.Fatalf("failed bulk shortlist must not change anything")
	}
}

func TestListForJobAndDetail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.submit(t, "Alpha Applicant")
	b := f.submit(t, "Beta Applicant")
	f.submit(t, "Gamma Person")
	f.score(t, b.ID, 95)

	page, err := f.svc.ListForJob(ctx, f.job.ID, f.hrID, hiring.ListQuery{Search: "applicant", Size: 1})
	if err != nil {
		t.Fatalf("ListForJob: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.Items[0].ID != b.ID {
		t.Fatalf("unexpected page %+v", page)
	}
	page, _ = f.svc.ListForJob(ctx, f.job.ID, f.hrID, hiring.ListQuery{Search: "applicant", Size: 1, Page: 1})
	if len(page.Items) != 1 || page.Items[0].ID != a.ID {
		t.Fatalf("unexpected second page %+v", page)
	}
	if _, err := f.svc.ListForJob(ctx, f.job.ID, f.otherHR, hiring.ListQuery{}); !errors.Is(err, hiring.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	d, err := f.svc.DetailForHR(ctx, b.ID, f.hrID)
	if err != nil {
		t.Fatalf("DetailForHR: %v", err)
	}
	if d.ResumeURL != "http://files.local/uploads/"+b.ResumeLocator || d.Evaluation == nil || len(d.Answers) != 1 ||
		d.Answers[0].QuestionText != "Why us?" || d.JobDescription != "Go services" || len(d.Allowed) != 2 {
		t.Fatalf("unexpected detail %+v", d)
	}

	if _, err := f.svc.DetailForCandidate(ctx, b.ID, a.CandidateID); !errors.Is(err, hiring.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	cd, err := f.svc.DetailForCandidate(ctx, b.ID, b.CandidateID)
	if err != nil || cd.HRNotes != nil {
		t.Fatalf("DetailForCandidate: %v %+v", err, cd)
	}
}

func TestCandidateDashboard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	app := f.submit(t, "Dana Dash")
	f.score(t, app.ID, 81.5)

	d, err := f.svc.CandidateDashboard(ctx, app.CandidateID)
	if err != nil {
		t.Fatalf("CandidateDashboard: %v", err)
	}
	if d.Total != 1 || d.ByStatus[models.StatusSubmitted] != 1 || d.AverageScore == nil || *d.AverageScore != 81.5 || len(d.Recent) != 1 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

func TestJobs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, f.hrID, &models.Job{Title: "Data Engineer",
		Questions: []models.Question{{Text: "SQL?"}, {Text: "Spark?"}}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if !job.Active || job.Status != models.JobOpen || job.Questions[1].DisplayOrder != 2 {
		t.Fatalf("unexpected job %+v", job)
	}
	if _, err := f.svc.CreateJob(ctx, f.hrID, &models.Job{Title: " "}); !errors.Is(err, hiring.ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob, got %v", err)
	}
	cand := f.user(t, "Nope Cand", models.RoleCandidate)
	if _, err := f.svc.CreateJob(ctx, cand, &models.Job{Title: "X"}); !errors.Is(err, hiring.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	jobs, _ := f.svc.ListJobs(ctx, f.hrID)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	if _, err := f.svc.SetJobStatus(ctx, job.ID, f.otherHR, models.JobClosed); !errors.Is(err, hiring.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.SetJobStatus(ctx, job.ID, f.hrID, models.JobClosed); err != nil {
		t.Fatalf("SetJobStatus: %v", err)
	}
	got, _ := f.svc.GetJob(ctx, job.ID)
	if got.Status != models.JobClosed || got.Active {
		t.Fatalf("job not closed: %+v", got)
	}
}

func TestTransition_ConcurrentWritersOnFileDB(t *testing.T) {
	f := setupOn(t, dbtest.OpenFile(t))
	app := f.submit(t, "Busy Bee")
	ctx := context.Background()

	const writers = 16
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := f.svc.Transition(ctx, app.ID, f.hrID, models.StatusUnderReview, "")
				errs <- err
				return
			}
			ev := &models.Evaluation{Strengths: "Go", Confidence: 50, ModelUsed: "test"}
			errs <- f.repo.SaveEvaluation(ctx, app.ID, float64(60+i), "summary", ev)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write failed: %v", err)
		}
	}
	if got := f.status(t, app.ID); got != models.StatusUnderReview {
		t.Fatalf("expected UNDER_REVIEW, got %s", got)
	}
}

func TestSubmit_ConcurrentDuplicateOnFileDB(t *testing.T) {
	f := setupOn(t, dbtest.OpenFile(t))
	cand := f.user(t, "Double Click", models.RoleCandidate)
	ctx := context.Background()

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(ctx, hiring.SubmitRequest{
				JobID: f.job.ID, CandidateID: cand, Resume: []byte("%PDF-double"), Answers: f.answers(),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, hiring.ErrDuplicateApplication):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", ok)
	}
	if n := f.resumes.count(); n != 1 {
		t.Fatalf("expected losing resumes removed, %d stored", n)
	}
}

func TestListOpenJobs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	past := f.now.Add(-time.Hour).UnixMilli()
	if _, err := f.svc.CreateJob(ctx, f.hrID, &models.Job{Title: "Expired", Deadline: &past}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := f.svc.CreateJob(ctx, f.otherHR, &models.Job{Title: "Data Engineer", Location: "Porto"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	app := f.submit(t, "Board Viewer")

	page, err := f.svc.ListOpenJobs(ctx, app.CandidateID, hiring.OpenJobsQuery{DatePosted: "bogus"})
	if err != nil {
		t.Fatalf("ListOpenJobs: %v", err)
	}
	if page.Total != 2 || page.Size != 20 {
		t.Fatalf("unexpected page %+v", page)
	}
	for _, it := range page.Items {
		if it.HasApplied != (it.ID == f.job.ID) {
			t.Fatalf("has_applied wrong for %q", it.Title)
		}
	}

	page, err = f.svc.ListOpenJobs(ctx, 0, hiring.OpenJobsQuery{Location: "porto", Size: 500})
	if err != nil {
		t.Fatalf("ListOpenJobs: %v", err)
	}
	if page.Total != 1 || page.Items[0].Title != "Data Engineer" || page.Size != 100 {
		t.Fatalf("unexpected filtered page %+v", page)
	}
}

func TestHRDashboard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.submit(t, "First Cand")
	b := f.submit(t, "Second Cand")
	f.submit(t, "Third Cand")
	f.score(t, a.ID, 90)
	f.score(t, b.ID, 45.5)
	if _, err := f.svc.Transition(ctx, a.ID, f.hrID, models.StatusUnderReview, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	d, err := f.svc.HRDashboard(ctx, f.hrID)
	if err != nil {
		t.Fatalf("HRDashboard: %v", err)
	}
	if d.OpenJobs != 1 || d.Total != 3 || d.ByStatus[models.StatusSubmitted] != 2 || d.ByStatus[models.StatusUnderReview] != 1 || d.ByStatus[models.StatusHired] != 0 {
		t.Fatalf("unexpected counts %+v", d)
	}
	if *d.AverageScore != 67.75 || *d.HighestScore != 90 || *d.LowestScore != 45.5 {
		t.Fatalf("unexpected scores avg=%v hi=%v lo=%v", *d.AverageScore, *d.HighestScore, *d.LowestScore)
	}
	if len(d.Trend) != 30 || d.Trend[29].Count != 3 || d.Trend[29].Day != f.now.UTC().Format("01-02") {
		t.Fatalf("unexpected trend tail %+v", d.Trend[29])
	}
	if len(d.Recent) != 3 {
		t.Fatalf("expected 3 recent, got %d", len(d.Recent))
	}

	empty, err := f.svc.HRDashboard(ctx, f.otherHR)
	if err != nil || empty.Total != 0 || empty.AverageScore != nil || len(empty.Recent) != 0 {
		t.Fatalf("unexpected empty dashboard %+v, %v", empty, err)
	}
}
