package models

// Domain models matching the database schema in db/migrations/0001_init.sql

type Role string

const (
	RoleHR        Role = "HR"
	RoleCandidate Role = "CANDIDATE"
)

type User struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name" validate:"required"`
	Email        string `json:"email" db:"email" validate:"required,email"`
	Role         Role   `json:"role" db:"role"`
	PasswordHash string `json:"-" db:"password_hash"`
	Created      int64  `json:"created" db:"created"`
	Updated      int64  `json:"updated" db:"updated"`
}

type JobStatus string

const (
	JobOpen   JobStatus = "OPEN"
	JobClosed JobStatus = "CLOSED"
)

type Job struct {
	ID          int64      `json:"id" db:"id"`
	HRID        int64      `json:"hr_id" db:"hr_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Location    string     `json:"location,omitempty" db:"location"`
	Status      JobStatus  `json:"status" db:"status"`
	Active      bool       `json:"active" db:"is_active"`
	Deadline    *int64     `json:"application_deadline,omitempty" db:"application_deadline"`
	Questions   []Question `json:"questions" db:"-"`
	Created     int64      `json:"created" db:"created"`
	Updated     int64      `json:"updated" db:"updated"`
}

// AcceptsApplications reports whether the job is open, active and, when a
// deadline is set, not past it at nowMillis.
func (j *Job) AcceptsApplications(nowMillis int64) bool {
	if j.Status != JobOpen || !j.Active {
		return false
	}
	return j.Deadline == nil || *j.Deadline >= nowMillis
}

type Question struct {
	ID           int64  `json:"id" db:"id"`
	JobID        int64  `json:"job_id" db:"job_id"`
	Text         string `json:"question_text" db:"question_text"`
	Mandatory    bool   `json:"mandatory" db:"is_mandatory"`
	MaxLength    *int   `json:"max_length,omitempty" db:"max_length"`
	DisplayOrder int    `json:"display_order" db:"display_order"`
}

// Status is the lifecycle status of an application.
type Status string

const (
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusShortlisted Status = "SHORTLISTED"
	StatusRejected    Status = "REJECTED"
	StatusHired       Status = "HIRED"
	StatusWithdrawn   Status = "WITHDRAWN"
)

// Statuses lists every application status in lifecycle order.
var Statuses = []Status{StatusSubmitted, StatusUnderReview, StatusShortlisted, StatusRejected, StatusHired, StatusWithdrawn}

// ParseStatus returns the Status named by s and whether it is known.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type Application struct {
	ID            int64    `json:"id" db:"id"`
	JobID         int64    `json:"job_id" db:"job_id"`
	CandidateID   int64    `json:"candidate_id" db:"candidate_id"`
	ResumeLocator string   `json:"resume_locator" db:"resume_locator"`
	Status        Status   `json:"status" db:"status"`
	Score         *float64 `json:"ai_score,omitempty" db:"ai_score"`
	Summary       *string  `json:"ai_summary,omitempty" db:"ai_summary"`
	HRNotes       *string  `json:"hr_notes,omitempty" db:"hr_notes"`
	Processed     bool     `json:"ai_processed" db:"ai_processed"`
	Version       int64    `json:"version" db:"version"`
	SubmittedAt   int64    `json:"submitted_at" db:"submitted_at"`
	UpdatedAt     int64    `json:"updated_at" db:"updated_at"`

	// Populated by joins on read paths.
	CandidateName  string `json:"candidate_name,omitempty" db:"-"`
	CandidateEmail string `json:"candidate_email,omitempty" db:"-"`
	JobTitle       string `json:"job_title,omitempty" db:"-"`

	Answers    []Answer    `json:"answers,omitempty" db:"-"`
	Evaluation *Evaluation `json:"evaluation,omitempty" db:"-"`
}

type Answer struct {
	ID            int64  `json:"id" db:"id"`
	ApplicationID int64  `json:"application_id" db:"application_id"`
	QuestionID    int64  `json:"question_id" db:"question_id"`
	QuestionText  string `json:"question_text,omitempty" db:"-"`
	Text          string `json:"answer_text" db:"answer_text"`
	Created       int64  `json:"created" db:"created"`
}

// Evaluation is the detailed scoring record, one per application.
type Evaluation struct {
	ID              int64   `json:"id" db:"id"`
	ApplicationID   int64   `json:"application_id" db:"application_id"`
	Strengths       string  `json:"strengths" db:"strengths"`
	Weaknesses      string  `json:"weaknesses" db:"weaknesses"`
	ImprovementTips string  `json:"improvement_tips" db:"improvement_tips"`
	Confidence      float64 `json:"confidence_score" db:"confidence_score"`
	ModelUsed       string  `json:"model_used" db:"model_used"`
	Created         int64   `json:"created" db:"created"`
}
