package models

import "time"

// Assignment is coursework attached to a course. Access follows the owning
// course's entitlement rules; no independent access policy.
type Assignment struct {
	ID          string     `db:"id" json:"id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	DueAt       *time.Time `db:"due_at" json:"due_at,omitempty"`
	MaxScore    int        `db:"max_score" json:"max_score"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Submission is a student's answer to an assignment.
type Submission struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Content      string    `db:"content" json:"content"`
	FileURL      string    `db:"file_url" json:"file_url,omitempty"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
}

// SubmissionDetail joins a submission with its assignment's course chain,
// needed to resolve who may read the attached feedback.
type SubmissionDetail struct {
	Submission
	CourseID     string `db:"course_id" json:"course_id"`
	InstructorID string `db:"instructor_id" json:"instructor_id"`
}

// Feedback is an instructor's response to a submission. Visible only to the
// submission's author, the course instructor, and admins.
type Feedback struct {
	ID           string    `db:"id" json:"id"`
	SubmissionID string    `db:"submission_id" json:"submission_id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Comment      string    `db:"comment" json:"comment"`
	Score        *int      `db:"score" json:"score,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
