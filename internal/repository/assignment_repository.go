package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursebay/coursebay-api/internal/models"
)

// AssignmentRepository handles persistence of assignments, submissions and
// feedback. The three live together because their access chains resolve
// through the same course join.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID returns an assignment by its ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, course_id, title, description, due_at, max_score, created_at, updated_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment by id: %w", err)
	}
	return &assignment, nil
}

// ListByCourse returns a course's assignments.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	const query = `SELECT id, course_id, title, description, due_at, max_score, created_at, updated_at FROM assignments WHERE course_id = $1 ORDER BY created_at ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// Create persists a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, course_id, title, description, due_at, max_score, created_at, updated_at)
        VALUES (:id, :course_id, :title, :description, :due_at, :max_score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// FindSubmissionByID returns a submission joined with its course chain.
func (r *AssignmentRepository) FindSubmissionByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.assignment_id, s.student_id, s.content, s.file_url, s.submitted_at,
        a.course_id AS course_id, c.instructor_id AS instructor_id
        FROM submissions s
        JOIN assignments a ON a.id = s.assignment_id
        JOIN courses c ON c.id = a.course_id
        WHERE s.id = $1`
	var detail models.SubmissionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by id: %w", err)
	}
	return &detail, nil
}

// FindSubmission returns the submission for an (assignment, student) pair.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	const query = `SELECT id, assignment_id, student_id, content, file_url, submitted_at FROM submissions WHERE assignment_id = $1 AND student_id = $2 LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// ListSubmissionsByAssignment returns all submissions for an assignment.
func (r *AssignmentRepository) ListSubmissionsByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	const query = `SELECT id, assignment_id, student_id, content, file_url, submitted_at FROM submissions WHERE assignment_id = $1 ORDER BY submitted_at DESC`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// CreateSubmission persists a student's submission. Returns ErrDuplicateRow
// when the student already submitted for the assignment.
func (r *AssignmentRepository) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, content, file_url, submitted_at)
        VALUES (:id, :assignment_id, :student_id, :content, :file_url, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRow
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindFeedbackBySubmission returns the feedback attached to a submission.
func (r *AssignmentRepository) FindFeedbackBySubmission(ctx context.Context, submissionID string) (*models.Feedback, error) {
	const query = `SELECT id, submission_id, instructor_id, comment, score, created_at FROM feedback WHERE submission_id = $1 LIMIT 1`
	var fb models.Feedback
	if err := r.db.GetContext(ctx, &fb, query, submissionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find feedback: %w", err)
	}
	return &fb, nil
}

// CreateFeedback persists instructor feedback on a submission.
func (r *AssignmentRepository) CreateFeedback(ctx context.Context, fb *models.Feedback) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO feedback (id, submission_id, instructor_id, comment, score, created_at)
        VALUES (:id, :submission_id, :instructor_id, :comment, :score, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fb); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRow
		}
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}
