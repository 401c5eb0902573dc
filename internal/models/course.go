package models

import "time"

// Course is a marketplace course owned by exactly one instructor.
// Pricing of zero marks a free course; unpublished courses are invisible
// to everyone but the owner and admins.
type Course struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Category     string    `db:"category" json:"category"`
	Pricing      float64   `db:"pricing" json:"pricing"`
	IsPublished  bool      `db:"is_published" json:"is_published"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsFree reports whether the course has no price.
func (c *Course) IsFree() bool {
	return c.Pricing == 0
}

// CourseDetail enriches Course with the instructor's display name.
type CourseDetail struct {
	Course
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	LessonCount    int    `db:"lesson_count" json:"lesson_count"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	InstructorID  string
	Category      string
	Search        string
	PublishedOnly bool
	FreeOnly      bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
