package models

import "time"

// Lesson is a unit of course content. Access is derived entirely from the
// owning course's publication and enrollment state; a lesson carries its
// own publication flag so instructors can stage drafts inside a published
// course.
type Lesson struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	Title       string    `db:"title" json:"title"`
	Content     string    `db:"content" json:"content"`
	VideoURL    string    `db:"video_url" json:"video_url,omitempty"`
	Position    int       `db:"position" json:"position"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LessonWithCourse joins a lesson with the owning course for entitlement
// evaluation.
type LessonWithCourse struct {
	Lesson
	Course Course `json:"course"`
}
