package models

import "time"

// TeacherAvailabilityBlock records one stated unavailability of a teacher.
// A nil ExamDate means every date of the exam period; a nil Shift means the whole day.
type TeacherAvailabilityBlock struct {
	ID        string     `db:"id" json:"id"`
	TeacherID string     `db:"teacher_id" json:"teacherId"`
	ExamDate  *time.Time `db:"exam_date" json:"examDate,omitempty"`
	Shift     *int       `db:"shift" json:"shift,omitempty"`
}
