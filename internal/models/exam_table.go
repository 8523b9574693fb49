package models

import "time"

// ShiftMorning and ShiftAfternoon are the two exam shifts of a day.
const (
	ShiftMorning   = 1
	ShiftAfternoon = 2
)

// DateLayout is the ISO date format used for exam dates on the wire and in slot keys.
const DateLayout = "2006-01-02"

// ValidShift reports whether the shift belongs to the fixed enumeration.
func ValidShift(shift int) bool {
	return shift == ShiftMorning || shift == ShiftAfternoon
}

// ExamTable is a numbered examination unit with its examined students and assigned teachers.
type ExamTable struct {
	TableNumber int      `db:"table_number" json:"tableNumber"`
	AreaID      int      `db:"area_id" json:"areaId"`
	StudentIDs  []string `db:"-" json:"studentIds"`
	TeacherIDs  []string `db:"-" json:"teacherIds"`
}

// ExamTableMember links a table to one student or teacher.
type ExamTableMember struct {
	TableNumber int    `db:"table_number"`
	MemberID    string `db:"member_id"`
}

// UnassignedTable states that a table exists in a slot without belonging to any group.
type UnassignedTable struct {
	TableNumber int       `db:"table_number" json:"tableNumber"`
	ExamDate    time.Time `db:"exam_date" json:"examDate"`
	Shift       int       `db:"shift" json:"shift"`
	AreaID      int       `db:"area_id" json:"areaId"`
}

// ExamSlotFilter narrows which groups and singles are loaded.
type ExamSlotFilter struct {
	Date  *time.Time
	Shift *int
}

// Matches reports whether the given date/shift pass the filter.
func (f ExamSlotFilter) Matches(date time.Time, shift int) bool {
	if f.Date != nil && f.Date.Format(DateLayout) != date.Format(DateLayout) {
		return false
	}
	if f.Shift != nil && *f.Shift != shift {
		return false
	}
	return true
}
