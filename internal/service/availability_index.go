package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// AvailabilityIndex answers whether a teacher is blocked for a (date, shift).
type AvailabilityIndex struct {
	byShift map[string]map[int]struct{}
	byDate  map[string]map[string]struct{}
	exact   map[string]map[string]struct{}
}

// NewAvailabilityIndex indexes unavailability blocks by shape. Blocks with neither date nor shift are ignored.
func NewAvailabilityIndex(blocks []models.TeacherAvailabilityBlock) *AvailabilityIndex {
	idx := &AvailabilityIndex{
		byShift: make(map[string]map[int]struct{}),
		byDate:  make(map[string]map[string]struct{}),
		exact:   make(map[string]map[string]struct{}),
	}
	for _, block := range blocks {
		if block.TeacherID == "" {
			continue
		}
		switch {
		case block.ExamDate != nil && block.Shift != nil:
			addKey(idx.exact, block.TeacherID, exactKey(*block.ExamDate, *block.Shift))
		case block.ExamDate != nil:
			addKey(idx.byDate, block.TeacherID, block.ExamDate.Format(models.DateLayout))
		case block.Shift != nil:
			if idx.byShift[block.TeacherID] == nil {
				idx.byShift[block.TeacherID] = make(map[int]struct{})
			}
			idx.byShift[block.TeacherID][*block.Shift] = struct{}{}
		}
	}
	return idx
}

// IsBlocked reports whether any block of the teacher covers the date and shift.
func (a *AvailabilityIndex) IsBlocked(teacherID string, date time.Time, shift int) bool {
	if a == nil {
		return false
	}
	if _, ok := a.byShift[teacherID][shift]; ok {
		return true
	}
	if _, ok := a.byDate[teacherID][date.Format(models.DateLayout)]; ok {
		return true
	}
	_, ok := a.exact[teacherID][exactKey(date, shift)]
	return ok
}

func addKey(target map[string]map[string]struct{}, teacherID, key string) {
	if target[teacherID] == nil {
		target[teacherID] = make(map[string]struct{})
	}
	target[teacherID][key] = struct{}{}
}

func exactKey(date time.Time, shift int) string {
	return fmt.Sprintf("%s#%d", date.Format(models.DateLayout), shift)
}
