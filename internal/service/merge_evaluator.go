package service

import (
	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// tableCatalog is the authoritative table metadata keyed by table number.
type tableCatalog map[int]models.ExamTable

func newTableCatalog(tables []models.ExamTable) tableCatalog {
	catalog := make(tableCatalog, len(tables))
	for _, table := range tables {
		catalog[table.TableNumber] = table
	}
	return catalog
}

// mergeVerdict is the outcome of evaluating one single against one candidate group.
type mergeVerdict struct {
	ok     bool
	reason models.PlacementReason
}

// canMerge checks, in order, capacity, area, student collision and teacher availability.
// It never mutates its arguments.
func canMerge(single models.UnassignedTable, table models.ExamTable, group *models.ExamGroup, catalog tableCatalog, availability *AvailabilityIndex) mergeVerdict {
	if group.Occupied() >= models.GroupCapacity {
		return mergeVerdict{reason: models.ReasonGroupFull}
	}
	if group.AreaID != single.AreaID {
		return mergeVerdict{reason: models.ReasonAreaMismatch}
	}

	seated := make(map[string]struct{})
	for _, member := range group.Members() {
		if member == table.TableNumber {
			continue
		}
		for _, studentID := range catalog[member].StudentIDs {
			seated[studentID] = struct{}{}
		}
	}
	for _, studentID := range table.StudentIDs {
		if _, clash := seated[studentID]; clash {
			return mergeVerdict{reason: models.ReasonStudentConflict}
		}
	}

	for _, teacherID := range table.TeacherIDs {
		if availability.IsBlocked(teacherID, group.ExamDate, group.Shift) {
			return mergeVerdict{reason: models.ReasonTeacherUnavailable}
		}
	}
	return mergeVerdict{ok: true}
}

// reasonSet keeps distinct rejection reasons in first-seen order.
type reasonSet struct {
	seen  map[models.PlacementReason]struct{}
	order []models.PlacementReason
}

func (r *reasonSet) add(reason models.PlacementReason) {
	if r.seen == nil {
		r.seen = make(map[models.PlacementReason]struct{})
	}
	if _, ok := r.seen[reason]; ok {
		return
	}
	r.seen[reason] = struct{}{}
	r.order = append(r.order, reason)
}

func (r *reasonSet) list() []models.PlacementReason {
	return append([]models.PlacementReason(nil), r.order...)
}
