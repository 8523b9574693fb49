package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-adp-exams/internal/models"
	appErrors "github.com/noah-isme/sma-adp-exams/pkg/errors"
)

// SlotKey partitions groups and singles by date, shift and subject area.
type SlotKey struct {
	Date   string
	Shift  int
	AreaID int
}

func slotKeyOf(date time.Time, shift, areaID int) SlotKey {
	return SlotKey{Date: date.Format(models.DateLayout), Shift: shift, AreaID: areaID}
}

// String renders the key as date/shift/area.
func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%d/%d", k.Date, k.Shift, k.AreaID)
}

// Less orders keys by date, then shift, then area.
func (k SlotKey) Less(other SlotKey) bool {
	if k.Date != other.Date {
		return k.Date < other.Date
	}
	if k.Shift != other.Shift {
		return k.Shift < other.Shift
	}
	return k.AreaID < other.AreaID
}

// slotGroups is the mutable in-memory view of a slot's groups, in match priority order.
type slotGroups []*models.ExamGroup

// slotIndex holds groups and singles bucketed by slot, preserving input order inside each bucket.
type slotIndex struct {
	keys    []SlotKey
	groups  map[SlotKey]slotGroups
	singles map[SlotKey][]models.UnassignedTable
}

// parseSlotFilter validates the optional date/shift filters before anything is loaded or indexed.
func parseSlotFilter(rawDate string, shift *int) (models.ExamSlotFilter, error) {
	filter := models.ExamSlotFilter{}
	if rawDate = strings.TrimSpace(rawDate); rawDate != "" {
		date, err := time.Parse(models.DateLayout, rawDate)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "dateFilter must be a YYYY-MM-DD date")
		}
		filter.Date = &date
	}
	if shift != nil {
		if !models.ValidShift(*shift) {
			return filter, appErrors.Clone(appErrors.ErrValidation, "shiftFilter must be 1 or 2")
		}
		value := *shift
		filter.Shift = &value
	}
	return filter, nil
}

// buildSlotIndex buckets the loaded rows. Groups are cloned so placement can mutate them freely.
// Only slots holding at least one single are listed in keys, in SlotKey order.
func buildSlotIndex(groups []models.ExamGroup, singles []models.UnassignedTable, filter models.ExamSlotFilter) *slotIndex {
	idx := &slotIndex{
		groups:  make(map[SlotKey]slotGroups),
		singles: make(map[SlotKey][]models.UnassignedTable),
	}
	for i := range groups {
		group := &groups[i]
		if !filter.Matches(group.ExamDate, group.Shift) {
			continue
		}
		key := slotKeyOf(group.ExamDate, group.Shift, group.AreaID)
		idx.groups[key] = append(idx.groups[key], group.Clone())
	}
	for _, single := range singles {
		if !filter.Matches(single.ExamDate, single.Shift) {
			continue
		}
		key := slotKeyOf(single.ExamDate, single.Shift, single.AreaID)
		if _, seen := idx.singles[key]; !seen {
			idx.keys = append(idx.keys, key)
		}
		idx.singles[key] = append(idx.singles[key], single)
	}
	sort.SliceStable(idx.keys, func(i, j int) bool { return idx.keys[i].Less(idx.keys[j]) })
	return idx
}
