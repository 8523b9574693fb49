package models

import "time"

// GroupCapacity is the number of ordinal positions in an exam group.
const GroupCapacity = 4

// ExamGroup holds up to four tables sharing date, shift and area.
type ExamGroup struct {
	ID       string    `db:"id" json:"id"`
	ExamDate time.Time `db:"exam_date" json:"examDate"`
	Shift    int       `db:"shift" json:"shift"`
	AreaID   int       `db:"area_id" json:"areaId"`
	Slot1    *int      `db:"slot1" json:"slot1"`
	Slot2    *int      `db:"slot2" json:"slot2"`
	Slot3    *int      `db:"slot3" json:"slot3"`
	Slot4    *int      `db:"slot4" json:"slot4"`
}

// Positions returns the four ordinal positions, position 1 first.
func (g *ExamGroup) Positions() [GroupCapacity]*int {
	return [GroupCapacity]*int{g.Slot1, g.Slot2, g.Slot3, g.Slot4}
}

// Members returns the table numbers held by occupied positions.
func (g *ExamGroup) Members() []int {
	members := make([]int, 0, GroupCapacity)
	for _, pos := range g.Positions() {
		if pos != nil {
			members = append(members, *pos)
		}
	}
	return members
}

// Occupied counts occupied positions.
func (g *ExamGroup) Occupied() int {
	return len(g.Members())
}

// Contains reports whether tableNumber already sits in any position.
func (g *ExamGroup) Contains(tableNumber int) bool {
	for _, member := range g.Members() {
		if member == tableNumber {
			return true
		}
	}
	return false
}

// FirstFreePosition returns the first empty position (1-based) scanning 1→4, or 0 when full.
func (g *ExamGroup) FirstFreePosition() int {
	for idx, pos := range g.Positions() {
		if pos == nil {
			return idx + 1
		}
	}
	return 0
}

// SetPosition stores tableNumber at the 1-based position.
func (g *ExamGroup) SetPosition(position, tableNumber int) {
	value := tableNumber
	switch position {
	case 1:
		g.Slot1 = &value
	case 2:
		g.Slot2 = &value
	case 3:
		g.Slot3 = &value
	case 4:
		g.Slot4 = &value
	}
}

// Clone returns a deep copy so callers can mutate positions independently.
func (g *ExamGroup) Clone() *ExamGroup {
	clone := *g
	for idx, pos := range g.Positions() {
		if pos != nil {
			clone.SetPosition(idx+1, *pos)
		}
	}
	return &clone
}

// SlotContents renders the four positions for reports; empty positions are nil.
func (g *ExamGroup) SlotContents() []*int {
	positions := g.Positions()
	out := make([]*int, GroupCapacity)
	for idx, pos := range positions {
		if pos != nil {
			value := *pos
			out[idx] = &value
		}
	}
	return out
}
