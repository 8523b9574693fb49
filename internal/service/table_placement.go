package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-exams/internal/dto"
	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// placementEngine runs the first-fit pass over every indexed slot.
type placementEngine struct {
	store        placementStore
	catalog      tableCatalog
	availability *AvailabilityIndex
	mergeAction  models.PlacementAction
	logger       *zap.Logger
}

// placementOutcome holds movements and rejections in processing order.
type placementOutcome struct {
	movements []dto.TableMovement
	unplaced  []dto.UnplacedTable
}

func (e *placementEngine) run(ctx context.Context, idx *slotIndex) (*placementOutcome, error) {
	out := &placementOutcome{
		movements: make([]dto.TableMovement, 0),
		unplaced:  make([]dto.UnplacedTable, 0),
	}
	for _, key := range idx.keys {
		for _, single := range idx.singles[key] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			groups, err := e.placeSingle(ctx, single, idx.groups[key], out)
			if err != nil {
				return nil, err
			}
			idx.groups[key] = groups
		}
	}
	return out, nil
}

// placeSingle tries the slot's groups in order and returns the slot's refreshed group view.
func (e *placementEngine) placeSingle(ctx context.Context, single models.UnassignedTable, groups slotGroups, out *placementOutcome) (slotGroups, error) {
	if len(groups) == 0 {
		e.reject(out, single, models.ReasonNoGroupsInSlot, nil)
		return groups, nil
	}
	table, ok := e.catalog[single.TableNumber]
	if !ok {
		e.reject(out, single, models.ReasonTableNotFound, nil)
		return groups, nil
	}
	if table.AreaID != single.AreaID {
		e.reject(out, single, models.ReasonAreaInconsistent, nil)
		return groups, nil
	}

	var reasons reasonSet
	for i := 0; i < len(groups); i++ {
		snapshot := groups[i]
		if !snapshot.Contains(table.TableNumber) {
			if verdict := canMerge(single, table, snapshot, e.catalog, e.availability); !verdict.ok {
				reasons.add(verdict.reason)
				continue
			}
		}

		fresh, err := e.store.FetchGroup(ctx, snapshot.ID)
		if errors.Is(err, sql.ErrNoRows) {
			e.reject(out, single, models.ReasonGroupDisappeared, nil)
			return append(groups[:i:i], groups[i+1:]...), nil
		}
		if err != nil {
			return nil, fmt.Errorf("reload exam group %s: %w", snapshot.ID, err)
		}
		// A group moved to another slot since the snapshot is no longer a candidate.
		if slotKeyOf(fresh.ExamDate, fresh.Shift, fresh.AreaID) != slotKeyOf(single.ExamDate, single.Shift, single.AreaID) {
			if fresh.AreaID != single.AreaID {
				reasons.add(models.ReasonAreaMismatch)
			} else {
				reasons.add(models.ReasonSlotMismatch)
			}
			groups = append(groups[:i:i], groups[i+1:]...)
			i--
			continue
		}
		groups[i] = fresh.Clone()

		if fresh.Contains(table.TableNumber) {
			if err := e.deleteSingle(ctx, single); err != nil {
				return nil, err
			}
			e.move(out, single, fresh.ID, nil, nil, models.ActionAlreadyInGroupClean)
			return groups, nil
		}

		if !sameMembers(snapshot, fresh) {
			known, err := e.completeCatalog(ctx, fresh)
			if err != nil {
				return nil, err
			}
			if !known {
				reasons.add(models.ReasonTableNotFound)
				continue
			}
			if verdict := canMerge(single, table, fresh, e.catalog, e.availability); !verdict.ok {
				reasons.add(verdict.reason)
				continue
			}
		}

		position := fresh.FirstFreePosition()
		if position == 0 {
			e.reject(out, single, models.ReasonGroupNoFreeSlot, nil)
			return groups, nil
		}

		before := fresh.SlotContents()
		fresh.SetPosition(position, table.TableNumber)
		if err := e.store.SaveGroup(ctx, fresh); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				e.reject(out, single, models.ReasonGroupDisappeared, nil)
				return append(groups[:i:i], groups[i+1:]...), nil
			}
			return nil, fmt.Errorf("save exam group %s: %w", fresh.ID, err)
		}
		if err := e.deleteSingle(ctx, single); err != nil {
			return nil, err
		}
		groups[i] = fresh.Clone()
		e.move(out, single, fresh.ID, before, fresh.SlotContents(), e.mergeAction)
		return groups, nil
	}

	e.reject(out, single, models.ReasonNoCompatibleGroup, reasons.list())
	return groups, nil
}

// completeCatalog loads metadata for members that joined the group after the run started.
// It reports false when a member still has no table row.
func (e *placementEngine) completeCatalog(ctx context.Context, group *models.ExamGroup) (bool, error) {
	var missing []int
	for _, member := range group.Members() {
		if _, ok := e.catalog[member]; !ok {
			missing = append(missing, member)
		}
	}
	if len(missing) == 0 {
		return true, nil
	}
	tables, err := e.store.LoadTables(ctx, missing)
	if err != nil {
		return false, fmt.Errorf("load exam tables of group %s: %w", group.ID, err)
	}
	for _, table := range tables {
		e.catalog[table.TableNumber] = table
	}
	for _, member := range missing {
		if _, ok := e.catalog[member]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// deleteSingle tolerates a row that is already gone; the table is grouped either way.
func (e *placementEngine) deleteSingle(ctx context.Context, single models.UnassignedTable) error {
	err := e.store.DeleteSingle(ctx, single)
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return fmt.Errorf("delete single %d: %w", single.TableNumber, err)
}

func (e *placementEngine) move(out *placementOutcome, single models.UnassignedTable, groupID string, before, after []*int, action models.PlacementAction) {
	movement := dto.TableMovement{
		TableNumber: single.TableNumber,
		Date:        single.ExamDate.Format(models.DateLayout),
		Shift:       single.Shift,
		AreaID:      single.AreaID,
		GroupID:     groupID,
		Before:      before,
		After:       after,
		Action:      action,
	}
	out.movements = append(out.movements, movement)
	e.logger.Debug("table placed",
		zap.Int("table", single.TableNumber),
		zap.String("group_id", groupID),
		zap.String("action", string(action)),
	)
}

func (e *placementEngine) reject(out *placementOutcome, single models.UnassignedTable, reason models.PlacementReason, subReasons []models.PlacementReason) {
	if len(subReasons) == 0 {
		subReasons = nil
	}
	out.unplaced = append(out.unplaced, dto.UnplacedTable{
		TableNumber: single.TableNumber,
		Date:        single.ExamDate.Format(models.DateLayout),
		Shift:       single.Shift,
		AreaID:      single.AreaID,
		Reason:      reason,
		SubReasons:  subReasons,
	})
	e.logger.Debug("table left unplaced",
		zap.Int("table", single.TableNumber),
		zap.String("reason", string(reason)),
	)
}

func sameMembers(a, b *models.ExamGroup) bool {
	left, right := a.Positions(), b.Positions()
	for i := range left {
		switch {
		case left[i] == nil && right[i] == nil:
		case left[i] == nil || right[i] == nil:
			return false
		case *left[i] != *right[i]:
			return false
		}
	}
	return true
}
