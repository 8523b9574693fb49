package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// memoryPlacementStore keeps group rows in memory and records every write.
type memoryPlacementStore struct {
	rows      map[string]*models.ExamGroup
	saved     []string
	deleted   []int
	fetchErr  error
	saveErr   error
	deleteErr error
	tables    map[int]models.ExamTable
	loaded    [][]int
	// onFetch lets a test mutate rows between the snapshot and the re-read.
	onFetch func(id string)
}

func newMemoryPlacementStore(groups ...*models.ExamGroup) *memoryPlacementStore {
	rows := make(map[string]*models.ExamGroup, len(groups))
	for _, g := range groups {
		rows[g.ID] = g.Clone()
	}
	return &memoryPlacementStore{rows: rows}
}

func (s *memoryPlacementStore) FetchGroup(_ context.Context, id string) (*models.ExamGroup, error) {
	if s.onFetch != nil {
		s.onFetch(id)
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return row.Clone(), nil
}

func (s *memoryPlacementStore) LoadTables(_ context.Context, numbers []int) ([]models.ExamTable, error) {
	s.loaded = append(s.loaded, numbers)
	var tables []models.ExamTable
	for _, number := range numbers {
		if table, ok := s.tables[number]; ok {
			tables = append(tables, table)
		}
	}
	return tables, nil
}

func (s *memoryPlacementStore) SaveGroup(_ context.Context, group *models.ExamGroup) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.rows[group.ID] = group.Clone()
	s.saved = append(s.saved, group.ID)
	return nil
}

func (s *memoryPlacementStore) DeleteSingle(_ context.Context, single models.UnassignedTable) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, single.TableNumber)
	return nil
}

func newTestEngine(store placementStore, catalog tableCatalog, avail *AvailabilityIndex) *placementEngine {
	return &placementEngine{
		store:        store,
		catalog:      catalog,
		availability: avail,
		mergeAction:  models.ActionAddedToGroup,
		logger:       zap.NewNop(),
	}
}

func runPlacement(t *testing.T, engine *placementEngine, groups []models.ExamGroup, singles []models.UnassignedTable) *placementOutcome {
	t.Helper()
	out, err := engine.run(context.Background(), buildSlotIndex(groups, singles, models.ExamSlotFilter{}))
	require.NoError(t, err)
	return out
}

func intp(v int) *int { return &v }

func TestPlacementStudentCollisionLeavesSingleUnplaced(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1, 2)
	store := newMemoryPlacementStore(group)

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(11)})

	assert.Empty(t, out.movements)
	require.Len(t, out.unplaced, 1)
	assert.Equal(t, models.ReasonNoCompatibleGroup, out.unplaced[0].Reason)
	assert.Equal(t, []models.PlacementReason{models.ReasonStudentConflict}, out.unplaced[0].SubReasons)
	assert.Empty(t, store.saved)
	assert.Empty(t, store.deleted)
}

func TestPlacementFullGroupLeavesSingleUnplaced(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1, 2, 3, 4)
	store := newMemoryPlacementStore(group)

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)})

	require.Len(t, out.unplaced, 1)
	assert.Equal(t, models.ReasonNoCompatibleGroup, out.unplaced[0].Reason)
	assert.Equal(t, []models.PlacementReason{models.ReasonGroupFull}, out.unplaced[0].SubReasons)
}

func TestPlacementMergesIntoFirstFreePosition(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1, 2)
	store := newMemoryPlacementStore(group)

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)})

	require.Len(t, out.movements, 1)
	movement := out.movements[0]
	assert.Equal(t, "G", movement.GroupID)
	assert.Equal(t, models.ActionAddedToGroup, movement.Action)
	assert.Equal(t, []*int{intp(1), intp(2), nil, nil}, movement.Before)
	assert.Equal(t, []*int{intp(1), intp(2), intp(10), nil}, movement.After)
	assert.Equal(t, []int{1, 2, 10}, store.rows["G"].Members())
	assert.Equal(t, []int{10}, store.deleted)
	assert.Empty(t, out.unplaced)
}

func TestPlacementLaterSinglesSeeEnlargedGroup(t *testing.T) {
	catalog := newTableCatalog([]models.ExamTable{
		{TableNumber: 1, AreaID: 7, StudentIDs: []string{"A"}},
		{TableNumber: 2, AreaID: 7, StudentIDs: []string{"B"}},
		{TableNumber: 20, AreaID: 7, StudentIDs: []string{"C"}},
		{TableNumber: 21, AreaID: 7, StudentIDs: []string{"D"}},
		{TableNumber: 22, AreaID: 7, StudentIDs: []string{"E"}},
		{TableNumber: 23, AreaID: 7, StudentIDs: []string{"C"}},
	})
	group := groupWith("G", "2024-11-04", 1, 7, 1, 2)
	store := newMemoryPlacementStore(group)
	singles := []models.UnassignedTable{singleFor(20), singleFor(23), singleFor(21), singleFor(22)}

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, singles)

	require.Len(t, out.movements, 2)
	assert.Equal(t, 20, out.movements[0].TableNumber)
	assert.Equal(t, 21, out.movements[1].TableNumber)
	require.Len(t, out.unplaced, 2)
	assert.Equal(t, 23, out.unplaced[0].TableNumber)
	assert.Equal(t, []models.PlacementReason{models.ReasonStudentConflict}, out.unplaced[0].SubReasons)
	assert.Equal(t, 22, out.unplaced[1].TableNumber)
	assert.Equal(t, []models.PlacementReason{models.ReasonGroupFull}, out.unplaced[1].SubReasons)
	assert.Equal(t, []int{1, 2, 20, 21}, store.rows["G"].Members())
}

func TestPlacementFirstFitAcrossGroupsAndDedupedSubReasons(t *testing.T) {
	catalog := evaluatorCatalog()
	g1 := groupWith("G1", "2024-11-04", 1, 7, 1, 2, 3, 4)
	g2 := groupWith("G2", "2024-11-04", 1, 7, 2)
	g3 := groupWith("G3", "2024-11-04", 1, 7, 3)
	store := newMemoryPlacementStore(g1, g2, g3)

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*g1, *g2, *g3}, []models.UnassignedTable{singleFor(11)})

	require.Len(t, out.movements, 1)
	assert.Equal(t, "G3", out.movements[0].GroupID)

	g4 := groupWith("G4", "2024-11-04", 1, 7, 2)
	store = newMemoryPlacementStore(g1, g2, g4)
	out = runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*g1, *g2, *g4}, []models.UnassignedTable{singleFor(11)})
	require.Len(t, out.unplaced, 1)
	assert.Equal(t, []models.PlacementReason{models.ReasonGroupFull, models.ReasonStudentConflict}, out.unplaced[0].SubReasons)
}

func TestPlacementRespectsTeacherBlocks(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1)
	store := newMemoryPlacementStore(group)
	avail := NewAvailabilityIndex([]models.TeacherAvailabilityBlock{{TeacherID: "T", ExamDate: datePtr("2024-11-04"), Shift: shiftPtr(1)}})

	out := runPlacement(t, newTestEngine(store, catalog, avail), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)})

	require.Len(t, out.unplaced, 1)
	assert.Equal(t, []models.PlacementReason{models.ReasonTeacherUnavailable}, out.unplaced[0].SubReasons)
}

func TestPlacementShortCircuitReasons(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1)
	store := newMemoryPlacementStore(group)
	other := models.UnassignedTable{TableNumber: 10, ExamDate: day("2024-11-05"), Shift: 1, AreaID: 7}
	unknown := singleFor(99)
	wrongArea := models.UnassignedTable{TableNumber: 3, ExamDate: day("2024-11-04"), Shift: 1, AreaID: 7}
	catalog[3] = models.ExamTable{TableNumber: 3, AreaID: 8}

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{other, unknown, wrongArea})

	require.Len(t, out.unplaced, 3)
	assert.Equal(t, models.ReasonTableNotFound, out.unplaced[0].Reason)
	assert.Equal(t, models.ReasonAreaInconsistent, out.unplaced[1].Reason)
	assert.Equal(t, models.ReasonNoGroupsInSlot, out.unplaced[2].Reason)
	for _, row := range out.unplaced {
		assert.Nil(t, row.SubReasons)
	}
}

func TestPlacementAlreadyInGroupCleansSingle(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1, 10)
	store := newMemoryPlacementStore(group)

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)})

	require.Len(t, out.movements, 1)
	assert.Equal(t, models.ActionAlreadyInGroupClean, out.movements[0].Action)
	assert.Nil(t, out.movements[0].Before)
	assert.Nil(t, out.movements[0].After)
	assert.Equal(t, []int{10}, store.deleted)
	assert.Empty(t, store.saved)
}

func TestPlacementRerunIsIdempotent(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1, 2)
	store := newMemoryPlacementStore(group)

	first := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)})
	require.Len(t, first.movements, 1)

	second := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*store.rows["G"]}, []models.UnassignedTable{singleFor(10)})
	require.Len(t, second.movements, 1)
	assert.Equal(t, models.ActionAlreadyInGroupClean, second.movements[0].Action)
	assert.Equal(t, []int{1, 2, 10}, store.rows["G"].Members())
}

func TestPlacementGroupDisappearedIsPerSingle(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1)
	store := newMemoryPlacementStore()

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10), singleFor(3)})

	require.Len(t, out.unplaced, 2)
	assert.Equal(t, models.ReasonGroupDisappeared, out.unplaced[0].Reason)
	assert.Equal(t, models.ReasonNoGroupsInSlot, out.unplaced[1].Reason)
	assert.Empty(t, out.movements)
}

func TestPlacementReevaluatesChangedGroupOnReread(t *testing.T) {
	catalog := evaluatorCatalog()
	g1 := groupWith("G1", "2024-11-04", 1, 7, 1)
	g2 := groupWith("G2", "2024-11-04", 1, 7, 3)
	store := newMemoryPlacementStore(g1, g2)
	store.onFetch = func(id string) {
		if id == "G1" {
			store.rows["G1"] = groupWith("G1", "2024-11-04", 1, 7, 1, 2)
		}
	}

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*g1, *g2}, []models.UnassignedTable{singleFor(11)})

	require.Len(t, out.movements, 1)
	assert.Equal(t, "G2", out.movements[0].GroupID)
	assert.Equal(t, []int{1, 2}, store.rows["G1"].Members())
}

func TestPlacementLoadsTablesThatJoinedAfterSnapshot(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1)
	store := newMemoryPlacementStore(group)
	store.tables = map[int]models.ExamTable{
		99: {TableNumber: 99, AreaID: 7, StudentIDs: []string{"C"}},
	}
	store.onFetch = func(id string) {
		store.rows[id] = groupWith(id, "2024-11-04", 1, 7, 1, 99)
	}

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)})

	assert.Empty(t, out.movements)
	require.Len(t, out.unplaced, 1)
	assert.Equal(t, models.ReasonNoCompatibleGroup, out.unplaced[0].Reason)
	assert.Equal(t, []models.PlacementReason{models.ReasonStudentConflict}, out.unplaced[0].SubReasons)
	assert.Equal(t, [][]int{{99}}, store.loaded)
	assert.Equal(t, []int{1, 99}, store.rows["G"].Members())
	assert.Empty(t, store.saved)
	assert.Empty(t, store.deleted)
}

func TestPlacementRejectsGroupWithUnknownMember(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1)
	store := newMemoryPlacementStore(group)
	store.onFetch = func(id string) {
		store.rows[id] = groupWith(id, "2024-11-04", 1, 7, 1, 99)
	}

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)})

	assert.Empty(t, out.movements)
	require.Len(t, out.unplaced, 1)
	assert.Equal(t, []models.PlacementReason{models.ReasonTableNotFound}, out.unplaced[0].SubReasons)
	assert.Empty(t, store.saved)
}

func TestPlacementAbortsWhenTableReloadFails(t *testing.T) {
	group := groupWith("G", "2024-11-04", 1, 7, 1)
	store := &failingTableStore{memoryPlacementStore: newMemoryPlacementStore(group)}
	store.onFetch = func(id string) {
		store.rows[id] = groupWith(id, "2024-11-04", 1, 7, 1, 99)
	}

	out, err := newTestEngine(store, evaluatorCatalog(), nil).run(context.Background(), buildSlotIndex([]models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)}, models.ExamSlotFilter{}))
	require.Error(t, err)
	assert.Nil(t, out)
}

type failingTableStore struct {
	*memoryPlacementStore
}

func (s *failingTableStore) LoadTables(context.Context, []int) ([]models.ExamTable, error) {
	return nil, errors.New("connection reset")
}

func TestPlacementSkipsGroupMovedToAnotherSlot(t *testing.T) {
	cases := map[string]struct {
		moved  *models.ExamGroup
		reason models.PlacementReason
	}{
		"area":  {moved: groupWith("G1", "2024-11-04", 1, 8, 1), reason: models.ReasonAreaMismatch},
		"shift": {moved: groupWith("G1", "2024-11-04", 2, 7, 1), reason: models.ReasonSlotMismatch},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			g1 := groupWith("G1", "2024-11-04", 1, 7, 1)
			g2 := groupWith("G2", "2024-11-04", 1, 7, 3)
			store := newMemoryPlacementStore(g1, g2)
			store.onFetch = func(id string) {
				if id == "G1" {
					store.rows["G1"] = tc.moved.Clone()
				}
			}

			out := runPlacement(t, newTestEngine(store, evaluatorCatalog(), nil), []models.ExamGroup{*g1, *g2}, []models.UnassignedTable{singleFor(10)})

			require.Len(t, out.movements, 1)
			assert.Equal(t, "G2", out.movements[0].GroupID)
			assert.Equal(t, []string{"G2"}, store.saved)
			assert.Equal(t, []int{1}, store.rows["G1"].Members())
		})
	}
}

func TestPlacementReportsSlotMismatchWhenNoOtherGroup(t *testing.T) {
	group := groupWith("G", "2024-11-04", 1, 7, 1)
	store := newMemoryPlacementStore(group)
	store.onFetch = func(id string) {
		store.rows[id] = groupWith(id, "2024-11-04", 1, 8, 1)
	}

	out := runPlacement(t, newTestEngine(store, evaluatorCatalog(), nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10), singleFor(3)})

	require.Len(t, out.unplaced, 2)
	assert.Equal(t, []models.PlacementReason{models.ReasonAreaMismatch}, out.unplaced[0].SubReasons)
	// the moved group is no longer offered to later singles of the slot
	assert.Equal(t, models.ReasonNoGroupsInSlot, out.unplaced[1].Reason)
	assert.Empty(t, store.saved)
}

func TestPlacementAbortsOnInfrastructureError(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1)

	for name, mutate := range map[string]func(*memoryPlacementStore){
		"fetch":  func(s *memoryPlacementStore) { s.fetchErr = errors.New("connection reset") },
		"save":   func(s *memoryPlacementStore) { s.saveErr = errors.New("connection reset") },
		"delete": func(s *memoryPlacementStore) { s.deleteErr = errors.New("connection reset") },
	} {
		t.Run(name, func(t *testing.T) {
			store := newMemoryPlacementStore(group)
			mutate(store)
			out, err := newTestEngine(store, catalog, nil).run(context.Background(), buildSlotIndex([]models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)}, models.ExamSlotFilter{}))
			require.Error(t, err)
			assert.Nil(t, out)
		})
	}
}

func TestPlacementDeleteOfMissingSingleIsTolerated(t *testing.T) {
	catalog := evaluatorCatalog()
	group := groupWith("G", "2024-11-04", 1, 7, 1)
	store := newMemoryPlacementStore(group)
	store.deleteErr = sql.ErrNoRows

	out := runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*group}, []models.UnassignedTable{singleFor(10)})

	require.Len(t, out.movements, 1)
}

func TestPlacementNeverSeatsSharedStudentsTogether(t *testing.T) {
	tables := []models.ExamTable{
		{TableNumber: 1, AreaID: 7, StudentIDs: []string{"S1"}},
		{TableNumber: 2, AreaID: 7, StudentIDs: []string{"S2"}},
	}
	singles := make([]models.UnassignedTable, 0)
	for n := 10; n < 20; n++ {
		tables = append(tables, models.ExamTable{TableNumber: n, AreaID: 7, StudentIDs: []string{"S" + string(rune('0'+n%4)), "X"}})
		singles = append(singles, singleFor(n))
	}
	catalog := newTableCatalog(tables)
	g1 := groupWith("G1", "2024-11-04", 1, 7, 1)
	g2 := groupWith("G2", "2024-11-04", 1, 7, 2)
	store := newMemoryPlacementStore(g1, g2)

	runPlacement(t, newTestEngine(store, catalog, nil), []models.ExamGroup{*g1, *g2}, singles)

	for _, row := range store.rows {
		assert.LessOrEqual(t, row.Occupied(), models.GroupCapacity)
		seen := map[string]int{}
		for _, member := range row.Members() {
			for _, student := range catalog[member].StudentIDs {
				seen[student]++
				assert.Equal(t, 1, seen[student], "student %s repeated in group %s", student, row.ID)
			}
		}
	}
}

func TestSimulatedStoreOverlaysPendingWrites(t *testing.T) {
	group := groupWith("G", "2024-11-04", 1, 7, 1)
	base := newMemoryPlacementStore(group)
	sim := newSimulatedStore(base)
	ctx := context.Background()

	fetched, err := sim.FetchGroup(ctx, "G")
	require.NoError(t, err)
	fetched.SetPosition(2, 10)
	require.NoError(t, sim.SaveGroup(ctx, fetched))

	again, err := sim.FetchGroup(ctx, "G")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 10}, again.Members())
	assert.Equal(t, []int{1}, base.rows["G"].Members())
	assert.Empty(t, base.saved)

	require.NoError(t, sim.DeleteSingle(ctx, singleFor(10)))
	assert.ErrorIs(t, sim.DeleteSingle(ctx, singleFor(10)), sql.ErrNoRows)
	assert.Empty(t, base.deleted)

	_, err = sim.FetchGroup(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDryRunMatchesCommitOutcome(t *testing.T) {
	catalog := evaluatorCatalog()
	g1 := groupWith("G1", "2024-11-04", 1, 7, 1)
	g2 := groupWith("G2", "2024-11-04", 1, 7, 3, 4)
	singles := []models.UnassignedTable{singleFor(10), singleFor(11), singleFor(2)}
	groups := []models.ExamGroup{*g1, *g2}

	committed := runPlacement(t, newTestEngine(newMemoryPlacementStore(g1, g2), catalog, nil), groups, singles)

	base := newMemoryPlacementStore(g1, g2)
	engine := newTestEngine(newSimulatedStore(base), catalog, nil)
	engine.mergeAction = models.ActionSimulatedAdd
	simulated := runPlacement(t, engine, groups, singles)

	require.Equal(t, len(committed.movements), len(simulated.movements))
	for i := range committed.movements {
		assert.Equal(t, committed.movements[i].GroupID, simulated.movements[i].GroupID)
		assert.Equal(t, committed.movements[i].After, simulated.movements[i].After)
		assert.Equal(t, models.ActionSimulatedAdd, simulated.movements[i].Action)
	}
	assert.Equal(t, committed.unplaced, simulated.unplaced)
	assert.Empty(t, base.saved)
	assert.Empty(t, base.deleted)
}
