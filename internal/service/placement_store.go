package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// placementStore is what the placement pass reads and writes through.
// FetchGroup returns sql.ErrNoRows when the group no longer exists.
type placementStore interface {
	placementReader
	SaveGroup(ctx context.Context, group *models.ExamGroup) error
	DeleteSingle(ctx context.Context, single models.UnassignedTable) error
}

// placementReader loads current rows on the run's executor. LoadTables skips unknown numbers.
type placementReader interface {
	FetchGroup(ctx context.Context, id string) (*models.ExamGroup, error)
	LoadTables(ctx context.Context, numbers []int) ([]models.ExamTable, error)
}

// transactionalStore writes through the repositories on a single executor, usually an open *sqlx.Tx.
type transactionalStore struct {
	exec    sqlx.ExtContext
	groups  examGroupRepository
	singles unassignedTableRepository
	tables  examTableRepository
}

func (s *transactionalStore) FetchGroup(ctx context.Context, id string) (*models.ExamGroup, error) {
	return s.groups.FindByID(ctx, s.exec, id)
}

func (s *transactionalStore) LoadTables(ctx context.Context, numbers []int) ([]models.ExamTable, error) {
	return s.tables.ListByNumbers(ctx, s.exec, numbers)
}

func (s *transactionalStore) SaveGroup(ctx context.Context, group *models.ExamGroup) error {
	return s.groups.UpdatePositions(ctx, s.exec, group)
}

func (s *transactionalStore) DeleteSingle(ctx context.Context, single models.UnassignedTable) error {
	return s.singles.Delete(ctx, s.exec, single)
}

// simulatedStore answers reads from pending simulated writes first, then from the real rows.
// Nothing is ever written to the database.
type simulatedStore struct {
	reader  placementReader
	groups  map[string]*models.ExamGroup
	deleted map[string]struct{}
}

func newSimulatedStore(reader placementReader) *simulatedStore {
	return &simulatedStore{
		reader:  reader,
		groups:  make(map[string]*models.ExamGroup),
		deleted: make(map[string]struct{}),
	}
}

func (s *simulatedStore) FetchGroup(ctx context.Context, id string) (*models.ExamGroup, error) {
	if pending, ok := s.groups[id]; ok {
		return pending.Clone(), nil
	}
	return s.reader.FetchGroup(ctx, id)
}

func (s *simulatedStore) LoadTables(ctx context.Context, numbers []int) ([]models.ExamTable, error) {
	return s.reader.LoadTables(ctx, numbers)
}

func (s *simulatedStore) SaveGroup(_ context.Context, group *models.ExamGroup) error {
	if group == nil {
		return fmt.Errorf("exam group payload is nil")
	}
	s.groups[group.ID] = group.Clone()
	return nil
}

func (s *simulatedStore) DeleteSingle(_ context.Context, single models.UnassignedTable) error {
	key := fmt.Sprintf("%d@%s#%d", single.TableNumber, single.ExamDate.Format(models.DateLayout), single.Shift)
	if _, gone := s.deleted[key]; gone {
		return sql.ErrNoRows
	}
	s.deleted[key] = struct{}{}
	return nil
}
