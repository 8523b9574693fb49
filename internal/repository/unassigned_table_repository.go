package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// UnassignedTableRepository manages tables not yet part of any group.
type UnassignedTableRepository struct {
	db *sqlx.DB
}

// NewUnassignedTableRepository constructs the repository.
func NewUnassignedTableRepository(db *sqlx.DB) *UnassignedTableRepository {
	return &UnassignedTableRepository{db: db}
}

// List returns singles matching the filter ordered by slot then table number.
func (r *UnassignedTableRepository) List(ctx context.Context, exec sqlx.ExtContext, filter models.ExamSlotFilter) ([]models.UnassignedTable, error) {
	where, args := slotFilterClause(filter)
	query := fmt.Sprintf(`SELECT table_number, exam_date, shift, area_id FROM exam_unassigned_tables WHERE %s ORDER BY exam_date, shift, area_id, table_number`, where)
	var singles []models.UnassignedTable
	if err := sqlx.SelectContext(ctx, executor(r.db, exec), &singles, query, args...); err != nil {
		return nil, fmt.Errorf("list unassigned tables: %w", err)
	}
	return singles, nil
}

// Delete removes the single row for table+date+shift.
func (r *UnassignedTableRepository) Delete(ctx context.Context, exec sqlx.ExtContext, single models.UnassignedTable) error {
	const query = `DELETE FROM exam_unassigned_tables WHERE table_number = $1 AND exam_date = $2 AND shift = $3`
	result, err := executor(r.db, exec).ExecContext(ctx, query, single.TableNumber, single.ExamDate.Format(models.DateLayout), single.Shift)
	if err != nil {
		return fmt.Errorf("delete unassigned table %d: %w", single.TableNumber, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unassigned table rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
