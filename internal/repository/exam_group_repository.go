package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-exams/internal/models"
)

const examGroupColumns = `id, exam_date, shift, area_id, slot1, slot2, slot3, slot4`

// ExamGroupRepository reads and updates exam groups.
type ExamGroupRepository struct {
	db *sqlx.DB
}

// NewExamGroupRepository constructs the repository.
func NewExamGroupRepository(db *sqlx.DB) *ExamGroupRepository {
	return &ExamGroupRepository{db: db}
}

// List returns groups matching the filter ordered by slot then id.
func (r *ExamGroupRepository) List(ctx context.Context, exec sqlx.ExtContext, filter models.ExamSlotFilter) ([]models.ExamGroup, error) {
	where, args := slotFilterClause(filter)
	query := fmt.Sprintf(`SELECT %s FROM exam_groups WHERE %s ORDER BY exam_date, shift, area_id, id`, examGroupColumns, where)
	var groups []models.ExamGroup
	if err := sqlx.SelectContext(ctx, executor(r.db, exec), &groups, query, args...); err != nil {
		return nil, fmt.Errorf("list exam groups: %w", err)
	}
	return groups, nil
}

// FindByID loads the current contents of a group.
func (r *ExamGroupRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExamGroup, error) {
	query := fmt.Sprintf(`SELECT %s FROM exam_groups WHERE id = $1`, examGroupColumns)
	var group models.ExamGroup
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// UpdatePositions writes the four positions of a group.
func (r *ExamGroupRepository) UpdatePositions(ctx context.Context, exec sqlx.ExtContext, group *models.ExamGroup) error {
	if group == nil {
		return fmt.Errorf("exam group payload is nil")
	}
	const query = `UPDATE exam_groups SET slot1 = $1, slot2 = $2, slot3 = $3, slot4 = $4 WHERE id = $5`
	result, err := executor(r.db, exec).ExecContext(ctx, query, group.Slot1, group.Slot2, group.Slot3, group.Slot4, group.ID)
	if err != nil {
		return fmt.Errorf("update exam group %s: %w", group.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("exam group rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
