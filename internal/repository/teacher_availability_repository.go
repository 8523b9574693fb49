package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// TeacherAvailabilityRepository reads teacher unavailability blocks.
type TeacherAvailabilityRepository struct {
	db *sqlx.DB
}

// NewTeacherAvailabilityRepository constructs the repository.
func NewTeacherAvailabilityRepository(db *sqlx.DB) *TeacherAvailabilityRepository {
	return &TeacherAvailabilityRepository{db: db}
}

// ListAll returns every block of the exam period.
func (r *TeacherAvailabilityRepository) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.TeacherAvailabilityBlock, error) {
	const query = `SELECT id, teacher_id, exam_date, shift FROM teacher_unavailability ORDER BY teacher_id, id`
	var blocks []models.TeacherAvailabilityBlock
	if err := sqlx.SelectContext(ctx, executor(r.db, exec), &blocks, query); err != nil {
		return nil, fmt.Errorf("list teacher unavailability: %w", err)
	}
	return blocks, nil
}
