package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// ExamTableRepository reads table metadata: area, students and teachers.
type ExamTableRepository struct {
	db *sqlx.DB
}

// NewExamTableRepository constructs the repository.
func NewExamTableRepository(db *sqlx.DB) *ExamTableRepository {
	return &ExamTableRepository{db: db}
}

// ListByNumbers returns the requested tables with their members. Unknown numbers are skipped.
func (r *ExamTableRepository) ListByNumbers(ctx context.Context, exec sqlx.ExtContext, numbers []int) ([]models.ExamTable, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	target := executor(r.db, exec)
	ids := make([]int64, len(numbers))
	for i, n := range numbers {
		ids[i] = int64(n)
	}

	const tablesQuery = `SELECT table_number, area_id FROM exam_tables WHERE table_number = ANY($1) ORDER BY table_number`
	var tables []models.ExamTable
	if err := sqlx.SelectContext(ctx, target, &tables, tablesQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list exam tables: %w", err)
	}

	const studentsQuery = `SELECT table_number, student_id AS member_id FROM exam_table_students WHERE table_number = ANY($1) ORDER BY table_number, student_id`
	var students []models.ExamTableMember
	if err := sqlx.SelectContext(ctx, target, &students, studentsQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list exam table students: %w", err)
	}

	const teachersQuery = `SELECT table_number, teacher_id AS member_id FROM exam_table_teachers WHERE table_number = ANY($1) ORDER BY table_number, teacher_id`
	var teachers []models.ExamTableMember
	if err := sqlx.SelectContext(ctx, target, &teachers, teachersQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list exam table teachers: %w", err)
	}

	byNumber := make(map[int]int, len(tables))
	for i := range tables {
		byNumber[tables[i].TableNumber] = i
	}
	for _, m := range students {
		if idx, ok := byNumber[m.TableNumber]; ok {
			tables[idx].StudentIDs = append(tables[idx].StudentIDs, m.MemberID)
		}
	}
	for _, m := range teachers {
		if idx, ok := byNumber[m.TableNumber]; ok {
			tables[idx].TeacherIDs = append(tables[idx].TeacherIDs, m.MemberID)
		}
	}
	return tables, nil
}
