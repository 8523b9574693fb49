package repository

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// executor returns the caller's transaction when present, the pool otherwise.
func executor(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}

// slotFilterClause renders the WHERE clause for an optional date/shift filter.
func slotFilterClause(filter models.ExamSlotFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Date != nil {
		args = append(args, filter.Date.Format(models.DateLayout))
		conditions = append(conditions, fmt.Sprintf("exam_date = $%d", len(args)))
	}
	if filter.Shift != nil {
		args = append(args, *filter.Shift)
		conditions = append(conditions, fmt.Sprintf("shift = $%d", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}
