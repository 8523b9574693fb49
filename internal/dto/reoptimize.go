package dto

import (
	"time"

	"github.com/noah-isme/sma-adp-exams/internal/models"
)

// ReoptimizeRequest triggers a reoptimization batch over singles and groups.
type ReoptimizeRequest struct {
	DryRun      bool   `json:"dryRun"`
	DateFilter  string `json:"dateFilter" validate:"omitempty,datetime=2006-01-02"`
	ShiftFilter *int   `json:"shiftFilter" validate:"omitempty,oneof=1 2"`
}

// ReoptimizeSummary aggregates the run outcome.
type ReoptimizeSummary struct {
	RunID         string    `json:"runId"`
	DryRun        int       `json:"dryRun"`
	Movements     int       `json:"movements"`
	UnplacedCount int       `json:"unplacedCount"`
	DateFilter    string    `json:"dateFilter,omitempty"`
	ShiftFilter   *int      `json:"shiftFilter,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	DurationMs    int64     `json:"durationMs"`
}

// TableMovement describes a single merged into a group, or cleaned up because it already was.
type TableMovement struct {
	TableNumber int                    `json:"tableNumber"`
	Date        string                 `json:"date"`
	Shift       int                    `json:"shift"`
	AreaID      int                    `json:"areaId"`
	GroupID     string                 `json:"groupId"`
	Before      []*int                 `json:"before,omitempty"`
	After       []*int                 `json:"after,omitempty"`
	Action      models.PlacementAction `json:"action"`
}

// UnplacedTable describes a single that stayed ungrouped.
type UnplacedTable struct {
	TableNumber int                      `json:"tableNumber"`
	Date        string                   `json:"date"`
	Shift       int                      `json:"shift"`
	AreaID      int                      `json:"areaId"`
	Reason      models.PlacementReason   `json:"reason"`
	SubReasons  []models.PlacementReason `json:"subReasons,omitempty"`
}

// ReoptimizeDetail lists movements and unplaced singles in processing order.
type ReoptimizeDetail struct {
	Movements []TableMovement `json:"movements"`
	Unplaced  []UnplacedTable `json:"unplaced"`
}

// ReoptimizeResponse is the full run report.
type ReoptimizeResponse struct {
	Summary ReoptimizeSummary `json:"summary"`
	Detail  ReoptimizeDetail  `json:"detail"`
}

// ReoptimizeExportQuery selects the rendering of a stored run report.
type ReoptimizeExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
