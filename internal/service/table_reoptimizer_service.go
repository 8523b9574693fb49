package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-exams/internal/dto"
	"github.com/noah-isme/sma-adp-exams/internal/models"
	appErrors "github.com/noah-isme/sma-adp-exams/pkg/errors"
)

const (
	runModeCommit = "commit"
	runModeDryRun = "dry_run"
)

type examGroupRepository interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.ExamSlotFilter) ([]models.ExamGroup, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExamGroup, error)
	UpdatePositions(ctx context.Context, exec sqlx.ExtContext, group *models.ExamGroup) error
}

type unassignedTableRepository interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.ExamSlotFilter) ([]models.UnassignedTable, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, single models.UnassignedTable) error
}

type examTableRepository interface {
	ListByNumbers(ctx context.Context, exec sqlx.ExtContext, numbers []int) ([]models.ExamTable, error)
}

type teacherAvailabilityRepository interface {
	ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.TeacherAvailabilityBlock, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type runReportWriter interface {
	Store(ctx context.Context, report *dto.ReoptimizeResponse) error
}

// ReoptimizerConfig tunes the reoptimization batch.
type ReoptimizerConfig struct {
	Enabled   bool
	Isolation sql.IsolationLevel
}

// ReoptimizerService merges unassigned exam tables into compatible groups.
type ReoptimizerService struct {
	groups       examGroupRepository
	singles      unassignedTableRepository
	tables       examTableRepository
	availability teacherAvailabilityRepository
	tx           txProvider
	reports      runReportWriter
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          ReoptimizerConfig
	now          func() time.Time
}

// NewReoptimizerService wires reoptimizer dependencies.
func NewReoptimizerService(
	groups examGroupRepository,
	singles unassignedTableRepository,
	tables examTableRepository,
	availability teacherAvailabilityRepository,
	tx txProvider,
	reports runReportWriter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ReoptimizerConfig,
) *ReoptimizerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReoptimizerService{
		groups:       groups,
		singles:      singles,
		tables:       tables,
		availability: availability,
		tx:           tx,
		reports:      reports,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Reoptimize runs one batch. A committed run either applies every movement or none.
func (s *ReoptimizerService) Reoptimize(ctx context.Context, req dto.ReoptimizeRequest) (*dto.ReoptimizeResponse, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "exam table reoptimization is disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reoptimization filters")
	}
	filter, err := parseSlotFilter(req.DateFilter, req.ShiftFilter)
	if err != nil {
		return nil, err
	}

	mode := runModeCommit
	if req.DryRun {
		mode = runModeDryRun
	}
	runID := uuid.NewString()
	startedAt := s.now().UTC()
	logger := s.logger.With(zap.String("run_id", runID), zap.String("mode", mode))
	logger.Info("reoptimization started", zap.String("date_filter", req.DateFilter), zap.Any("shift_filter", req.ShiftFilter))

	var outcome *placementOutcome
	if req.DryRun {
		outcome, err = s.simulate(ctx, filter, logger)
	} else {
		outcome, err = s.commit(ctx, filter, logger)
	}
	duration := s.now().Sub(startedAt)
	if err != nil {
		s.metrics.ObserveReoptimization(mode, nil, duration)
		logger.Error("reoptimization failed", zap.Error(err))
		return nil, err
	}

	report := &dto.ReoptimizeResponse{
		Summary: dto.ReoptimizeSummary{
			RunID:         runID,
			Movements:     len(outcome.movements),
			UnplacedCount: len(outcome.unplaced),
			DateFilter:    req.DateFilter,
			ShiftFilter:   req.ShiftFilter,
			StartedAt:     startedAt,
			DurationMs:    duration.Milliseconds(),
		},
		Detail: dto.ReoptimizeDetail{
			Movements: outcome.movements,
			Unplaced:  outcome.unplaced,
		},
	}
	if req.DryRun {
		report.Summary.DryRun = 1
	}
	s.metrics.ObserveReoptimization(mode, report, duration)
	logger.Info("reoptimization finished",
		zap.Int("movements", report.Summary.Movements),
		zap.Int("unplaced", report.Summary.UnplacedCount),
		zap.Duration("duration", duration),
	)

	if s.reports != nil {
		if cacheErr := s.reports.Store(ctx, report); cacheErr != nil {
			logger.Warn("failed to cache reoptimization report", zap.Error(cacheErr))
		}
	}
	return report, nil
}

func (s *ReoptimizerService) simulate(ctx context.Context, filter models.ExamSlotFilter, logger *zap.Logger) (*placementOutcome, error) {
	reader := &transactionalStore{groups: s.groups, singles: s.singles, tables: s.tables}
	return s.place(ctx, nil, filter, newSimulatedStore(reader), models.ActionSimulatedAdd, logger)
}

func (s *ReoptimizerService) commit(ctx context.Context, filter models.ExamSlotFilter, logger *zap.Logger) (outcome *placementOutcome, err error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: s.cfg.Isolation})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("rollback failed", zap.Error(rbErr))
			}
			logger.Error("reoptimization rolled back")
		}
	}()

	store := &transactionalStore{exec: tx, groups: s.groups, singles: s.singles, tables: s.tables}
	outcome, err = s.place(ctx, tx, filter, store, models.ActionAddedToGroup, logger)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit reoptimization")
		return nil, err
	}
	return outcome, nil
}

// place loads everything the pass needs through exec and runs the engine against store.
func (s *ReoptimizerService) place(ctx context.Context, exec sqlx.ExtContext, filter models.ExamSlotFilter, store placementStore, action models.PlacementAction, logger *zap.Logger) (*placementOutcome, error) {
	groups, err := s.groups.List(ctx, exec, filter)
	if err != nil {
		return nil, internalError(err, "failed to load exam groups")
	}
	singles, err := s.singles.List(ctx, exec, filter)
	if err != nil {
		return nil, internalError(err, "failed to load unassigned tables")
	}
	blocks, err := s.availability.ListAll(ctx, exec)
	if err != nil {
		return nil, internalError(err, "failed to load teacher availability")
	}

	var tables []models.ExamTable
	if numbers := referencedTables(groups, singles); len(numbers) > 0 {
		tables, err = s.tables.ListByNumbers(ctx, exec, numbers)
		if err != nil {
			return nil, internalError(err, "failed to load exam tables")
		}
	}

	engine := &placementEngine{
		store:        store,
		catalog:      newTableCatalog(tables),
		availability: NewAvailabilityIndex(blocks),
		mergeAction:  action,
		logger:       logger,
	}
	outcome, err := engine.run(ctx, buildSlotIndex(groups, singles, filter))
	if err != nil {
		return nil, internalError(err, "failed to place unassigned tables")
	}
	return outcome, nil
}

// referencedTables lists every table number held by a single or a group position, ascending.
func referencedTables(groups []models.ExamGroup, singles []models.UnassignedTable) []int {
	seen := make(map[int]struct{})
	for _, single := range singles {
		seen[single.TableNumber] = struct{}{}
	}
	for i := range groups {
		for _, member := range groups[i].Members() {
			seen[member] = struct{}{}
		}
	}
	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
