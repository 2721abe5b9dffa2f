package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/enduse"
	jobmetrics "github.com/buildsight/buildsight/internal/jobs"
	"github.com/buildsight/buildsight/internal/period"
)

const payloadDateLayout = "2006-01-02"

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// BuildingLoader loads the building a refresh targets.
type BuildingLoader interface {
	GetBuilding(ctx context.Context, id string) (building.Building, error)
}

// EndUseRefresher recomputes and stores one breakdown.
type EndUseRefresher interface {
	Refresh(ctx context.Context, req enduse.Request) (enduse.Breakdown, error)
}

// EndUseRefreshJob recomputes an end-use cache entry.
type EndUseRefreshJob struct {
	Buildings BuildingLoader
	EndUse    EndUseRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewEndUseRefreshJob wires dependencies for the refresh handler.
func NewEndUseRefreshJob(buildings BuildingLoader, endUse EndUseRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *EndUseRefreshJob {
	return &EndUseRefreshJob{Buildings: buildings, EndUse: endUse, Logger: logger, Metrics: metrics}
}

// Handle processes end-use refresh tasks.
func (j *EndUseRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Buildings == nil || j.EndUse == nil {
		return errors.New("enduse refresh: handler not configured")
	}
	var payload EndUseRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	window, cfg, err := payload.window()
	if err != nil {
		j.logger().Warn("invalid refresh payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskEndUseRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("building_id", payload.BuildingID), slog.String("template_id", payload.TemplateID))
	b, err := j.Buildings.GetBuilding(ctx, payload.BuildingID)
	if err != nil {
		resultErr = err
		logger.Error("load building", slog.Any("error", err))
		return resultErr
	}
	start := time.Now()
	out, err := j.EndUse.Refresh(ctx, enduse.Request{
		Building:    b,
		TemplateID:  payload.TemplateID,
		Window:      window,
		Period:      cfg,
		Fingerprint: payload.Fingerprint,
	})
	if errors.Is(err, enduse.ErrMissingKey) {
		resultErr = err
		return asynq.SkipRetry
	}
	if err != nil {
		resultErr = err
		logger.Error("refresh end use", slog.Any("error", err))
		return resultErr
	}
	logger.Info("refreshed end use breakdown", slog.Float64("total_kbtu", out.TotalKBtu), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (p EndUseRefreshPayload) window() (period.Range, period.Config, error) {
	start, err := time.Parse(payloadDateLayout, p.StartDate)
	if err != nil {
		return period.Range{}, period.Config{}, fmt.Errorf("start date: %w", err)
	}
	end, err := time.Parse(payloadDateLayout, p.EndDate)
	if err != nil {
		return period.Range{}, period.Config{}, fmt.Errorf("end date: %w", err)
	}
	window, err := period.NewRange(start, end)
	if err != nil {
		return period.Range{}, period.Config{}, err
	}
	cfg, err := period.Config{
		Mode:       period.ParseMode(p.Organize),
		StartMonth: time.Month(p.StartMonth),
		EndMonth:   time.Month(p.EndMonth),
	}.Normalize()
	if err != nil {
		return period.Range{}, period.Config{}, err
	}
	return window, cfg, nil
}

func (j *EndUseRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskEndUseRefresh))
	}
	return slog.Default().With(slog.String("job", TaskEndUseRefresh))
}

func (j *EndUseRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
