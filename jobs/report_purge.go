package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/buildsight/buildsight/internal/jobs"
)

const defaultArtefactMaxAge = 7 * 24 * time.Hour

// ReportPurgeJob deletes stored report artefacts past their retention.
type ReportPurgeJob struct {
	StorageDir string
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewReportPurgeJob wires dependencies for the purge handler.
func NewReportPurgeJob(storageDir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportPurgeJob {
	return &ReportPurgeJob{
		StorageDir: storageDir,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes purge tasks.
func (j *ReportPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.StorageDir == "" {
		return errors.New("report purge: storage dir not configured")
	}
	var payload ReportPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	maxAge := time.Duration(payload.MaxAgeHours) * time.Hour
	if maxAge <= 0 {
		maxAge = defaultArtefactMaxAge
	}

	tracker := j.metrics().Track(TaskReportPurge)
	removed, err := j.purge(ctx, j.now().Add(-maxAge))
	j.metrics().AddPurged(removed)
	if err != nil {
		j.logger().Error("purge report artefacts", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("purged report artefacts", slog.Int("removed", removed))
	return tracker.End(nil)
}

func (j *ReportPurgeJob) purge(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(j.StorageDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.StorageDir, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (j *ReportPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportPurge))
	}
	return slog.Default().With(slog.String("job", TaskReportPurge))
}

func (j *ReportPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportPurgeJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
