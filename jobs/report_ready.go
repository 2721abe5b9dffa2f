package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/buildsight/buildsight/internal/jobs"
)

// ReportReadyJob announces stored report artefacts. Delivery to the user
// happens outside this service; the job records the download link.
type ReportReadyJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportReadyJob wires dependencies for the notification handler.
func NewReportReadyJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportReadyJob {
	return &ReportReadyJob{Logger: logger, Metrics: metrics}
}

// Handle processes report ready tasks.
func (j *ReportReadyJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReportReadyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ReportID == "" || payload.DownloadURL == "" {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskReportReady)
	j.logger().InfoContext(ctx, "report ready",
		slog.String("request_id", payload.RequestID),
		slog.String("report_id", payload.ReportID),
		slog.String("building_id", payload.BuildingID),
		slog.String("template_id", payload.TemplateID),
		slog.String("user_id", payload.UserID),
		slog.String("notify_email", payload.NotifyEmail),
		slog.String("filename", payload.Filename),
		slog.String("download_url", payload.DownloadURL),
	)
	return tracker.End(nil)
}

func (j *ReportReadyJob) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportReady))
	}
	return slog.Default().With(slog.String("job", TaskReportReady))
}

func (j *ReportReadyJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
