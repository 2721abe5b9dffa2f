package reportgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/buildsight/buildsight/internal/jobs"
	"github.com/buildsight/buildsight/internal/platform/httpx"
	"github.com/buildsight/buildsight/jobs"
)

// ReadyNotifier announces stored reports.
type ReadyNotifier interface {
	EnqueueReportReady(ctx context.Context, payload jobs.ReportReadyPayload) (*asynq.TaskInfo, error)
}

// JobConfig wires dependencies required by the worker job.
type JobConfig struct {
	Service  *Service
	Storage  *Storage
	Notifier ReadyNotifier
	Metrics  *jobmetrics.Metrics
	Logger   *slog.Logger
}

// Job processes report generation requests coming from the queue.
type Job struct {
	service  *Service
	storage  *Storage
	notifier ReadyNotifier
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
}

// NewJob constructs a Job handler.
func NewJob(cfg JobConfig) *Job {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	storage := cfg.Storage
	if storage == nil {
		storage = NewStorage("")
	}
	return &Job{service: cfg.Service, storage: storage, notifier: cfg.Notifier, metrics: cfg.Metrics, logger: logger}
}

// PayloadFromRequest converts a request into a queue payload. A missing run
// id is generated.
func PayloadFromRequest(req Request) jobs.GenerateReportPayload {
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	return jobs.GenerateReportPayload{
		RequestID:       id,
		BuildingID:      req.BuildingID,
		TemplateID:      req.TemplateID,
		UserID:          req.UserID,
		DocToType:       req.DocTo,
		Filename:        req.Filename,
		CustomDate:      req.CustomDate,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		CustomStartDate: req.CustomStartDate,
		CustomEndDate:   req.CustomEndDate,
		TimeZone:        req.TimeZone,
		ThemeID:         req.ThemeID,
		ProposalID:      req.ProposalID,
		NotifyEmail:     req.NotifyEmail,
	}
}

// RequestFromPayload is the inverse of PayloadFromRequest.
func RequestFromPayload(p jobs.GenerateReportPayload) Request {
	return Request{
		BuildingID:      p.BuildingID,
		TemplateID:      p.TemplateID,
		UserID:          p.UserID,
		ProposalID:      p.ProposalID,
		DocTo:           p.DocToType,
		Filename:        p.Filename,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		CustomStartDate: p.CustomStartDate,
		CustomEndDate:   p.CustomEndDate,
		CustomDate:      p.CustomDate,
		TimeZone:        p.TimeZone,
		ThemeID:         p.ThemeID,
		NotifyEmail:     p.NotifyEmail,
		RequestID:       p.RequestID,
	}
}

// Handle fulfils the asynq.HandlerFunc contract. Generation is attempted once;
// request and template errors skip the retry queue explicitly.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.service == nil {
		return fmt.Errorf("report job not configured")
	}
	var payload jobs.GenerateReportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track(jobs.TaskReportGenerate)
	logger := j.logger.With(slog.String("job", jobs.TaskReportGenerate), slog.String("request_id", payload.RequestID))

	out, err := j.service.Generate(ctx, RequestFromPayload(payload))
	if err != nil {
		_ = tracker.End(err)
		if errors.Is(err, ErrInvalidRequest) || errors.Is(err, httpx.ErrNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	artefact, err := j.storage.Save(out)
	if err != nil {
		logger.Error("save report", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddArtefact(artefact.FileExtension)
	logger.Info("report stored", slog.String("report_id", artefact.ID), slog.String("path", artefact.Path))

	if j.notifier != nil {
		_, err := j.notifier.EnqueueReportReady(ctx, jobs.ReportReadyPayload{
			RequestID:   payload.RequestID,
			ReportID:    artefact.ID,
			BuildingID:  payload.BuildingID,
			TemplateID:  payload.TemplateID,
			UserID:      payload.UserID,
			NotifyEmail: payload.NotifyEmail,
			Filename:    artefact.Filename + "." + artefact.FileExtension,
			DownloadURL: DownloadPath(artefact.ID),
		})
		if err != nil {
			logger.Warn("enqueue report ready", slog.Any("error", err))
		}
	}
	return tracker.End(nil)
}

// DownloadPath is the route serving a stored report.
func DownloadPath(id string) string {
	return "/reports/" + id + "/download"
}
