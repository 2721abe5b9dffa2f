package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueReports carries report generation tasks.
	QueueReports = "reports"

	// TaskReportGenerate renders a report outside the request cycle.
	TaskReportGenerate = "report:generate"
	// TaskReportReady announces a finished report artefact.
	TaskReportReady = "report:ready"
	// TaskEndUseRefresh recomputes a cached end-use breakdown.
	TaskEndUseRefresh = "enduse:refresh"
	// TaskReportPurge removes expired report artefacts.
	TaskReportPurge = "report:purge"

	reportTimeout = 10 * time.Minute
)

// GenerateReportPayload mirrors the synchronous report request.
type GenerateReportPayload struct {
	RequestID       string `json:"request_id"`
	BuildingID      string `json:"building_id"`
	TemplateID      string `json:"template_id"`
	UserID          string `json:"user_id"`
	DocToType       string `json:"doc_to_type,omitempty"`
	Filename        string `json:"filename,omitempty"`
	CustomDate      string `json:"custom_date,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	CustomStartDate string `json:"custom_start_date,omitempty"`
	CustomEndDate   string `json:"custom_end_date,omitempty"`
	TimeZone        string `json:"time_zone,omitempty"`
	ThemeID         string `json:"theme_id,omitempty"`
	ProposalID      string `json:"proposal_id,omitempty"`
	NotifyEmail     string `json:"notify_email,omitempty"`
}

// ReportReadyPayload describes a stored report artefact.
type ReportReadyPayload struct {
	RequestID   string `json:"request_id"`
	ReportID    string `json:"report_id"`
	BuildingID  string `json:"building_id"`
	TemplateID  string `json:"template_id"`
	UserID      string `json:"user_id"`
	NotifyEmail string `json:"notify_email,omitempty"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
}

// EndUseRefreshPayload identifies one end-use cache entry. Dates use the
// 2006-01-02 layout.
type EndUseRefreshPayload struct {
	BuildingID  string `json:"building_id"`
	TemplateID  string `json:"template_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Organize    string `json:"organize,omitempty"`
	StartMonth  int    `json:"start_month,omitempty"`
	EndMonth    int    `json:"end_month,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ReportPurgePayload configures the artefact sweep.
type ReportPurgePayload struct {
	MaxAgeHours int `json:"max_age_hours"`
}

// NewGenerateReportTask constructs an Asynq task. Report generation is never retried.
func NewGenerateReportTask(payload GenerateReportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportGenerate, data, asynq.Queue(QueueReports), asynq.MaxRetry(0), asynq.Timeout(reportTimeout)), nil
}

// NewReportReadyTask constructs an Asynq task.
func NewReportReadyTask(payload ReportReadyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportReady, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewEndUseRefreshTask constructs an Asynq task.
func NewEndUseRefreshTask(payload EndUseRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEndUseRefresh, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// NewReportPurgeTask constructs an Asynq task.
func NewReportPurgeTask(maxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(ReportPurgePayload{MaxAgeHours: int(maxAge / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportPurge, data), nil
}
