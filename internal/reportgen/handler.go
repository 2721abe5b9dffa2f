package reportgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/buildsight/buildsight/internal/platform/httpx"
	"github.com/buildsight/buildsight/jobs"
	"github.com/buildsight/buildsight/report"
)

// UserHeader carries the requesting user id set by the upstream auth layer.
const UserHeader = "X-User-ID"

var errQueueDisabled = fmt.Errorf("%w: background generation is not configured", httpx.ErrUnavailable)

// Enqueuer submits background report work.
type Enqueuer interface {
	EnqueueGenerateReport(ctx context.Context, payload jobs.GenerateReportPayload) (*asynq.TaskInfo, error)
	EnqueueEndUseRefresh(ctx context.Context, payload jobs.EndUseRefreshPayload) (*asynq.TaskInfo, error)
}

// Handler exposes report generation over HTTP.
type Handler struct {
	service *Service
	queue   Enqueuer
	storage *Storage
	logger  *slog.Logger
}

// NewHandler constructs a Handler. queue and storage may be nil, which
// disables the asynchronous routes.
func NewHandler(service *Service, queue Enqueuer, storage *Storage, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, queue: queue, storage: storage, logger: logger}
}

// MountRoutes attaches report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/buildings/{buildingID}/templates/{templateID}", func(r chi.Router) {
		r.Get("/report", h.generate)
		r.Post("/report/jobs", h.enqueue)
		r.Post("/enduse/refresh", h.refreshEndUse)
	})
	r.Get("/reports/{reportID}/download", h.download)
}

func (h *Handler) request(r *http.Request) Request {
	return RequestFromQuery(chi.URLParam(r, "buildingID"), chi.URLParam(r, "templateID"), r.Header.Get(UserHeader), r.URL.Query())
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Generate(r.Context(), h.request(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeDocument(w, out.Buffer, out.ContentType, out.Filename, out.FileExtension)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		httpx.RespondError(w, errQueueDisabled)
		return
	}
	req := h.request(r)
	if err := h.service.Validate(req); err != nil {
		h.fail(w, err)
		return
	}
	payload := PayloadFromRequest(req)
	info, err := h.queue.EnqueueGenerateReport(r.Context(), payload)
	if err != nil {
		h.logger.Error("enqueue report", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: could not queue report", httpx.ErrUnavailable))
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": info.ID, "requestId": payload.RequestID})
}

func (h *Handler) refreshEndUse(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		httpx.RespondError(w, errQueueDisabled)
		return
	}
	payloads, err := h.service.EndUseRefreshes(r.Context(), h.request(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	ids := make([]string, 0, len(payloads))
	for _, p := range payloads {
		info, err := h.queue.EnqueueEndUseRefresh(r.Context(), p)
		if err != nil {
			h.logger.Error("enqueue end use refresh", slog.Any("error", err))
			httpx.RespondError(w, fmt.Errorf("%w: could not queue refresh", httpx.ErrUnavailable))
			return
		}
		ids = append(ids, info.ID)
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"taskIds": ids})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	a, err := h.storage.Open(chi.URLParam(r, "reportID"))
	if errors.Is(err, ErrArtefactNotFound) {
		httpx.RespondError(w, fmt.Errorf("%w: report", httpx.ErrNotFound))
		return
	}
	if err != nil {
		h.logger.Error("open report artefact", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", disposition(a.Filename, a.FileExtension))
	http.ServeFile(w, r, a.Path)
}

// fail writes the error response. The completion cookie is set on failure too
// so polling clients stop waiting.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	setFinished(w)
	switch {
	case errors.Is(err, report.ErrStyle):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", report.ErrStyle.Error())
	case errors.Is(err, report.ErrGenerate):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", report.ErrGenerate.Error())
	case errors.Is(err, ErrInvalidRequest):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, httpx.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("report request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func setFinished(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: "downloading", Value: "finished", Path: "/"})
}

func disposition(name, ext string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name + "." + ext})
}

func writeDocument(w http.ResponseWriter, buf []byte, contentType, name, ext string) {
	setFinished(w)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition(name, ext))
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
}
