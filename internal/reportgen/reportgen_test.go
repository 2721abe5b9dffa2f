package reportgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/document"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/platform/httpx"
	"github.com/buildsight/buildsight/internal/store"
	"github.com/buildsight/buildsight/internal/utility"
	"github.com/buildsight/buildsight/jobs"
	"github.com/buildsight/buildsight/report"
)

const (
	buildingID = "64b7f0c2a1b2c3d4e5f60718"
	templateID = "64b7f0c2a1b2c3d4e5f60799"
	userID     = "64b7f0c2a1b2c3d4e5f60701"
	orgID      = "64b7f0c2a1b2c3d4e5f60702"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type stubStore struct {
	building    building.Building
	template    string
	buildingErr error
	userErr     error
	mu          sync.Mutex
	orgLookups  []string
}

func (s *stubStore) GetBuilding(_ context.Context, id string) (building.Building, error) {
	if s.buildingErr != nil {
		return building.Building{}, s.buildingErr
	}
	b := s.building
	b.ID = id
	return b, nil
}

func (s *stubStore) GetTemplate(_ context.Context, id string) (document.Template, error) {
	return document.DecodeTemplate(id, []byte(s.template))
}

func (s *stubStore) GetUser(context.Context, string) (field.Doc, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	return field.Doc{"firstName": "Ada"}, nil
}

func (s *stubStore) GetOrganization(_ context.Context, id string) (field.Doc, error) {
	s.mu.Lock()
	s.orgLookups = append(s.orgLookups, id)
	s.mu.Unlock()
	return field.Doc{"name": "Acme"}, nil
}

func (s *stubStore) GetProposal(context.Context, string) (field.Doc, error) {
	return nil, store.ErrNotFound
}

func (s *stubStore) ListProjects(context.Context, string, string) ([]field.Doc, error) {
	return []field.Doc{{"name": "LED Retrofit"}}, nil
}

func (s *stubStore) GetAudit(context.Context, string) (field.Doc, error) {
	return nil, errors.New("audit offline")
}

type stubUtilities struct {
	window period.Range
	custom *period.Range
}

func (u *stubUtilities) GetUtilities(_ context.Context, _ building.Building, window period.Range, custom *period.Range) utility.Result {
	u.window, u.custom = window, custom
	return utility.Result{Window: window}
}

type stubAssembler struct {
	bundle *document.Bundle
	err    error
}

func (a *stubAssembler) Assemble(_ context.Context, _ document.Template, bundle *document.Bundle) (document.Document, error) {
	a.bundle = bundle
	if a.err != nil {
		return document.Document{}, a.err
	}
	return document.Document{Body: "<h1>Report</h1>"}, nil
}

type stubDispatcher struct {
	req report.Request
	err error
}

func (d *stubDispatcher) Dispatch(_ context.Context, req report.Request) (report.Output, error) {
	d.req = req
	if d.err != nil {
		return report.Output{}, d.err
	}
	return report.Output{
		Buffer:        []byte("%PDF-1.7"),
		ContentType:   req.Format.ContentType(),
		Filename:      report.Filename(req.Filename),
		FileExtension: req.Format.Extension(),
	}, nil
}

type fixture struct {
	store      *stubStore
	utilities  *stubUtilities
	assembler  *stubAssembler
	dispatcher *stubDispatcher
	service    *Service
}

func newFixture(t *testing.T, tpl string) *fixture {
	t.Helper()
	f := &fixture{
		store: &stubStore{
			building: building.FromDoc("", field.Doc{"buildingName": "Main St", "organization": orgID}),
			template: tpl,
		},
		utilities:  &stubUtilities{},
		assembler:  &stubAssembler{},
		dispatcher: &stubDispatcher{},
	}
	f.service = NewService(Config{
		Store:      f.store,
		Utilities:  f.utilities,
		Assembler:  f.assembler,
		Dispatcher: f.dispatcher,
	})
	f.service.now = func() time.Time { return fixedNow }
	return f
}

const simpleTemplate = `{"name":"Audit","config":{"tableOfContents":true},"body":[{"element":"heading","title":"Overview","level":1}]}`

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveDefaultWindow(t *testing.T) {
	params, err := Request{BuildingID: buildingID, TemplateID: templateID}.resolve(fixedNow)
	require.NoError(t, err)
	assert.Equal(t, report.FormatDocx, params.Format)
	assert.Equal(t, day(2023, time.March, 1), params.Window.Start)
	assert.Equal(t, day(2024, time.February, 29), params.Window.End)
	assert.Nil(t, params.Custom)
	assert.True(t, params.ReportDate.IsZero())
}

func TestResolveWindowBounds(t *testing.T) {
	cases := []struct {
		name       string
		req        Request
		start, end time.Time
	}{
		{"both", Request{StartDate: "2022-01-01", EndDate: "2022-12-31"}, day(2022, time.January, 1), day(2022, time.December, 31)},
		{"month end", Request{StartDate: "2022-01", EndDate: "2022-06"}, day(2022, time.January, 1), day(2022, time.June, 30)},
		{"start only", Request{StartDate: "2022-04-01"}, day(2022, time.April, 1), day(2023, time.March, 31)},
		{"end only", Request{EndDate: "2023-02"}, day(2022, time.March, 1), day(2023, time.February, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, err := tc.req.resolve(fixedNow)
			require.NoError(t, err)
			assert.Equal(t, tc.start, params.Window.Start)
			assert.Equal(t, tc.end, params.Window.End)
		})
	}
}

func TestResolveCustomRangeAndZone(t *testing.T) {
	req := Request{
		DocTo:           "PDF",
		TimeZone:        "America/New_York",
		CustomStartDate: "2023-07-01",
		CustomEndDate:   "2024-06",
		CustomDate:      "2024-01-15",
	}
	params, err := req.resolve(fixedNow)
	require.NoError(t, err)
	assert.Equal(t, report.FormatPDF, params.Format)
	assert.Equal(t, "America/New_York", params.Location.String())
	require.NotNil(t, params.Custom)
	assert.Equal(t, time.June, params.Custom.End.Month())
	assert.Equal(t, 30, params.Custom.End.Day())
	assert.Equal(t, 15, params.ReportDate.Day())
}

func TestResolveRejectsInvertedRange(t *testing.T) {
	_, err := Request{StartDate: "2024-01-01", EndDate: "2023-01-01"}.resolve(fixedNow)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRequestValidate(t *testing.T) {
	v := NewValidator()
	valid := Request{BuildingID: buildingID, TemplateID: templateID, DocTo: "word"}
	require.NoError(t, valid.Validate(v))

	cases := map[string]Request{
		"missing building": {TemplateID: templateID},
		"bad object id":    {BuildingID: "nope", TemplateID: templateID},
		"bad format":       {BuildingID: buildingID, TemplateID: templateID, DocTo: "rtf"},
		"bad date":         {BuildingID: buildingID, TemplateID: templateID, StartDate: "03/15/2024"},
		"bad zone":         {BuildingID: buildingID, TemplateID: templateID, TimeZone: "Mars/Olympus"},
		"bad email":        {BuildingID: buildingID, TemplateID: templateID, NotifyEmail: "not-an-email"},
		"half custom":      {BuildingID: buildingID, TemplateID: templateID, CustomStartDate: "2024-01-01"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, req.Validate(v), ErrInvalidRequest)
		})
	}
}

func TestRequestFromQueryFormatAlias(t *testing.T) {
	q := url.Values{"format": {"pdf"}, "startDate": {"2024-01-01"}, "themeId": {"dark"}}
	req := RequestFromQuery(buildingID, templateID, userID, q)
	assert.Equal(t, "pdf", req.DocTo)
	assert.Equal(t, "2024-01-01", req.StartDate)
	assert.Equal(t, "dark", req.ThemeID)
	assert.Equal(t, userID, req.UserID)

	q.Set("docTo", "xlsx")
	assert.Equal(t, "xlsx", RequestFromQuery(buildingID, templateID, "", q).DocTo)
}

func TestGenerateBuildsBundleAndDispatch(t *testing.T) {
	f := newFixture(t, simpleTemplate)
	f.store.userErr = errors.New("users offline")

	out, err := f.service.Generate(context.Background(), Request{
		BuildingID: buildingID,
		TemplateID: templateID,
		UserID:     userID,
		DocTo:      "pdf",
		ThemeID:    "theme-1",
	})
	require.NoError(t, err)
	assert.Equal(t, report.ContentTypePDF, out.ContentType)
	assert.Equal(t, "Main St - Audit", out.Filename)

	bundle := f.assembler.bundle
	require.NotNil(t, bundle)
	assert.Equal(t, buildingID, bundle.Building.ID)
	assert.Nil(t, bundle.User)
	assert.Equal(t, field.Doc{"name": "Acme"}, bundle.Organization)
	assert.Nil(t, bundle.Proposal)
	assert.Nil(t, bundle.Audit)
	assert.Len(t, bundle.Projects, 1)
	assert.Equal(t, "theme-1", bundle.Report.ThemeID)
	assert.Equal(t, []string{orgID}, f.store.orgLookups)
	assert.Equal(t, day(2023, time.March, 1), f.utilities.window.Start)

	assert.Equal(t, "<h1>Report</h1>", f.dispatcher.req.Body)
	assert.Equal(t, report.FormatPDF, f.dispatcher.req.Format)
	assert.True(t, f.dispatcher.req.TOC.TableOfContents)
	assert.Equal(t, 3, f.dispatcher.req.TOC.TableOfContentsDepth)
}

func TestGenerateMissingBuilding(t *testing.T) {
	f := newFixture(t, simpleTemplate)
	f.store.buildingErr = store.ErrNotFound

	_, err := f.service.Generate(context.Background(), Request{BuildingID: buildingID, TemplateID: templateID})
	require.ErrorIs(t, err, httpx.ErrNotFound)
	assert.Nil(t, f.assembler.bundle)
}

func TestGenerateInvalidTemplate(t *testing.T) {
	f := newFixture(t, `{"body":[{"element":"marquee"}]}`)
	_, err := f.service.Generate(context.Background(), Request{BuildingID: buildingID, TemplateID: templateID})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGenerateBenchmarkNeedsSquareFootage(t *testing.T) {
	tpl := `{"body":[{"element":"table","dataSourceTarget":"benchmark","fields":["benchmark.eui"]}]}`
	f := newFixture(t, tpl)

	_, err := f.service.Generate(context.Background(), Request{BuildingID: buildingID, TemplateID: templateID})
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.ErrorIs(t, err, building.ErrMissingBenchmarkData)

	f.store.building.SquareFootage = 12000
	_, err = f.service.Generate(context.Background(), Request{BuildingID: buildingID, TemplateID: templateID})
	require.NoError(t, err)
}

func TestEndUseRefreshes(t *testing.T) {
	tpl := `{"body":[
		{"element":"table","dataSourceTarget":"endusebreakdown"},
		{"element":"list","dataSourceTarget":"endusebreakdown","organize":{"mode":"fiscalYear","startMonth":7}}
	]}`
	f := newFixture(t, tpl)

	payloads, err := f.service.EndUseRefreshes(context.Background(), Request{BuildingID: buildingID, TemplateID: templateID})
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	for _, p := range payloads {
		assert.Equal(t, buildingID, p.BuildingID)
		assert.Equal(t, templateID, p.TemplateID)
		assert.Equal(t, "2023-03-01", p.StartDate)
		assert.Equal(t, "2024-02-29", p.EndDate)
		assert.NotEmpty(t, p.Fingerprint)
	}
	assert.Equal(t, 7, payloads[1].StartMonth)
	assert.Equal(t, 6, payloads[1].EndMonth)
}

type stubQueue struct {
	generate []jobs.GenerateReportPayload
	refresh  []jobs.EndUseRefreshPayload
	ready    []jobs.ReportReadyPayload
	err      error
}

func (q *stubQueue) EnqueueGenerateReport(_ context.Context, p jobs.GenerateReportPayload) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.generate = append(q.generate, p)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func (q *stubQueue) EnqueueEndUseRefresh(_ context.Context, p jobs.EndUseRefreshPayload) (*asynq.TaskInfo, error) {
	q.refresh = append(q.refresh, p)
	return &asynq.TaskInfo{ID: "refresh-" + p.Fingerprint[:4]}, nil
}

func (q *stubQueue) EnqueueReportReady(_ context.Context, p jobs.ReportReadyPayload) (*asynq.TaskInfo, error) {
	q.ready = append(q.ready, p)
	return &asynq.TaskInfo{ID: "ready-1"}, nil
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func reportPath() string {
	return "/buildings/" + buildingID + "/templates/" + templateID
}

func finishedCookie(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "downloading" {
			assert.Equal(t, "finished", c.Value)
			return
		}
	}
	t.Fatalf("downloading cookie not set")
}

func problem(t *testing.T, rec *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestHandlerGenerateWritesDocument(t *testing.T) {
	f := newFixture(t, simpleTemplate)
	router := newRouter(NewHandler(f.service, nil, nil, nil))

	req := httptest.NewRequest(http.MethodGet, reportPath()+"/report?docTo=pdf", nil)
	req.Header.Set(UserHeader, userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentTypePDF, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Main St - Audit.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "8", rec.Header().Get("Content-Length"))
	assert.Equal(t, "%PDF-1.7", rec.Body.String())
	finishedCookie(t, rec)
}

func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(f *fixture)
		query  string
		status int
		detail string
	}{
		{"style", func(f *fixture) { f.dispatcher.err = report.ErrStyle }, "", http.StatusBadRequest, report.ErrStyle.Error()},
		{"generate", func(f *fixture) { f.dispatcher.err = report.ErrGenerate }, "", http.StatusBadRequest, report.ErrGenerate.Error()},
		{"request", func(*fixture) {}, "?docTo=rtf", http.StatusBadRequest, ""},
		{"missing", func(f *fixture) { f.store.buildingErr = store.ErrNotFound }, "", http.StatusNotFound, ""},
		{"internal", func(f *fixture) { f.dispatcher.err = errors.New("boom") }, "", http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, simpleTemplate)
			tc.setup(f)
			rec := httptest.NewRecorder()
			newRouter(NewHandler(f.service, nil, nil, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, reportPath()+"/report"+tc.query, nil))

			assert.Equal(t, tc.status, rec.Code)
			finishedCookie(t, rec)
			if tc.detail != "" {
				assert.Equal(t, tc.detail, problem(t, rec).Detail)
			}
		})
	}
}

func TestHandlerEnqueue(t *testing.T) {
	f := newFixture(t, simpleTemplate)
	queue := &stubQueue{}
	router := newRouter(NewHandler(f.service, queue, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, reportPath()+"/report/jobs?docTo=pdf", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "task-1", body["taskId"])
	require.Len(t, queue.generate, 1)
	assert.Equal(t, body["requestId"], queue.generate[0].RequestID)
	assert.Equal(t, "pdf", queue.generate[0].DocToType)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, reportPath()+"/report/jobs?startDate=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, queue.generate, 1)

	queue.err = errors.New("redis down")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, reportPath()+"/report/jobs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerEnqueueWithoutQueue(t *testing.T) {
	f := newFixture(t, simpleTemplate)
	rec := httptest.NewRecorder()
	newRouter(NewHandler(f.service, nil, nil, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, reportPath()+"/enduse/refresh", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerRefreshEndUse(t *testing.T) {
	f := newFixture(t, `{"body":[{"element":"table","dataSourceTarget":"endusebreakdown"}]}`)
	queue := &stubQueue{}
	rec := httptest.NewRecorder()
	newRouter(NewHandler(f.service, queue, nil, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, reportPath()+"/enduse/refresh", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.refresh, 1)
	var body struct {
		TaskIDs []string `json:"taskIds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"refresh-" + queue.refresh[0].Fingerprint[:4]}, body.TaskIDs)
}

func TestStorageRoundTripAndDownload(t *testing.T) {
	storage := NewStorage(t.TempDir())
	a, err := storage.Save(report.Output{
		Buffer:        []byte("PK\x03\x04"),
		ContentType:   report.ContentTypeDocx,
		Filename:      "Main St",
		FileExtension: "docx",
	})
	require.NoError(t, err)

	opened, err := storage.Open(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, opened)

	_, err = storage.Open("../../etc/passwd")
	require.ErrorIs(t, err, ErrArtefactNotFound)

	router := newRouter(NewHandler(newFixture(t, simpleTemplate).service, nil, storage, nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DownloadPath(a.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentTypeDocx, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Main St.docx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK\x03\x04", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DownloadPath("0b6f5a3e-8d43-4d6a-9a55-0d3c3a1c9f10"), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func generateTask(t *testing.T, p jobs.GenerateReportPayload) *asynq.Task {
	t.Helper()
	task, err := jobs.NewGenerateReportTask(p)
	require.NoError(t, err)
	return task
}

func TestJobStoresArtefactAndAnnounces(t *testing.T) {
	f := newFixture(t, simpleTemplate)
	queue := &stubQueue{}
	storage := NewStorage(t.TempDir())
	job := NewJob(JobConfig{Service: f.service, Storage: storage, Notifier: queue})

	payload := PayloadFromRequest(Request{BuildingID: buildingID, TemplateID: templateID, DocTo: "pdf", NotifyEmail: "ops@example.com"})
	require.NotEmpty(t, payload.RequestID)
	require.NoError(t, job.Handle(context.Background(), generateTask(t, payload)))

	require.Len(t, queue.ready, 1)
	ready := queue.ready[0]
	assert.Equal(t, payload.RequestID, ready.RequestID)
	assert.Equal(t, "ops@example.com", ready.NotifyEmail)
	assert.Equal(t, "Main St - Audit.pdf", ready.Filename)
	assert.Equal(t, DownloadPath(ready.ReportID), ready.DownloadURL)

	a, err := storage.Open(ready.ReportID)
	require.NoError(t, err)
	assert.Equal(t, report.ContentTypePDF, a.ContentType)
}

func TestJobSkipsRetryForBadInput(t *testing.T) {
	f := newFixture(t, simpleTemplate)
	job := NewJob(JobConfig{Service: f.service, Storage: NewStorage(t.TempDir())})

	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskReportGenerate, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), generateTask(t, jobs.GenerateReportPayload{TemplateID: templateID}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	f.store.buildingErr = store.ErrNotFound
	err = job.Handle(context.Background(), generateTask(t, jobs.GenerateReportPayload{BuildingID: buildingID, TemplateID: templateID}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	f.store.buildingErr = errors.New("db down")
	err = job.Handle(context.Background(), generateTask(t, jobs.GenerateReportPayload{BuildingID: buildingID, TemplateID: templateID}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestImageStampsMemoisePerRun(t *testing.T) {
	modified := time.Date(2023, 8, 1, 9, 30, 0, 0, time.UTC)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/plain.jpg" {
			return
		}
		w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
	}))
	defer srv.Close()

	stamps := NewImageStamps(time.Second)
	run := WithImageMemo(context.Background())
	for i := 0; i < 2; i++ {
		ts, err := stamps.Timestamp(run, srv.URL+"/rtu.jpg")
		require.NoError(t, err)
		assert.True(t, modified.Equal(ts))
	}
	assert.EqualValues(t, 1, hits.Load())

	// a new run starts with an empty memo
	_, err := stamps.Timestamp(WithImageMemo(context.Background()), srv.URL+"/rtu.jpg")
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())

	_, err = stamps.Timestamp(context.Background(), srv.URL+"/rtu.jpg")
	require.NoError(t, err)
	assert.EqualValues(t, 3, hits.Load())

	_, err = stamps.Timestamp(run, srv.URL+"/plain.jpg")
	require.ErrorIs(t, err, ErrNoTimestamp)
}
