package perf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/buildsight/buildsight/internal/app"
	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/document"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/reportgen"
	"github.com/buildsight/buildsight/internal/store"
	"github.com/buildsight/buildsight/internal/table"
	"github.com/buildsight/buildsight/report"
)

const perfTemplate = `{"name":"Audit","body":[
	{"element":"heading","title":"Overview","level":1},
	{"element":"paragraph","content":"Report for {{building.buildingName}}"},
	{"element":"table","dataSourceTarget":"location","fields":["location.address","location.city","location.zipCode"]},
	{"element":"table","dataSourceTarget":"contact","fields":["contact.email"]}
]}`

type memStore struct{}

func (memStore) GetBuilding(_ context.Context, id string) (building.Building, error) {
	return building.FromDoc(id, field.Doc{
		"buildingName": "Main St",
		"location":     map[string]any{"address": "1 Main St", "city": "Springfield", "zipCode": "01101"},
		"contacts":     []any{map[string]any{"email": "ops@example.com"}},
	}), nil
}

func (memStore) GetTemplate(_ context.Context, id string) (document.Template, error) {
	return document.DecodeTemplate(id, []byte(perfTemplate))
}

func (memStore) GetUser(context.Context, string) (field.Doc, error) { return nil, store.ErrNotFound }

func (memStore) GetOrganization(context.Context, string) (field.Doc, error) {
	return nil, store.ErrNotFound
}

func (memStore) GetProposal(context.Context, string) (field.Doc, error) {
	return nil, store.ErrNotFound
}

func (memStore) ListProjects(context.Context, string, string) ([]field.Doc, error) { return nil, nil }

func (memStore) GetAudit(context.Context, string) (field.Doc, error) { return nil, store.ErrNotFound }

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, req report.Request) (report.Output, error) {
	return report.Output{
		Buffer:        []byte(req.Body),
		ContentType:   req.Format.ContentType(),
		Filename:      report.Filename(req.Filename),
		FileExtension: req.Format.Extension(),
	}, nil
}

func TestReportEndpointLatencyTargets(t *testing.T) {
	service := reportgen.NewService(reportgen.Config{
		Store:      memStore{},
		Assembler:  document.NewAssembler(table.NewGenerator(nil, nil, nil), nil, nil, nil),
		Dispatcher: echoDispatcher{},
	})
	router := app.NewRouter(app.RouterParams{
		Config:           &app.Config{AppEnv: "test", AppRequestTimeout: time.Minute, RateLimitPerMinute: 1000},
		ReportGenHandler: reportgen.NewHandler(service, nil, nil, nil),
	})

	const path = "/buildings/64b7f0c2a1b2c3d4e5f60718/templates/64b7f0c2a1b2c3d4e5f60799/report?docTo=pdf"
	samples := make([]time.Duration, 0, 30)
	for i := 0; i < cap(samples); i++ {
		rec := httptest.NewRecorder()
		start := time.Now()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		samples = append(samples, time.Since(start))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d body %s", i, rec.Code, rec.Body.String())
		}
	}

	if p95 := percentile95(samples); p95 > 500*time.Millisecond {
		t.Fatalf("report endpoint latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
