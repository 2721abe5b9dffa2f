// Package reportgen orchestrates one report run: it loads the entities a
// template binds to, assembles the document body and dispatches it for
// rendering.
package reportgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/document"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/observability"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/platform/httpx"
	"github.com/buildsight/buildsight/internal/store"
	"github.com/buildsight/buildsight/internal/table"
	"github.com/buildsight/buildsight/internal/utility"
	"github.com/buildsight/buildsight/jobs"
	"github.com/buildsight/buildsight/report"
)

// Store loads the entities of a report run.
type Store interface {
	GetBuilding(ctx context.Context, id string) (building.Building, error)
	GetTemplate(ctx context.Context, id string) (document.Template, error)
	GetUser(ctx context.Context, id string) (field.Doc, error)
	GetOrganization(ctx context.Context, id string) (field.Doc, error)
	GetProposal(ctx context.Context, id string) (field.Doc, error)
	ListProjects(ctx context.Context, buildingID, proposalID string) ([]field.Doc, error)
	GetAudit(ctx context.Context, buildingID string) (field.Doc, error)
}

// Utilities summarises utility data for a building.
type Utilities interface {
	GetUtilities(ctx context.Context, b building.Building, window period.Range, custom *period.Range) utility.Result
}

// Assembler renders a template against an entity bundle.
type Assembler interface {
	Assemble(ctx context.Context, tpl document.Template, bundle *document.Bundle) (document.Document, error)
}

// Dispatcher renders an assembled body into a document.
type Dispatcher interface {
	Dispatch(ctx context.Context, req report.Request) (report.Output, error)
}

// Config wires the service collaborators.
type Config struct {
	Store      Store
	Utilities  Utilities
	Assembler  Assembler
	Dispatcher Dispatcher
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// Service generates reports.
type Service struct {
	store      Store
	utilities  Utilities
	assembler  Assembler
	dispatcher Dispatcher
	metrics    *observability.Metrics
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs a Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      cfg.Store,
		utilities:  cfg.Utilities,
		assembler:  cfg.Assembler,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		validate:   NewValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// Validate checks a request without generating it.
func (s *Service) Validate(req Request) error {
	if err := req.Validate(s.validate); err != nil {
		return err
	}
	_, err := req.resolve(s.now())
	return err
}

// Generate runs the whole pipeline for req. Missing buildings and templates
// abort the run; missing optional entities become empty documents.
func (s *Service) Generate(ctx context.Context, req Request) (out report.Output, err error) {
	start := time.Now()
	runID := req.RequestID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := s.logger.With(
		slog.String("request_id", runID),
		slog.String("building_id", req.BuildingID),
		slog.String("template_id", req.TemplateID),
	)
	format := string(report.FormatDocx)
	defer func() {
		s.metrics.ObserveReport(format, start, err)
		if err != nil {
			logger.Warn("report generation failed", slog.Any("error", err))
			return
		}
		logger.Info("report generated",
			slog.String("format", format),
			slog.Int("bytes", len(out.Buffer)),
			slog.Duration("duration", time.Since(start)),
		)
	}()

	if err := req.Validate(s.validate); err != nil {
		return report.Output{}, err
	}
	params, err := req.resolve(s.now())
	if err != nil {
		return report.Output{}, err
	}
	format = string(params.Format)

	b, tpl, err := s.mandatory(ctx, req)
	if err != nil {
		return report.Output{}, err
	}
	if needsBenchmark(tpl) {
		if err := b.RequireBenchmarkData(); err != nil {
			return report.Output{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	ctx = WithImageMemo(ctx)
	bundle := s.bundle(ctx, logger, req, params, b)
	doc, err := s.assembler.Assemble(ctx, tpl, bundle)
	if err != nil {
		if errors.Is(err, document.ErrInvalidTemplate) || errors.Is(err, document.ErrUnknownElement) {
			return report.Output{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return report.Output{}, err
	}

	name := req.Filename
	if name == "" {
		name = defaultFilename(b, tpl)
	}
	return s.dispatcher.Dispatch(ctx, report.Request{
		Body:          doc.Body,
		Tables:        doc.Tables,
		Format:        params.Format,
		Filename:      name,
		TOC:           tocOptions(tpl),
		StyleDocument: tpl.StyleDocument,
		Attachments:   tpl.Attachments,
	})
}

// EndUseRefreshes lists the end-use refresh tasks covering the template's
// breakdowns over the request window.
func (s *Service) EndUseRefreshes(ctx context.Context, req Request) ([]jobs.EndUseRefreshPayload, error) {
	if err := req.Validate(s.validate); err != nil {
		return nil, err
	}
	params, err := req.resolve(s.now())
	if err != nil {
		return nil, err
	}
	b, tpl, err := s.mandatory(ctx, req)
	if err != nil {
		return nil, err
	}
	window := params.Window
	if params.Custom != nil {
		window = *params.Custom
	}
	reqs, err := document.EndUseRequests(tpl, b, window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	out := make([]jobs.EndUseRefreshPayload, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, jobs.EndUseRefreshPayload{
			BuildingID:  b.ID,
			TemplateID:  tpl.ID,
			StartDate:   r.Window.Start.Format(dateLayouts[0]),
			EndDate:     r.Window.End.Format(dateLayouts[0]),
			Organize:    string(r.Period.Mode),
			StartMonth:  int(r.Period.StartMonth),
			EndMonth:    int(r.Period.EndMonth),
			Fingerprint: r.Fingerprint,
		})
	}
	return out, nil
}

// mandatory loads the building and template concurrently.
func (s *Service) mandatory(ctx context.Context, req Request) (building.Building, document.Template, error) {
	var (
		b   building.Building
		tpl document.Template
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		b, err = s.store.GetBuilding(gctx, req.BuildingID)
		return notFound("building", err)
	})
	g.Go(func() error {
		var err error
		tpl, err = s.store.GetTemplate(gctx, req.TemplateID)
		if errors.Is(err, document.ErrInvalidTemplate) {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return notFound("template", err)
	})
	if err := g.Wait(); err != nil {
		return building.Building{}, document.Template{}, err
	}
	return b, tpl, nil
}

func notFound(kind string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, kind)
	}
	return err
}

// bundle fans out the optional entity fetches. Failures are logged and
// replaced by empty values.
func (s *Service) bundle(ctx context.Context, logger *slog.Logger, req Request, params resolved, b building.Building) *document.Bundle {
	bundle := &document.Bundle{
		Building: b,
		Report: document.Report{
			Date:     params.ReportDate,
			Location: params.Location,
			ThemeID:  req.ThemeID,
		},
	}
	optional := func(name string, load func(context.Context) error) func() error {
		return func() error {
			if err := load(ctx); err != nil && !errors.Is(err, store.ErrNotFound) {
				logger.Warn("optional entity unavailable", slog.String("entity", name), slog.Any("error", err))
			}
			return nil
		}
	}

	var g errgroup.Group
	if req.UserID != "" {
		g.Go(optional("user", func(ctx context.Context) (err error) {
			bundle.User, err = s.store.GetUser(ctx, req.UserID)
			return err
		}))
	}
	if orgID := field.LookupString(b.Doc, "organization"); orgID != "" {
		g.Go(optional("organization", func(ctx context.Context) (err error) {
			bundle.Organization, err = s.store.GetOrganization(ctx, orgID)
			return err
		}))
	}
	if req.ProposalID != "" {
		g.Go(optional("proposal", func(ctx context.Context) (err error) {
			bundle.Proposal, err = s.store.GetProposal(ctx, req.ProposalID)
			return err
		}))
	}
	g.Go(optional("projects", func(ctx context.Context) (err error) {
		bundle.Projects, err = s.store.ListProjects(ctx, b.ID, req.ProposalID)
		return err
	}))
	g.Go(optional("audit", func(ctx context.Context) (err error) {
		bundle.Audit, err = s.store.GetAudit(ctx, b.ID)
		return err
	}))
	g.Go(func() error {
		if s.utilities != nil {
			bundle.Utilities = s.utilities.GetUtilities(ctx, b, params.Window, params.Custom)
		} else {
			bundle.Utilities = utility.Result{Window: params.Window}
		}
		return nil
	})
	_ = g.Wait()
	return bundle
}

func needsBenchmark(tpl document.Template) bool {
	for _, blk := range tpl.Body {
		if blk.DataSource() == table.TargetBenchmark {
			return true
		}
	}
	return false
}

func defaultFilename(b building.Building, tpl document.Template) string {
	switch {
	case b.Name != "" && tpl.Name != "":
		return b.Name + " - " + tpl.Name
	case b.Name != "":
		return b.Name
	default:
		return tpl.Name
	}
}

func tocOptions(tpl document.Template) report.TOCOptions {
	return report.TOCOptions{
		TableOfContents:      tpl.Config.TableOfContents,
		TableOfContentsDepth: tpl.Config.TableOfContentsDepth,
		PageNumbers:          tpl.Config.PageNumbers,
		NumberPosition:       tpl.Config.NumberPosition,
		Header:               pageText(tpl.Header),
		Footer:               pageText(tpl.Footer),
	}
}

func pageText(hf document.HeaderFooter) report.PageText {
	return report.PageText{Text: hf.Text, Image: hf.Image, Position: hf.Position, Divider: hf.Divider}
}
