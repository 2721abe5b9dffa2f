package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/buildsight/buildsight/internal/table"
)

const attachmentFetchLimit = 4

// Request is one document to dispatch.
type Request struct {
	Body          string
	Tables        []table.Table
	Format        Format
	Filename      string
	TOC           TOCOptions
	StyleDocument string
	// Attachments are PDF URLs appended to PDF output.
	Attachments []string
}

// Dispatcher sends assembled bodies to the rendering services.
type Dispatcher struct {
	renderer   *Renderer
	gotenberg  *Gotenberg
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDispatcher wires the renderer and the optional Gotenberg merger.
func NewDispatcher(renderer *Renderer, gotenberg *Gotenberg, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		renderer:   renderer,
		gotenberg:  gotenberg,
		httpClient: &http.Client{Timeout: time.Minute},
		logger:     logger,
	}
}

// Dispatch renders the document. Spreadsheets are built locally from the
// collected tables; other formats go through the rendering service, the
// optional style pass and, for PDF, the attachment merge. Nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Output, error) {
	format := req.Format
	if format == "" {
		format = FormatDocx
	}
	name := Filename(req.Filename)
	if format == FormatXLSX {
		buf, err := Workbook(req.Tables)
		if err != nil {
			return Output{}, fmt.Errorf("%w: %v", ErrGenerate, err)
		}
		return Output{Buffer: buf, ContentType: format.ContentType(), Filename: name, FileExtension: format.Extension()}, nil
	}
	if d.renderer == nil {
		return Output{}, fmt.Errorf("%w: renderer not configured", ErrGenerate)
	}

	toc := req.TOC
	toc.ReportStyle = req.StyleDocument != ""
	out, err := d.renderer.Render(ctx, RenderRequest{
		DocToType: format.ContentType(),
		Filename:  name,
		Body:      req.Body,
		TOCOpts:   toc,
	})
	if err != nil {
		return Output{}, err
	}
	out = normalize(out, format, name)

	if req.StyleDocument != "" {
		styled, err := d.renderer.Style(ctx, out, req.StyleDocument)
		if err != nil {
			return Output{}, err
		}
		out = normalize(styled, format, name)
	}

	if format == FormatPDF && len(req.Attachments) > 0 && d.gotenberg != nil {
		merged, err := d.mergeAttachments(ctx, out.Buffer, req.Attachments)
		if err != nil {
			return Output{}, fmt.Errorf("%w: %v", ErrGenerate, err)
		}
		out.Buffer = merged
	}
	return out, nil
}

// normalize fills the fields the renderer may omit. The content type always
// comes from the requested format.
func normalize(out Output, format Format, name string) Output {
	out.ContentType = format.ContentType()
	if out.Filename == "" {
		out.Filename = name
	}
	out.FileExtension = format.Extension()
	return out
}

// mergeAttachments downloads the attachments concurrently and appends them in
// template order. Unreachable attachments are skipped.
func (d *Dispatcher) mergeAttachments(ctx context.Context, report []byte, urls []string) ([]byte, error) {
	fetched := make([][]byte, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(attachmentFetchLimit)
	for i, u := range urls {
		g.Go(func() error {
			data, err := d.download(gctx, u)
			if err != nil {
				d.logger.Warn("attachment skipped", slog.String("url", u), slog.Any("error", err))
				return nil
			}
			fetched[i] = data
			return nil
		})
	}
	_ = g.Wait()

	pdfs := [][]byte{report}
	for _, data := range fetched {
		if len(data) > 0 {
			pdfs = append(pdfs, data)
		}
	}
	if len(pdfs) == 1 {
		return report, nil
	}
	return d.gotenberg.Merge(ctx, pdfs...)
}

func (d *Dispatcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
}

// Ping checks the rendering service and, when configured, Gotenberg.
func (d *Dispatcher) Ping(ctx context.Context) error {
	if d.renderer == nil {
		return fmt.Errorf("%w: renderer not configured", ErrGenerate)
	}
	if err := d.renderer.Ping(ctx); err != nil {
		return err
	}
	if d.gotenberg != nil {
		return d.gotenberg.Ping(ctx)
	}
	return nil
}
