package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

const maxDocumentBytes = 100 << 20

var (
	// ErrGenerate indicates the rendering service failed to produce the document.
	ErrGenerate = errors.New("Issues generating report.")
	// ErrStyle indicates the style pass failed.
	ErrStyle = errors.New("Issues styling report.")
)

// PageText configures a page header or footer.
type PageText struct {
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
	Position string `json:"position,omitempty"`
	Divider  bool   `json:"divider,omitempty"`
}

// TOCOptions is the layout configuration sent alongside the body.
type TOCOptions struct {
	TableOfContents      bool     `json:"tableOfContents"`
	TableOfContentsDepth int      `json:"tableOfContentsDepth"`
	PageNumbers          bool     `json:"pageNumbers"`
	NumberPosition       string   `json:"numberPosition,omitempty"`
	Header               PageText `json:"header"`
	Footer               PageText `json:"footer"`
	ReportStyle          bool     `json:"reportStyle"`
}

// RenderRequest is the rendering service payload.
type RenderRequest struct {
	DocToType string     `json:"docToType"`
	Filename  string     `json:"filename"`
	Body      string     `json:"body"`
	TOCOpts   TOCOptions `json:"tocOpts"`
}

// Output is a rendered document.
type Output struct {
	Buffer        []byte `json:"buffer"`
	ContentType   string `json:"contentType"`
	Filename      string `json:"filename"`
	FileExtension string `json:"fileExtension"`
}

type styleRequest struct {
	Buffer        []byte `json:"buffer"`
	Filename      string `json:"filename"`
	FileExtension string `json:"fileExtension"`
	StyleDocument string `json:"styleDocument"`
}

// Renderer calls the document rendering service.
type Renderer struct {
	baseURL    string
	httpClient *http.Client
}

// NewRenderer constructs a renderer client. Rendering is slow, so the timeout
// is expected in minutes.
func NewRenderer(baseURL string, timeout time.Duration) *Renderer {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Renderer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ping checks if the rendering service is available.
func (r *Renderer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", r.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("renderer returned status %d", resp.StatusCode)
	}
	return nil
}

// Render converts the assembled body into a document.
func (r *Renderer) Render(ctx context.Context, in RenderRequest) (Output, error) {
	out, err := r.post(ctx, "/report", in)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	return out, nil
}

// Style applies a user supplied style document to a rendered document.
func (r *Renderer) Style(ctx context.Context, doc Output, styleDocument string) (Output, error) {
	out, err := r.post(ctx, "/styles", styleRequest{
		Buffer:        doc.Buffer,
		Filename:      doc.Filename,
		FileExtension: doc.FileExtension,
		StyleDocument: styleDocument,
	})
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrStyle, err)
	}
	if out.Filename == "" {
		out.Filename = doc.Filename
	}
	if out.FileExtension == "" {
		out.FileExtension = doc.FileExtension
	}
	if out.ContentType == "" {
		out.ContentType = doc.ContentType
	}
	return out, nil
}

// post sends payload as JSON. A JSON response carries an Output with a base64
// buffer; any other response body is the document itself.
func (r *Renderer) post(ctx context.Context, path string, payload any) (Output, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Output{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Output{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Output{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return Output{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return Output{}, err
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if len(raw) == 0 {
			return Output{}, errors.New("empty document")
		}
		return Output{Buffer: raw, ContentType: mediaType}, nil
	}
	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return Output{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Buffer) == 0 {
		return Output{}, errors.New("empty document")
	}
	return out, nil
}
