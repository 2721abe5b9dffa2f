package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrNothingToMerge indicates a merge call without documents.
var ErrNothingToMerge = errors.New("report: nothing to merge")

// Gotenberg wraps the PDF merge endpoint of a Gotenberg service.
type Gotenberg struct {
	baseURL    string
	httpClient *http.Client
}

// NewGotenberg constructs a new client.
func NewGotenberg(baseURL string) *Gotenberg {
	return &Gotenberg{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Ping checks if the remote Gotenberg service is available.
func (c *Gotenberg) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

// Merge concatenates PDFs in the given order.
func (c *Gotenberg) Merge(ctx context.Context, pdfs ...[]byte) ([]byte, error) {
	if len(pdfs) == 0 {
		return nil, ErrNothingToMerge
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for i, pdf := range pdfs {
		// gotenberg merges in alphanumeric filename order
		part, err := writer.CreateFormFile("files", fmt.Sprintf("%03d.pdf", i+1))
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, bytes.NewReader(pdf)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/forms/pdfengines/merge", c.baseURL), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("merge failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
