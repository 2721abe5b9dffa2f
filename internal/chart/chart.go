// Package chart resolves chart blocks into image references, either through the
// chart-image service or by drawing an inline SVG from monthly utility rows.
package chart

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/utility"
)

const maxImageBytes = 10 << 20

var (
	// ErrService indicates a chart service failure.
	ErrService = errors.New("chart: service error")
	// ErrEmptyImage indicates a response carrying no usable image reference.
	ErrEmptyImage = errors.New("chart: empty image")
)

// Request identifies one chart rendering.
type Request struct {
	Chart      string
	BuildingID string
	ThemeID    string
	Window     period.Range
	// Monthly feeds the inline fallback; it is never sent to the service.
	Monthly []utility.MonthlyUtility
}

// Image is a resolved chart: a URL, inline bytes, or inline SVG markup.
type Image struct {
	URL         string
	ContentType string
	Data        []byte
	Inline      template.HTML
}

// Src returns a value suitable for an img src attribute.
func (i Image) Src() string {
	if i.URL != "" {
		return i.URL
	}
	if len(i.Data) > 0 {
		return "data:" + i.ContentType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
	}
	return ""
}

// Empty reports whether the image carries nothing to embed.
func (i Image) Empty() bool {
	return i.URL == "" && len(i.Data) == 0 && i.Inline == ""
}

// Client calls the chart-image service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a chart service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch requests the chart image. JSON responses carry {"url": ...}; image
// responses are returned inline.
func (c *Client) Fetch(ctx context.Context, r Request) (Image, error) {
	q := url.Values{}
	q.Set("buildingId", r.BuildingID)
	q.Set("themeId", r.ThemeID)
	q.Set("startDate", r.Window.Start.Format("2006-01"))
	q.Set("endDate", r.Window.End.Format("2006-01"))
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(r.Chart), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Image{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Image{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return Image{}, fmt.Errorf("%w: status %d", ErrService, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return Image{}, err
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		if len(body) == 0 {
			return Image{}, ErrEmptyImage
		}
		return Image{ContentType: mediaType, Data: body}, nil
	default:
		var payload struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return Image{}, fmt.Errorf("%w: decode: %v", ErrService, err)
		}
		if payload.URL == "" {
			return Image{}, ErrEmptyImage
		}
		return Image{URL: payload.URL}, nil
	}
}

// Service resolves chart images, falling back to inline SVG when the service
// is absent or failing.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService wires the optional client.
func NewService(client *Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// Image returns the chart for r. It never fails; an unrenderable chart is empty.
func (s *Service) Image(ctx context.Context, r Request) Image {
	if s.client != nil {
		img, err := s.client.Fetch(ctx, r)
		if err == nil {
			return img
		}
		s.logger.Warn("chart fetch failed", slog.String("chart", r.Chart), slog.String("building_id", r.BuildingID), slog.Any("error", err))
	}
	img, err := Fallback(r)
	if err != nil {
		s.logger.Debug("chart fallback skipped", slog.String("chart", r.Chart), slog.Any("error", err))
		return Image{}
	}
	return img
}
