package reportgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrNoTimestamp indicates an image response without a Last-Modified header.
var ErrNoTimestamp = errors.New("reportgen: image has no timestamp")

// ImageStamps resolves equipment image capture times from the Last-Modified
// header of the stored file. It holds no state between report runs; lookups are
// memoised only inside a context prepared by WithImageMemo.
type ImageStamps struct {
	httpClient *http.Client
}

// NewImageStamps constructs the resolver.
func NewImageStamps(timeout time.Duration) *ImageStamps {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ImageStamps{httpClient: &http.Client{Timeout: timeout}}
}

type stampMemo struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

type stampMemoKey struct{}

// WithImageMemo scopes image timestamp memoisation to one report run.
func WithImageMemo(ctx context.Context) context.Context {
	return context.WithValue(ctx, stampMemoKey{}, &stampMemo{seen: map[string]time.Time{}})
}

func memoFrom(ctx context.Context) *stampMemo {
	m, _ := ctx.Value(stampMemoKey{}).(*stampMemo)
	return m
}

// Timestamp issues a HEAD request for imageURL.
func (s *ImageStamps) Timestamp(ctx context.Context, imageURL string) (time.Time, error) {
	memo := memoFrom(ctx)
	if memo != nil {
		memo.mu.Lock()
		ts, ok := memo.seen[imageURL]
		memo.mu.Unlock()
		if ok {
			return ts, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return time.Time{}, fmt.Errorf("image status %d", resp.StatusCode)
	}
	raw := resp.Header.Get("Last-Modified")
	if raw == "" {
		return time.Time{}, ErrNoTimestamp
	}
	ts, err := http.ParseTime(raw)
	if err != nil {
		return time.Time{}, err
	}
	if memo != nil {
		memo.mu.Lock()
		memo.seen[imageURL] = ts
		memo.mu.Unlock()
	}
	return ts, nil
}
