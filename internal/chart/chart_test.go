package chart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/utility"
)

func chartRequest(t *testing.T, name string) Request {
	t.Helper()
	window, err := period.NewRange(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return Request{
		Chart:      name,
		BuildingID: "b1",
		ThemeID:    "th1",
		Window:     window,
		Monthly: []utility.MonthlyUtility{
			{Year: 2023, Month: 1, UtilType: "electric", Usage: 1000, Cost: 150},
			{Year: 2023, Month: 2, UtilType: "electric", Usage: 800, Cost: 120},
			{Year: 2023, Month: 2, UtilType: "naturalGas", Usage: 50, Cost: 60},
			{Year: 2024, Month: 1, UtilType: "electric", Usage: 9999, Cost: 9999},
		},
	}
}

func TestClientFetchURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/electricUsage", r.URL.Path)
		assert.Equal(t, "b1", r.URL.Query().Get("buildingId"))
		assert.Equal(t, "th1", r.URL.Query().Get("themeId"))
		assert.Equal(t, "2023-01", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2023-03", r.URL.Query().Get("endDate"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://charts.example.com/b1.png"}`))
	}))
	defer srv.Close()

	img, err := NewClient(srv.URL+"/", time.Second).Fetch(context.Background(), chartRequest(t, "electricUsage"))
	require.NoError(t, err)
	assert.Equal(t, "https://charts.example.com/b1.png", img.Src())
}

func TestClientFetchInlineImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNG"))
	}))
	defer srv.Close()

	img, err := NewClient(srv.URL, time.Second).Fetch(context.Background(), chartRequest(t, "electricUsage"))
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,UE5H", img.Src())
}

func TestClientFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "empty") {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Fetch(context.Background(), chartRequest(t, "electricUsage"))
	require.ErrorIs(t, err, ErrService)
	_, err = client.Fetch(context.Background(), chartRequest(t, "empty"))
	require.ErrorIs(t, err, ErrEmptyImage)
}

func TestServiceFallsBackToSVG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewService(NewClient(srv.URL, time.Second), nil)
	img := svc.Image(context.Background(), chartRequest(t, "electricUsage"))
	require.False(t, img.Empty())
	assert.Contains(t, string(img.Inline), "<svg")
	assert.Contains(t, string(img.Inline), "Electricity Usage")
	assert.Contains(t, string(img.Inline), "Mar 23")
}

func TestFallbackCostBars(t *testing.T) {
	img, err := Fallback(chartRequest(t, "naturalGasCost"))
	require.NoError(t, err)
	assert.Contains(t, string(img.Inline), "Natural Gas Cost")
	assert.Contains(t, string(img.Inline), "Usage (therms)")
}

func TestFallbackWithoutData(t *testing.T) {
	r := chartRequest(t, "steamUsage")
	_, err := Fallback(r)
	require.ErrorIs(t, err, ErrNoData)

	img := NewService(nil, nil).Image(context.Background(), r)
	assert.True(t, img.Empty())
}
