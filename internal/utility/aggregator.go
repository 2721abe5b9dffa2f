package utility

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/period"
)

// Source loads utility records for a building.
type Source interface {
	UtilitiesByIDs(ctx context.Context, ids []string) ([]Utility, error)
	MonthlyUtilities(ctx context.Context, buildingID string) ([]MonthlyUtility, error)
}

// WeatherSource loads monthly degree days for a zip code.
type WeatherSource interface {
	DegreeDays(ctx context.Context, zip string, years []int) ([]period.DegreeDays, error)
}

// Result is the aggregator output consumed by the table and document layers.
type Result struct {
	Window    period.Range
	Summary   Summary
	Utilities []Utility
	Monthly   []MonthlyUtility
}

// Empty reports whether no utility records were loaded for the window.
func (r Result) Empty() bool {
	return len(r.Utilities) == 0 && len(r.Monthly) == 0
}

// Aggregator fetches and summarises utility data. It never fails: fetch errors
// are logged and replaced by empty data so reports still render.
type Aggregator struct {
	source  Source
	weather WeatherSource
	logger  *slog.Logger
}

// NewAggregator wires the aggregator dependencies. weather may be nil.
func NewAggregator(source Source, weather WeatherSource, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{source: source, weather: weather, logger: logger}
}

// GetUtilities returns the summary of b over window, or over custom when supplied.
func (a *Aggregator) GetUtilities(ctx context.Context, b building.Building, window period.Range, custom *period.Range) Result {
	if custom != nil {
		window = *custom
	}
	res := Result{Window: window}
	if a == nil || a.source == nil {
		res.Summary = Summarize(b, nil, nil, window)
		return res
	}

	logger := a.logger.With(slog.String("building_id", b.ID))
	var utilities []Utility
	var monthly []MonthlyUtility
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(b.UtilityIDs) == 0 {
			return nil
		}
		rows, err := a.source.UtilitiesByIDs(gctx, b.UtilityIDs)
		if err != nil {
			logger.Warn("load utilities", slog.Any("error", err))
			return nil
		}
		utilities = rows
		return nil
	})
	g.Go(func() error {
		rows, err := a.source.MonthlyUtilities(gctx, b.ID)
		if err != nil {
			logger.Warn("load monthly utilities", slog.Any("error", err))
			return nil
		}
		monthly = rows
		return nil
	})
	_ = g.Wait()

	res.Utilities = utilities
	res.Monthly = monthly
	res.Summary = Summarize(b, utilities, monthly, window)
	return res
}

// DegreeDays sums HDD and CDD for span at the building's zip code. Lookup failures yield zeros.
func (a *Aggregator) DegreeDays(ctx context.Context, b building.Building, span period.Span) (hdd, cdd float64) {
	if a == nil || a.weather == nil || b.ZipCode == "" {
		return 0, 0
	}
	rows, err := a.weather.DegreeDays(ctx, b.ZipCode, span.Range().Years())
	if err != nil {
		a.logger.Warn("load degree days", slog.String("building_id", b.ID), slog.String("zip", b.ZipCode), slog.Any("error", err))
		return 0, 0
	}
	return period.SumDegreeDays(rows, span)
}
