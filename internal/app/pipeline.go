package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/buildsight/buildsight/internal/chart"
	"github.com/buildsight/buildsight/internal/document"
	"github.com/buildsight/buildsight/internal/enduse"
	"github.com/buildsight/buildsight/internal/observability"
	"github.com/buildsight/buildsight/internal/reportgen"
	"github.com/buildsight/buildsight/internal/store"
	"github.com/buildsight/buildsight/internal/table"
	"github.com/buildsight/buildsight/internal/utility"
	"github.com/buildsight/buildsight/report"
)

// Pipeline holds the report components shared by the server and the worker.
type Pipeline struct {
	Store       *store.Store
	Aggregator  *utility.Aggregator
	EndUseCache *enduse.Cache
	EndUse      *enduse.Service
	Dispatcher  *report.Dispatcher
	Reports     *reportgen.Service
	Storage     *reportgen.Storage
}

// NewPipeline wires the report components from configuration.
func NewPipeline(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	st := store.New(pool)
	aggregator := utility.NewAggregator(st, st, logger)

	endUseCache := enduse.NewCache(redisClient, cfg.EndUseCacheTTL)
	endUse := enduse.NewService(aggregator, st, endUseCache, logger)

	var chartClient *chart.Client
	if cfg.ChartURL != "" {
		chartClient = chart.NewClient(cfg.ChartURL, cfg.ImageTimeout)
	}
	charts := chart.NewService(chartClient, logger)

	tables := table.NewGenerator(aggregator, reportgen.NewImageStamps(cfg.ImageTimeout), logger)
	assembler := document.NewAssembler(tables, charts, endUse, logger)
	dispatcher := report.NewDispatcher(
		report.NewRenderer(cfg.RendererURL, cfg.RendererTimeout),
		report.NewGotenberg(cfg.GotenbergURL),
		logger,
	)

	return &Pipeline{
		Store:       st,
		Aggregator:  aggregator,
		EndUseCache: endUseCache,
		EndUse:      endUse,
		Dispatcher:  dispatcher,
		Reports: reportgen.NewService(reportgen.Config{
			Store:      st,
			Utilities:  aggregator,
			Assembler:  assembler,
			Dispatcher: dispatcher,
			Metrics:    metrics,
			Logger:     logger,
		}),
		Storage: reportgen.NewStorage(cfg.ReportStorageDir),
	}
}
