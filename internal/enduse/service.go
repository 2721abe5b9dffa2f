package enduse

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/utility"
)

// ErrMissingKey indicates a request without building, template or window.
var ErrMissingKey = errors.New("enduse: building, template and window are required")

// Record is the persisted cache row.
type Record struct {
	BuildingID  string
	TemplateID  string
	RangeKey    string
	Fingerprint string
	Payload     Breakdown
}

// Store persists computed breakdowns. GetEndUse reports found=false on a miss.
type Store interface {
	GetEndUse(ctx context.Context, buildingID, templateID, rangeKey string) (Record, bool, error)
	UpsertEndUse(ctx context.Context, rec Record) error
}

// Utilities provides the utility data a breakdown is computed from.
type Utilities interface {
	GetUtilities(ctx context.Context, b building.Building, window period.Range, custom *period.Range) utility.Result
}

// Request identifies one breakdown.
type Request struct {
	Building    building.Building
	TemplateID  string
	Window      period.Range
	Period      period.Config
	Fingerprint string
}

func (r Request) validate() error {
	if r.Building.ID == "" || r.TemplateID == "" || r.Window.Start.IsZero() {
		return ErrMissingKey
	}
	return nil
}

func (r Request) key() string {
	return strings.Join([]string{"enduse", r.Building.ID, r.TemplateID, r.Window.Key(), r.Fingerprint}, ":")
}

// Fingerprint hashes the serialized end-use blocks of a template so cached rows
// are recomputed when the blocks change.
func Fingerprint(blocks ...[]byte) string {
	h, _ := blake2b.New256(nil)
	for _, b := range blocks {
		_, _ = h.Write(b)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Service resolves breakdowns through the in-process, Redis and Postgres layers.
type Service struct {
	utilities Utilities
	store     Store
	cache     *Cache
	logger    *slog.Logger
	group     singleflight.Group
}

// NewService wires the collaborators. store and cache may be nil.
func NewService(utilities Utilities, store Store, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{utilities: utilities, store: store, cache: cache, logger: logger}
}

// Breakdown returns the cached or freshly computed breakdown. Failures yield an empty breakdown.
func (s *Service) Breakdown(ctx context.Context, req Request) Breakdown {
	if err := req.validate(); err != nil {
		s.logger.Warn("enduse breakdown skipped", slog.Any("error", err))
		return Breakdown{}
	}
	key := req.key()
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		return s.lookup(ctx, req)
	})
	select {
	case <-ctx.Done():
		return Breakdown{}
	case res := <-resultChan:
		if res.Err != nil {
			s.logger.Warn("enduse breakdown failed", slog.String("building_id", req.Building.ID), slog.Any("error", res.Err))
			return Breakdown{}
		}
		return res.Val.(Breakdown)
	}
}

func (s *Service) lookup(ctx context.Context, req Request) (Breakdown, error) {
	out, err := s.cache.Load(ctx, req, func(ctx context.Context) (Breakdown, error) {
		return s.fromStore(ctx, req)
	})
	if err != nil {
		s.logger.Warn("enduse cache", slog.String("building_id", req.Building.ID), slog.Any("error", err))
		if out.Empty() {
			return s.fromStore(ctx, req)
		}
	}
	return out, nil
}

func (s *Service) fromStore(ctx context.Context, req Request) (Breakdown, error) {
	if s.store != nil {
		rec, found, err := s.store.GetEndUse(ctx, req.Building.ID, req.TemplateID, req.Window.Key())
		if err != nil {
			s.logger.Warn("enduse store read", slog.String("building_id", req.Building.ID), slog.Any("error", err))
		} else if found && rec.Fingerprint == req.Fingerprint {
			return rec.Payload, nil
		}
	}
	return s.computeAndStore(ctx, req)
}

func (s *Service) computeAndStore(ctx context.Context, req Request) (Breakdown, error) {
	out := s.compute(ctx, req)
	if s.store == nil {
		return out, nil
	}
	err := s.store.UpsertEndUse(ctx, Record{
		BuildingID:  req.Building.ID,
		TemplateID:  req.TemplateID,
		RangeKey:    req.Window.Key(),
		Fingerprint: req.Fingerprint,
		Payload:     out,
	})
	if err != nil {
		s.logger.Warn("enduse store write", slog.String("building_id", req.Building.ID), slog.Any("error", err))
	}
	return out, nil
}

func (s *Service) compute(ctx context.Context, req Request) Breakdown {
	if s.utilities == nil {
		return Breakdown{UseType: req.Building.UseType}
	}
	res := s.utilities.GetUtilities(ctx, req.Building, req.Window, nil)
	return Compute(req.Building.UseType, res, req.Period, func(r period.Range) utility.Summary {
		return utility.Summarize(req.Building, res.Utilities, res.Monthly, r)
	})
}

// Refresh recomputes the breakdown, persists it and invalidates cached copies.
func (s *Service) Refresh(ctx context.Context, req Request) (Breakdown, error) {
	if err := req.validate(); err != nil {
		return Breakdown{}, err
	}
	out, err := s.computeAndStore(ctx, req)
	if err != nil {
		return Breakdown{}, err
	}
	if err := s.cache.Bump(ctx, req.Building.ID); err != nil {
		return out, err
	}
	return out, nil
}
