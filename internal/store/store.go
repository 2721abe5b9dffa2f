// Package store persists the documents a report is generated from. Every
// entity lives in a JSONB column keyed by its ObjectID string.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/document"
	"github.com/buildsight/buildsight/internal/enduse"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/platform/db"
	"github.com/buildsight/buildsight/internal/utility"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrNotInitialised indicates a store without a pool.
	ErrNotInitialised = errors.New("store: repository not initialised")
)

//go:embed schema.sql
var schema string

// Store reads entity documents from Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a store over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrNotInitialised
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, schema); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
		return nil
	})
}

const (
	getBuildingSQL     = `SELECT doc FROM buildings WHERE id = $1`
	getTemplateSQL     = `SELECT doc FROM templates WHERE id = $1`
	getUserSQL         = `SELECT doc FROM users WHERE id = $1`
	getOrganizationSQL = `SELECT doc FROM organizations WHERE id = $1`
	getProposalSQL     = `SELECT doc FROM proposals WHERE id = $1`
	getAuditSQL        = `SELECT doc FROM audits WHERE building_id = $1 ORDER BY updated_at DESC LIMIT 1`
	listProjectsSQL    = `SELECT doc FROM projects
WHERE building_id = $1 AND ($2 = '' OR proposal_id = $2)
ORDER BY position, id`
	utilitiesByIDsSQL = `SELECT id, doc FROM utilities WHERE id = ANY($1) ORDER BY id`
	monthlySQL        = `SELECT building_id, year, month, util_type, usage, cost, demand, demand_cost
FROM monthly_utilities
WHERE building_id = $1
ORDER BY year, month, util_type`
	degreeDaysSQL = `SELECT year, month, hdd, cdd FROM degree_days
WHERE zip = $1 AND year = ANY($2)
ORDER BY year, month`
	getEndUseSQL = `SELECT building_id, template_id, range_key, fingerprint, payload
FROM enduse_cache
WHERE building_id = $1 AND template_id = $2 AND range_key = $3`
	upsertEndUseSQL = `INSERT INTO enduse_cache (building_id, template_id, range_key, fingerprint, payload, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (building_id, template_id, range_key)
DO UPDATE SET fingerprint = EXCLUDED.fingerprint, payload = EXCLUDED.payload, updated_at = now()`
)

// GetBuilding loads a building snapshot.
func (s *Store) GetBuilding(ctx context.Context, id string) (building.Building, error) {
	raw, err := s.getRaw(ctx, getBuildingSQL, id)
	if err != nil {
		return building.Building{}, fmt.Errorf("building %s: %w", id, err)
	}
	return building.Decode(id, raw)
}

// GetTemplate loads and validates a report template.
func (s *Store) GetTemplate(ctx context.Context, id string) (document.Template, error) {
	raw, err := s.getRaw(ctx, getTemplateSQL, id)
	if err != nil {
		return document.Template{}, fmt.Errorf("template %s: %w", id, err)
	}
	return document.DecodeTemplate(id, raw)
}

// GetUser loads a user document.
func (s *Store) GetUser(ctx context.Context, id string) (field.Doc, error) {
	return s.getDoc(ctx, getUserSQL, id)
}

// GetOrganization loads an organization document.
func (s *Store) GetOrganization(ctx context.Context, id string) (field.Doc, error) {
	return s.getDoc(ctx, getOrganizationSQL, id)
}

// GetProposal loads a proposal document.
func (s *Store) GetProposal(ctx context.Context, id string) (field.Doc, error) {
	return s.getDoc(ctx, getProposalSQL, id)
}

// GetAudit loads the latest audit recorded for a building.
func (s *Store) GetAudit(ctx context.Context, buildingID string) (field.Doc, error) {
	return s.getDoc(ctx, getAuditSQL, buildingID)
}

// ListProjects returns the building's projects in display order. A non-empty
// proposalID restricts the list to that proposal.
func (s *Store) ListProjects(ctx context.Context, buildingID, proposalID string) ([]field.Doc, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotInitialised
	}
	rows, err := s.pool.Query(ctx, listProjectsSQL, buildingID, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var projects []field.Doc
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		projects = append(projects, doc)
	}
	return projects, rows.Err()
}

// UtilitiesByIDs loads the meter documents with the given ids.
func (s *Store) UtilitiesByIDs(ctx context.Context, ids []string) ([]utility.Utility, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotInitialised
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, utilitiesByIDsSQL, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var utilities []utility.Utility
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		u, err := decodeUtility(id, raw)
		if err != nil {
			return nil, err
		}
		utilities = append(utilities, u)
	}
	return utilities, rows.Err()
}

// MonthlyUtilities returns the building's monthly utility rows ordered by month.
func (s *Store) MonthlyUtilities(ctx context.Context, buildingID string) ([]utility.MonthlyUtility, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotInitialised
	}
	rows, err := s.pool.Query(ctx, monthlySQL, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []utility.MonthlyUtility
	for rows.Next() {
		var m utility.MonthlyUtility
		if err := rows.Scan(&m.BuildingID, &m.Year, &m.Month, &m.UtilType, &m.Usage, &m.Cost, &m.Demand, &m.DemandCost); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DegreeDays returns the monthly heating and cooling degree days for zip.
func (s *Store) DegreeDays(ctx context.Context, zip string, years []int) ([]period.DegreeDays, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotInitialised
	}
	if zip == "" || len(years) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, degreeDaysSQL, zip, years)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []period.DegreeDays
	for rows.Next() {
		var dd period.DegreeDays
		if err := rows.Scan(&dd.Year, &dd.Month, &dd.HDD, &dd.CDD); err != nil {
			return nil, err
		}
		out = append(out, dd)
	}
	return out, rows.Err()
}

// GetEndUse loads a cached breakdown. found is false on a miss.
func (s *Store) GetEndUse(ctx context.Context, buildingID, templateID, rangeKey string) (enduse.Record, bool, error) {
	if s == nil || s.pool == nil {
		return enduse.Record{}, false, ErrNotInitialised
	}
	rec, err := scanEndUse(s.pool.QueryRow(ctx, getEndUseSQL, buildingID, templateID, rangeKey))
	if errors.Is(err, ErrNotFound) {
		return enduse.Record{}, false, nil
	}
	if err != nil {
		return enduse.Record{}, false, err
	}
	return rec, true, nil
}

// UpsertEndUse stores a breakdown, replacing any row with the same key.
func (s *Store) UpsertEndUse(ctx context.Context, rec enduse.Record) error {
	if s == nil || s.pool == nil {
		return ErrNotInitialised
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, upsertEndUseSQL, rec.BuildingID, rec.TemplateID, rec.RangeKey, rec.Fingerprint, payload)
	return err
}

func (s *Store) getRaw(ctx context.Context, query, id string) ([]byte, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotInitialised
	}
	return scanRaw(s.pool.QueryRow(ctx, query, id))
}

func (s *Store) getDoc(ctx context.Context, query, id string) (field.Doc, error) {
	raw, err := s.getRaw(ctx, query, id)
	if err != nil {
		return nil, err
	}
	return decodeDoc(raw)
}

func scanRaw(row pgx.Row) ([]byte, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

func scanEndUse(row pgx.Row) (enduse.Record, error) {
	var (
		rec     enduse.Record
		payload []byte
	)
	if err := row.Scan(&rec.BuildingID, &rec.TemplateID, &rec.RangeKey, &rec.Fingerprint, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return enduse.Record{}, ErrNotFound
		}
		return enduse.Record{}, err
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return enduse.Record{}, fmt.Errorf("store: decode end use payload: %w", err)
	}
	return rec, nil
}

func decodeDoc(raw []byte) (field.Doc, error) {
	doc := field.Doc{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	return doc, nil
}

func decodeUtility(id string, raw []byte) (utility.Utility, error) {
	var u utility.Utility
	if err := json.Unmarshal(raw, &u); err != nil {
		return utility.Utility{}, fmt.Errorf("store: decode utility %s: %w", id, err)
	}
	if u.ID == "" {
		u.ID = id
	}
	return u, nil
}
