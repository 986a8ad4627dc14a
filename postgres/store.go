/*
Copyright © 2026 the CropMAP authors.
This file is part of CropMAP.

CropMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

CropMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with CropMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package postgres persists fields, analyses, alerts, and plans in
// PostgreSQL. Documents are stored as JSONB with relational keys for the
// upsert and lookup paths.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/alerts"
	"github.com/agrimodel/cropmap/plan"
)

const schema = `
CREATE TABLE IF NOT EXISTS fields (
	id      TEXT PRIMARY KEY,
	farm_id TEXT NOT NULL,
	doc     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS fields_farm_idx ON fields (farm_id);

CREATE TABLE IF NOT EXISTS analyses (
	field_id      TEXT NOT NULL,
	analysis_date DATE NOT NULL,
	doc           JSONB NOT NULL,
	PRIMARY KEY (field_id, analysis_date)
);

CREATE TABLE IF NOT EXISTS alerts (
	id        TEXT PRIMARY KEY,
	farm_id   TEXT NOT NULL,
	dedup_key TEXT NOT NULL,
	status    TEXT NOT NULL,
	doc       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS alerts_dedup_idx ON alerts (dedup_key, status);

CREATE TABLE IF NOT EXISTS plans (
	farm_id  TEXT NOT NULL,
	field_id TEXT NOT NULL,
	season   TEXT NOT NULL,
	doc      JSONB NOT NULL,
	PRIMARY KEY (farm_id, field_id, season)
);
`

// Store implements the analysis persistence interface on a PostgreSQL
// pool. All writes are idempotent upserts.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against the database URL, retrying with
// exponential backoff while the server comes up, and ensures the schema
// exists.
func Connect(ctx context.Context, url string) (*Store, error) {
	var pool *pgxpool.Pool
	err := backoff.Retry(func() error {
		var err error
		pool, err = pgxpool.Connect(ctx, url)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10), ctx))
	if err != nil {
		return nil, fmt.Errorf("in postgres.Connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("in postgres.Connect: creating schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) PutField(ctx context.Context, f *cropmap.FieldBoundary) error {
	if err := f.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("in postgres.PutField: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO fields (id, farm_id, doc) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET farm_id = $2, doc = $3`, f.ID, f.FarmID, doc)
	if err != nil {
		return fmt.Errorf("in postgres.PutField: %w: %v", cropmap.ErrPersistenceConflict, err)
	}
	return nil
}

func (s *Store) Field(ctx context.Context, fieldID string) (*cropmap.FieldBoundary, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM fields WHERE id = $1`, fieldID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("in postgres.Field: no field %q: %w", fieldID, cropmap.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("in postgres.Field: %w", err)
	}
	var f cropmap.FieldBoundary
	if err := json.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("in postgres.Field: decoding field %q: %w", fieldID, err)
	}
	return &f, nil
}

func (s *Store) FieldsByFarm(ctx context.Context, farmID string) ([]cropmap.FieldBoundary, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM fields WHERE farm_id = $1 ORDER BY id`, farmID)
	if err != nil {
		return nil, fmt.Errorf("in postgres.FieldsByFarm: %w", err)
	}
	defer rows.Close()
	var out []cropmap.FieldBoundary
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("in postgres.FieldsByFarm: %w", err)
		}
		var f cropmap.FieldBoundary
		if err := json.Unmarshal(doc, &f); err != nil {
			return nil, fmt.Errorf("in postgres.FieldsByFarm: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) UpsertAnalysis(ctx context.Context, r *cropmap.AnalysisResult) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("in postgres.UpsertAnalysis: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO analyses (field_id, analysis_date, doc) VALUES ($1, $2, $3)
		ON CONFLICT (field_id, analysis_date) DO UPDATE SET doc = $3`,
		r.FieldID, r.AnalysisDate.UTC(), doc)
	if err != nil {
		return fmt.Errorf("in postgres.UpsertAnalysis: %w: %v", cropmap.ErrPersistenceConflict, err)
	}
	return nil
}

func (s *Store) LatestAnalysis(ctx context.Context, fieldID string, before time.Time) (*cropmap.AnalysisResult, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM analyses
		WHERE field_id = $1 AND analysis_date < $2
		ORDER BY analysis_date DESC LIMIT 1`, fieldID, before.UTC()).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("in postgres.LatestAnalysis: %w", err)
	}
	var r cropmap.AnalysisResult
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("in postgres.LatestAnalysis: %w", err)
	}
	return &r, nil
}

func (s *Store) AnalysisSeries(ctx context.Context, fieldID string, start, end time.Time) ([]cropmap.AnalysisResult, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM analyses
		WHERE field_id = $1 AND analysis_date BETWEEN $2 AND $3
		ORDER BY analysis_date`, fieldID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("in postgres.AnalysisSeries: %w", err)
	}
	defer rows.Close()
	var out []cropmap.AnalysisResult
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("in postgres.AnalysisSeries: %w", err)
		}
		var r cropmap.AnalysisResult
		if err := json.Unmarshal(doc, &r); err != nil {
			return nil, fmt.Errorf("in postgres.AnalysisSeries: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpsertAlert(ctx context.Context, a *alerts.Alert) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("in postgres.UpsertAlert: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO alerts (id, farm_id, dedup_key, status, doc)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET dedup_key = $3, status = $4, doc = $5`,
		a.ID, a.FarmID, a.DedupKey(), string(a.Status), doc)
	if err != nil {
		return fmt.Errorf("in postgres.UpsertAlert: %w: %v", cropmap.ErrPersistenceConflict, err)
	}
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM alerts WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("in postgres.GetAlert: no alert %q: %w", id, cropmap.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("in postgres.GetAlert: %w", err)
	}
	var a alerts.Alert
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("in postgres.GetAlert: %w", err)
	}
	return &a, nil
}

func (s *Store) OpenAlertByKey(ctx context.Context, dedupKey string) (*alerts.Alert, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM alerts
		WHERE dedup_key = $1 AND status IN ($2, $3) LIMIT 1`,
		dedupKey, string(alerts.StatusActive), string(alerts.StatusAcknowledged)).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("in postgres.OpenAlertByKey: %w", err)
	}
	var a alerts.Alert
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("in postgres.OpenAlertByKey: %w", err)
	}
	return &a, nil
}

func (s *Store) UpsertPlan(ctx context.Context, p *plan.PrecisionPlan) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("in postgres.UpsertPlan: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO plans (farm_id, field_id, season, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (farm_id, field_id, season) DO UPDATE SET doc = $4`,
		p.FarmID, p.FieldID, string(p.Season), doc)
	if err != nil {
		return fmt.Errorf("in postgres.UpsertPlan: %w: %v", cropmap.ErrPersistenceConflict, err)
	}
	return nil
}

func (s *Store) Plan(ctx context.Context, farmID, fieldID string, season plan.Season) (*plan.PrecisionPlan, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM plans
		WHERE farm_id = $1 AND field_id = $2 AND season = $3`,
		farmID, fieldID, string(season)).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("in postgres.Plan: no plan for %s/%s/%s: %w",
			farmID, fieldID, season, cropmap.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("in postgres.Plan: %w", err)
	}
	var p plan.PrecisionPlan
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("in postgres.Plan: %w", err)
	}
	return &p, nil
}
