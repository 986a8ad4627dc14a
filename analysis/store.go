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

package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/alerts"
	"github.com/agrimodel/cropmap/plan"
)

// Store is the persistence capability the analysis engine and the farm
// orchestrator need. Analyses upsert on (field, date); plans upsert on
// (farm, field, season). Alert persistence follows alerts.Store.
type Store interface {
	alerts.Store

	FieldsByFarm(ctx context.Context, farmID string) ([]cropmap.FieldBoundary, error)
	Field(ctx context.Context, fieldID string) (*cropmap.FieldBoundary, error)
	PutField(ctx context.Context, f *cropmap.FieldBoundary) error

	// LatestAnalysis returns the most recent analysis strictly before the
	// given date, or nil when the field has no prior analysis.
	LatestAnalysis(ctx context.Context, fieldID string, before time.Time) (*cropmap.AnalysisResult, error)
	UpsertAnalysis(ctx context.Context, r *cropmap.AnalysisResult) error
	// AnalysisSeries returns the field's analyses in [start, end], ordered
	// by date.
	AnalysisSeries(ctx context.Context, fieldID string, start, end time.Time) ([]cropmap.AnalysisResult, error)

	UpsertPlan(ctx context.Context, p *plan.PrecisionPlan) error
	Plan(ctx context.Context, farmID, fieldID string, season plan.Season) (*plan.PrecisionPlan, error)
}

// MemoryStore is an in-memory Store for tests and single-process use.
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	fields   map[string]cropmap.FieldBoundary
	byFarm   map[string][]string
	analyses map[string]cropmap.AnalysisResult // keyed fieldID@dayKey
	alerts   map[string]alerts.Alert           // keyed by alert id
	plans    map[string]plan.PrecisionPlan     // keyed farm/field/season
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fields:   make(map[string]cropmap.FieldBoundary),
		byFarm:   make(map[string][]string),
		analyses: make(map[string]cropmap.AnalysisResult),
		alerts:   make(map[string]alerts.Alert),
		plans:    make(map[string]plan.PrecisionPlan),
	}
}

func (s *MemoryStore) PutField(ctx context.Context, f *cropmap.FieldBoundary) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[f.ID]; !ok {
		s.byFarm[f.FarmID] = append(s.byFarm[f.FarmID], f.ID)
	}
	s.fields[f.ID] = *f
	return nil
}

func (s *MemoryStore) Field(ctx context.Context, fieldID string) (*cropmap.FieldBoundary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[fieldID]
	if !ok {
		return nil, fmt.Errorf("in analysis.MemoryStore.Field: no field %q: %w", fieldID, cropmap.ErrInvalidInput)
	}
	return &f, nil
}

func (s *MemoryStore) FieldsByFarm(ctx context.Context, farmID string) ([]cropmap.FieldBoundary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byFarm[farmID]
	out := make([]cropmap.FieldBoundary, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.fields[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) LatestAnalysis(ctx context.Context, fieldID string, before time.Time) (*cropmap.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *cropmap.AnalysisResult
	for k := range s.analyses {
		a := s.analyses[k]
		if a.FieldID != fieldID || !a.AnalysisDate.Before(before) {
			continue
		}
		if latest == nil || a.AnalysisDate.After(latest.AnalysisDate) {
			cp := a
			latest = &cp
		}
	}
	return latest, nil
}

func (s *MemoryStore) UpsertAnalysis(ctx context.Context, r *cropmap.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[r.Key()] = *r
	return nil
}

func (s *MemoryStore) AnalysisSeries(ctx context.Context, fieldID string, start, end time.Time) ([]cropmap.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []cropmap.AnalysisResult
	for k := range s.analyses {
		a := s.analyses[k]
		if a.FieldID != fieldID || a.AnalysisDate.Before(start) || a.AnalysisDate.After(end) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnalysisDate.Before(out[j].AnalysisDate) })
	return out, nil
}

// AnalysisCount reports how many distinct (field, date) analyses are
// stored. Tests use it to assert upsert idempotency.
func (s *MemoryStore) AnalysisCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.analyses)
}

func (s *MemoryStore) OpenAlertByKey(ctx context.Context, dedupKey string) (*alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.alerts {
		a := s.alerts[id]
		if a.DedupKey() == dedupKey && a.Open() {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("in analysis.MemoryStore.GetAlert: no alert %q: %w", id, cropmap.ErrInvalidInput)
	}
	return &a, nil
}

func (s *MemoryStore) UpsertAlert(ctx context.Context, a *alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = *a
	return nil
}

func (s *MemoryStore) UpsertPlan(ctx context.Context, p *plan.PrecisionPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.Key()] = *p
	return nil
}

func (s *MemoryStore) Plan(ctx context.Context, farmID, fieldID string, season plan.Season) (*plan.PrecisionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[farmID+"/"+fieldID+"/"+string(season)]
	if !ok {
		return nil, fmt.Errorf("in analysis.MemoryStore.Plan: no plan for %s/%s/%s: %w",
			farmID, fieldID, season, cropmap.ErrInvalidInput)
	}
	return &p, nil
}
