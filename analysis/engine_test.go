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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/imagery"
)

var analysisDate = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

// testField shifts the shared fixture east so that each field has a
// distinct bounding box the fake imagery provider can key on.
func testField(id, farmID string, shift float64) *cropmap.FieldBoundary {
	f := cropmap.FieldTestData(id, farmID)
	for i := range f.Geometry {
		for j := range f.Geometry[i] {
			f.Geometry[i][j].X += shift
		}
	}
	return f
}

func bboxKey(b cropmap.BoundingBox) string { return fmt.Sprintf("%.4f", b.West) }

// fakeImagery serves canned index statistics per bounding box and counts
// calls so coalescing tests can tell cache hits from provider hits.
type fakeImagery struct {
	mu    sync.Mutex
	calls int
	means map[string]float64 // bboxKey to mean NDVI
	fail  map[string]error
	delay time.Duration
}

func (p *fakeImagery) Indices(ctx context.Context, bbox cropmap.BoundingBox, date time.Time) (*cropmap.VegetationIndices, error) {
	p.mu.Lock()
	p.calls++
	mean, ok := p.means[bboxKey(bbox)]
	err := p.fail[bboxKey(bbox)]
	p.mu.Unlock()
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cropmap.ErrImageryUnavailable
	}
	vi := cropmap.IndicesTestData(mean)
	vi.AcquiredAt = date
	return vi, nil
}

func (p *fakeImagery) Search(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, maxCloudPct float64) ([]imagery.Acquisition, error) {
	return nil, nil
}

func (p *fakeImagery) TimeSeries(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, stepDays int) ([]imagery.SeriesPoint, error) {
	return nil, nil
}

func (p *fakeImagery) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newAnalyzer(store Store, img imagery.Provider) *FieldAnalyzer {
	return &FieldAnalyzer{
		Imagery: img,
		Store:   store,
		Now:     func() time.Time { return analysisDate.Add(6 * time.Hour) },
	}
}

func TestAnalyzeFieldPersists(t *testing.T) {
	store := NewMemoryStore()
	field := testField("f1", "farm1", 0)
	img := &fakeImagery{means: map[string]float64{bboxKey(field.Bounds()): 0.78}}
	a := newAnalyzer(store, img)

	r, err := a.AnalyzeField(context.Background(), field, analysisDate)
	if err != nil {
		t.Fatal(err)
	}
	if r.FieldID != "f1" || r.FarmID != "farm1" {
		t.Errorf("identity: %s/%s", r.FarmID, r.FieldID)
	}
	if r.Health < 70 {
		t.Errorf("healthy field scored %d", r.Health)
	}
	if len(r.AlertSeeds) != 0 {
		t.Errorf("healthy field seeded alerts: %+v", r.AlertSeeds)
	}
	stored, err := store.LatestAnalysis(context.Background(), "f1", analysisDate.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil || stored.Key() != r.Key() {
		t.Errorf("stored analysis missing or mismatched: %+v", stored)
	}
}

// Re-running the same (field, date) overwrites rather than appending.
func TestAnalyzeFieldIdempotent(t *testing.T) {
	store := NewMemoryStore()
	field := testField("f1", "farm1", 0)
	img := &fakeImagery{means: map[string]float64{bboxKey(field.Bounds()): 0.6}}
	a := newAnalyzer(store, img)

	first, err := a.AnalyzeField(context.Background(), field, analysisDate)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.AnalyzeField(context.Background(), field, analysisDate)
	if err != nil {
		t.Fatal(err)
	}
	if store.AnalysisCount() != 1 {
		t.Errorf("stored analyses: got %d, want 1", store.AnalysisCount())
	}
	if first.Key() != second.Key() {
		t.Errorf("keys differ: %s vs %s", first.Key(), second.Key())
	}
}

func TestAnalyzeFieldStressSeedsAndRecommendations(t *testing.T) {
	store := NewMemoryStore()
	field := testField("f1", "farm1", 0)
	img := &fakeImagery{means: map[string]float64{bboxKey(field.Bounds()): 0.22}}
	a := newAnalyzer(store, img)

	r, err := a.AnalyzeField(context.Background(), field, analysisDate)
	if err != nil {
		t.Fatal(err)
	}
	seedKinds := map[string]bool{}
	for _, s := range r.AlertSeeds {
		seedKinds[s.Kind] = true
	}
	// Drought 0.67 stays below the seed threshold; health 25 seeds decline.
	if seedKinds["drought_critical"] {
		t.Error("drought seeded below threshold")
	}
	if !seedKinds["general_decline"] {
		t.Errorf("no decline seed: %+v", r.AlertSeeds)
	}
	cats := map[cropmap.RecommendationCategory]bool{}
	for _, rec := range r.Recommendations {
		cats[rec.Category] = true
	}
	for _, want := range []cropmap.RecommendationCategory{cropmap.RecIrrigation, cropmap.RecFertilization, cropmap.RecSoilManagement} {
		if !cats[want] {
			t.Errorf("missing %s recommendation: %+v", want, r.Recommendations)
		}
	}
}

// The second analysis of a field compares against the stored prior.
func TestAnalyzeFieldComparesToPrior(t *testing.T) {
	store := NewMemoryStore()
	field := testField("f1", "farm1", 0)
	key := bboxKey(field.Bounds())
	img := &fakeImagery{means: map[string]float64{key: 0.6}}
	a := newAnalyzer(store, img)

	if _, err := a.AnalyzeField(context.Background(), field, analysisDate); err != nil {
		t.Fatal(err)
	}
	img.mu.Lock()
	img.means[key] = 0.45
	img.mu.Unlock()
	r, err := a.AnalyzeField(context.Background(), field, analysisDate.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if r.Previous == nil {
		t.Fatal("no comparison against prior")
	}
	if r.Previous.Trend != cropmap.TrendDeclining {
		t.Errorf("trend: got %s, want declining", r.Previous.Trend)
	}
	if r.Previous.DeltaMeanNDVI > -0.14 || r.Previous.DeltaMeanNDVI < -0.16 {
		t.Errorf("delta: got %g, want about -0.15", r.Previous.DeltaMeanNDVI)
	}
}

func TestAnalyzeFieldErrors(t *testing.T) {
	store := NewMemoryStore()
	field := testField("f1", "farm1", 0)
	img := &fakeImagery{fail: map[string]error{bboxKey(field.Bounds()): cropmap.ErrImageryUnavailable}}
	a := newAnalyzer(store, img)

	_, err := a.AnalyzeField(context.Background(), field, analysisDate)
	if !errors.Is(err, cropmap.ErrImageryUnavailable) {
		t.Errorf("imagery failure: got %v, want ErrImageryUnavailable", err)
	}
	if store.AnalysisCount() != 0 {
		t.Error("failed analysis was persisted")
	}

	bad := testField("", "farm1", 0)
	if _, err := a.AnalyzeField(context.Background(), bad, analysisDate); !errors.Is(err, cropmap.ErrInvalidInput) {
		t.Errorf("invalid field: got %v, want ErrInvalidInput", err)
	}
}

func TestAnalyzeFieldImageryTimeout(t *testing.T) {
	store := NewMemoryStore()
	field := testField("f1", "farm1", 0)
	img := &fakeImagery{
		means: map[string]float64{bboxKey(field.Bounds()): 0.6},
		delay: 50 * time.Millisecond,
	}
	a := newAnalyzer(store, img)
	a.ImageryTimeout = time.Millisecond

	_, err := a.AnalyzeField(context.Background(), field, analysisDate)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}
