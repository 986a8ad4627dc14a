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

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/alerts"
	"github.com/agrimodel/cropmap/plan"
)

// TestStore exercises the full persistence surface against a disposable
// PostgreSQL container.
func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}
	ctx := context.Background()
	url, container := SetupTestDB(ctx, t)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Error(err)
		}
	}()

	s, err := Connect(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	t.Run("fields", func(t *testing.T) { testFields(ctx, t, s) })
	t.Run("analyses", func(t *testing.T) { testAnalyses(ctx, t, s) })
	t.Run("alerts", func(t *testing.T) { testAlerts(ctx, t, s) })
	t.Run("plans", func(t *testing.T) { testPlans(ctx, t, s) })
}

func testFields(ctx context.Context, t *testing.T, s *Store) {
	f1 := cropmap.FieldTestData("pg-f1", "pg-farm")
	f2 := cropmap.FieldTestData("pg-f2", "pg-farm")
	for _, f := range []*cropmap.FieldBoundary{f1, f2} {
		if err := s.PutField(ctx, f); err != nil {
			t.Fatal(err)
		}
	}
	// Upsert is idempotent.
	f1.Name = "renamed"
	if err := s.PutField(ctx, f1); err != nil {
		t.Fatal(err)
	}

	got, err := s.Field(ctx, "pg-f1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "renamed" || got.AreaHa != f1.AreaHa || len(got.Geometry) != len(f1.Geometry) {
		t.Errorf("field roundtrip: %+v", got)
	}

	all, err := s.FieldsByFarm(ctx, "pg-farm")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "pg-f1" || all[1].ID != "pg-f2" {
		t.Errorf("fields by farm: %+v", all)
	}

	if _, err := s.Field(ctx, "missing"); !errors.Is(err, cropmap.ErrInvalidInput) {
		t.Errorf("missing field: got %v, want ErrInvalidInput", err)
	}
}

func testAnalyses(ctx context.Context, t *testing.T, s *Store) {
	d1 := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 7)
	r1 := cropmap.ResultTestData("pg-f1", "pg-farm", 0.5, d1)
	r2 := cropmap.ResultTestData("pg-f1", "pg-farm", 0.6, d2)
	for _, r := range []*cropmap.AnalysisResult{r1, r2} {
		if err := s.UpsertAnalysis(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	// Same (field, date) overwrites.
	r2b := cropmap.ResultTestData("pg-f1", "pg-farm", 0.65, d2)
	if err := s.UpsertAnalysis(ctx, r2b); err != nil {
		t.Fatal(err)
	}

	latest, err := s.LatestAnalysis(ctx, "pg-f1", d2.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.Indices.NDVI.Mean != 0.65 {
		t.Errorf("latest analysis: %+v", latest)
	}
	prior, err := s.LatestAnalysis(ctx, "pg-f1", d2)
	if err != nil {
		t.Fatal(err)
	}
	if prior == nil || !prior.AnalysisDate.Equal(d1) {
		t.Errorf("prior analysis: %+v", prior)
	}
	none, err := s.LatestAnalysis(ctx, "pg-f1", d1)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("expected no analysis before %v, got %+v", d1, none)
	}

	series, err := s.AnalysisSeries(ctx, "pg-f1", d1, d2)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 2 || !series[0].AnalysisDate.Before(series[1].AnalysisDate) {
		t.Errorf("series: %+v", series)
	}
}

func testAlerts(ctx context.Context, t *testing.T, s *Store) {
	loss := 1200.0
	a := &alerts.Alert{
		ID:               "pg-a1",
		FarmID:           "pg-farm",
		FieldID:          "pg-f1",
		Kind:             alerts.KindDroughtCritical,
		Severity:         alerts.SeverityCritical,
		Urgency:          4,
		AffectedAreaPct:  72,
		EstimatedLossUSD: &loss,
		Status:           alerts.StatusActive,
		DetectedAt:       time.Date(2024, 7, 8, 12, 0, 0, 0, time.UTC),
	}
	if err := s.UpsertAlert(ctx, a); err != nil {
		t.Fatal(err)
	}

	open, err := s.OpenAlertByKey(ctx, a.DedupKey())
	if err != nil {
		t.Fatal(err)
	}
	if open == nil || open.ID != "pg-a1" || *open.EstimatedLossUSD != loss {
		t.Errorf("open alert by key: %+v", open)
	}

	// Resolving removes the alert from the dedup lookup but not from GetAlert.
	if err := a.Acknowledge("agronomist", a.DetectedAt.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := a.Resolve("agronomist", "irrigated", a.DetectedAt.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertAlert(ctx, a); err != nil {
		t.Fatal(err)
	}
	open, err = s.OpenAlertByKey(ctx, a.DedupKey())
	if err != nil {
		t.Fatal(err)
	}
	if open != nil {
		t.Errorf("resolved alert still open: %+v", open)
	}
	got, err := s.GetAlert(ctx, "pg-a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != alerts.StatusResolved || got.ResolutionNote != "irrigated" {
		t.Errorf("resolved alert: %+v", got)
	}
}

func testPlans(ctx context.Context, t *testing.T, s *Store) {
	var planner plan.Planner
	a := cropmap.ResultTestData("pg-f1", "pg-farm", 0.22, time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC))
	p, err := planner.Plan(a, "corn", plan.SeasonGrowing)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPlan(ctx, p); err != nil {
		t.Fatal(err)
	}
	// Upsert on the same (farm, field, season) overwrites.
	if err := s.UpsertPlan(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Plan(ctx, "pg-farm", "pg-f1", plan.SeasonGrowing)
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary.TotalCostUSD != p.Summary.TotalCostUSD || len(got.Recommendations) != len(p.Recommendations) {
		t.Errorf("plan roundtrip: %+v", got.Summary)
	}
	if _, err := s.Plan(ctx, "pg-farm", "pg-f1", plan.SeasonHarvest); !errors.Is(err, cropmap.ErrInvalidInput) {
		t.Errorf("missing plan: got %v, want ErrInvalidInput", err)
	}
}
