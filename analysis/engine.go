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

// Package analysis runs the per-field analysis pipeline and the per-farm
// orchestration on top of the imagery, weather, alert, and plan packages.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/imagery"
)

// Per-step timeouts. Each external call gets its own deadline inside the
// overall per-field budget.
const (
	DefaultImageryTimeout = 20 * time.Second
	DefaultWeatherTimeout = 10 * time.Second
	DefaultPersistTimeout = 5 * time.Second
)

// Seed thresholds: the analyzer flags candidate alerts above these, and
// the alert engine is authoritative for final severities and dedup.
const (
	seedDroughtStress  = 0.8
	seedDiseaseStress  = 0.7
	seedNutrientStress = 0.7
	seedPestStress     = 0.6
	seedDeclineHealth  = 30
)

// FieldAnalyzer runs one field through acquisition, scoring, zoning,
// comparison, and persistence.
type FieldAnalyzer struct {
	Imagery imagery.Provider
	Store   Store

	Calc  cropmap.IndexCalculator
	Zoner cropmap.ZonePartitioner

	// ImageryTimeout and PersistTimeout bound the external calls; zero
	// means the defaults.
	ImageryTimeout time.Duration
	PersistTimeout time.Duration

	// Now is the analysis clock; nil means time.Now.
	Now func() time.Time
}

func (f *FieldAnalyzer) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *FieldAnalyzer) imageryTimeout() time.Duration {
	if f.ImageryTimeout > 0 {
		return f.ImageryTimeout
	}
	return DefaultImageryTimeout
}

func (f *FieldAnalyzer) persistTimeout() time.Duration {
	if f.PersistTimeout > 0 {
		return f.PersistTimeout
	}
	return DefaultPersistTimeout
}

// AnalyzeField analyzes one field for one date and persists the result.
// Re-running for the same (field, date) overwrites the stored analysis
// rather than appending a duplicate.
func (f *FieldAnalyzer) AnalyzeField(ctx context.Context, field *cropmap.FieldBoundary, date time.Time) (*cropmap.AnalysisResult, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}

	ictx, cancel := context.WithTimeout(ctx, f.imageryTimeout())
	vi, err := f.Imagery.Indices(ictx, field.Bounds(), date)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("in analysis.AnalyzeField: imagery for field %s: %w", field.ID, err)
	}

	score, err := f.Calc.Score(vi)
	if err != nil {
		return nil, fmt.Errorf("in analysis.AnalyzeField: scoring field %s: %w", field.ID, err)
	}
	zones, err := f.Zoner.Partition(vi, field.AreaHa)
	if err != nil {
		return nil, fmt.Errorf("in analysis.AnalyzeField: zoning field %s: %w", field.ID, err)
	}

	prior, err := f.Store.LatestAnalysis(ctx, field.ID, date)
	if err != nil {
		return nil, fmt.Errorf("in analysis.AnalyzeField: prior lookup for field %s: %w", field.ID, err)
	}

	r := &cropmap.AnalysisResult{
		FieldID:      field.ID,
		FarmID:       field.FarmID,
		AnalysisDate: date,
		Field:        *field,
		Indices:      *vi,
		Zones:        zones,
		Stress:       score.Stress,
		Health:       score.Health,
		Confidence:   score.Confidence,
		Previous:     cropmap.Compare(vi.NDVI.Mean, prior),
		CreatedAt:    f.now(),
	}
	r.AlertSeeds = seeds(r)
	r.Recommendations = recommendations(r)

	pctx, cancel := context.WithTimeout(ctx, f.persistTimeout())
	err = f.Store.UpsertAnalysis(pctx, r)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("in analysis.AnalyzeField: persisting field %s: %w", field.ID, err)
	}
	return r, nil
}

func seeds(r *cropmap.AnalysisResult) []cropmap.AlertSeed {
	var out []cropmap.AlertSeed
	if r.Stress.Drought >= seedDroughtStress {
		out = append(out, cropmap.AlertSeed{Kind: "drought_critical", Score: r.Stress.Drought,
			Note: "drought stress above critical threshold"})
	}
	if r.Stress.Disease >= seedDiseaseStress {
		out = append(out, cropmap.AlertSeed{Kind: "disease_outbreak", Score: r.Stress.Disease,
			Note: "chlorophyll divergence consistent with disease"})
	}
	if r.Stress.Nutrient >= seedNutrientStress {
		out = append(out, cropmap.AlertSeed{Kind: "nutrient_severe", Score: r.Stress.Nutrient,
			Note: "nutrient stress above severe threshold"})
	}
	if r.Stress.Pest >= seedPestStress {
		out = append(out, cropmap.AlertSeed{Kind: "pest_infestation", Score: r.Stress.Pest,
			Note: "spatial signature consistent with pest pressure"})
	}
	if r.Health < seedDeclineHealth {
		out = append(out, cropmap.AlertSeed{Kind: "general_decline", Score: float64(r.Health),
			Note: "overall health below decline threshold"})
	}
	return out
}

// recommendations derives the rule-based field recommendations. The
// precision planner elaborates these into variable-rate prescriptions.
func recommendations(r *cropmap.AnalysisResult) []cropmap.Recommendation {
	var out []cropmap.Recommendation
	if r.Stress.Drought >= 0.4 {
		p := 2
		if r.Stress.Drought >= seedDroughtStress {
			p = 1
		}
		out = append(out, cropmap.Recommendation{
			Category: cropmap.RecIrrigation, Priority: p,
			Message: fmt.Sprintf("schedule irrigation; drought stress %.2f with %.0f%% of field affected",
				r.Stress.Drought, r.Zones.AffectedPct()),
		})
	}
	if r.Stress.Nutrient >= 0.3 {
		out = append(out, cropmap.Recommendation{
			Category: cropmap.RecFertilization, Priority: 2,
			Message: "soil test and variable-rate fertilizer on stressed zones",
		})
	}
	if r.Stress.Disease >= 0.5 || r.Stress.Pest >= 0.5 {
		out = append(out, cropmap.Recommendation{
			Category: cropmap.RecPestControl, Priority: 1,
			Message: "scout stressed zones and confirm before treatment",
		})
	}
	if r.Health < seedDeclineHealth {
		out = append(out, cropmap.Recommendation{
			Category: cropmap.RecSoilManagement, Priority: 3,
			Message: "review drainage and compaction; decline is not explained by a single stressor",
		})
	}
	if r.Previous != nil && r.Previous.Trend == cropmap.TrendDeclining &&
		r.Indices.NDVI.Mean < cropmap.HealthyNDVI {
		out = append(out, cropmap.Recommendation{
			Category: cropmap.RecHarvestTiming, Priority: 4,
			Message: "canopy is senescing early; reassess harvest window",
		})
	}
	return out
}
