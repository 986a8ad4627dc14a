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

package cropmap

import (
	"math"
	"time"
)

// Trend classifies the NDVI movement since the prior analysis.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Significance classifies how meaningful a trend delta is relative to the
// prior value.
type Significance string

const (
	SignificanceHigh     Significance = "high"
	SignificanceModerate Significance = "moderate"
	SignificanceLow      Significance = "low"
)

// Trend classification thresholds.
const (
	trendStableDelta          = 0.05
	significanceHighRatio     = 0.15
	significanceModerateRatio = 0.08
)

// Comparison summarizes the change against the most recent prior analysis
// of the same field.
type Comparison struct {
	PriorDate     time.Time    `json:"prior_date"`
	DeltaMeanNDVI float64      `json:"delta_mean_ndvi"`
	Trend         Trend        `json:"trend"`
	Significance  Significance `json:"significance"`
}

// Compare derives the comparison summary from the current and prior mean
// NDVI. A nil return means there is no prior to compare against.
func Compare(current float64, prior *AnalysisResult) *Comparison {
	if prior == nil {
		return nil
	}
	delta := current - prior.Indices.NDVI.Mean
	c := &Comparison{
		PriorDate:     prior.AnalysisDate,
		DeltaMeanNDVI: delta,
		Trend:         TrendStable,
		Significance:  SignificanceLow,
	}
	if math.Abs(delta) >= trendStableDelta {
		if delta > 0 {
			c.Trend = TrendImproving
		} else {
			c.Trend = TrendDeclining
		}
	}
	if p := prior.Indices.NDVI.Mean; p != 0 {
		switch ratio := math.Abs(delta / p); {
		case ratio > significanceHighRatio:
			c.Significance = SignificanceHigh
		case ratio > significanceModerateRatio:
			c.Significance = SignificanceModerate
		}
	}
	return c
}

// AlertSeed is a candidate alert raised by the analysis engine. Seeds are
// advisory: the alert engine is authoritative for thresholds, severity,
// dedup, and lifecycle.
type AlertSeed struct {
	Kind  string  `json:"kind"`
	Score float64 `json:"score"` // the triggering stress score or health value
	Note  string  `json:"note"`
}

// RecommendationCategory buckets field recommendations.
type RecommendationCategory string

const (
	RecIrrigation     RecommendationCategory = "irrigation"
	RecFertilization  RecommendationCategory = "fertilization"
	RecPestControl    RecommendationCategory = "pest_control"
	RecSoilManagement RecommendationCategory = "soil_management"
	RecHarvestTiming  RecommendationCategory = "harvest_timing"
)

// Recommendation is a rule-based field recommendation seeded by the
// analysis engine. The precision-ag planner elaborates these into
// variable-rate plans.
type Recommendation struct {
	Category RecommendationCategory `json:"category"`
	Priority int                    `json:"priority"` // 1 (highest) .. 5
	Message  string                 `json:"message"`
}

// AnalysisResult is the outcome of analyzing one field on one date. The
// (FieldID, AnalysisDate) pair is the idempotency key: re-analyzing the
// same field and date upserts rather than appending.
type AnalysisResult struct {
	FieldID      string        `json:"field_id"`
	FarmID       string        `json:"farm_id"`
	AnalysisDate time.Time     `json:"analysis_date"` // day granular, UTC
	Field        FieldBoundary `json:"field"`         // boundary snapshot

	Indices    VegetationIndices `json:"indices"`
	Zones      ZonePartition     `json:"zones"`
	Stress     StressIndicators  `json:"stress"`
	Health     int               `json:"health"`
	Confidence Confidence        `json:"confidence"`

	Previous        *Comparison      `json:"previous,omitempty"`
	AlertSeeds      []AlertSeed      `json:"alert_seeds,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// DayKey formats a day-granular analysis date the way persistence and
// single-flight keys expect it.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Key is the (fieldId, analysisDate) idempotency key.
func (r *AnalysisResult) Key() string {
	return r.FieldID + "@" + DayKey(r.AnalysisDate)
}
