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
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TrendPoint is one dated observation in a field's NDVI history.
type TrendPoint struct {
	Date     time.Time `json:"date"`
	MeanNDVI float64   `json:"mean_ndvi"`
	Health   int       `json:"health"`
}

// GrowthStage is a coarse crop-development classification inferred from the
// NDVI trajectory.
type GrowthStage string

const (
	StagePreEmergence GrowthStage = "pre_emergence"
	StageVegetative   GrowthStage = "vegetative"
	StagePeak         GrowthStage = "peak"
	StageSenescence   GrowthStage = "senescence"
	StageUnknown      GrowthStage = "unknown"
)

// TrendSeries is the output of the trend entry point: the dated NDVI series
// for a field with per-season averages and an inferred growth stage.
type TrendSeries struct {
	FieldID          string             `json:"field_id"`
	Points           []TrendPoint       `json:"points"`
	SeasonalAverages map[string]float64 `json:"seasonal_averages"` // keyed "2024-spring" etc.
	GrowthStage      GrowthStage        `json:"growth_stage"`
	Slope            float64            `json:"slope"` // mean NDVI change per day
}

// ComputeTrends builds a TrendSeries from persisted analysis history,
// ordered by date. It needs at least one result.
func ComputeTrends(fieldID string, history []AnalysisResult) (*TrendSeries, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("in cropmap.ComputeTrends: no analysis history for field %s: %w",
			fieldID, ErrInvalidInput)
	}
	pts := make([]TrendPoint, len(history))
	for i, r := range history {
		pts[i] = TrendPoint{Date: r.AnalysisDate, MeanNDVI: r.Indices.NDVI.Mean, Health: r.Health}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	ts := &TrendSeries{
		FieldID:          fieldID,
		Points:           pts,
		SeasonalAverages: seasonalAverages(pts),
	}
	ts.Slope = ndviSlope(pts)
	ts.GrowthStage = classifyGrowthStage(pts, ts.Slope)
	return ts, nil
}

// ndviSlope fits mean NDVI against time (days since the first point) by
// ordinary least squares and returns the slope.
func ndviSlope(pts []TrendPoint) float64 {
	if len(pts) < 2 {
		return 0
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	t0 := pts[0].Date
	for i, p := range pts {
		xs[i] = p.Date.Sub(t0).Hours() / 24
		ys[i] = p.MeanNDVI
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}

func seasonalAverages(pts []TrendPoint) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range pts {
		k := seasonKey(p.Date)
		sums[k] += p.MeanNDVI
		counts[k]++
	}
	out := make(map[string]float64, len(sums))
	for k, s := range sums {
		out[k] = s / float64(counts[k])
	}
	return out
}

// seasonKey labels a date with its meteorological season in the northern
// hemisphere, e.g. "2024-spring".
func seasonKey(t time.Time) string {
	t = t.UTC()
	year := t.Year()
	var season string
	switch t.Month() {
	case time.March, time.April, time.May:
		season = "spring"
	case time.June, time.July, time.August:
		season = "summer"
	case time.September, time.October, time.November:
		season = "autumn"
	default:
		season = "winter"
		if t.Month() == time.December {
			year++ // December belongs to the following winter
		}
	}
	return fmt.Sprintf("%d-%s", year, season)
}

// Growth-stage classification thresholds.
const (
	bareSoilNDVI     = 0.2
	canopyClosedNDVI = 0.55
	stageSlopeFlat   = 0.002 // per day
)

func classifyGrowthStage(pts []TrendPoint, slope float64) GrowthStage {
	last := pts[len(pts)-1].MeanNDVI
	switch {
	case last < bareSoilNDVI:
		return StagePreEmergence
	case last >= canopyClosedNDVI && slope <= -stageSlopeFlat:
		return StageSenescence
	case last >= canopyClosedNDVI && slope < stageSlopeFlat:
		return StagePeak
	case slope >= stageSlopeFlat || last >= bareSoilNDVI:
		return StageVegetative
	default:
		return StageUnknown
	}
}
