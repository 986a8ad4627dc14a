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
	"time"

	"github.com/ctessum/geom"
)

// FieldTestData returns a roughly square 100 ha field in central Iowa.
// Tests across packages share it so that area-derived assertions agree.
func FieldTestData(id, farmID string) *FieldBoundary {
	return &FieldBoundary{
		ID:     id,
		FarmID: farmID,
		Name:   "test field " + id,
		AreaHa: 100,
		Geometry: geom.Polygon{{
			{X: -93.5, Y: 42.0},
			{X: -93.4879, Y: 42.0},
			{X: -93.4879, Y: 42.009},
			{X: -93.5, Y: 42.009},
		}},
	}
}

// IndicesTestData returns internally consistent vegetation indices around
// the given mean NDVI, with related indices at their expected ratios.
func IndicesTestData(mean float64) *VegetationIndices {
	min, max := mean-0.15, mean+0.1
	if min < -1 {
		min = -1
	}
	if max > 1 {
		max = 1
	}
	return &VegetationIndices{
		NDVI: NDVIStats{
			Mean:   mean,
			Min:    min,
			Max:    max,
			Median: mean,
			StdDev: 0.05,
		},
		NDRE:          0.6 * mean,
		EVI:           0.8 * mean,
		SAVI:          0.9 * mean,
		CloudCoverPct: 5,
		ResolutionM:   10,
		AcquiredAt:    time.Date(2024, 8, 1, 10, 30, 0, 0, time.UTC),
	}
}

// ResultTestData returns a persisted-shape analysis result for the given
// mean NDVI, with zones derived from the index fixture.
func ResultTestData(fieldID, farmID string, mean float64, date time.Time) *AnalysisResult {
	field := FieldTestData(fieldID, farmID)
	vi := IndicesTestData(mean)
	calc := IndexCalculator{}
	score, err := calc.Score(vi)
	if err != nil {
		panic(err)
	}
	zoner := ZonePartitioner{}
	zones, err := zoner.Partition(vi, field.AreaHa)
	if err != nil {
		panic(err)
	}
	return &AnalysisResult{
		FieldID:      fieldID,
		FarmID:       farmID,
		AnalysisDate: date,
		Field:        *field,
		Indices:      *vi,
		Zones:        zones,
		Stress:       score.Stress,
		Health:       score.Health,
		Confidence:   score.Confidence,
		CreatedAt:    date,
	}
}
