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
	"errors"
	"testing"
	"time"
)

func trendHistory(fieldID string, means []float64, start time.Time, stepDays int) []AnalysisResult {
	out := make([]AnalysisResult, len(means))
	for i, m := range means {
		out[i] = *ResultTestData(fieldID, "farm1", m, start.AddDate(0, 0, i*stepDays))
	}
	return out
}

func TestComputeTrendsEmpty(t *testing.T) {
	if _, err := ComputeTrends("f1", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestComputeTrendsOrdering(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	history := trendHistory("f1", []float64{0.3, 0.4, 0.5}, start, 10)
	// Shuffle: the series must come back date ordered.
	history[0], history[2] = history[2], history[0]

	ts, err := ComputeTrends("f1", history)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(ts.Points); i++ {
		if ts.Points[i].Date.Before(ts.Points[i-1].Date) {
			t.Fatal("points are not date ordered")
		}
	}
	if absDifferent(ts.Points[0].MeanNDVI, 0.3, testTolerance) {
		t.Errorf("first point: got %g, want 0.3", ts.Points[0].MeanNDVI)
	}
}

func TestComputeTrendsSlope(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	// 0.01 per day, exactly linear.
	ts, err := ComputeTrends("f1", trendHistory("f1", []float64{0.3, 0.4, 0.5}, start, 10))
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(ts.Slope, 0.01, 1e-6) {
		t.Errorf("slope: got %g, want 0.01", ts.Slope)
	}
	if ts.GrowthStage != StageVegetative {
		t.Errorf("stage: got %s, want %s", ts.GrowthStage, StageVegetative)
	}
}

func TestComputeTrendsSeasonalAverages(t *testing.T) {
	history := []AnalysisResult{
		*ResultTestData("f1", "farm1", 0.4, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)),
		*ResultTestData("f1", "farm1", 0.6, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)),
		*ResultTestData("f1", "farm1", 0.7, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)),
		*ResultTestData("f1", "farm1", 0.3, time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)),
	}
	ts, err := ComputeTrends("f1", history)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(ts.SeasonalAverages["2024-spring"], 0.5, testTolerance) {
		t.Errorf("spring average: got %g, want 0.5", ts.SeasonalAverages["2024-spring"])
	}
	if absDifferent(ts.SeasonalAverages["2024-summer"], 0.7, testTolerance) {
		t.Errorf("summer average: got %g, want 0.7", ts.SeasonalAverages["2024-summer"])
	}
	// December belongs to the following winter.
	if _, ok := ts.SeasonalAverages["2025-winter"]; !ok {
		t.Error("December observation missing from 2025-winter")
	}
}

func TestGrowthStages(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		means []float64
		want  GrowthStage
	}{
		{[]float64{0.12, 0.15, 0.1}, StagePreEmergence},
		{[]float64{0.3, 0.45, 0.6}, StageVegetative},
		{[]float64{0.69, 0.7, 0.71}, StagePeak},
		{[]float64{0.8, 0.7, 0.6}, StageSenescence},
	}
	for _, c := range cases {
		ts, err := ComputeTrends("f1", trendHistory("f1", c.means, start, 10))
		if err != nil {
			t.Fatal(err)
		}
		if ts.GrowthStage != c.want {
			t.Errorf("means %v: stage %s, want %s", c.means, ts.GrowthStage, c.want)
		}
	}
}
