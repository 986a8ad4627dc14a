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
	"math"
	"testing"
	"time"
)

const testTolerance = 1.e-8

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

func TestScoreHealthyField(t *testing.T) {
	const scoreTolerance = 0.01

	vi := &VegetationIndices{
		NDVI:          NDVIStats{Mean: 0.78, Min: 0.65, Max: 0.88, Median: 0.78, StdDev: 0.05},
		NDRE:          0.47,
		EVI:           0.62,
		SAVI:          0.70,
		CloudCoverPct: 5,
		ResolutionM:   10,
		AcquiredAt:    time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	calc := IndexCalculator{}
	r, err := calc.Score(vi)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(r.Stress.Drought, 0, scoreTolerance) {
		t.Errorf("drought stress: got %g, want 0", r.Stress.Drought)
	}
	if absDifferent(r.Stress.Disease, 0.032, scoreTolerance) {
		t.Errorf("disease stress: got %g, want 0.032", r.Stress.Disease)
	}
	if absDifferent(r.Stress.Nutrient, 0.176, scoreTolerance) {
		t.Errorf("nutrient stress: got %g, want 0.176", r.Stress.Nutrient)
	}
	if r.Health < 78 {
		t.Errorf("health: got %d, want >= 78", r.Health)
	}
	if r.Confidence != ConfidenceNormal {
		t.Errorf("confidence: got %s, want %s", r.Confidence, ConfidenceNormal)
	}
}

func TestScoreDroughtField(t *testing.T) {
	const scoreTolerance = 0.01

	vi := &VegetationIndices{
		NDVI:          NDVIStats{Mean: 0.22, Min: 0.05, Max: 0.40, Median: 0.22, StdDev: 0.08},
		NDRE:          0.10,
		EVI:           0.18,
		SAVI:          0.20,
		CloudCoverPct: 10,
		ResolutionM:   10,
		AcquiredAt:    time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	calc := IndexCalculator{}
	r, err := calc.Score(vi)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(r.Stress.Drought, 0.67, scoreTolerance) {
		t.Errorf("drought stress: got %g, want 0.67", r.Stress.Drought)
	}
	if r.Health > 28 {
		t.Errorf("health: got %d, want <= 28", r.Health)
	}
}

// Increasing mean NDVI with the related indices held at their expected
// ratios must never decrease the health score.
func TestHealthMonotone(t *testing.T) {
	calc := IndexCalculator{}
	prev := -1
	for mean := 0.0; mean <= 0.9; mean += 0.05 {
		r, err := calc.Score(IndicesTestData(mean))
		if err != nil {
			t.Fatal(err)
		}
		if r.Health < prev {
			t.Errorf("health decreased from %d to %d at mean NDVI %g", prev, r.Health, mean)
		}
		prev = r.Health
	}
}

func TestScoreCloudyLowConfidence(t *testing.T) {
	vi := IndicesTestData(0.5)
	vi.CloudCoverPct = 45
	calc := IndexCalculator{}
	r, err := calc.Score(vi)
	if err != nil {
		t.Fatal(err)
	}
	if r.Confidence != ConfidenceLow {
		t.Errorf("confidence: got %s, want %s", r.Confidence, ConfidenceLow)
	}
}

func TestScoreNDREDivergenceBump(t *testing.T) {
	base := IndicesTestData(0.5)
	diverged := IndicesTestData(0.5)
	diverged.NDRE = 0.6*0.5 - 0.3 // 0.3 below the expected ratio

	calc := IndexCalculator{}
	rBase, err := calc.Score(base)
	if err != nil {
		t.Fatal(err)
	}
	rDiv, err := calc.Score(diverged)
	if err != nil {
		t.Fatal(err)
	}
	if rDiv.Stress.Disease <= rBase.Stress.Disease {
		t.Errorf("disease stress with NDRE divergence: got %g, want > %g",
			rDiv.Stress.Disease, rBase.Stress.Disease)
	}
}

func TestScoreMissingImagery(t *testing.T) {
	calc := IndexCalculator{}
	if _, err := calc.Score(nil); !errors.Is(err, ErrImageryUnavailable) {
		t.Errorf("got %v, want ErrImageryUnavailable", err)
	}
}

func TestScoreInvalidIndices(t *testing.T) {
	vi := IndicesTestData(0.5)
	vi.NDVI.Mean = 1.5
	calc := IndexCalculator{}
	if _, err := calc.Score(vi); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestStressPrimary(t *testing.T) {
	s := StressIndicators{Drought: 0.2, Disease: 0.7, Nutrient: 0.4}
	if p := s.Primary(); p != "disease" {
		t.Errorf("primary stressor: got %s, want disease", p)
	}
	if absDifferent(s.Max(), 0.7, testTolerance) {
		t.Errorf("max stress: got %g, want 0.7", s.Max())
	}
}
