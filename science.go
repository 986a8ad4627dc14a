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
	"math"
)

// StressIndicators are derived scalar sub-scores in [0, 1], where 1 is
// maximal stress. Pest and Temperature are only populated when the caller
// supplies the corresponding context (scouting reports, weather); they are
// zero otherwise.
type StressIndicators struct {
	Drought     float64 `json:"drought"`
	Disease     float64 `json:"disease"`
	Nutrient    float64 `json:"nutrient"`
	Pest        float64 `json:"pest,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Max returns the dominant stress score.
func (s StressIndicators) Max() float64 {
	m := s.Drought
	for _, v := range []float64{s.Disease, s.Nutrient, s.Pest, s.Temperature} {
		if v > m {
			m = v
		}
	}
	return m
}

// Primary returns the name of the dominant stress.
func (s StressIndicators) Primary() string {
	name, m := "drought", s.Drought
	for _, c := range []struct {
		name string
		val  float64
	}{
		{"disease", s.Disease},
		{"nutrient", s.Nutrient},
		{"pest", s.Pest},
		{"temperature", s.Temperature},
	} {
		if c.val > m {
			name, m = c.name, c.val
		}
	}
	return name
}

// Confidence qualifies how trustworthy a score is.
type Confidence string

const (
	ConfidenceNormal Confidence = "normal"
	ConfidenceLow    Confidence = "low"        // cloud cover above threshold
	ConfidenceRule   Confidence = "rule_based" // weather fallback in alert evaluation
)

// Tuning constants for the stress model. The NDRE of a healthy canopy runs
// at roughly 0.6 of its NDVI; larger divergence indicates a chlorophyll
// deficit not yet visible in NDVI. SAVI trailing NDVI indicates strong soil
// reflectance diluting the nutrient signal.
const (
	ndreExpectedRatio   = 0.6
	ndreDivergenceLimit = 0.15
	ndreDivergenceGain  = 0.5
	saviSoilGapLimit    = 0.2
	saviSoilGapGain     = 0.5

	healthWeightNDVI   = 0.6
	healthWeightStress = 0.25
	healthWeightEVI    = 0.15

	// EVI saturates near 0.8 over dense canopy, so normalize against that.
	eviDenseCanopy = 0.8

	// DefaultMaxCloudPct is the cloud-cover threshold above which scores
	// are flagged low-confidence.
	DefaultMaxCloudPct = 30.0
)

// IndexCalculator composes vegetation indices into stress indicators and a
// health score. All outputs are deterministic in the inputs.
type IndexCalculator struct {
	// MaxCloudPct is the cloud-cover percentage above which results are
	// flagged low-confidence. Zero means DefaultMaxCloudPct.
	MaxCloudPct float64
}

// ScoreResult is the calculator output for one acquisition.
type ScoreResult struct {
	Stress     StressIndicators `json:"stress"`
	Health     int              `json:"health"` // [0, 100]
	Confidence Confidence       `json:"confidence"`
}

// Score derives stress indicators and the health score from one
// acquisition.
func (c *IndexCalculator) Score(vi *VegetationIndices) (ScoreResult, error) {
	if vi == nil {
		return ScoreResult{}, fmt.Errorf("in cropmap.IndexCalculator.Score: no acquisition: %w", ErrImageryUnavailable)
	}
	if err := vi.Validate(); err != nil {
		return ScoreResult{}, err
	}

	mean := vi.NDVI.Mean
	stress := StressIndicators{
		Drought:  clamp01(1 - mean*1.5),
		Disease:  clamp01(0.5 - mean*0.6),
		Nutrient: clamp01(0.8 - mean*0.8),
	}

	// Canopy-chlorophyll mismatch: bump disease when NDRE diverges from
	// its expected fraction of NDVI.
	if div := math.Abs(vi.NDRE - ndreExpectedRatio*mean); div > ndreDivergenceLimit {
		stress.Disease = clamp01(stress.Disease + (div-ndreDivergenceLimit)*ndreDivergenceGain)
	}
	// High soil reflectance: SAVI trailing NDVI dilutes the nutrient
	// signal, so compensate upward.
	if gap := mean - vi.SAVI; gap > saviSoilGapLimit {
		stress.Nutrient = clamp01(stress.Nutrient + (gap-saviSoilGapLimit)*saviSoilGapGain)
	}

	eviNorm := clamp01(vi.EVI / eviDenseCanopy)
	health := 100 * (healthWeightNDVI*mean +
		healthWeightStress*(1-stress.Max()) +
		healthWeightEVI*eviNorm)
	health = math.Round(math.Min(100, math.Max(0, health)))

	conf := ConfidenceNormal
	if vi.CloudCoverPct > c.maxCloud() {
		conf = ConfidenceLow
	}
	return ScoreResult{Stress: stress, Health: int(health), Confidence: conf}, nil
}

func (c *IndexCalculator) maxCloud() float64 {
	if c.MaxCloudPct <= 0 {
		return DefaultMaxCloudPct
	}
	return c.MaxCloudPct
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
