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
	"time"
)

// NDVIStats summarizes the NDVI pixel population of one acquisition over a
// bounding box. All values are unitless in [-1, 1] except StdDev which is
// ≥ 0.
type NDVIStats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// VegetationIndices holds the scalar outputs of a single-date acquisition.
type VegetationIndices struct {
	NDVI NDVIStats `json:"ndvi"`

	// Secondary indices, aggregated over the bounding box [-1, 1].
	NDRE float64 `json:"ndre"` // red-edge chlorophyll sensitivity
	EVI  float64 `json:"evi"`  // atmospheric correction
	SAVI float64 `json:"savi"` // soil-background correction

	CloudCoverPct float64   `json:"cloud_cover_pct"` // [0, 100]
	AcquiredAt    time.Time `json:"acquired_at"`
	ResolutionM   float64   `json:"resolution_m"` // metres per pixel

	// Histogram of the NDVI pixel distribution, if the provider supplies
	// one. Optional; zone partitioning falls back to a truncated normal
	// when absent.
	Histogram *Histogram `json:"histogram,omitempty"`
}

// Validate checks the distribution invariants of a single acquisition.
func (v *VegetationIndices) Validate() error {
	for _, c := range []struct {
		name string
		val  float64
	}{
		{"ndvi mean", v.NDVI.Mean},
		{"ndvi min", v.NDVI.Min},
		{"ndvi max", v.NDVI.Max},
		{"ndvi median", v.NDVI.Median},
		{"ndre", v.NDRE},
		{"evi", v.EVI},
		{"savi", v.SAVI},
	} {
		if c.val < -1 || c.val > 1 {
			return fmt.Errorf("in cropmap.VegetationIndices.Validate: %s = %g outside [-1, 1]: %w",
				c.name, c.val, ErrInvalidInput)
		}
	}
	if v.NDVI.StdDev < 0 {
		return fmt.Errorf("in cropmap.VegetationIndices.Validate: negative ndvi std dev %g: %w",
			v.NDVI.StdDev, ErrInvalidInput)
	}
	if v.NDVI.Min > v.NDVI.Median || v.NDVI.Median > v.NDVI.Max {
		return fmt.Errorf("in cropmap.VegetationIndices.Validate: ndvi min %g ≤ median %g ≤ max %g violated: %w",
			v.NDVI.Min, v.NDVI.Median, v.NDVI.Max, ErrInvalidInput)
	}
	if v.NDVI.Mean < v.NDVI.Min || v.NDVI.Mean > v.NDVI.Max {
		return fmt.Errorf("in cropmap.VegetationIndices.Validate: ndvi mean %g outside [min, max] = [%g, %g]: %w",
			v.NDVI.Mean, v.NDVI.Min, v.NDVI.Max, ErrInvalidInput)
	}
	if v.CloudCoverPct < 0 || v.CloudCoverPct > 100 {
		return fmt.Errorf("in cropmap.VegetationIndices.Validate: cloud cover %g%% outside [0, 100]: %w",
			v.CloudCoverPct, ErrInvalidInput)
	}
	if v.Histogram != nil {
		if err := v.Histogram.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Histogram is a binned NDVI pixel distribution. Edges has one more entry
// than Fractions; Fractions sum to 1 over the pixels considered.
type Histogram struct {
	Edges     []float64 `json:"edges"`
	Fractions []float64 `json:"fractions"`
}

// Validate checks bin structure and normalization.
func (h *Histogram) Validate() error {
	if len(h.Edges) != len(h.Fractions)+1 {
		return fmt.Errorf("in cropmap.Histogram.Validate: %d edges for %d bins: %w",
			len(h.Edges), len(h.Fractions), ErrInvalidInput)
	}
	if len(h.Fractions) < minHistogramBins {
		return fmt.Errorf("in cropmap.Histogram.Validate: %d bins; need ≥ %d: %w",
			len(h.Fractions), minHistogramBins, ErrInvalidInput)
	}
	var sum float64
	for i, f := range h.Fractions {
		if f < 0 {
			return fmt.Errorf("in cropmap.Histogram.Validate: negative fraction in bin %d: %w", i, ErrInvalidInput)
		}
		sum += f
	}
	if sum < 1-histogramSumTolerance || sum > 1+histogramSumTolerance {
		return fmt.Errorf("in cropmap.Histogram.Validate: fractions sum to %g, want 1: %w", sum, ErrInvalidInput)
	}
	for i := 1; i < len(h.Edges); i++ {
		if h.Edges[i] <= h.Edges[i-1] {
			return fmt.Errorf("in cropmap.Histogram.Validate: edges not strictly increasing at %d: %w", i, ErrInvalidInput)
		}
	}
	return nil
}

const (
	minHistogramBins      = 10
	histogramSumTolerance = 1e-6
)

// FractionBelow integrates the histogram over (-∞, x], interpolating
// linearly within the bin containing x.
func (h *Histogram) FractionBelow(x float64) float64 {
	var sum float64
	for i, f := range h.Fractions {
		lo, hi := h.Edges[i], h.Edges[i+1]
		switch {
		case x >= hi:
			sum += f
		case x <= lo:
			return sum
		default:
			return sum + f*(x-lo)/(hi-lo)
		}
	}
	return sum
}
