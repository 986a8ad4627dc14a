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

	"gonum.org/v1/gonum/stat/distuv"
)

// NDVI band boundaries defining management zones.
const (
	HealthyNDVI  = 0.6 // healthy: ndvi ≥ 0.6
	StressedNDVI = 0.3 // stressed: ndvi < 0.3; moderate in between
)

// ZoneBand names one of the three NDVI bands.
type ZoneBand string

const (
	BandHealthy  ZoneBand = "healthy"
	BandModerate ZoneBand = "moderate"
	BandStressed ZoneBand = "stressed"
)

// ZoneFraction is one band's share of the field.
type ZoneFraction struct {
	Percent float64 `json:"percent"`
	AreaHa  float64 `json:"area_ha"`
}

// ZonePartition splits a field's pixel population into the three NDVI
// bands. Percentages sum to 100 and areas sum to the field total.
type ZonePartition struct {
	Healthy  ZoneFraction `json:"healthy"`
	Moderate ZoneFraction `json:"moderate"`
	Stressed ZoneFraction `json:"stressed"`
}

// Fraction returns the named band.
func (z ZonePartition) Fraction(b ZoneBand) ZoneFraction {
	switch b {
	case BandHealthy:
		return z.Healthy
	case BandModerate:
		return z.Moderate
	default:
		return z.Stressed
	}
}

// AffectedPct is the share of the field outside the healthy band.
func (z ZonePartition) AffectedPct() float64 {
	return z.Moderate.Percent + z.Stressed.Percent
}

// zonePartitionTolerance is the allowed deviation of the percentage sum
// from 100.
const zonePartitionTolerance = 0.1

// Validate checks the partition invariants against the field area.
func (z ZonePartition) Validate(totalAreaHa float64) error {
	pctSum := z.Healthy.Percent + z.Moderate.Percent + z.Stressed.Percent
	if math.Abs(pctSum-100) > zonePartitionTolerance {
		return fmt.Errorf("in cropmap.ZonePartition.Validate: percentages sum to %g, want 100 ± %g",
			pctSum, zonePartitionTolerance)
	}
	areaSum := z.Healthy.AreaHa + z.Moderate.AreaHa + z.Stressed.AreaHa
	if totalAreaHa > 0 && math.Abs(areaSum-totalAreaHa)/totalAreaHa > 0.005 {
		return fmt.Errorf("in cropmap.ZonePartition.Validate: areas sum to %g ha, want %g ha ± 0.5%%",
			areaSum, totalAreaHa)
	}
	return nil
}

// ZonePartitioner allocates a field's area across NDVI bands. It operates
// on distribution statistics, never per-pixel data: a histogram when the
// imagery provider supplies one, otherwise a normal distribution with the
// acquisition's mean and standard deviation truncated to [-1, 1].
type ZonePartitioner struct{}

// Partition computes the band split for one acquisition over a field of
// totalAreaHa hectares.
func (p *ZonePartitioner) Partition(vi *VegetationIndices, totalAreaHa float64) (ZonePartition, error) {
	if vi == nil {
		return ZonePartition{}, fmt.Errorf("in cropmap.ZonePartitioner.Partition: no acquisition: %w", ErrImageryUnavailable)
	}
	if totalAreaHa <= 0 {
		return ZonePartition{}, fmt.Errorf("in cropmap.ZonePartitioner.Partition: non-positive field area %g ha: %w",
			totalAreaHa, ErrInvalidInput)
	}

	var belowStressed, belowHealthy float64
	if vi.Histogram != nil {
		if err := vi.Histogram.Validate(); err != nil {
			return ZonePartition{}, err
		}
		belowStressed = vi.Histogram.FractionBelow(StressedNDVI)
		belowHealthy = vi.Histogram.FractionBelow(HealthyNDVI)
	} else {
		belowStressed = truncatedNormalCDF(StressedNDVI, vi.NDVI.Mean, vi.NDVI.StdDev)
		belowHealthy = truncatedNormalCDF(HealthyNDVI, vi.NDVI.Mean, vi.NDVI.StdDev)
	}

	stressed := belowStressed
	moderate := belowHealthy - belowStressed
	healthy := 1 - belowHealthy

	z := ZonePartition{
		Healthy:  ZoneFraction{Percent: healthy * 100, AreaHa: healthy * totalAreaHa},
		Moderate: ZoneFraction{Percent: moderate * 100, AreaHa: moderate * totalAreaHa},
		Stressed: ZoneFraction{Percent: stressed * 100, AreaHa: stressed * totalAreaHa},
	}
	if err := z.Validate(totalAreaHa); err != nil {
		return ZonePartition{}, err
	}
	return z, nil
}

// truncatedNormalCDF evaluates the CDF at x of a normal distribution with
// the given mean and standard deviation, truncated to the NDVI range
// [-1, 1]. A zero standard deviation degenerates to a step at the mean.
func truncatedNormalCDF(x, mean, stddev float64) float64 {
	switch {
	case x <= -1:
		return 0
	case x >= 1:
		return 1
	}
	if stddev <= 0 {
		if x < mean {
			return 0
		}
		return 1
	}
	n := distuv.Normal{Mu: mean, Sigma: stddev}
	lo, hi := n.CDF(-1), n.CDF(1)
	if hi <= lo {
		if x < mean {
			return 0
		}
		return 1
	}
	return (n.CDF(x) - lo) / (hi - lo)
}
