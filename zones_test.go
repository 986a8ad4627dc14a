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
)

func TestPartitionSums(t *testing.T) {
	const totalArea = 100.0
	p := ZonePartitioner{}
	for _, mean := range []float64{0.1, 0.3, 0.45, 0.6, 0.78} {
		z, err := p.Partition(IndicesTestData(mean), totalArea)
		if err != nil {
			t.Fatal(err)
		}
		pctSum := z.Healthy.Percent + z.Moderate.Percent + z.Stressed.Percent
		if absDifferent(pctSum, 100, 0.1) {
			t.Errorf("mean %g: percentages sum to %g, want 100", mean, pctSum)
		}
		areaSum := z.Healthy.AreaHa + z.Moderate.AreaHa + z.Stressed.AreaHa
		if absDifferent(areaSum, totalArea, totalArea*0.005) {
			t.Errorf("mean %g: areas sum to %g, want %g", mean, areaSum, totalArea)
		}
	}
}

func TestPartitionHealthyField(t *testing.T) {
	vi := &VegetationIndices{
		NDVI: NDVIStats{Mean: 0.78, Min: 0.65, Max: 0.88, Median: 0.78, StdDev: 0.05},
		NDRE: 0.47, EVI: 0.62, SAVI: 0.70,
		CloudCoverPct: 5,
	}
	p := ZonePartitioner{}
	z, err := p.Partition(vi, 100)
	if err != nil {
		t.Fatal(err)
	}
	if z.Healthy.Percent < 90 {
		t.Errorf("healthy: got %g%%, want >= 90%%", z.Healthy.Percent)
	}
	if z.Stressed.Percent > 1 {
		t.Errorf("stressed: got %g%%, want ~0%%", z.Stressed.Percent)
	}
}

func TestPartitionDroughtAffectedArea(t *testing.T) {
	vi := &VegetationIndices{
		NDVI: NDVIStats{Mean: 0.22, Min: 0.05, Max: 0.40, Median: 0.22, StdDev: 0.08},
		NDRE: 0.10, EVI: 0.18, SAVI: 0.20,
		CloudCoverPct: 10,
	}
	p := ZonePartitioner{}
	z, err := p.Partition(vi, 100)
	if err != nil {
		t.Fatal(err)
	}
	if z.AffectedPct() < 70 {
		t.Errorf("affected area: got %g%%, want >= 70%%", z.AffectedPct())
	}
}

// A histogram, when present, takes precedence over the normal
// approximation.
func TestPartitionFromHistogram(t *testing.T) {
	vi := IndicesTestData(0.45)
	vi.Histogram = &Histogram{
		Edges: []float64{-1, -0.8, -0.6, -0.4, -0.2, 0, 0.2, 0.4, 0.6, 0.8, 1},
		Fractions: []float64{0, 0, 0, 0, 0, 0.1, 0.3, 0.4, 0.2, 0},
	}
	p := ZonePartitioner{}
	z, err := p.Partition(vi, 100)
	if err != nil {
		t.Fatal(err)
	}
	// FractionBelow(0.3) = 0.1 + 0.3/2 = 0.25; FractionBelow(0.6) = 0.8.
	if absDifferent(z.Stressed.Percent, 25, 0.1) {
		t.Errorf("stressed: got %g%%, want 25%%", z.Stressed.Percent)
	}
	if absDifferent(z.Healthy.Percent, 20, 0.1) {
		t.Errorf("healthy: got %g%%, want 20%%", z.Healthy.Percent)
	}
}

func TestPartitionZeroStdDev(t *testing.T) {
	vi := IndicesTestData(0.45)
	vi.NDVI.StdDev = 0
	p := ZonePartitioner{}
	z, err := p.Partition(vi, 100)
	if err != nil {
		t.Fatal(err)
	}
	// The distribution degenerates to a step at the mean: all moderate.
	if absDifferent(z.Moderate.Percent, 100, 0.1) {
		t.Errorf("moderate: got %g%%, want 100%%", z.Moderate.Percent)
	}
}

func TestPartitionInvalidArea(t *testing.T) {
	p := ZonePartitioner{}
	if _, err := p.Partition(IndicesTestData(0.5), 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}
