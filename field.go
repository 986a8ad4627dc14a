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

	"github.com/ctessum/geom"
)

const (
	earthRadiusM = 6_371_000.0
	m2PerHectare = 10_000.0
	acresPerHa   = 2.4710538
	degToRad     = math.Pi / 180
)

// BoundingBox is an axis-aligned geographic rectangle in degrees.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Valid reports whether the box is non-degenerate.
func (b BoundingBox) Valid() bool {
	return b.West < b.East && b.South < b.North &&
		b.West >= -180 && b.East <= 180 && b.South >= -90 && b.North <= 90
}

// FieldBoundary identifies a field and its geographic extent. Boundaries are
// created outside the pipeline and are read-only here.
type FieldBoundary struct {
	ID     string  `json:"id"`
	FarmID string  `json:"farm_id"`
	Name   string  `json:"name"`
	AreaHa float64 `json:"area_ha"` // hectares

	// Geometry is the boundary ring in geographic coordinates
	// (X = longitude, Y = latitude).
	Geometry geom.Polygon `json:"geometry"`
}

// Validate checks that the boundary is usable by the pipeline: at least
// three vertices forming a simple ring, a valid derived bounding box, and a
// positive area. A missing or degenerate polygon is an input error; the
// pipeline never substitutes mock coordinates.
func (f *FieldBoundary) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("in cropmap.FieldBoundary.Validate: missing field id: %w", ErrInvalidInput)
	}
	if len(f.Geometry) == 0 {
		return fmt.Errorf("in cropmap.FieldBoundary.Validate: field %s has no boundary polygon: %w", f.ID, ErrInvalidInput)
	}
	ring := closedRing(f.Geometry[0])
	if len(ring)-1 < 3 {
		return fmt.Errorf("in cropmap.FieldBoundary.Validate: field %s boundary has %d vertices; need ≥ 3: %w",
			f.ID, len(ring)-1, ErrInvalidInput)
	}
	for _, p := range ring {
		if p.X < -180 || p.X > 180 || p.Y < -90 || p.Y > 90 {
			return fmt.Errorf("in cropmap.FieldBoundary.Validate: field %s vertex (%g, %g) outside geographic range: %w",
				f.ID, p.X, p.Y, ErrInvalidInput)
		}
	}
	if selfIntersects(ring) {
		return fmt.Errorf("in cropmap.FieldBoundary.Validate: field %s boundary is self-intersecting: %w", f.ID, ErrInvalidInput)
	}
	if !f.Bounds().Valid() {
		return fmt.Errorf("in cropmap.FieldBoundary.Validate: field %s has a degenerate bounding box: %w", f.ID, ErrInvalidInput)
	}
	if f.AreaHa <= 0 {
		return fmt.Errorf("in cropmap.FieldBoundary.Validate: field %s area must be positive, got %g ha: %w",
			f.ID, f.AreaHa, ErrInvalidInput)
	}
	return nil
}

// Bounds returns the axis-aligned bounding box of the boundary ring.
func (f *FieldBoundary) Bounds() BoundingBox {
	b := f.Geometry.Bounds()
	return BoundingBox{West: b.Min.X, South: b.Min.Y, East: b.Max.X, North: b.Max.Y}
}

// Centroid returns the area centroid of the boundary ring
// (X = longitude, Y = latitude).
func (f *FieldBoundary) Centroid() geom.Point {
	return f.Geometry.Centroid()
}

// GeodeticAreaHa computes the ring area in hectares using an equirectangular
// projection about the centroid latitude. It is the deterministic source of
// truth for area-derived quantities; the stored AreaHa attribute is
// advisory and may disagree slightly with surveyed values.
func (f *FieldBoundary) GeodeticAreaHa() float64 {
	if len(f.Geometry) == 0 {
		return 0
	}
	c := f.Centroid()
	cosLat := math.Cos(c.Y * degToRad)
	ring := closedRing(f.Geometry[0])
	projected := make([]geom.Point, len(ring))
	for i, p := range ring {
		projected[i] = geom.Point{
			X: earthRadiusM * p.X * degToRad * cosLat,
			Y: earthRadiusM * p.Y * degToRad,
		}
	}
	return geom.Polygon{projected}.Area() / m2PerHectare
}

// AreaAcres converts the stored area to acres for US-unit cost and loss
// arithmetic.
func (f *FieldBoundary) AreaAcres() float64 {
	return f.AreaHa * acresPerHa
}

// closedRing returns ring with its first vertex appended if the ring is not
// already explicitly closed.
func closedRing(ring []geom.Point) []geom.Point {
	if len(ring) == 0 {
		return ring
	}
	if ring[0] == ring[len(ring)-1] {
		return ring
	}
	out := make([]geom.Point, len(ring)+1)
	copy(out, ring)
	out[len(ring)] = ring[0]
	return out
}

// selfIntersects reports whether any two non-adjacent edges of the closed
// ring cross each other.
func selfIntersects(ring []geom.Point) bool {
	n := len(ring) - 1 // number of edges
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // first and last edges share a vertex
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d geom.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(a, b, p geom.Point) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}
