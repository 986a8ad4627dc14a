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

// Package imagery defines the capability interface through which the
// analysis pipeline obtains remote-sensing vegetation indices, together
// with retrying and caching decorators. Concrete satellite providers live
// outside the core; tests use in-memory fakes.
package imagery

import (
	"context"
	"time"

	"github.com/agrimodel/cropmap"
)

// Acquisition describes one available satellite scene over a bounding box.
type Acquisition struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	CloudPct    float64   `json:"cloud_pct"`
	ResolutionM float64   `json:"resolution_m"`
}

// SeriesPoint is one step of an NDVI time series.
type SeriesPoint struct {
	Date     time.Time `json:"date"`
	MeanNDVI float64   `json:"mean_ndvi"`
	CloudPct float64   `json:"cloud_pct"`
}

// Provider is the imagery capability the core consumes. Implementations
// surface failures by wrapping the cropmap sentinel errors:
// cropmap.ErrTransient for retryable faults, cropmap.ErrUnavailable when a
// request cannot be served, and cropmap.ErrInvalidRequest for malformed
// requests (never retried). A date with no usable acquisition is
// cropmap.ErrImageryUnavailable.
type Provider interface {
	// Search lists acquisitions over the box within the date range whose
	// cloud cover does not exceed maxCloudPct.
	Search(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, maxCloudPct float64) ([]Acquisition, error)

	// Indices returns aggregated vegetation indices for the box on the
	// given day.
	Indices(ctx context.Context, bbox cropmap.BoundingBox, date time.Time) (*cropmap.VegetationIndices, error)

	// TimeSeries returns the mean-NDVI series over the box from start to
	// end at stepDays intervals, ordered by date.
	TimeSeries(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, stepDays int) ([]SeriesPoint, error)
}
