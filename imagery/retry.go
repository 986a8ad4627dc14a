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

package imagery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agrimodel/cropmap"
)

// RetryConfig controls the backoff applied to transient provider failures.
type RetryConfig struct {
	Attempts  int           // total attempts, including the first
	Base      time.Duration // initial interval
	Factor    float64       // interval multiplier
	JitterPct float64       // randomization as a percent of the interval
}

// DefaultRetry is the retry policy the analysis engine uses for imagery
// calls.
var DefaultRetry = RetryConfig{
	Attempts:  4,
	Base:      250 * time.Millisecond,
	Factor:    2,
	JitterPct: 20,
}

func (c RetryConfig) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.Base
	b.Multiplier = c.Factor
	b.RandomizationFactor = c.JitterPct / 100
	b.MaxElapsedTime = 0 // attempts bound the retries, not wall time
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.Attempts-1)), ctx)
}

// RetryProvider decorates a Provider with exponential-backoff retries on
// transient failures. Invalid requests and hard unavailability pass through
// untouched; a transient failure that survives the retry budget is
// reported as cropmap.ErrUnavailable.
type RetryProvider struct {
	Provider Provider
	Config   RetryConfig
}

// NewRetryProvider wraps p with the default retry policy.
func NewRetryProvider(p Provider) *RetryProvider {
	return &RetryProvider{Provider: p, Config: DefaultRetry}
}

// retry runs op under the configured backoff policy, translating error
// kinds per the provider contract.
func (r *RetryProvider) retry(ctx context.Context, op func() error) error {
	cfg := r.Config
	if cfg.Attempts <= 0 {
		cfg = DefaultRetry
	}
	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, cropmap.ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}, cfg.backoff(ctx))

	if err != nil && errors.Is(err, cropmap.ErrTransient) {
		return fmt.Errorf("in imagery.RetryProvider: %d attempts exhausted: %v: %w",
			cfg.Attempts, err, cropmap.ErrUnavailable)
	}
	return err
}

// Search implements Provider.
func (r *RetryProvider) Search(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, maxCloudPct float64) ([]Acquisition, error) {
	var out []Acquisition
	err := r.retry(ctx, func() error {
		var err error
		out, err = r.Provider.Search(ctx, bbox, start, end, maxCloudPct)
		return err
	})
	return out, err
}

// Indices implements Provider.
func (r *RetryProvider) Indices(ctx context.Context, bbox cropmap.BoundingBox, date time.Time) (*cropmap.VegetationIndices, error) {
	var out *cropmap.VegetationIndices
	err := r.retry(ctx, func() error {
		var err error
		out, err = r.Provider.Indices(ctx, bbox, date)
		return err
	})
	return out, err
}

// TimeSeries implements Provider.
func (r *RetryProvider) TimeSeries(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, stepDays int) ([]SeriesPoint, error) {
	var out []SeriesPoint
	err := r.retry(ctx, func() error {
		var err error
		out, err = r.Provider.TimeSeries(ctx, bbox, start, end, stepDays)
		return err
	})
	return out, err
}
