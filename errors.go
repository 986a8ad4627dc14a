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
	"context"
	"errors"
)

// Sentinel errors classifying pipeline failures. Providers and engines wrap
// these with fmt.Errorf("...: %w", ...) so that callers can classify a
// failure with errors.Is without depending on a concrete provider type.
var (
	// ErrImageryUnavailable means no usable acquisition exists for the
	// requested bounding box and date. Farm-level batches record the field
	// as failed and continue.
	ErrImageryUnavailable = errors.New("imagery unavailable")

	// ErrWeatherUnavailable means the weather provider could not serve the
	// request; alert evaluation falls back to rule-based confidence.
	ErrWeatherUnavailable = errors.New("weather unavailable")

	// ErrTransient marks a provider failure that is expected to succeed on
	// retry (network hiccups, rate limiting). Retried with backoff; becomes
	// ErrUnavailable once the retry budget is exhausted.
	ErrTransient = errors.New("transient provider failure")

	// ErrUnavailable marks a provider failure that will not succeed on
	// retry within this analysis.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrInvalidRequest marks a request the provider rejected as malformed.
	// Never retried.
	ErrInvalidRequest = errors.New("invalid provider request")

	// ErrInvalidInput marks caller-supplied data that fails validation
	// (malformed boundary polygon, unknown farm). Surfaced directly.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersistenceConflict marks a write conflict on an upsert key.
	// Retried once, then surfaced.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// ErrNotificationFailure marks a failed alert dispatch. The alert
	// itself is unaffected; the dispatch is queued for re-delivery.
	ErrNotificationFailure = errors.New("notification dispatch failure")
)

// FailureKind is the structured classification recorded for a field that
// failed inside a farm-level batch.
type FailureKind string

const (
	FailureImagery     FailureKind = "imagery_unavailable"
	FailureWeather     FailureKind = "weather_unavailable"
	FailureTimeout     FailureKind = "timeout"
	FailureCancelled   FailureKind = "cancelled"
	FailureInvalid     FailureKind = "invalid_input"
	FailurePersistence FailureKind = "persistence"
	FailureInternal    FailureKind = "internal"
)

// ClassifyFailure maps an error to the failure kind recorded in a farm
// bundle.
func ClassifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, ErrImageryUnavailable) || errors.Is(err, ErrUnavailable):
		return FailureImagery
	case errors.Is(err, ErrWeatherUnavailable):
		return FailureWeather
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidRequest):
		return FailureInvalid
	case errors.Is(err, ErrPersistenceConflict):
		return FailurePersistence
	default:
		return FailureInternal
	}
}
