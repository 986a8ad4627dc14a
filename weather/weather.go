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

// Package weather defines the capability interface through which the
// pipeline obtains current, forecast, and aggregated historical weather,
// plus a TTL caching decorator. Concrete meteorological providers live
// outside the core.
package weather

import (
	"context"
	"time"
)

// Current is an instantaneous observation at a point.
type Current struct {
	TempC       float64   `json:"temp_c"`
	HumidityPct float64   `json:"humidity_pct"`
	WindSpeedMS float64   `json:"wind_speed_ms"`
	PrecipMM    float64   `json:"precip_mm"` // last hour
	Conditions  string    `json:"conditions"`
	ObservedAt  time.Time `json:"observed_at"`
}

// DailyForecast is one forecast day at a point.
type DailyForecast struct {
	Date          time.Time `json:"date"`
	MinTempC      float64   `json:"min_temp_c"`
	MaxTempC      float64   `json:"max_temp_c"`
	HumidityPct   float64   `json:"humidity_pct"`
	WindSpeedMS   float64   `json:"wind_speed_ms"`
	PrecipProbPct float64   `json:"precip_prob_pct"`
	PrecipMM      float64   `json:"precip_mm"`
}

// Aggregate summarizes a historical window at a point.
type Aggregate struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	MeanTempC       float64 `json:"mean_temp_c"`
	MinTempC        float64 `json:"min_temp_c"`
	MaxTempC        float64 `json:"max_temp_c"`
	TotalPrecipMM   float64 `json:"total_precip_mm"`
	MeanHumidityPct float64 `json:"mean_humidity_pct"`

	// DryDays counts consecutive days with < 1 mm precipitation ending at
	// the window end.
	DryDays int `json:"dry_days"`
	// IrrigationNeed is the provider's judgement that the window's water
	// balance calls for irrigation.
	IrrigationNeed bool `json:"irrigation_need"`
	// GrowingDegreeDays is the accumulated heat above the crop base
	// temperature over the window.
	GrowingDegreeDays float64 `json:"growing_degree_days"`
}

// Provider is the weather capability the core consumes. Failure kinds
// follow the same taxonomy as imagery.Provider: implementations wrap
// cropmap.ErrTransient, cropmap.ErrUnavailable, or cropmap.ErrInvalidRequest.
type Provider interface {
	Current(ctx context.Context, lat, lng float64) (*Current, error)
	Forecast(ctx context.Context, lat, lng float64, days int) ([]DailyForecast, error)
	Aggregate(ctx context.Context, lat, lng float64, start, end time.Time) (*Aggregate, error)
}

// GrowingDegreeDays accumulates heat units above baseC across forecast
// days, using the standard (min+max)/2 daily mean.
func GrowingDegreeDays(days []DailyForecast, baseC float64) float64 {
	var gdd float64
	for _, d := range days {
		if mean := (d.MinTempC + d.MaxTempC) / 2; mean > baseC {
			gdd += mean - baseC
		}
	}
	return gdd
}
