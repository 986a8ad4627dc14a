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

// Package plan synthesizes variable-rate precision-agriculture plans from
// analysis results: per-kind application recommendations with zone-specific
// rates, timing windows, equipment settings, and cost/benefit projections.
// Planning is fully deterministic in its inputs.
package plan

import (
	"time"

	"github.com/agrimodel/cropmap"
)

// ApplicationKind is the input being applied at a variable rate.
type ApplicationKind string

const (
	KindFertilizer ApplicationKind = "fertilizer"
	KindSeed       ApplicationKind = "seed"
	KindPesticide  ApplicationKind = "pesticide"
	KindIrrigation ApplicationKind = "irrigation"
	KindLime       ApplicationKind = "lime"
)

// Season labels the agronomic season a plan targets.
type Season string

const (
	SeasonPrePlant Season = "pre_plant"
	SeasonGrowing  Season = "growing"
	SeasonHarvest  Season = "harvest"
)

// ApplicationZone is one management zone within a recommendation. Rates are
// per acre in the recommendation's unit.
type ApplicationZone struct {
	ZoneID    string     `json:"zone_id"`
	NDVIRange [2]float64 `json:"ndvi_range"` // [lo, hi)
	AreaHa    float64    `json:"area_ha"`
	Rate      float64    `json:"rate"`
	Rationale string     `json:"rationale"`
}

// Timing bounds when an application should happen.
type Timing struct {
	WindowStart        time.Time `json:"window_start"`
	WindowEnd          time.Time `json:"window_end"`
	WeatherConstraints []string  `json:"weather_constraints,omitempty"`
	SeasonalFactors    []string  `json:"seasonal_factors,omitempty"`
}

// Equipment describes how to execute an application.
type Equipment struct {
	Recommended      []string          `json:"recommended,omitempty"`
	Settings         map[string]string `json:"settings,omitempty"`
	CalibrationSteps []string          `json:"calibration_steps,omitempty"`
}

// Outcome is the projected effect of one recommendation.
type Outcome struct {
	YieldIncreasePct  float64 `json:"yield_increase_pct"`
	CostSavingsUSD    float64 `json:"cost_savings_usd"`
	EnvironmentalNote string  `json:"environmental_note,omitempty"`
	ROIPct            float64 `json:"roi_pct"`
}

// VariableRate is one variable-rate application recommendation. Zones
// partition the field; each zone's rate is the base rate times the zone
// multiplier, and TotalQuantity equals the sum over zones of area × rate.
type VariableRate struct {
	ID                string            `json:"id"`
	Kind              ApplicationKind   `json:"kind"`
	Product           string            `json:"product"`
	BaseRate          float64           `json:"base_rate"` // per acre
	RateUnit          string            `json:"rate_unit"`
	VariabilityFactor float64           `json:"variability_factor"` // max/min zone multiplier
	TotalQuantity     float64           `json:"total_quantity"`
	EstimatedCostUSD  float64           `json:"estimated_cost_usd"`
	Zones             []ApplicationZone `json:"zones"`
	Timing            Timing            `json:"timing"`
	Equipment         Equipment         `json:"equipment"`
	Outcome           Outcome           `json:"expected_outcome"`
}

// Summary aggregates a plan's economics. PaybackMonths is nil when the plan
// projects no revenue.
type Summary struct {
	TotalCostUSD        float64  `json:"total_cost_usd"`
	ExpectedRevenueUSD  float64  `json:"expected_revenue_usd"`
	NetBenefitUSD       float64  `json:"net_benefit_usd"`
	PaybackMonths       *float64 `json:"payback_months,omitempty"`
	SustainabilityScore int      `json:"sustainability_score"` // [0, 100]
}

// ScheduleEntry is one weekly task bucket, counted from the analysis date.
type ScheduleEntry struct {
	Week  int      `json:"week"` // 1-based
	Tasks []string `json:"tasks"`
}

// PrecisionPlan is a per-field, per-season variable-rate plan.
type PrecisionPlan struct {
	FarmID      string  `json:"farm_id"`
	FieldID     string  `json:"field_id"`
	Season      Season  `json:"season"`
	CropType    string  `json:"crop_type"`
	TotalAreaHa float64 `json:"total_area_ha"`

	Recommendations []VariableRate  `json:"recommendations"`
	Summary         Summary         `json:"summary"`
	Schedule        []ScheduleEntry `json:"schedule"`

	// PlannedFor is the analysis date the plan derives from; the planner
	// never reads the wall clock.
	PlannedFor time.Time `json:"planned_for"`
}

// Key is the (farm, field, season) upsert key.
func (p *PrecisionPlan) Key() string {
	return p.FarmID + "/" + p.FieldID + "/" + string(p.Season)
}

// zoneNDVIRanges gives the NDVI interval for each band.
var zoneNDVIRanges = map[cropmap.ZoneBand][2]float64{
	cropmap.BandStressed: {-1, cropmap.StressedNDVI},
	cropmap.BandModerate: {cropmap.StressedNDVI, cropmap.HealthyNDVI},
	cropmap.BandHealthy:  {cropmap.HealthyNDVI, 1},
}
