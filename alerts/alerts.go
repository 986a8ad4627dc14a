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

// Package alerts evaluates analysis results and weather conditions against
// agronomic thresholds, producing deduplicated, severity-ranked alerts with
// loss estimates and action items, and manages their lifecycle and
// notification dispatch. Crop-stress and weather-driven alerts share one
// model and one dedup rule.
package alerts

import (
	"fmt"
	"time"

	"github.com/agrimodel/cropmap"
)

// Kind identifies what condition an alert reports.
type Kind string

// Crop-stress alert kinds.
const (
	KindDroughtCritical Kind = "drought_critical"
	KindDiseaseOutbreak Kind = "disease_outbreak"
	KindNutrientSevere  Kind = "nutrient_severe"
	KindPestInfestation Kind = "pest_infestation"
	KindGeneralDecline  Kind = "general_decline"
)

// Weather alert kinds.
const (
	KindFrost          Kind = "frost"
	KindHeat           Kind = "heat"
	KindWind           Kind = "wind"
	KindHail           Kind = "hail"
	KindFlood          Kind = "flood"
	KindWeatherDrought Kind = "drought"
	KindStorm          Kind = "storm"
	KindFireRisk       Kind = "fire_risk"
)

// IsWeather reports whether the kind is weather-driven.
func (k Kind) IsWeather() bool {
	switch k {
	case KindFrost, KindHeat, KindWind, KindHail, KindFlood, KindWeatherDrought, KindStorm, KindFireRisk:
		return true
	}
	return false
}

// Severity ranks how bad the triggering condition is.
type Severity string

const (
	SeverityMinor     Severity = "minor"
	SeverityModerate  Severity = "moderate"
	SeverityHigh      Severity = "high"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

var severityRank = map[Severity]int{
	SeverityMinor:     1,
	SeverityModerate:  2,
	SeverityHigh:      3,
	SeverityCritical:  4,
	SeverityEmergency: 5,
}

// Rank returns the numeric order of the severity, 1 (minor) through
// 5 (emergency).
func (s Severity) Rank() int { return severityRank[s] }

// MaxSeverity returns the worse of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusActive        Status = "active"
	StatusAcknowledged  Status = "acknowledged"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// TaskPriority schedules an action item.
type TaskPriority string

const (
	PriorityImmediate TaskPriority = "immediate"
	PriorityDay       TaskPriority = "within_24h"
	PriorityWeek      TaskPriority = "within_week"
)

// ActionItem is one recommended response to an alert.
type ActionItem struct {
	Task             string       `json:"task"`
	Priority         TaskPriority `json:"priority"`
	EstimatedCostUSD float64      `json:"estimated_cost_usd"`
	Equipment        []string     `json:"equipment,omitempty"`
}

// SatelliteContext carries the vegetation evidence behind a crop alert.
type SatelliteContext struct {
	NDVI      float64       `json:"ndvi"`
	PriorNDVI float64       `json:"prior_ndvi,omitempty"`
	Delta     float64       `json:"delta,omitempty"`
	Trend     cropmap.Trend `json:"trend,omitempty"`
}

// WeatherSnapshot carries the meteorological evidence behind an alert.
type WeatherSnapshot struct {
	TempC       float64 `json:"temp_c"`
	HumidityPct float64 `json:"humidity_pct"`
	WindSpeedMS float64 `json:"wind_speed_ms"`
	DryDays     int     `json:"dry_days,omitempty"`
}

// ActiveWindow bounds the period a weather alert applies to.
type ActiveWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Alert is a materialized stress or weather alert. FieldID is empty for
// farm-level weather alerts.
type Alert struct {
	ID      string `json:"id"`
	FarmID  string `json:"farm_id"`
	FieldID string `json:"field_id,omitempty"`
	Kind    Kind   `json:"kind"`

	Severity        Severity `json:"severity"`
	Urgency         int      `json:"urgency"` // 1..5, consistent with severity
	AffectedAreaPct float64  `json:"affected_area_pct"`

	// EstimatedLossUSD is nil when no loss model applies.
	EstimatedLossUSD *float64 `json:"estimated_loss_usd,omitempty"`

	Satellite *SatelliteContext `json:"satellite,omitempty"`
	Weather   *WeatherSnapshot  `json:"weather,omitempty"`

	// Confidence in [0, 1]; populated for weather alerts and for crop
	// alerts evaluated under a rule-based weather fallback.
	Confidence float64       `json:"confidence,omitempty"`
	Window     *ActiveWindow `json:"window,omitempty"`

	ActionItems []ActionItem `json:"action_items,omitempty"`

	Status         Status     `json:"status"`
	DetectedAt     time.Time  `json:"detected_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
}

// DedupKey identifies the dedup scope: one active alert per (field, kind),
// or per (farm, kind) for farm-level weather alerts.
func (a *Alert) DedupKey() string {
	if a.FieldID != "" {
		return a.FieldID + "/" + string(a.Kind)
	}
	return "farm:" + a.FarmID + "/" + string(a.Kind)
}

// Acknowledge moves an active alert to acknowledged.
func (a *Alert) Acknowledge(user string, at time.Time) error {
	if a.Status != StatusActive {
		return fmt.Errorf("in alerts.Alert.Acknowledge: alert %s is %s, not active: %w",
			a.ID, a.Status, cropmap.ErrInvalidInput)
	}
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = user
	t := at
	a.AcknowledgedAt = &t
	return nil
}

// Resolve closes an active or acknowledged alert. Resolved alerts are
// immutable except for the resolution note.
func (a *Alert) Resolve(user, note string, at time.Time) error {
	switch a.Status {
	case StatusActive, StatusAcknowledged:
	case StatusResolved:
		// Only the note may change after resolution.
		a.ResolutionNote = note
		return nil
	default:
		return fmt.Errorf("in alerts.Alert.Resolve: alert %s is %s: %w", a.ID, a.Status, cropmap.ErrInvalidInput)
	}
	a.Status = StatusResolved
	a.ResolvedBy = user
	a.ResolutionNote = note
	t := at
	a.ResolvedAt = &t
	return nil
}

// MarkFalsePositive terminally dismisses an active or acknowledged alert.
func (a *Alert) MarkFalsePositive(user string, at time.Time) error {
	switch a.Status {
	case StatusActive, StatusAcknowledged:
	default:
		return fmt.Errorf("in alerts.Alert.MarkFalsePositive: alert %s is %s: %w",
			a.ID, a.Status, cropmap.ErrInvalidInput)
	}
	a.Status = StatusFalsePositive
	a.ResolvedBy = user
	t := at
	a.ResolvedAt = &t
	return nil
}

// Open reports whether the alert still participates in deduplication.
func (a *Alert) Open() bool {
	return a.Status == StatusActive || a.Status == StatusAcknowledged
}
