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

package alerts

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/internal/hash"
)

// Thresholds is the configuration surface for alert evaluation. The zero
// value is unusable; start from DefaultThresholds.
type Thresholds struct {
	DroughtTrigger   float64 // drought score above which drought_critical fires
	DroughtEmergency float64 // drought score above which severity is emergency
	DroughtNDVIFloor float64 // mean NDVI below which drought_critical fires regardless of score

	DiseaseTrigger  float64
	DiseaseCritical float64

	NutrientTrigger  float64
	NutrientCritical float64

	PestTrigger float64

	DeclineHealth   int // health below which general_decline fires
	DeclineCritical int // health below which general_decline is critical

	FrostTempC       float64
	FrostHumidityPct float64
	FrostWindMS      float64
	HeatTempC        float64
	WindSpeedMS      float64
	FloodProbPct     float64
	DryDaysTrigger   int
	DryDaysSevere    int
	FireIndexTrigger float64

	// DedupWindow is how long an open alert absorbs re-detections of the
	// same (field, kind).
	DedupWindow time.Duration

	// AffectedAreaBump adds one urgency level when more than this percent
	// of the field is affected, for severities below critical.
	AffectedAreaBump float64
}

// DefaultThresholds are the agronomic defaults.
var DefaultThresholds = Thresholds{
	DroughtTrigger:   0.8,
	DroughtEmergency: 0.9,
	DroughtNDVIFloor: 0.25,
	DiseaseTrigger:   0.7,
	DiseaseCritical:  0.85,
	NutrientTrigger:  0.7,
	NutrientCritical: 0.85,
	PestTrigger:      0.6,
	DeclineHealth:    30,
	DeclineCritical:  20,
	FrostTempC:       2,
	FrostHumidityPct: 80,
	FrostWindMS:      3,
	HeatTempC:        35,
	WindSpeedMS:      15,
	FloodProbPct:     80,
	DryDaysTrigger:   7,
	DryDaysSevere:    14,
	FireIndexTrigger: 100,
	DedupWindow:      24 * time.Hour,
	AffectedAreaBump: 50,
}

// Store is the narrow persistence capability the engine needs: lookup for
// deduplication and lifecycle operations, plus idempotent writes.
type Store interface {
	// OpenAlertByKey returns the open (active or acknowledged) alert with
	// the given dedup key, or nil.
	OpenAlertByKey(ctx context.Context, dedupKey string) (*Alert, error)
	GetAlert(ctx context.Context, id string) (*Alert, error)
	UpsertAlert(ctx context.Context, a *Alert) error
}

// Engine evaluates analyses and weather against thresholds and owns the
// lifecycle of materialized alerts.
type Engine struct {
	Store      Store
	Thresholds Thresholds

	// Dispatcher, if set, receives critical-and-above alerts, or all
	// alerts when DispatchAll is set.
	Dispatcher  *Dispatcher
	DispatchAll bool

	// Now is the evaluation clock; nil means time.Now. Tests inject a
	// fake so dedup windows and loss seeds are reproducible.
	Now func() time.Time
}

// NewEngine returns an engine with default thresholds.
func NewEngine(store Store) *Engine {
	return &Engine{Store: store, Thresholds: DefaultThresholds}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Evaluate applies the threshold rules to a farm's analyses and weather
// context, deduplicates against open alerts, persists, and dispatches
// notifications for critical-and-above severities. It returns the alerts
// in their post-dedup state.
func (e *Engine) Evaluate(ctx context.Context, farmID string, analyses []*cropmap.AnalysisResult, wctx *WeatherContext) ([]*Alert, error) {
	now := e.now()
	var candidates []*Alert
	for _, a := range analyses {
		if a == nil {
			continue
		}
		candidates = append(candidates, e.cropAlerts(a, wctx, now)...)
	}
	if wctx != nil {
		candidates = append(candidates, e.weatherAlerts(farmID, wctx, now)...)
	}

	out := make([]*Alert, 0, len(candidates))
	for _, cand := range candidates {
		merged, err := e.dedup(ctx, cand, now)
		if err != nil {
			return out, err
		}
		if err := e.Store.UpsertAlert(ctx, merged); err != nil {
			return out, fmt.Errorf("in alerts.Engine.Evaluate: persisting alert %s: %w", merged.ID, err)
		}
		if e.Dispatcher != nil && (e.DispatchAll || merged.Severity.Rank() >= SeverityCritical.Rank()) {
			e.Dispatcher.Enqueue(merged)
		}
		out = append(out, merged)
	}
	return out, nil
}

// dedup merges a candidate into an open alert for the same (field, kind)
// detected within the dedup window, escalating severity monotonically.
// Resolved and false-positive alerts never absorb new detections.
func (e *Engine) dedup(ctx context.Context, cand *Alert, now time.Time) (*Alert, error) {
	existing, err := e.Store.OpenAlertByKey(ctx, cand.DedupKey())
	if err != nil {
		return nil, fmt.Errorf("in alerts.Engine.dedup: %w", err)
	}
	if existing == nil || !existing.Open() || now.Sub(existing.DetectedAt) > e.Thresholds.DedupWindow {
		return cand, nil
	}
	existing.Severity = MaxSeverity(existing.Severity, cand.Severity)
	existing.Urgency = e.urgency(existing.Severity, cand.AffectedAreaPct)
	existing.AffectedAreaPct = cand.AffectedAreaPct
	existing.Satellite = cand.Satellite
	existing.Weather = cand.Weather
	existing.ActionItems = cand.ActionItems
	if cand.EstimatedLossUSD != nil {
		existing.EstimatedLossUSD = cand.EstimatedLossUSD
	}
	if cand.Window != nil {
		existing.Window = cand.Window
	}
	if cand.Confidence > existing.Confidence {
		existing.Confidence = cand.Confidence
	}
	return existing, nil
}

// Acknowledge transitions an alert to acknowledged and persists it.
func (e *Engine) Acknowledge(ctx context.Context, id, user string) (*Alert, error) {
	a, err := e.Store.GetAlert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("in alerts.Engine.Acknowledge: %w", err)
	}
	if err := a.Acknowledge(user, e.now()); err != nil {
		return nil, err
	}
	if err := e.Store.UpsertAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("in alerts.Engine.Acknowledge: persisting: %w", err)
	}
	return a, nil
}

// Resolve transitions an alert to resolved and persists it.
func (e *Engine) Resolve(ctx context.Context, id, user, note string) (*Alert, error) {
	a, err := e.Store.GetAlert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("in alerts.Engine.Resolve: %w", err)
	}
	if err := a.Resolve(user, note, e.now()); err != nil {
		return nil, err
	}
	if err := e.Store.UpsertAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("in alerts.Engine.Resolve: persisting: %w", err)
	}
	return a, nil
}

// MarkFalsePositive terminally dismisses an alert and persists it.
func (e *Engine) MarkFalsePositive(ctx context.Context, id, user string) (*Alert, error) {
	a, err := e.Store.GetAlert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("in alerts.Engine.MarkFalsePositive: %w", err)
	}
	if err := a.MarkFalsePositive(user, e.now()); err != nil {
		return nil, err
	}
	if err := e.Store.UpsertAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("in alerts.Engine.MarkFalsePositive: persisting: %w", err)
	}
	return a, nil
}

// cropAlerts applies the crop-stress threshold rules to one analysis.
func (e *Engine) cropAlerts(a *cropmap.AnalysisResult, wctx *WeatherContext, now time.Time) []*Alert {
	t := e.Thresholds
	affected := a.Zones.AffectedPct()
	sat := &SatelliteContext{NDVI: a.Indices.NDVI.Mean}
	if a.Previous != nil {
		sat.PriorNDVI = a.Indices.NDVI.Mean - a.Previous.DeltaMeanNDVI
		sat.Delta = a.Previous.DeltaMeanNDVI
		sat.Trend = a.Previous.Trend
	}
	confidence := 1.0
	if wctx == nil || wctx.RuleBased {
		confidence = ruleBasedConfidence
	}

	var out []*Alert

	// Drought: score over threshold, or canopy NDVI below the drought
	// floor while the score confirms water stress.
	if a.Stress.Drought > t.DroughtTrigger ||
		(a.Indices.NDVI.Mean < t.DroughtNDVIFloor && a.Stress.Drought > 0.5) {
		sev := SeverityCritical
		if a.Stress.Drought > t.DroughtEmergency {
			sev = SeverityEmergency
		}
		al := e.newAlert(a, KindDroughtCritical, sev, affected, sat, now)
		al.Confidence = confidence
		al.EstimatedLossUSD = e.droughtLoss(a, affected, now)
		al.ActionItems = droughtActions(sev)
		out = append(out, al)
	}

	if a.Stress.Disease > t.DiseaseTrigger {
		sev := SeverityHigh
		if a.Stress.Disease > t.DiseaseCritical {
			sev = SeverityCritical
		}
		al := e.newAlert(a, KindDiseaseOutbreak, sev, affected, sat, now)
		al.Confidence = confidence
		al.EstimatedLossUSD = e.diseaseLoss(a, affected)
		al.ActionItems = diseaseActions()
		out = append(out, al)
	}

	if a.Stress.Nutrient > t.NutrientTrigger {
		sev := SeverityHigh
		if a.Stress.Nutrient > t.NutrientCritical {
			sev = SeverityCritical
		}
		al := e.newAlert(a, KindNutrientSevere, sev, affected, sat, now)
		al.Confidence = confidence
		al.EstimatedLossUSD = e.nutrientLoss(a, affected)
		al.ActionItems = nutrientActions()
		out = append(out, al)
	}

	if a.Stress.Pest > t.PestTrigger {
		sev := SeverityHigh
		al := e.newAlert(a, KindPestInfestation, sev, affected, sat, now)
		al.Confidence = confidence
		al.ActionItems = pestActions()
		out = append(out, al)
	}

	declining := a.Previous != nil && a.Previous.Trend == cropmap.TrendDeclining &&
		a.Previous.Significance == cropmap.SignificanceHigh
	if a.Health < t.DeclineHealth || declining {
		sev := SeverityHigh
		if a.Health < t.DeclineCritical {
			sev = SeverityCritical
		}
		al := e.newAlert(a, KindGeneralDecline, sev, affected, sat, now)
		al.Confidence = confidence
		al.EstimatedLossUSD = e.declineLoss(a, affected)
		al.ActionItems = declineActions()
		out = append(out, al)
	}
	return out
}

func (e *Engine) newAlert(a *cropmap.AnalysisResult, kind Kind, sev Severity, affected float64, sat *SatelliteContext, now time.Time) *Alert {
	return &Alert{
		ID:              uuid.NewString(),
		FarmID:          a.FarmID,
		FieldID:         a.FieldID,
		Kind:            kind,
		Severity:        sev,
		Urgency:         e.urgency(sev, affected),
		AffectedAreaPct: affected,
		Satellite:       sat,
		Status:          StatusActive,
		DetectedAt:      now,
	}
}

// urgency derives the 1..5 urgency from severity, bumping one level for
// widespread damage. Critical and emergency alerts already dispatch, so
// the bump applies below critical only; this keeps urgency monotone in
// severity.
func (e *Engine) urgency(sev Severity, affectedPct float64) int {
	u := sev.Rank()
	if affectedPct > e.Thresholds.AffectedAreaBump && u < SeverityCritical.Rank() {
		u++
	}
	return u
}

// ruleBasedConfidence tags crop alerts evaluated without live weather.
const ruleBasedConfidence = 0.7

// Per-acre loss model constants [USD/acre].
const (
	droughtLossBase    = 300
	diseaseLossBase    = 275
	diseaseTreatment   = 100
	nutrientLossBase   = 175
	nutrientFertilizer = 80
	declineLossMax     = 400
)

// droughtLoss estimates drought damage. The spread factor is seeded from
// (field, kind, day) so that estimates are reproducible within a day.
func (e *Engine) droughtLoss(a *cropmap.AnalysisResult, affectedPct float64, now time.Time) *float64 {
	seed := hash.Seed64(a.FieldID, string(KindDroughtCritical), cropmap.DayKey(now))
	factor := 1 + rand.New(rand.NewSource(seed)).Float64()*0.5
	loss := droughtLossBase * a.Field.AreaAcres() * (affectedPct / 100) * factor
	return &loss
}

func (e *Engine) diseaseLoss(a *cropmap.AnalysisResult, affectedPct float64) *float64 {
	loss := (diseaseLossBase + diseaseTreatment) * a.Field.AreaAcres() * (affectedPct / 100)
	return &loss
}

func (e *Engine) nutrientLoss(a *cropmap.AnalysisResult, affectedPct float64) *float64 {
	loss := (nutrientLossBase + nutrientFertilizer) * a.Field.AreaAcres() * (affectedPct / 100)
	return &loss
}

func (e *Engine) declineLoss(a *cropmap.AnalysisResult, affectedPct float64) *float64 {
	loss := declineLossMax * float64(100-a.Health) / 100 * a.Field.AreaAcres() * (affectedPct / 100)
	return &loss
}

func droughtActions(sev Severity) []ActionItem {
	items := []ActionItem{
		{Task: "Begin emergency irrigation in stressed zones", Priority: PriorityImmediate,
			EstimatedCostUSD: 450, Equipment: []string{"irrigation system"}},
		{Task: "Verify soil moisture at 15 and 30 cm depth", Priority: PriorityDay,
			EstimatedCostUSD: 50, Equipment: []string{"soil moisture probe"}},
	}
	if sev == SeverityEmergency {
		items = append(items, ActionItem{
			Task: "Contact crop insurance adjuster", Priority: PriorityDay, EstimatedCostUSD: 0})
	}
	return items
}

func diseaseActions() []ActionItem {
	return []ActionItem{
		{Task: "Scout affected zones for visible lesions", Priority: PriorityImmediate,
			EstimatedCostUSD: 75},
		{Task: "Apply targeted fungicide to affected zones", Priority: PriorityDay,
			EstimatedCostUSD: 320, Equipment: []string{"sprayer"}},
	}
}

func nutrientActions() []ActionItem {
	return []ActionItem{
		{Task: "Pull tissue samples from stressed zones", Priority: PriorityDay,
			EstimatedCostUSD: 90, Equipment: []string{"sampling kit"}},
		{Task: "Side-dress nitrogen in deficient zones", Priority: PriorityWeek,
			EstimatedCostUSD: 280, Equipment: []string{"spreader"}},
	}
}

func pestActions() []ActionItem {
	return []ActionItem{
		{Task: "Set pheromone traps along field edges", Priority: PriorityDay,
			EstimatedCostUSD: 120, Equipment: []string{"traps"}},
	}
}

func declineActions() []ActionItem {
	return []ActionItem{
		{Task: "Walk the field to identify the decline driver", Priority: PriorityImmediate,
			EstimatedCostUSD: 0},
		{Task: "Schedule a follow-up acquisition within a week", Priority: PriorityWeek,
			EstimatedCostUSD: 0},
	}
}
