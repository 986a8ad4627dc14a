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

package plan

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/agrimodel/cropmap"
)

// Gating thresholds: a kind is only recommended when the corresponding
// stress justifies the cost of variable-rate application.
const (
	fertilizerNutrientGate = 0.3
	irrigationDroughtGate  = 0.4
	pesticideDiseaseGate   = 0.5
	limeNutrientGate       = 0.6
)

// ZoneMultipliers maps each application kind to its per-band rate
// multipliers. Part of the configuration surface; DefaultZoneMultipliers
// gives the agronomic defaults.
type ZoneMultipliers map[ApplicationKind]map[cropmap.ZoneBand]float64

// DefaultZoneMultipliers concentrate inputs on stressed ground, except
// seeding, which backs off where establishment is poor.
var DefaultZoneMultipliers = ZoneMultipliers{
	KindFertilizer: {cropmap.BandStressed: 1.4, cropmap.BandModerate: 1.1, cropmap.BandHealthy: 0.9},
	KindIrrigation: {cropmap.BandStressed: 1.3, cropmap.BandModerate: 1.1, cropmap.BandHealthy: 0.85},
	KindPesticide:  {cropmap.BandStressed: 1.4, cropmap.BandModerate: 1.1, cropmap.BandHealthy: 0.9},
	KindLime:       {cropmap.BandStressed: 1.3, cropmap.BandModerate: 1.1, cropmap.BandHealthy: 0.9},
	KindSeed:       {cropmap.BandStressed: 0.85, cropmap.BandModerate: 1.0, cropmap.BandHealthy: 1.1},
}

// cropParam holds per-crop base rates and economics.
type cropParam struct {
	product  string
	baseRate float64 // per acre
	unit     string
	unitCost float64 // USD per unit of quantity
}

var cropParams = map[string]map[ApplicationKind]cropParam{
	"corn": {
		KindFertilizer: {"urea 46-0-0", 160, "lb/acre", 0.55},
		KindSeed:       {"hybrid corn seed", 32, "kseeds/acre", 3.4},
		KindPesticide:  {"broad-spectrum fungicide", 1.2, "qt/acre", 28},
		KindIrrigation: {"irrigation water", 1.0, "acre-in/acre", 18},
		KindLime:       {"ag lime", 1500, "lb/acre", 0.025},
	},
	"soybean": {
		KindFertilizer: {"MAP 11-52-0", 110, "lb/acre", 0.6},
		KindSeed:       {"soybean seed", 140, "kseeds/acre", 0.45},
		KindPesticide:  {"broad-spectrum fungicide", 1.0, "qt/acre", 28},
		KindIrrigation: {"irrigation water", 0.8, "acre-in/acre", 18},
		KindLime:       {"ag lime", 1200, "lb/acre", 0.025},
	},
	"wheat": {
		KindFertilizer: {"urea 46-0-0", 120, "lb/acre", 0.55},
		KindSeed:       {"winter wheat seed", 1600, "kseeds/acre", 0.02},
		KindPesticide:  {"broad-spectrum fungicide", 0.9, "qt/acre", 26},
		KindIrrigation: {"irrigation water", 0.7, "acre-in/acre", 18},
		KindLime:       {"ag lime", 1200, "lb/acre", 0.025},
	},
}

// genericCrop covers crop types without a dedicated parameter set.
var genericCrop = map[ApplicationKind]cropParam{
	KindFertilizer: {"balanced NPK blend", 130, "lb/acre", 0.5},
	KindSeed:       {"certified seed", 100, "kseeds/acre", 0.8},
	KindPesticide:  {"broad-spectrum fungicide", 1.0, "qt/acre", 27},
	KindIrrigation: {"irrigation water", 0.9, "acre-in/acre", 18},
	KindLime:       {"ag lime", 1300, "lb/acre", 0.025},
}

// Application timing offsets from the analysis date, per kind.
var timingOffsets = map[ApplicationKind][2]int{ // days [start, end]
	KindIrrigation: {1, 7},
	KindPesticide:  {2, 10},
	KindFertilizer: {3, 14},
	KindLime:       {7, 30},
	KindSeed:       {14, 35},
}

// Planner synthesizes precision plans. The zero value uses default
// multipliers.
type Planner struct {
	Multipliers ZoneMultipliers
}

func (p *Planner) multipliers() ZoneMultipliers {
	if p.Multipliers == nil {
		return DefaultZoneMultipliers
	}
	return p.Multipliers
}

// Plan produces the variable-rate plan for one analyzed field. Identical
// inputs always yield the identical plan.
func (p *Planner) Plan(a *cropmap.AnalysisResult, cropType string, season Season) (*PrecisionPlan, error) {
	if a == nil {
		return nil, fmt.Errorf("in plan.Planner.Plan: nil analysis: %w", cropmap.ErrInvalidInput)
	}
	params, ok := cropParams[cropType]
	if !ok {
		params = genericCrop
	}

	plan := &PrecisionPlan{
		FarmID:      a.FarmID,
		FieldID:     a.FieldID,
		Season:      season,
		CropType:    cropType,
		TotalAreaHa: a.Field.AreaHa,
		PlannedFor:  a.AnalysisDate,
	}

	for _, kind := range p.gatedKinds(a, season) {
		rec := p.recommend(a, kind, params[kind])
		plan.Recommendations = append(plan.Recommendations, rec)
	}
	plan.Summary = p.summarize(plan.Recommendations, a.Field.AreaAcres())
	plan.Schedule = buildSchedule(plan.Recommendations, a.AnalysisDate)
	return plan, nil
}

// gatedKinds decides which application kinds the analysis justifies, in a
// stable order.
func (p *Planner) gatedKinds(a *cropmap.AnalysisResult, season Season) []ApplicationKind {
	var kinds []ApplicationKind
	if a.Stress.Nutrient >= fertilizerNutrientGate {
		kinds = append(kinds, KindFertilizer)
	}
	if a.Stress.Drought >= irrigationDroughtGate {
		kinds = append(kinds, KindIrrigation)
	}
	if season == SeasonPrePlant {
		kinds = append(kinds, KindSeed)
	}
	if a.Stress.Disease >= pesticideDiseaseGate {
		kinds = append(kinds, KindPesticide)
	}
	if a.Stress.Nutrient >= limeNutrientGate {
		kinds = append(kinds, KindLime)
	}
	return kinds
}

func (p *Planner) recommend(a *cropmap.AnalysisResult, kind ApplicationKind, param cropParam) VariableRate {
	mults := p.multipliers()[kind]
	rec := VariableRate{
		// Deterministic id: plans for the same inputs must be identical.
		ID:       fmt.Sprintf("%s-%s-%s", a.FieldID, kind, cropmap.DayKey(a.AnalysisDate)),
		Kind:     kind,
		Product:  param.product,
		BaseRate: param.baseRate,
		RateUnit: param.unit,
	}

	minMult, maxMult := 1.0, 1.0
	for _, band := range []cropmap.ZoneBand{cropmap.BandStressed, cropmap.BandModerate, cropmap.BandHealthy} {
		frac := a.Zones.Fraction(band)
		if frac.AreaHa <= 0 {
			continue
		}
		mult := mults[band]
		if mult < minMult {
			minMult = mult
		}
		if mult > maxMult {
			maxMult = mult
		}
		rate := param.baseRate * mult
		zone := ApplicationZone{
			ZoneID:    fmt.Sprintf("%s-%s", a.FieldID, band),
			NDVIRange: zoneNDVIRanges[band],
			AreaHa:    frac.AreaHa,
			Rate:      rate,
			Rationale: zoneRationale(kind, band),
		}
		rec.Zones = append(rec.Zones, zone)
		rec.TotalQuantity += frac.AreaHa * acresPerHa * rate
	}
	rec.VariabilityFactor = maxMult / minMult
	rec.EstimatedCostUSD = round2(rec.TotalQuantity * param.unitCost)

	off := timingOffsets[kind]
	rec.Timing = Timing{
		WindowStart:        a.AnalysisDate.AddDate(0, 0, off[0]),
		WindowEnd:          a.AnalysisDate.AddDate(0, 0, off[1]),
		WeatherConstraints: weatherConstraints(kind),
		SeasonalFactors:    seasonalFactors(kind),
	}
	rec.Equipment = equipmentFor(kind)
	rec.Outcome = p.outcome(a, kind, rec.EstimatedCostUSD)
	return rec
}

const acresPerHa = 2.4710538

// outcome projects yield and savings. Yield response scales with the
// stress the application addresses.
func (p *Planner) outcome(a *cropmap.AnalysisResult, kind ApplicationKind, cost float64) Outcome {
	var stress float64
	var note string
	switch kind {
	case KindFertilizer:
		stress = a.Stress.Nutrient
		note = "variable rate cuts total nitrogen versus uniform application"
	case KindIrrigation:
		stress = a.Stress.Drought
		note = "zone targeting reduces total water draw"
	case KindPesticide:
		stress = a.Stress.Disease
		note = "spot treatment limits chemical load on healthy zones"
	case KindLime:
		stress = a.Stress.Nutrient
		note = "pH correction improves long-term nutrient availability"
	case KindSeed:
		stress = 0.3
		note = "population matched to productivity zones"
	}
	yieldInc := round2(2 + stress*10)
	savings := round2(cost * 0.12) // versus uniform-rate application
	out := Outcome{
		YieldIncreasePct:  yieldInc,
		CostSavingsUSD:    savings,
		EnvironmentalNote: note,
	}
	if cost > 0 {
		out.ROIPct = round2((yieldInc*yieldValuePerAcrePct*a.Field.AreaAcres() - cost) / cost * 100)
	}
	return out
}

// yieldValuePerAcrePct is the projected revenue per acre per percentage
// point of yield increase [USD].
const yieldValuePerAcrePct = 50

func (p *Planner) summarize(recs []VariableRate, acres float64) Summary {
	var s Summary
	for _, r := range recs {
		s.TotalCostUSD += r.EstimatedCostUSD
		s.ExpectedRevenueUSD += r.Outcome.YieldIncreasePct * yieldValuePerAcrePct * acres
	}
	s.TotalCostUSD = round2(s.TotalCostUSD)
	s.ExpectedRevenueUSD = round2(s.ExpectedRevenueUSD)
	s.NetBenefitUSD = round2(s.ExpectedRevenueUSD - s.TotalCostUSD)
	if s.ExpectedRevenueUSD > 0 {
		pm := round2(s.TotalCostUSD / (s.ExpectedRevenueUSD / 12))
		s.PaybackMonths = &pm
	}
	s.SustainabilityScore = sustainability(recs)
	return s
}

// sustainability scores the plan in [85, 95]: variable-rate planning is
// inherently input-reducing, and each recommendation carrying an
// input-reduction note nudges the score up.
func sustainability(recs []VariableRate) int {
	score := 85
	for _, r := range recs {
		if r.Outcome.EnvironmentalNote != "" {
			score += 2
		}
	}
	if score > 95 {
		score = 95
	}
	return score
}

// buildSchedule buckets recommendation tasks into the weeks their timing
// windows open.
func buildSchedule(recs []VariableRate, from time.Time) []ScheduleEntry {
	byWeek := make(map[int][]string)
	for _, r := range recs {
		week := int(r.Timing.WindowStart.Sub(from).Hours()/(24*7)) + 1
		task := fmt.Sprintf("apply %s (%s) across %d zones", r.Product, r.Kind, len(r.Zones))
		byWeek[week] = append(byWeek[week], task)
	}
	weeks := make([]int, 0, len(byWeek))
	for w := range byWeek {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)
	out := make([]ScheduleEntry, 0, len(weeks))
	for _, w := range weeks {
		sort.Strings(byWeek[w])
		out = append(out, ScheduleEntry{Week: w, Tasks: byWeek[w]})
	}
	return out
}

func zoneRationale(kind ApplicationKind, band cropmap.ZoneBand) string {
	switch band {
	case cropmap.BandStressed:
		if kind == KindSeed {
			return "reduced population; poor establishment history"
		}
		return "elevated rate to recover stressed canopy"
	case cropmap.BandModerate:
		return "slightly elevated rate to arrest decline"
	default:
		if kind == KindSeed {
			return "raised population on high-productivity ground"
		}
		return "maintenance rate on healthy canopy"
	}
}

func weatherConstraints(kind ApplicationKind) []string {
	switch kind {
	case KindPesticide:
		return []string{"wind below 5 m/s", "no rain within 24 h"}
	case KindFertilizer:
		return []string{"soil trafficable", "rain within 5 days aids incorporation"}
	case KindIrrigation:
		return []string{"skip when 10 mm rain forecast within 48 h"}
	case KindSeed:
		return []string{"soil temperature above 10 °C"}
	default:
		return nil
	}
}

func seasonalFactors(kind ApplicationKind) []string {
	switch kind {
	case KindFertilizer:
		return []string{"apply before peak uptake growth stage"}
	case KindSeed:
		return []string{"align with regional planting window"}
	case KindLime:
		return []string{"takes effect over following seasons"}
	default:
		return nil
	}
}

func equipmentFor(kind ApplicationKind) Equipment {
	switch kind {
	case KindFertilizer:
		return Equipment{
			Recommended: []string{"variable-rate spreader", "GPS guidance"},
			Settings:    map[string]string{"section_control": "on", "overlap": "minimal"},
			CalibrationSteps: []string{
				"verify spread pattern with tray test",
				"load zone prescription map into rate controller",
			},
		}
	case KindSeed:
		return Equipment{
			Recommended: []string{"variable-rate planter", "GPS guidance"},
			Settings:    map[string]string{"downforce": "auto"},
			CalibrationSteps: []string{
				"check seed meter singulation",
				"load population prescription map",
			},
		}
	case KindPesticide:
		return Equipment{
			Recommended: []string{"boom sprayer with section control"},
			Settings:    map[string]string{"nozzle": "drift-reducing", "pressure_bar": "2.5"},
			CalibrationSteps: []string{
				"flush lines and verify nozzle output",
			},
		}
	case KindIrrigation:
		return Equipment{
			Recommended: []string{"center pivot with zone control"},
			Settings:    map[string]string{"pass_depth": "by prescription"},
			CalibrationSteps: []string{
				"verify emitter flow against prescription",
			},
		}
	default:
		return Equipment{
			Recommended: []string{"variable-rate spreader"},
			Settings:    map[string]string{"rate_source": "prescription map"},
		}
	}
}

// round2 rounds to cents; money is carried as float dollars and rounded at
// aggregation boundaries.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
