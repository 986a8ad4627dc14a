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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agrimodel/cropmap/weather"
)

// WeatherContext is the weather evidence for one farm evaluation, usually
// sampled at the farm centroid.
type WeatherContext struct {
	Current  *weather.Current
	Forecast []weather.DailyForecast
	History  *weather.Aggregate

	// RuleBased marks a context degraded by provider unavailability;
	// alerts evaluated under it carry reduced confidence.
	RuleBased bool
}

// Confidence levels for weather alerts, by evidence agreement.
const (
	confidenceBoth     = 0.95 // current observation and forecast agree
	confidenceCurrent  = 0.85
	confidenceForecast = 0.8
)

// weatherAlerts applies the weather threshold rules for one farm.
func (e *Engine) weatherAlerts(farmID string, w *WeatherContext, now time.Time) []*Alert {
	var out []*Alert
	for _, f := range []func(string, *WeatherContext, time.Time) *Alert{
		e.frostAlert, e.heatAlert, e.windAlert, e.stormAlert, e.hailAlert,
		e.floodAlert, e.dryAlert, e.fireAlert,
	} {
		if a := f(farmID, w, now); a != nil {
			if w.RuleBased && a.Confidence > ruleBasedConfidence {
				a.Confidence = ruleBasedConfidence
			}
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) newWeatherAlert(farmID string, kind Kind, sev Severity, conf float64, snap *WeatherSnapshot, window *ActiveWindow, now time.Time) *Alert {
	return &Alert{
		ID:         uuid.NewString(),
		FarmID:     farmID,
		Kind:       kind,
		Severity:   sev,
		Urgency:    e.urgency(sev, 0),
		Weather:    snap,
		Confidence: conf,
		Window:     window,
		Status:     StatusActive,
		DetectedAt: now,
	}
}

// frostAlert fires when current conditions favor frost formation (cold,
// humid, still air) or the forecast minimum drops to the frost threshold.
// Severity scales with the temperature gap below the threshold.
func (e *Engine) frostAlert(farmID string, w *WeatherContext, now time.Time) *Alert {
	t := e.Thresholds
	coldest := t.FrostTempC + 1
	currentHit := false
	if c := w.Current; c != nil &&
		c.TempC <= t.FrostTempC && c.HumidityPct >= t.FrostHumidityPct && c.WindSpeedMS <= t.FrostWindMS {
		currentHit = true
		coldest = c.TempC
	}
	forecastHit := false
	window := &ActiveWindow{Start: now, End: now.Add(12 * time.Hour)}
	for _, d := range w.Forecast {
		if d.MinTempC <= t.FrostTempC {
			forecastHit = true
			if d.MinTempC < coldest {
				coldest = d.MinTempC
			}
			if d.Date.After(window.End) {
				window.End = d.Date
			}
		}
	}
	if !currentHit && !forecastHit {
		return nil
	}

	gap := t.FrostTempC - coldest
	sev := SeverityModerate
	switch {
	case gap >= 6:
		sev = SeverityEmergency
	case gap >= 4:
		sev = SeverityCritical
	case gap >= 2:
		sev = SeverityHigh
	}
	conf := confidenceForecast
	switch {
	case currentHit && forecastHit:
		conf = confidenceBoth
	case currentHit:
		conf = confidenceCurrent
	}

	a := e.newWeatherAlert(farmID, KindFrost, sev, conf, snapshot(w), window, now)
	a.ActionItems = []ActionItem{
		{Task: "Cover sensitive plants", Priority: PriorityImmediate, EstimatedCostUSD: 150,
			Equipment: []string{"row covers"}},
		{Task: "Run irrigation for protective ice layer", Priority: PriorityImmediate,
			EstimatedCostUSD: 80, Equipment: []string{"irrigation system"}},
	}
	return a
}

func (e *Engine) heatAlert(farmID string, w *WeatherContext, now time.Time) *Alert {
	t := e.Thresholds
	hottest := t.HeatTempC - 1
	currentHit := false
	if c := w.Current; c != nil && c.TempC >= t.HeatTempC {
		currentHit = true
		hottest = c.TempC
	}
	forecastHit := false
	window := &ActiveWindow{Start: now, End: now.Add(24 * time.Hour)}
	for _, d := range w.Forecast {
		if d.MaxTempC >= t.HeatTempC {
			forecastHit = true
			if d.MaxTempC > hottest {
				hottest = d.MaxTempC
			}
			if d.Date.After(window.End) {
				window.End = d.Date
			}
		}
	}
	if !currentHit && !forecastHit {
		return nil
	}
	gap := hottest - t.HeatTempC
	sev := SeverityModerate
	switch {
	case gap >= 8:
		sev = SeverityEmergency
	case gap >= 5:
		sev = SeverityCritical
	case gap >= 2:
		sev = SeverityHigh
	}
	conf := confidenceForecast
	switch {
	case currentHit && forecastHit:
		conf = confidenceBoth
	case currentHit:
		conf = confidenceCurrent
	}
	a := e.newWeatherAlert(farmID, KindHeat, sev, conf, snapshot(w), window, now)
	a.ActionItems = []ActionItem{
		{Task: "Irrigate in early morning to reduce canopy temperature", Priority: PriorityImmediate,
			EstimatedCostUSD: 120, Equipment: []string{"irrigation system"}},
	}
	return a
}

func (e *Engine) windAlert(farmID string, w *WeatherContext, now time.Time) *Alert {
	c := w.Current
	if c == nil || c.WindSpeedMS < e.Thresholds.WindSpeedMS {
		return nil
	}
	ratio := c.WindSpeedMS / e.Thresholds.WindSpeedMS
	sev := SeverityModerate
	switch {
	case ratio >= 2:
		sev = SeverityEmergency
	case ratio >= 1.5:
		sev = SeverityCritical
	case ratio >= 1.2:
		sev = SeverityHigh
	}
	a := e.newWeatherAlert(farmID, KindWind, sev, confidenceCurrent, snapshot(w),
		&ActiveWindow{Start: now, End: now.Add(12 * time.Hour)}, now)
	a.ActionItems = []ActionItem{
		{Task: "Postpone spraying until wind subsides", Priority: PriorityImmediate, EstimatedCostUSD: 0},
		{Task: "Secure loose equipment and covers", Priority: PriorityImmediate, EstimatedCostUSD: 0},
	}
	return a
}

func (e *Engine) stormAlert(farmID string, w *WeatherContext, now time.Time) *Alert {
	c := w.Current
	if c == nil {
		return nil
	}
	stormWind := e.Thresholds.WindSpeedMS * 4 / 3
	var wetSoon bool
	for _, d := range w.Forecast {
		if d.PrecipProbPct >= 70 {
			wetSoon = true
			break
		}
	}
	if c.WindSpeedMS < stormWind || !wetSoon {
		return nil
	}
	a := e.newWeatherAlert(farmID, KindStorm, SeverityHigh, confidenceBoth, snapshot(w),
		&ActiveWindow{Start: now, End: now.Add(24 * time.Hour)}, now)
	a.ActionItems = []ActionItem{
		{Task: "Delay harvest operations until the front passes", Priority: PriorityImmediate, EstimatedCostUSD: 0},
	}
	return a
}

func (e *Engine) hailAlert(farmID string, w *WeatherContext, now time.Time) *Alert {
	c := w.Current
	if c == nil || !strings.Contains(strings.ToLower(c.Conditions), "hail") {
		return nil
	}
	a := e.newWeatherAlert(farmID, KindHail, SeverityCritical, confidenceCurrent, snapshot(w),
		&ActiveWindow{Start: now, End: now.Add(6 * time.Hour)}, now)
	a.ActionItems = []ActionItem{
		{Task: "Document crop damage for insurance", Priority: PriorityDay, EstimatedCostUSD: 0},
	}
	return a
}

func (e *Engine) floodAlert(farmID string, w *WeatherContext, now time.Time) *Alert {
	t := e.Thresholds
	var worst float64
	window := &ActiveWindow{Start: now, End: now.Add(24 * time.Hour)}
	for _, d := range w.Forecast {
		if d.PrecipProbPct > t.FloodProbPct {
			if d.PrecipProbPct > worst {
				worst = d.PrecipProbPct
			}
			if d.Date.After(window.End) {
				window.End = d.Date
			}
		}
	}
	if worst == 0 {
		return nil
	}
	sev := SeverityHigh
	if worst >= 95 {
		sev = SeverityCritical
	}
	a := e.newWeatherAlert(farmID, KindFlood, sev, confidenceForecast, snapshot(w), window, now)
	a.ActionItems = []ActionItem{
		{Task: "Clear drainage channels and check culverts", Priority: PriorityDay,
			EstimatedCostUSD: 200, Equipment: []string{"excavator"}},
	}
	return a
}

func (e *Engine) dryAlert(farmID string, w *WeatherContext, now time.Time) *Alert {
	t := e.Thresholds
	h := w.History
	if h == nil || h.DryDays < t.DryDaysTrigger || !h.IrrigationNeed {
		return nil
	}
	sev := SeverityModerate
	switch ratio := float64(h.DryDays) / float64(t.DryDaysSevere); {
	case ratio >= 1:
		sev = SeverityCritical
	case ratio >= 0.75:
		sev = SeverityHigh
	}
	a := e.newWeatherAlert(farmID, KindWeatherDrought, sev, confidenceCurrent, snapshot(w),
		&ActiveWindow{Start: now, End: now.Add(7 * 24 * time.Hour)}, now)
	a.ActionItems = []ActionItem{
		{Task: "Schedule supplemental irrigation", Priority: PriorityDay,
			EstimatedCostUSD: 300, Equipment: []string{"irrigation system"}},
	}
	return a
}

// fireAlert combines heat, dryness, humidity, and wind into a fire-danger
// index.
func (e *Engine) fireAlert(farmID string, w *WeatherContext, now time.Time) *Alert {
	c := w.Current
	if c == nil {
		return nil
	}
	dryDays := 0
	if w.History != nil {
		dryDays = w.History.DryDays
	}
	index := (c.TempC-15)*2 + (100 - c.HumidityPct) + c.WindSpeedMS*3 + float64(dryDays)*2
	if index < e.Thresholds.FireIndexTrigger {
		return nil
	}
	sev := SeverityHigh
	switch {
	case index >= 160:
		sev = SeverityEmergency
	case index >= 130:
		sev = SeverityCritical
	}
	a := e.newWeatherAlert(farmID, KindFireRisk, sev, confidenceCurrent, snapshot(w),
		&ActiveWindow{Start: now, End: now.Add(24 * time.Hour)}, now)
	a.ActionItems = []ActionItem{
		{Task: "Suspend field work producing sparks", Priority: PriorityImmediate, EstimatedCostUSD: 0},
		{Task: "Mow firebreaks around field margins", Priority: PriorityDay,
			EstimatedCostUSD: 180, Equipment: []string{"mower"}},
	}
	return a
}

func snapshot(w *WeatherContext) *WeatherSnapshot {
	s := &WeatherSnapshot{}
	if w.Current != nil {
		s.TempC = w.Current.TempC
		s.HumidityPct = w.Current.HumidityPct
		s.WindSpeedMS = w.Current.WindSpeedMS
	}
	if w.History != nil {
		s.DryDays = w.History.DryDays
	}
	return s
}
