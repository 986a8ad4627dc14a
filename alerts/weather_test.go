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
	"testing"
	"time"

	"github.com/agrimodel/cropmap/weather"
)

func alertsByKind(alerts []*Alert) map[Kind]*Alert {
	m := map[Kind]*Alert{}
	for _, a := range alerts {
		m[a.Kind] = a
	}
	return m
}

// Near-freezing humid still air plus a forecast dip below freezing: both
// evidence sources agree, so confidence is at its maximum and severity
// follows the coldest temperature.
func TestFrostCurrentAndForecast(t *testing.T) {
	e := testEngine(newMemStore())
	wctx := &WeatherContext{
		Current: &weather.Current{TempC: 1, HumidityPct: 88, WindSpeedMS: 2, ObservedAt: testClock},
		Forecast: []weather.DailyForecast{
			{Date: testClock.Add(24 * time.Hour), MinTempC: -1, MaxTempC: 9},
		},
	}
	alerts, err := e.Evaluate(context.Background(), "farm1", nil, wctx)
	if err != nil {
		t.Fatal(err)
	}
	frost := alertsByKind(alerts)[KindFrost]
	if frost == nil {
		t.Fatal("no frost alert")
	}
	// Coldest is the forecast minimum of -1, a 3 degree gap below the
	// frost threshold.
	if frost.Severity != SeverityHigh {
		t.Errorf("severity: got %s, want high", frost.Severity)
	}
	if frost.Confidence != confidenceBoth {
		t.Errorf("confidence: got %g, want %g", frost.Confidence, confidenceBoth)
	}
	if frost.FieldID != "" {
		t.Errorf("frost alert is farm-level, got field %q", frost.FieldID)
	}
	tasks := map[string]bool{}
	for _, item := range frost.ActionItems {
		tasks[item.Task] = true
	}
	if !tasks["Cover sensitive plants"] || !tasks["Run irrigation for protective ice layer"] {
		t.Errorf("frost action items incomplete: %v", frost.ActionItems)
	}
}

func TestFrostForecastOnly(t *testing.T) {
	e := testEngine(newMemStore())
	wctx := &WeatherContext{
		Current: &weather.Current{TempC: 12, HumidityPct: 60, WindSpeedMS: 4},
		Forecast: []weather.DailyForecast{
			{Date: testClock.Add(48 * time.Hour), MinTempC: -5, MaxTempC: 7},
		},
	}
	alerts, err := e.Evaluate(context.Background(), "farm1", nil, wctx)
	if err != nil {
		t.Fatal(err)
	}
	frost := alertsByKind(alerts)[KindFrost]
	if frost == nil {
		t.Fatal("no frost alert")
	}
	// 7 degree gap: emergency, but forecast-only confidence.
	if frost.Severity != SeverityEmergency {
		t.Errorf("severity: got %s, want emergency", frost.Severity)
	}
	if frost.Confidence != confidenceForecast {
		t.Errorf("confidence: got %g, want %g", frost.Confidence, confidenceForecast)
	}
	if frost.Window == nil || !frost.Window.End.Equal(testClock.Add(48 * time.Hour)) {
		t.Errorf("window should span the forecast day: %+v", frost.Window)
	}
}

// Windy frost-temperature air does not form frost.
func TestFrostSuppressedByWind(t *testing.T) {
	e := testEngine(newMemStore())
	wctx := &WeatherContext{
		Current: &weather.Current{TempC: 1, HumidityPct: 88, WindSpeedMS: 6},
	}
	alerts, err := e.Evaluate(context.Background(), "farm1", nil, wctx)
	if err != nil {
		t.Fatal(err)
	}
	if a := alertsByKind(alerts)[KindFrost]; a != nil {
		t.Errorf("unexpected frost alert: %+v", a)
	}
}

func TestHeatSeverityBands(t *testing.T) {
	cases := []struct {
		temp float64
		want Severity
	}{
		{36, SeverityModerate},
		{38, SeverityHigh},
		{41, SeverityCritical},
		{44, SeverityEmergency},
	}
	for _, c := range cases {
		e := testEngine(newMemStore())
		wctx := &WeatherContext{Current: &weather.Current{TempC: c.temp, HumidityPct: 30, WindSpeedMS: 3}}
		alerts, err := e.Evaluate(context.Background(), "farm1", nil, wctx)
		if err != nil {
			t.Fatal(err)
		}
		heat := alertsByKind(alerts)[KindHeat]
		if heat == nil {
			t.Fatalf("temp %g: no heat alert", c.temp)
		}
		if heat.Severity != c.want {
			t.Errorf("temp %g: severity %s, want %s", c.temp, heat.Severity, c.want)
		}
		if heat.Confidence != confidenceCurrent {
			t.Errorf("temp %g: confidence %g, want %g", c.temp, heat.Confidence, confidenceCurrent)
		}
	}
}

func TestWindAlert(t *testing.T) {
	e := testEngine(newMemStore())
	wctx := &WeatherContext{Current: &weather.Current{TempC: 22, HumidityPct: 50, WindSpeedMS: 24}}
	alerts, err := e.Evaluate(context.Background(), "farm1", nil, wctx)
	if err != nil {
		t.Fatal(err)
	}
	wind := alertsByKind(alerts)[KindWind]
	if wind == nil {
		t.Fatal("no wind alert")
	}
	// 24 / 15 = 1.6 of the threshold.
	if wind.Severity != SeverityCritical {
		t.Errorf("severity: got %s, want critical", wind.Severity)
	}
}

func TestFloodForecast(t *testing.T) {
	e := testEngine(newMemStore())
	wctx := &WeatherContext{
		Current: &weather.Current{TempC: 18, HumidityPct: 70, WindSpeedMS: 4},
		Forecast: []weather.DailyForecast{
			{Date: testClock.Add(24 * time.Hour), PrecipProbPct: 60},
			{Date: testClock.Add(48 * time.Hour), PrecipProbPct: 97},
		},
	}
	alerts, err := e.Evaluate(context.Background(), "farm1", nil, wctx)
	if err != nil {
		t.Fatal(err)
	}
	flood := alertsByKind(alerts)[KindFlood]
	if flood == nil {
		t.Fatal("no flood alert")
	}
	if flood.Severity != SeverityCritical {
		t.Errorf("severity: got %s, want critical", flood.Severity)
	}
	if flood.Confidence != confidenceForecast {
		t.Errorf("confidence: got %g, want %g", flood.Confidence, confidenceForecast)
	}
}

func TestDryStreakAlert(t *testing.T) {
	e := testEngine(newMemStore())
	wctx := &WeatherContext{
		Current: &weather.Current{TempC: 24, HumidityPct: 40, WindSpeedMS: 3},
		History: &weather.Aggregate{DryDays: 14, IrrigationNeed: true},
	}
	alerts, err := e.Evaluate(context.Background(), "farm1", nil, wctx)
	if err != nil {
		t.Fatal(err)
	}
	dry := alertsByKind(alerts)[KindWeatherDrought]
	if dry == nil {
		t.Fatal("no dry-streak alert")
	}
	if dry.Severity != SeverityCritical {
		t.Errorf("severity: got %s, want critical", dry.Severity)
	}
	if dry.Weather == nil || dry.Weather.DryDays != 14 {
		t.Errorf("snapshot should carry the streak: %+v", dry.Weather)
	}

	// Without the provider's irrigation judgement the streak alone is not
	// actionable.
	e2 := testEngine(newMemStore())
	wctx.History.IrrigationNeed = false
	alerts, err = e2.Evaluate(context.Background(), "farm1", nil, wctx)
	if err != nil {
		t.Fatal(err)
	}
	if a := alertsByKind(alerts)[KindWeatherDrought]; a != nil {
		t.Errorf("unexpected dry-streak alert: %+v", a)
	}
}

func TestFireRiskIndex(t *testing.T) {
	e := testEngine(newMemStore())
	// Index: (38-15)*2 + (100-15) + 8*3 + 10*2 = 46 + 85 + 24 + 20 = 175.
	wctx := &WeatherContext{
		Current: &weather.Current{TempC: 38, HumidityPct: 15, WindSpeedMS: 8},
		History: &weather.Aggregate{DryDays: 10},
	}
	alerts, err := e.Evaluate(context.Background(), "farm1", nil, wctx)
	if err != nil {
		t.Fatal(err)
	}
	fire := alertsByKind(alerts)[KindFireRisk]
	if fire == nil {
		t.Fatal("no fire-risk alert")
	}
	if fire.Severity != SeverityEmergency {
		t.Errorf("severity: got %s, want emergency", fire.Severity)
	}
}

// A degraded weather context caps confidence at the rule-based level.
func TestRuleBasedCapsWeatherConfidence(t *testing.T) {
	e := testEngine(newMemStore())
	wctx := &WeatherContext{
		Current:   &weather.Current{TempC: 1, HumidityPct: 88, WindSpeedMS: 2},
		RuleBased: true,
	}
	alerts, err := e.Evaluate(context.Background(), "farm1", nil, wctx)
	if err != nil {
		t.Fatal(err)
	}
	frost := alertsByKind(alerts)[KindFrost]
	if frost == nil {
		t.Fatal("no frost alert")
	}
	if frost.Confidence != ruleBasedConfidence {
		t.Errorf("confidence: got %g, want %g", frost.Confidence, ruleBasedConfidence)
	}
}

func TestWeatherAlertsFarmLevelDedup(t *testing.T) {
	store := newMemStore()
	e := testEngine(store)
	wctx := &WeatherContext{Current: &weather.Current{TempC: 1, HumidityPct: 88, WindSpeedMS: 2}}

	if _, err := e.Evaluate(context.Background(), "farm1", nil, wctx); err != nil {
		t.Fatal(err)
	}
	e.Now = func() time.Time { return testClock.Add(3 * time.Hour) }
	if _, err := e.Evaluate(context.Background(), "farm1", nil, wctx); err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, a := range store.alerts {
		if a.Kind == KindFrost {
			n++
		}
	}
	if n != 1 {
		t.Errorf("stored frost alerts: got %d, want 1", n)
	}
}
