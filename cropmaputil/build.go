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

package cropmaputil

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/alerts"
	"github.com/agrimodel/cropmap/analysis"
	"github.com/agrimodel/cropmap/imagery"
	"github.com/agrimodel/cropmap/plan"
	"github.com/agrimodel/cropmap/postgres"
	"github.com/agrimodel/cropmap/weather"
)

// BuildOrchestrator assembles the full pipeline from the configuration:
// store, provider decorators, alert engine, and planner. The returned
// cleanup function releases the store.
func BuildOrchestrator(ctx context.Context, cfg *viper.Viper) (*analysis.Orchestrator, func(), error) {
	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	retry, err := retryConfig(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	imagerySrc, err := NewFileImagery(cfg.GetString("data.imagery_file"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	img := &imagery.CachedProvider{
		Provider: &imagery.RetryProvider{Provider: imagerySrc, Config: retry},
		Workers:  cfg.GetInt("analysis.concurrency"),
	}

	var wprov weather.Provider
	if f := cfg.GetString("data.weather_file"); f != "" {
		src, err := NewFileWeather(f)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		wprov = &weather.CachedProvider{
			Provider:    src,
			CurrentTTL:  time.Duration(cfg.GetInt("cache.ttl.weather_current_s")) * time.Second,
			ForecastTTL: time.Duration(cfg.GetInt("cache.ttl.weather_forecast_s")) * time.Second,
		}
	}

	engine := alerts.NewEngine(store)
	engine.Thresholds.DedupWindow = time.Duration(cfg.GetInt("alerts.dedup_window_h")) * time.Hour
	engine.Thresholds.FrostTempC = cfg.GetFloat64("weather.thresholds.frost_temp_c")
	engine.Thresholds.FrostHumidityPct = cfg.GetFloat64("weather.thresholds.frost_humidity_pct")
	engine.Thresholds.FrostWindMS = cfg.GetFloat64("weather.thresholds.frost_wind_ms")
	engine.Thresholds.HeatTempC = cfg.GetFloat64("weather.thresholds.heat_temp_c")
	engine.Thresholds.WindSpeedMS = cfg.GetFloat64("weather.thresholds.wind_speed_ms")
	engine.Thresholds.FloodProbPct = cfg.GetFloat64("weather.thresholds.flood_prob_pct")
	engine.Thresholds.DryDaysTrigger = cfg.GetInt("weather.thresholds.dry_days_trigger")
	engine.Thresholds.DryDaysSevere = cfg.GetInt("weather.thresholds.dry_days_severe")
	engine.Thresholds.FireIndexTrigger = cfg.GetFloat64("weather.thresholds.fire_index_trigger")
	engine.Dispatcher = alerts.NewDispatcher(&LogSink{Log: Log}, Log)
	engine.DispatchAll = !cfg.GetBool("alerts.dispatch.critical_and_above_only")

	analyzer := &analysis.FieldAnalyzer{
		Imagery: img,
		Store:   store,
		Calc:    cropmap.IndexCalculator{MaxCloudPct: cfg.GetFloat64("imagery.max_cloud_pct")},
	}

	mults, err := zoneMultipliers(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	o := &analysis.Orchestrator{
		Analyzer:     analyzer,
		Weather:      wprov,
		Alerts:       engine,
		Planner:      &plan.Planner{Multipliers: mults},
		Store:        store,
		Concurrency:  cfg.GetInt("analysis.concurrency"),
		FieldTimeout: time.Duration(cfg.GetInt("analysis.per_field_timeout_ms")) * time.Millisecond,
		Log:          Log,
	}
	return o, cleanup, nil
}

// buildStore selects the postgres store when a URL is configured and the
// in-memory store otherwise, then seeds the configured field boundaries.
func buildStore(ctx context.Context, cfg *viper.Viper) (analysis.Store, func(), error) {
	var store analysis.Store
	cleanup := func() {}
	if url := cfg.GetString("postgres.url"); url != "" {
		pg, err := postgres.Connect(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		store = pg
		cleanup = pg.Close
	} else {
		store = analysis.NewMemoryStore()
	}

	if f := cfg.GetString("data.fields_file"); f != "" {
		fields, err := LoadFields(f)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		for i := range fields {
			if err := store.PutField(ctx, &fields[i]); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("cropmap: loading field %q: %w", fields[i].ID, err)
			}
		}
	}
	return store, cleanup, nil
}

// zoneMultipliers reads the per-kind, per-band rate multipliers. Keys not
// present in the configuration keep the agronomic defaults.
func zoneMultipliers(cfg *viper.Viper) (plan.ZoneMultipliers, error) {
	zm := plan.ZoneMultipliers{}
	for kind, bands := range plan.DefaultZoneMultipliers {
		zm[kind] = map[cropmap.ZoneBand]float64{}
		for band := range bands {
			key := fmt.Sprintf("planner.zone_multipliers.%s.%s", kind, band)
			v, err := cast.ToFloat64E(cfg.Get(key))
			if err != nil {
				return nil, fmt.Errorf("cropmap: %s: %v", key, err)
			}
			zm[kind][band] = v
		}
	}
	return zm, nil
}

func retryConfig(cfg *viper.Viper) (imagery.RetryConfig, error) {
	attempts, err := cast.ToIntE(cfg.Get("imagery.retry.attempts"))
	if err != nil {
		return imagery.RetryConfig{}, fmt.Errorf("cropmap: imagery.retry.attempts: %v", err)
	}
	baseMS, err := cast.ToIntE(cfg.Get("imagery.retry.base_ms"))
	if err != nil {
		return imagery.RetryConfig{}, fmt.Errorf("cropmap: imagery.retry.base_ms: %v", err)
	}
	factor, err := cast.ToFloat64E(cfg.Get("imagery.retry.factor"))
	if err != nil {
		return imagery.RetryConfig{}, fmt.Errorf("cropmap: imagery.retry.factor: %v", err)
	}
	jitter, err := cast.ToFloat64E(cfg.Get("imagery.retry.jitter_pct"))
	if err != nil {
		return imagery.RetryConfig{}, fmt.Errorf("cropmap: imagery.retry.jitter_pct: %v", err)
	}
	return imagery.RetryConfig{
		Attempts:  attempts,
		Base:      time.Duration(baseMS) * time.Millisecond,
		Factor:    factor,
		JitterPct: jitter,
	}, nil
}
