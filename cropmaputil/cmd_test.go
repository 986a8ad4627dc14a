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
	"fmt"
	"testing"

	"github.com/spf13/viper"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/plan"
)

// Every warning threshold and zone multiplier is reachable through the
// configuration, with the agronomic defaults pre-bound.
func TestConfigSurfaceDefaults(t *testing.T) {
	floats := map[string]float64{
		"weather.thresholds.frost_temp_c":       2,
		"weather.thresholds.frost_humidity_pct": 80,
		"weather.thresholds.frost_wind_ms":      3,
		"weather.thresholds.heat_temp_c":        35,
		"weather.thresholds.wind_speed_ms":      15,
		"weather.thresholds.flood_prob_pct":     80,
		"weather.thresholds.fire_index_trigger": 100,
	}
	for key, want := range floats {
		if got := Cfg.GetFloat64(key); got != want {
			t.Errorf("%s: got %g, want %g", key, got, want)
		}
	}
	if got := Cfg.GetInt("weather.thresholds.dry_days_trigger"); got != 7 {
		t.Errorf("dry_days_trigger: got %d, want 7", got)
	}
	if got := Cfg.GetInt("weather.thresholds.dry_days_severe"); got != 14 {
		t.Errorf("dry_days_severe: got %d, want 14", got)
	}
	for kind, bands := range plan.DefaultZoneMultipliers {
		for band, want := range bands {
			key := fmt.Sprintf("planner.zone_multipliers.%s.%s", kind, band)
			if got := Cfg.GetFloat64(key); got != want {
				t.Errorf("%s: got %g, want %g", key, got, want)
			}
		}
	}
}

// A configured multiplier overrides just its own (kind, band) cell.
func TestZoneMultipliersOverride(t *testing.T) {
	cfg := viper.New()
	for kind, bands := range plan.DefaultZoneMultipliers {
		for band, mult := range bands {
			cfg.SetDefault(fmt.Sprintf("planner.zone_multipliers.%s.%s", kind, band), mult)
		}
	}
	cfg.Set("planner.zone_multipliers.fertilizer.stressed", 1.6)

	zm, err := zoneMultipliers(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := zm[plan.KindFertilizer][cropmap.BandStressed]; got != 1.6 {
		t.Errorf("overridden multiplier: got %g, want 1.6", got)
	}
	if got := zm[plan.KindSeed][cropmap.BandHealthy]; got != 1.1 {
		t.Errorf("untouched multiplier: got %g, want 1.1", got)
	}
}
