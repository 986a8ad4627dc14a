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

// Package cropmaputil holds the configuration and command-line surface of
// the pipeline. Every option is available as a command-line flag, an
// environment variable in the format 'CROPMAP_var', or a configuration
// file key bound through viper.
package cropmaputil

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/plan"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to CropMAP.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "farm",
			usage: `
              farm specifies the farm identifier to analyze.`,
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "field",
			usage: `
              field specifies the field identifier for per-field commands.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{trendsCmd.Flags()},
		},
		{
			name: "date",
			usage: `
              date specifies the analysis date (YYYY-MM-DD). An empty value
              means today.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "crop",
			usage: `
              crop specifies the crop type used for planning (e.g. corn,
              soybean, wheat).`,
			defaultVal: "corn",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "season",
			usage: `
              season specifies the agronomic season the plan targets:
              pre_plant, growing, or harvest.`,
			defaultVal: "growing",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "start",
			usage: `
              start specifies the series start date (YYYY-MM-DD) for trend
              analysis.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{trendsCmd.Flags()},
		},
		{
			name: "end",
			usage: `
              end specifies the series end date (YYYY-MM-DD) for trend
              analysis. An empty value means today.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{trendsCmd.Flags()},
		},
		{
			name: "data.fields_file",
			usage: `
              data.fields_file is a JSON file holding the farm's field
              boundaries.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "data.imagery_file",
			usage: `
              data.imagery_file is a JSON file holding vegetation index
              records served by the file-backed imagery provider.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "data.weather_file",
			usage: `
              data.weather_file is a JSON file holding the weather records
              served by the file-backed weather provider.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "postgres.url",
			usage: `
              postgres.url is the PostgreSQL connection URL. An empty value
              selects the in-memory store.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "imagery.max_cloud_pct",
			usage: `
              imagery.max_cloud_pct is the cloud-cover percentage above
              which analysis confidence is flagged low.`,
			defaultVal: 30.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "imagery.retry.attempts",
			usage: `
              imagery.retry.attempts is the total number of attempts for
              transient imagery and weather failures.`,
			defaultVal: 4,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "imagery.retry.base_ms",
			usage: `
              imagery.retry.base_ms is the first backoff delay in
              milliseconds.`,
			defaultVal: 250,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "imagery.retry.factor",
			usage: `
              imagery.retry.factor is the backoff multiplier between
              attempts.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "imagery.retry.jitter_pct",
			usage: `
              imagery.retry.jitter_pct is the random jitter applied to each
              backoff delay, as a percentage.`,
			defaultVal: 20.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "alerts.dedup_window_h",
			usage: `
              alerts.dedup_window_h is the alert deduplication window in
              hours.`,
			defaultVal: 24,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "alerts.dispatch.critical_and_above_only",
			usage: `
              alerts.dispatch.critical_and_above_only restricts notification
              dispatch to critical and emergency alerts.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "analysis.concurrency",
			usage: `
              analysis.concurrency bounds the number of simultaneous field
              analyses in one farm run.`,
			defaultVal: 8,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "analysis.per_field_timeout_ms",
			usage: `
              analysis.per_field_timeout_ms is the whole-pipeline deadline
              per field in milliseconds.`,
			defaultVal: 60000,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "weather.thresholds.frost_temp_c",
			usage: `
              weather.thresholds.frost_temp_c is the temperature [°C] at or
              below which frost warnings fire.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "weather.thresholds.frost_humidity_pct",
			usage: `
              weather.thresholds.frost_humidity_pct is the relative humidity
              above which frost formation is considered likely.`,
			defaultVal: 80.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "weather.thresholds.frost_wind_ms",
			usage: `
              weather.thresholds.frost_wind_ms is the wind speed above which
              mixing suppresses frost warnings.`,
			defaultVal: 3.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "weather.thresholds.heat_temp_c",
			usage: `
              weather.thresholds.heat_temp_c is the temperature [°C] above
              which heat stress warnings fire.`,
			defaultVal: 35.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "weather.thresholds.wind_speed_ms",
			usage: `
              weather.thresholds.wind_speed_ms is the wind speed above which
              wind damage warnings fire.`,
			defaultVal: 15.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "weather.thresholds.flood_prob_pct",
			usage: `
              weather.thresholds.flood_prob_pct is the precipitation
              probability above which flood warnings fire.`,
			defaultVal: 80.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "weather.thresholds.dry_days_trigger",
			usage: `
              weather.thresholds.dry_days_trigger is the length of a dry
              streak, in days, that triggers an irrigation warning.`,
			defaultVal: 7,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "weather.thresholds.dry_days_severe",
			usage: `
              weather.thresholds.dry_days_severe is the dry streak length, in
              days, at which the warning becomes critical.`,
			defaultVal: 14,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "weather.thresholds.fire_index_trigger",
			usage: `
              weather.thresholds.fire_index_trigger is the composite fire
              danger index above which fire risk warnings fire.`,
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "cache.ttl.weather_current_s",
			usage: `
              cache.ttl.weather_current_s is the current-conditions cache
              lifetime in seconds.`,
			defaultVal: 600,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "cache.ttl.weather_forecast_s",
			usage: `
              cache.ttl.weather_forecast_s is the forecast cache lifetime in
              seconds.`,
			defaultVal: 1800,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CROPMAP")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	// Zone rate multipliers are nested per application kind and zone band,
	// so they bind through the configuration file rather than flags.
	for kind, bands := range plan.DefaultZoneMultipliers {
		for band, mult := range bands {
			Cfg.SetDefault(fmt.Sprintf("planner.zone_multipliers.%s.%s", kind, band), mult)
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(trendsCmd)
}

// Log is the logger used by the commands.
var Log = logrus.New()

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("cropmap: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "cropmap",
	Short: "A satellite-driven crop monitoring and analysis pipeline.",
	Long: `CropMAP analyzes vegetation-index imagery and weather conditions for
agricultural fields: stress indicators and health scores, management-zone
partitioning, stress and weather alerts, and variable-rate precision plans.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CROPMAP_var' where 'var'
is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of CropMAP.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("CropMAP v%s\n", cropmap.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze every field of a farm.",
	Long: `run executes a full farm analysis: per-field stress scoring and zone
partitioning, farm-level alert evaluation, and a variable-rate plan per
analyzed field. The bundle is printed as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		farm := Cfg.GetString("farm")
		if farm == "" {
			return fmt.Errorf("cropmap: the farm option must be set")
		}
		date, err := dateOrToday(Cfg.GetString("date"))
		if err != nil {
			return err
		}
		o, cleanup, err := BuildOrchestrator(cmd.Context(), Cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		bundle, err := o.RunFarmAnalysis(cmd.Context(), farm, date,
			Cfg.GetString("crop"), plan.Season(Cfg.GetString("season")))
		if err != nil {
			return err
		}
		if o.Alerts != nil && o.Alerts.Dispatcher != nil {
			o.Alerts.Dispatcher.Flush(cmd.Context())
		}
		return printJSON(bundle)
	},
	DisableAutoGenTag: true,
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Print a field's historical trend series.",
	Long: `trends loads the field's stored analyses over the requested period and
prints the NDVI trend series, seasonal averages, and growth stage as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		field := Cfg.GetString("field")
		if field == "" {
			return fmt.Errorf("cropmap: the field option must be set")
		}
		end, err := dateOrToday(Cfg.GetString("end"))
		if err != nil {
			return err
		}
		start := end.AddDate(0, -6, 0)
		if s := Cfg.GetString("start"); s != "" {
			start, err = time.Parse("2006-01-02", s)
			if err != nil {
				return fmt.Errorf("cropmap: bad start date %q: %v", s, err)
			}
		}
		o, cleanup, err := BuildOrchestrator(cmd.Context(), Cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		series, err := o.FieldTrends(cmd.Context(), field, start, end)
		if err != nil {
			return err
		}
		return printJSON(series)
	},
	DisableAutoGenTag: true,
}

func dateOrToday(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cropmap: bad date %q: %v", s, err)
	}
	return t, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
