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

package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/alerts"
	"github.com/agrimodel/cropmap/internal/hash"
	"github.com/agrimodel/cropmap/plan"
	"github.com/agrimodel/cropmap/weather"
)

// Orchestration defaults.
const (
	DefaultConcurrency  = 8
	DefaultFieldTimeout = 60 * time.Second
	DefaultForecastDays = 7
	DefaultHistoryDays  = 30
	DefaultCropBaseC    = 10 // growing-degree-day base temperature [°C]
)

// FieldFailure records one field that failed inside a farm batch. The rest
// of the batch is unaffected.
type FieldFailure struct {
	FieldID string              `json:"field_id"`
	Kind    cropmap.FailureKind `json:"kind"`
	Err     string              `json:"error"`
}

// FarmSummary aggregates one farm run.
type FarmSummary struct {
	TotalFields     int            `json:"total_fields"`
	AnalyzedFields  int            `json:"analyzed_fields"`
	FailedFields    int            `json:"failed_fields"`
	AvgHealth       float64        `json:"avg_health"`
	PrimaryStressor string         `json:"primary_stressor,omitempty"`
	HealthHistogram map[string]int `json:"health_histogram,omitempty"`

	ActiveAlerts   int `json:"active_alerts"`
	CriticalAlerts int `json:"critical_alerts"` // critical and emergency

	ProjectedCostUSD       float64 `json:"projected_cost_usd"`
	ProjectedNetBenefitUSD float64 `json:"projected_net_benefit_usd"`
}

// FarmBundle is everything one farm run produced.
type FarmBundle struct {
	FarmID string    `json:"farm_id"`
	Date   time.Time `json:"date"`

	Results  []*cropmap.AnalysisResult `json:"results"`
	Alerts   []*alerts.Alert           `json:"alerts"`
	Plans    []*plan.PrecisionPlan     `json:"plans"`
	Failures []FieldFailure            `json:"failures,omitempty"`
	Summary  FarmSummary               `json:"summary"`
}

// Orchestrator fans a farm's fields through the analyzer, evaluates
// alerts once per farm, and plans each analyzed field. Concurrent runs of
// the same (field, date) are coalesced into one analysis.
type Orchestrator struct {
	Analyzer *FieldAnalyzer
	Weather  weather.Provider
	Alerts   *alerts.Engine
	Planner  *plan.Planner
	Store    Store

	// Concurrency bounds simultaneous field analyses; zero means
	// DefaultConcurrency.
	Concurrency int
	// FieldTimeout is the whole-pipeline deadline per field; zero means
	// DefaultFieldTimeout.
	FieldTimeout   time.Duration
	WeatherTimeout time.Duration
	ForecastDays   int
	HistoryDays    int

	Log logrus.FieldLogger

	cacheOnce sync.Once
	cache     *requestcache.Cache
	analyzed  int64
}

func (o *Orchestrator) concurrency() int {
	if o.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return o.Concurrency
}

func (o *Orchestrator) fieldTimeout() time.Duration {
	if o.FieldTimeout <= 0 {
		return DefaultFieldTimeout
	}
	return o.FieldTimeout
}

func (o *Orchestrator) weatherTimeout() time.Duration {
	if o.WeatherTimeout <= 0 {
		return DefaultWeatherTimeout
	}
	return o.WeatherTimeout
}

func (o *Orchestrator) forecastDays() int {
	if o.ForecastDays <= 0 {
		return DefaultForecastDays
	}
	return o.ForecastDays
}

func (o *Orchestrator) historyDays() int {
	if o.HistoryDays <= 0 {
		return DefaultHistoryDays
	}
	return o.HistoryDays
}

func (o *Orchestrator) log() logrus.FieldLogger {
	if o.Log != nil {
		return o.Log
	}
	return logrus.StandardLogger()
}

type fieldRequest struct {
	FieldID string
	Day     string
}

// process is the cache worker: it resolves the field and runs the analyzer
// under the per-field deadline.
func (o *Orchestrator) process(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(fieldRequest)
	date, err := time.Parse("2006-01-02", req.Day)
	if err != nil {
		return nil, fmt.Errorf("in analysis.Orchestrator: bad day key %q: %w", req.Day, cropmap.ErrInvalidInput)
	}
	field, err := o.Store.Field(ctx, req.FieldID)
	if err != nil {
		return nil, err
	}
	fctx, cancel := context.WithTimeout(ctx, o.fieldTimeout())
	defer cancel()
	atomic.AddInt64(&o.analyzed, 1)
	return o.Analyzer.AnalyzeField(fctx, field, date)
}

// Analyzed reports how many analyses actually ran, as opposed to being
// served from the coalescing cache.
func (o *Orchestrator) Analyzed() int64 { return atomic.LoadInt64(&o.analyzed) }

// AnalyzeField runs one field through the coalescing cache. Concurrent
// calls for the same (field, date) share a single analysis.
func (o *Orchestrator) AnalyzeField(ctx context.Context, fieldID string, date time.Time) (*cropmap.AnalysisResult, error) {
	o.cacheOnce.Do(func() {
		o.cache = requestcache.NewCache(o.process, o.concurrency(),
			requestcache.Deduplicate(), requestcache.Memory(DefaultCacheEntries))
	})
	req := fieldRequest{FieldID: fieldID, Day: cropmap.DayKey(date)}
	r := o.cache.NewRequest(ctx, req, "analysis_"+hash.Fingerprint(req))
	result, err := r.Result()
	if err != nil {
		return nil, err
	}
	return result.(*cropmap.AnalysisResult), nil
}

// DefaultCacheEntries bounds the orchestrator's analysis memory cache.
const DefaultCacheEntries = 500

// RunFarmAnalysis analyzes every field of the farm for the given date,
// evaluates alerts once across the results, and produces a precision plan
// per analyzed field. A failing field is recorded in Failures and does not
// abort the batch. When the context is cancelled mid-run the bundle is
// still returned with the completed results and the remaining fields
// recorded as cancelled failures; the run only fails as a whole when the
// farm has no fields.
func (o *Orchestrator) RunFarmAnalysis(ctx context.Context, farmID string, date time.Time, cropType string, season plan.Season) (*FarmBundle, error) {
	fields, err := o.Store.FieldsByFarm(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("in analysis.RunFarmAnalysis: listing fields for farm %s: %w", farmID, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("in analysis.RunFarmAnalysis: farm %s has no fields: %w", farmID, cropmap.ErrInvalidInput)
	}

	bundle := &FarmBundle{FarmID: farmID, Date: date}

	type outcome struct {
		fieldID string
		result  *cropmap.AnalysisResult
		err     error
	}
	outcomes := make([]outcome, len(fields))
	var wg sync.WaitGroup
	for i, f := range fields {
		wg.Add(1)
		go func(i int, fieldID string) {
			defer wg.Done()
			r, err := o.AnalyzeField(ctx, fieldID, date)
			outcomes[i] = outcome{fieldID: fieldID, result: r, err: err}
		}(i, f.ID)
	}
	wg.Wait()

	for _, oc := range outcomes {
		if oc.err != nil {
			kind := cropmap.ClassifyFailure(oc.err)
			o.log().WithFields(logrus.Fields{
				"farm": farmID, "field": oc.fieldID, "kind": kind,
			}).Warn("field analysis failed")
			bundle.Failures = append(bundle.Failures, FieldFailure{
				FieldID: oc.fieldID, Kind: kind, Err: oc.err.Error(),
			})
			continue
		}
		bundle.Results = append(bundle.Results, oc.result)
	}

	// On cancellation the bundle keeps whatever completed; fields that did
	// not run are already recorded as cancelled failures above. The alert
	// and planning stages are skipped since their context is done anyway.
	if err := ctx.Err(); err != nil {
		o.log().WithFields(logrus.Fields{
			"farm": farmID, "analyzed": len(bundle.Results), "failed": len(bundle.Failures),
		}).Warn("farm analysis interrupted")
		bundle.Summary = summarize(bundle, len(fields))
		return bundle, nil
	}

	wctx := o.weatherContext(ctx, farmID, fields, date)

	if o.Alerts != nil {
		as, err := o.Alerts.Evaluate(ctx, farmID, bundle.Results, wctx)
		if err != nil {
			return nil, fmt.Errorf("in analysis.RunFarmAnalysis: alerts for farm %s: %w", farmID, err)
		}
		bundle.Alerts = as
	}

	if o.Planner != nil {
		for _, r := range bundle.Results {
			p, err := o.Planner.Plan(r, cropType, season)
			if err != nil {
				return nil, fmt.Errorf("in analysis.RunFarmAnalysis: planning field %s: %w", r.FieldID, err)
			}
			p.FarmID = farmID
			if err := o.Store.UpsertPlan(ctx, p); err != nil {
				return nil, fmt.Errorf("in analysis.RunFarmAnalysis: persisting plan for field %s: %w", r.FieldID, err)
			}
			bundle.Plans = append(bundle.Plans, p)
		}
	}

	bundle.Summary = summarize(bundle, len(fields))
	return bundle, nil
}

// weatherContext samples the farm's weather at the mean field centroid.
// Provider failures degrade the context to rule-based rather than failing
// the run.
func (o *Orchestrator) weatherContext(ctx context.Context, farmID string, fields []cropmap.FieldBoundary, date time.Time) *alerts.WeatherContext {
	if o.Weather == nil {
		return &alerts.WeatherContext{RuleBased: true}
	}
	var lat, lng float64
	for i := range fields {
		c := fields[i].Centroid()
		lat += c.Y
		lng += c.X
	}
	lat /= float64(len(fields))
	lng /= float64(len(fields))

	wctx := &alerts.WeatherContext{}
	wtimeout := o.weatherTimeout()

	cctx, cancel := context.WithTimeout(ctx, wtimeout)
	cur, err := o.Weather.Current(cctx, lat, lng)
	cancel()
	if err != nil {
		o.log().WithFields(logrus.Fields{"farm": farmID, "err": err}).Warn("current weather unavailable")
		wctx.RuleBased = true
	} else {
		wctx.Current = cur
	}

	fctx, cancel := context.WithTimeout(ctx, wtimeout)
	fc, err := o.Weather.Forecast(fctx, lat, lng, o.forecastDays())
	cancel()
	if err != nil {
		o.log().WithFields(logrus.Fields{"farm": farmID, "err": err}).Warn("forecast unavailable")
		wctx.RuleBased = true
	} else {
		wctx.Forecast = fc
	}

	actx, cancel := context.WithTimeout(ctx, wtimeout)
	agg, err := o.Weather.Aggregate(actx, lat, lng, date.AddDate(0, 0, -o.historyDays()), date)
	cancel()
	if err != nil {
		o.log().WithFields(logrus.Fields{"farm": farmID, "err": err}).Warn("weather history unavailable")
	} else {
		wctx.History = agg
	}
	return wctx
}

func summarize(b *FarmBundle, totalFields int) FarmSummary {
	s := FarmSummary{
		TotalFields:    totalFields,
		AnalyzedFields: len(b.Results),
		FailedFields:   len(b.Failures),
	}

	if len(b.Results) > 0 {
		var healthSum float64
		stressSums := map[string]float64{}
		s.HealthHistogram = map[string]int{}
		for _, r := range b.Results {
			healthSum += float64(r.Health)
			s.HealthHistogram[healthBucket(r.Health)]++
			stressSums["drought"] += r.Stress.Drought
			stressSums["disease"] += r.Stress.Disease
			stressSums["nutrient"] += r.Stress.Nutrient
			stressSums["pest"] += r.Stress.Pest
			stressSums["temperature"] += r.Stress.Temperature
		}
		s.AvgHealth = healthSum / float64(len(b.Results))
		s.PrimaryStressor = argmax(stressSums)
	}

	for _, a := range b.Alerts {
		if !a.Open() {
			continue
		}
		s.ActiveAlerts++
		if a.Severity.Rank() >= alerts.SeverityCritical.Rank() {
			s.CriticalAlerts++
		}
	}

	for _, p := range b.Plans {
		s.ProjectedCostUSD += p.Summary.TotalCostUSD
		s.ProjectedNetBenefitUSD += p.Summary.NetBenefitUSD
	}
	return s
}

func healthBucket(h int) string {
	switch {
	case h <= 20:
		return "0-20"
	case h <= 40:
		return "21-40"
	case h <= 60:
		return "41-60"
	case h <= 80:
		return "61-80"
	default:
		return "81-100"
	}
}

// argmax returns the key with the largest value, ties broken by key order
// so summaries are stable.
func argmax(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var best string
	bestV := -1.0
	for _, k := range keys {
		if m[k] > bestV {
			best, bestV = k, m[k]
		}
	}
	return best
}

// FieldTrends returns the field's historical trend series over [start,
// end], derived from stored analyses.
func (o *Orchestrator) FieldTrends(ctx context.Context, fieldID string, start, end time.Time) (*cropmap.TrendSeries, error) {
	history, err := o.Store.AnalysisSeries(ctx, fieldID, start, end)
	if err != nil {
		return nil, fmt.Errorf("in analysis.FieldTrends: loading series for field %s: %w", fieldID, err)
	}
	return cropmap.ComputeTrends(fieldID, history)
}
