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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/alerts"
	"github.com/agrimodel/cropmap/imagery"
	"github.com/agrimodel/cropmap/weather"
)

// LoadFields reads field boundaries from a JSON file.
func LoadFields(path string) ([]cropmap.FieldBoundary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cropmap: reading fields file: %w", err)
	}
	var fields []cropmap.FieldBoundary
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("cropmap: decoding fields file %q: %w", path, err)
	}
	return fields, nil
}

// imageryRecord is one serveable index observation. A nil bbox matches any
// request.
type imageryRecord struct {
	Day     string                    `json:"day"`
	BBox    *cropmap.BoundingBox      `json:"bbox,omitempty"`
	Indices cropmap.VegetationIndices `json:"indices"`
}

// FileImagery serves vegetation indices from a JSON file. It stands in for
// a satellite data service in offline runs and demos.
type FileImagery struct {
	records []imageryRecord
}

// NewFileImagery loads the provider's records. An empty path yields a
// provider with no data, where every lookup reports imagery unavailable.
func NewFileImagery(path string) (*FileImagery, error) {
	if path == "" {
		return &FileImagery{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cropmap: reading imagery file: %w", err)
	}
	var doc struct {
		Records []imageryRecord `json:"records"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("cropmap: decoding imagery file %q: %w", path, err)
	}
	return &FileImagery{records: doc.Records}, nil
}

func bboxOverlap(a, b cropmap.BoundingBox) bool {
	return a.West <= b.East && b.West <= a.East && a.South <= b.North && b.South <= a.North
}

func (f *FileImagery) match(bbox cropmap.BoundingBox, day string) *imageryRecord {
	for i := range f.records {
		r := &f.records[i]
		if r.Day != day {
			continue
		}
		if r.BBox == nil || bboxOverlap(*r.BBox, bbox) {
			return r
		}
	}
	return nil
}

// Search implements imagery.Provider.
func (f *FileImagery) Search(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, maxCloudPct float64) ([]imagery.Acquisition, error) {
	var out []imagery.Acquisition
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		r := f.match(bbox, cropmap.DayKey(d))
		if r == nil || r.Indices.CloudCoverPct > maxCloudPct {
			continue
		}
		out = append(out, imagery.Acquisition{
			ID:          "file-" + r.Day,
			Date:        d,
			CloudPct:    r.Indices.CloudCoverPct,
			ResolutionM: r.Indices.ResolutionM,
		})
	}
	return out, nil
}

// Indices implements imagery.Provider.
func (f *FileImagery) Indices(ctx context.Context, bbox cropmap.BoundingBox, date time.Time) (*cropmap.VegetationIndices, error) {
	r := f.match(bbox, cropmap.DayKey(date))
	if r == nil {
		return nil, fmt.Errorf("cropmap: no imagery record for %s: %w",
			cropmap.DayKey(date), cropmap.ErrImageryUnavailable)
	}
	vi := r.Indices
	return &vi, nil
}

// TimeSeries implements imagery.Provider.
func (f *FileImagery) TimeSeries(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, stepDays int) ([]imagery.SeriesPoint, error) {
	if stepDays <= 0 {
		return nil, fmt.Errorf("cropmap: step must be positive: %w", cropmap.ErrInvalidRequest)
	}
	var out []imagery.SeriesPoint
	for d := start; !d.After(end); d = d.AddDate(0, 0, stepDays) {
		r := f.match(bbox, cropmap.DayKey(d))
		if r == nil {
			continue
		}
		out = append(out, imagery.SeriesPoint{
			Date:     d,
			MeanNDVI: r.Indices.NDVI.Mean,
			CloudPct: r.Indices.CloudCoverPct,
		})
	}
	return out, nil
}

// FileWeather serves fixed weather records from a JSON file.
type FileWeather struct {
	current  *weather.Current
	forecast []weather.DailyForecast
	history  *weather.Aggregate
}

// NewFileWeather loads the provider's records.
func NewFileWeather(path string) (*FileWeather, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cropmap: reading weather file: %w", err)
	}
	var doc struct {
		Current  *weather.Current        `json:"current"`
		Forecast []weather.DailyForecast `json:"forecast"`
		History  *weather.Aggregate      `json:"history"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("cropmap: decoding weather file %q: %w", path, err)
	}
	return &FileWeather{current: doc.Current, forecast: doc.Forecast, history: doc.History}, nil
}

// Current implements weather.Provider.
func (f *FileWeather) Current(ctx context.Context, lat, lng float64) (*weather.Current, error) {
	if f.current == nil {
		return nil, fmt.Errorf("cropmap: no current weather record: %w", cropmap.ErrWeatherUnavailable)
	}
	cur := *f.current
	return &cur, nil
}

// Forecast implements weather.Provider.
func (f *FileWeather) Forecast(ctx context.Context, lat, lng float64, days int) ([]weather.DailyForecast, error) {
	if len(f.forecast) == 0 {
		return nil, fmt.Errorf("cropmap: no forecast records: %w", cropmap.ErrWeatherUnavailable)
	}
	if days > len(f.forecast) {
		days = len(f.forecast)
	}
	out := make([]weather.DailyForecast, days)
	copy(out, f.forecast[:days])
	return out, nil
}

// Aggregate implements weather.Provider.
func (f *FileWeather) Aggregate(ctx context.Context, lat, lng float64, start, end time.Time) (*weather.Aggregate, error) {
	if f.history == nil {
		return nil, fmt.Errorf("cropmap: no weather history record: %w", cropmap.ErrWeatherUnavailable)
	}
	agg := *f.history
	agg.Start, agg.End = start, end
	return &agg, nil
}

// LogSink writes notifications to the log. It is the delivery channel of
// the CLI, where no external notification service is wired.
type LogSink struct {
	Log logrus.FieldLogger
}

// Dispatch implements alerts.Sink.
func (s *LogSink) Dispatch(ctx context.Context, n alerts.Notification) error {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"alert":    n.IdempotencyKey,
		"kind":     n.Kind,
		"severity": n.Severity,
		"urgency":  n.Urgency,
	}).Info(n.Summary)
	return nil
}
