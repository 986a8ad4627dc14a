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

package imagery

import (
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/ctessum/requestcache"

	"github.com/agrimodel/cropmap"
	"github.com/agrimodel/cropmap/internal/hash"
)

func init() {
	// Types stored in the cache.
	gob.Register(cropmap.VegetationIndices{})
	gob.Register([]SeriesPoint{})
}

// loadCache initializes a request cache backed by memory and optionally by
// an on-disk directory.
func loadCache(f requestcache.ProcessFunc, workers, memCacheSize int, cacheLoc string) *requestcache.Cache {
	if cacheLoc == "" {
		return requestcache.NewCache(f, workers, requestcache.Deduplicate(),
			requestcache.Memory(memCacheSize))
	}
	return requestcache.NewCache(f, workers, requestcache.Deduplicate(),
		requestcache.Memory(memCacheSize),
		requestcache.Disk(cacheLoc, requestcache.MarshalGob, requestcache.UnmarshalGob))
}

// CachedProvider decorates a Provider with deduplicated, cached index and
// time-series lookups. Identical in-flight requests are coalesced into one
// provider call, and completed results are kept in an LRU cache keyed by a
// content fingerprint of the request.
type CachedProvider struct {
	Provider Provider

	// Workers is the number of concurrent provider calls; zero means 1.
	Workers int
	// MaxEntries is the memory cache size; zero means DefaultCacheEntries.
	MaxEntries int
	// CacheDir, if set, also persists results to disk.
	CacheDir string

	indicesOnce  sync.Once
	indicesCache *requestcache.Cache
	seriesOnce   sync.Once
	seriesCache  *requestcache.Cache
}

// DefaultCacheEntries is the default memory cache size.
const DefaultCacheEntries = 200

func (c *CachedProvider) workers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}

func (c *CachedProvider) maxEntries() int {
	if c.MaxEntries <= 0 {
		return DefaultCacheEntries
	}
	return c.MaxEntries
}

type indicesRequest struct {
	BBox cropmap.BoundingBox
	Day  string
}

type seriesRequest struct {
	BBox       cropmap.BoundingBox
	Start, End string
	StepDays   int
}

// Search implements Provider. Searches are cheap and highly variable, so
// they bypass the cache.
func (c *CachedProvider) Search(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, maxCloudPct float64) ([]Acquisition, error) {
	return c.Provider.Search(ctx, bbox, start, end, maxCloudPct)
}

// Indices implements Provider.
func (c *CachedProvider) Indices(ctx context.Context, bbox cropmap.BoundingBox, date time.Time) (*cropmap.VegetationIndices, error) {
	c.indicesOnce.Do(func() {
		c.indicesCache = loadCache(c.indicesWorker, c.workers(), c.maxEntries(), c.CacheDir)
	})
	req := indicesRequest{BBox: bbox, Day: cropmap.DayKey(date)}
	r := c.indicesCache.NewRequest(ctx, req, "indices_"+hash.Fingerprint(req))
	result, err := r.Result()
	if err != nil {
		return nil, err
	}
	switch v := result.(type) {
	case *cropmap.VegetationIndices:
		return v, nil
	case cropmap.VegetationIndices:
		return &v, nil
	default:
		panic(fmt.Errorf("in imagery.CachedProvider.Indices: result is invalid type: %#v", result))
	}
}

func (c *CachedProvider) indicesWorker(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(indicesRequest)
	date, err := time.Parse("2006-01-02", req.Day)
	if err != nil {
		return nil, fmt.Errorf("in imagery.CachedProvider: bad day key %q: %w", req.Day, cropmap.ErrInvalidRequest)
	}
	vi, err := c.Provider.Indices(ctx, req.BBox, date)
	if err != nil {
		return nil, err
	}
	return vi, nil
}

// TimeSeries implements Provider.
func (c *CachedProvider) TimeSeries(ctx context.Context, bbox cropmap.BoundingBox, start, end time.Time, stepDays int) ([]SeriesPoint, error) {
	c.seriesOnce.Do(func() {
		c.seriesCache = loadCache(c.seriesWorker, c.workers(), c.maxEntries(), c.CacheDir)
	})
	req := seriesRequest{BBox: bbox, Start: cropmap.DayKey(start), End: cropmap.DayKey(end), StepDays: stepDays}
	r := c.seriesCache.NewRequest(ctx, req, "series_"+hash.Fingerprint(req))
	result, err := r.Result()
	if err != nil {
		return nil, err
	}
	return result.([]SeriesPoint), nil
}

func (c *CachedProvider) seriesWorker(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(seriesRequest)
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		return nil, fmt.Errorf("in imagery.CachedProvider: bad day key %q: %w", req.Start, cropmap.ErrInvalidRequest)
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		return nil, fmt.Errorf("in imagery.CachedProvider: bad day key %q: %w", req.End, cropmap.ErrInvalidRequest)
	}
	return c.Provider.TimeSeries(ctx, req.BBox, start, end, req.StepDays)
}
