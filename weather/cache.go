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

package weather

import (
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/ctessum/requestcache"

	"github.com/agrimodel/cropmap/internal/hash"
)

func init() {
	gob.Register(Current{})
	gob.Register([]DailyForecast{})
	gob.Register(Aggregate{})
}

// Default cache TTLs.
const (
	DefaultCurrentTTL  = 10 * time.Minute
	DefaultForecastTTL = 30 * time.Minute
)

// CachedProvider decorates a Provider with deduplicated TTL caching. The
// TTL is enforced by folding a time bucket into the content-addressed cache
// key: entries from an expired bucket simply stop being addressed and age
// out of the LRU.
type CachedProvider struct {
	Provider Provider

	CurrentTTL  time.Duration // zero means DefaultCurrentTTL
	ForecastTTL time.Duration // zero means DefaultForecastTTL
	MaxEntries  int           // zero means DefaultCacheEntries

	// Now is the clock used for TTL buckets; nil means time.Now. Tests
	// inject a fake.
	Now func() time.Time

	currentOnce   sync.Once
	currentCache  *requestcache.Cache
	forecastOnce  sync.Once
	forecastCache *requestcache.Cache
	aggOnce       sync.Once
	aggCache      *requestcache.Cache
}

// DefaultCacheEntries is the default memory cache size.
const DefaultCacheEntries = 500

func (c *CachedProvider) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *CachedProvider) maxEntries() int {
	if c.MaxEntries <= 0 {
		return DefaultCacheEntries
	}
	return c.MaxEntries
}

// ttlBucket quantizes the clock so that requests inside one TTL window
// share a cache key.
func (c *CachedProvider) ttlBucket(ttl time.Duration) int64 {
	return c.now().Unix() / int64(ttl/time.Second)
}

func newCache(f requestcache.ProcessFunc, maxEntries int) *requestcache.Cache {
	return requestcache.NewCache(f, 1, requestcache.Deduplicate(), requestcache.Memory(maxEntries))
}

type pointRequest struct {
	Lat, Lng float64
	Days     int
	Bucket   int64
}

type aggRequest struct {
	Lat, Lng   float64
	Start, End string
	Bucket     int64
}

// Current implements Provider.
func (c *CachedProvider) Current(ctx context.Context, lat, lng float64) (*Current, error) {
	c.currentOnce.Do(func() {
		c.currentCache = newCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			req := request.(pointRequest)
			return c.Provider.Current(ctx, req.Lat, req.Lng)
		}, c.maxEntries())
	})
	ttl := c.CurrentTTL
	if ttl <= 0 {
		ttl = DefaultCurrentTTL
	}
	req := pointRequest{Lat: lat, Lng: lng, Bucket: c.ttlBucket(ttl)}
	r := c.currentCache.NewRequest(ctx, req, "current_"+hash.Fingerprint(req))
	result, err := r.Result()
	if err != nil {
		return nil, err
	}
	return result.(*Current), nil
}

// Forecast implements Provider.
func (c *CachedProvider) Forecast(ctx context.Context, lat, lng float64, days int) ([]DailyForecast, error) {
	c.forecastOnce.Do(func() {
		c.forecastCache = newCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			req := request.(pointRequest)
			return c.Provider.Forecast(ctx, req.Lat, req.Lng, req.Days)
		}, c.maxEntries())
	})
	ttl := c.ForecastTTL
	if ttl <= 0 {
		ttl = DefaultForecastTTL
	}
	req := pointRequest{Lat: lat, Lng: lng, Days: days, Bucket: c.ttlBucket(ttl)}
	r := c.forecastCache.NewRequest(ctx, req, "forecast_"+hash.Fingerprint(req))
	result, err := r.Result()
	if err != nil {
		return nil, err
	}
	return result.([]DailyForecast), nil
}

// Aggregate implements Provider. Historical aggregates are immutable, so
// the key carries no TTL bucket.
func (c *CachedProvider) Aggregate(ctx context.Context, lat, lng float64, start, end time.Time) (*Aggregate, error) {
	c.aggOnce.Do(func() {
		c.aggCache = newCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			req := request.(aggRequest)
			s, err := time.Parse("2006-01-02", req.Start)
			if err != nil {
				return nil, fmt.Errorf("in weather.CachedProvider: bad day key %q: %v", req.Start, err)
			}
			e, err := time.Parse("2006-01-02", req.End)
			if err != nil {
				return nil, fmt.Errorf("in weather.CachedProvider: bad day key %q: %v", req.End, err)
			}
			return c.Provider.Aggregate(ctx, req.Lat, req.Lng, s, e)
		}, c.maxEntries())
	})
	req := aggRequest{
		Lat: lat, Lng: lng,
		Start: start.UTC().Format("2006-01-02"),
		End:   end.UTC().Format("2006-01-02"),
	}
	r := c.aggCache.NewRequest(ctx, req, "agg_"+hash.Fingerprint(req))
	result, err := r.Result()
	if err != nil {
		return nil, err
	}
	return result.(*Aggregate), nil
}
