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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agrimodel/cropmap"
)

func TestCachedIndicesCoalesced(t *testing.T) {
	fake := &fakeProvider{indices: cropmap.IndicesTestData(0.5)}
	c := &CachedProvider{Provider: fake, Workers: 4}

	bbox := cropmap.BoundingBox{West: -93.5, South: 42, East: -93.4, North: 42.1}
	date := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vi, err := c.Indices(context.Background(), bbox, date)
			if err != nil {
				t.Error(err)
				return
			}
			if vi.NDVI.Mean != 0.5 {
				t.Errorf("mean: got %g, want 0.5", vi.NDVI.Mean)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&fake.calls); n != 1 {
		t.Errorf("provider calls: got %d, want 1", n)
	}
}

func TestCachedIndicesKeyedByDay(t *testing.T) {
	fake := &fakeProvider{indices: cropmap.IndicesTestData(0.5)}
	c := &CachedProvider{Provider: fake}

	bbox := cropmap.BoundingBox{West: -93.5, South: 42, East: -93.4, North: 42.1}
	ctx := context.Background()
	if _, err := c.Indices(ctx, bbox, time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	// Same day at a different hour hits the cache.
	if _, err := c.Indices(ctx, bbox, time.Date(2024, 8, 1, 15, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 1 {
		t.Errorf("provider calls: got %d, want 1", fake.calls)
	}
	if _, err := c.Indices(ctx, bbox, time.Date(2024, 8, 2, 9, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 2 {
		t.Errorf("provider calls: got %d, want 2", fake.calls)
	}
}

func TestCachedSearchBypassesCache(t *testing.T) {
	fake := &fakeProvider{}
	c := &CachedProvider{Provider: fake}
	ctx := context.Background()
	bbox := cropmap.BoundingBox{West: -93.5, South: 42, East: -93.4, North: 42.1}
	start := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if _, err := c.Search(ctx, bbox, start, start.AddDate(0, 0, 7), 30); err != nil {
			t.Fatal(err)
		}
	}
	if fake.calls != 2 {
		t.Errorf("provider calls: got %d, want 2", fake.calls)
	}
}
