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

// Package hash derives content-addressed fingerprints for cache and
// single-flight keys, and deterministic seeds for reproducible randomness.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// Fingerprint returns a stable hexadecimal key for the specified object.
// Objects implementing fmt.Stringer are keyed by their String form.
func Fingerprint(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()
	e := gob.NewEncoder(h)
	if err := e.Encode(object); err == nil {
		b := h.Sum(nil)
		return fmt.Sprintf("%x", b[:h.Size()])
	}
	// Gob cannot encode some values (e.g. NaN map keys); fall back to a
	// deterministic textual dump.
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(h, "%#v", object)
	b := h.Sum(nil)
	return fmt.Sprintf("%x", b[:h.Size()])
}

// Seed64 derives a deterministic 64-bit seed from the given string parts.
// The alert engine uses it to make loss-estimate randomness reproducible
// for a given (field, alert kind, day) tuple.
func Seed64(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return int64(h.Sum64())
}
