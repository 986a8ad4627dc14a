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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Notification is what reaches an external sink. IdempotencyKey equals the
// alert id so downstream consumers can deduplicate redeliveries.
type Notification struct {
	IdempotencyKey string   `json:"idempotency_key"`
	FarmID         string   `json:"farm_id"`
	FieldID        string   `json:"field_id,omitempty"`
	Kind           Kind     `json:"kind"`
	Severity       Severity `json:"severity"`
	Urgency        int      `json:"urgency"`
	Summary        string   `json:"summary"`
}

// Sink delivers notifications to an external channel (email, SMS, push).
// Delivery is best-effort; the dispatcher retries failures.
type Sink interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Dispatcher delivers critical-and-above alerts to a Sink asynchronously
// with at-least-once semantics. Failed deliveries queue for redispatch.
type Dispatcher struct {
	Sink Sink
	Log  logrus.FieldLogger

	// RetryInterval is the pause between redispatch sweeps; zero means
	// DefaultRetryInterval.
	RetryInterval time.Duration

	mu      sync.Mutex
	pending []Notification
	wake    chan struct{}
}

// DefaultRetryInterval is the default redispatch sweep period.
const DefaultRetryInterval = 30 * time.Second

// NewDispatcher creates a dispatcher delivering to sink.
func NewDispatcher(sink Sink, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		Sink: sink,
		Log:  log,
		wake: make(chan struct{}, 1),
	}
}

// Enqueue schedules an alert notification for delivery.
func (d *Dispatcher) Enqueue(a *Alert) {
	n := Notification{
		IdempotencyKey: a.ID,
		FarmID:         a.FarmID,
		FieldID:        a.FieldID,
		Kind:           a.Kind,
		Severity:       a.Severity,
		Urgency:        a.Urgency,
		Summary:        summaryLine(a),
	}
	d.mu.Lock()
	d.pending = append(d.pending, n)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run delivers queued notifications until ctx is cancelled, sweeping
// failures every RetryInterval. It is intended to run in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.Flush(ctx)
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		case <-ticker.C:
		}
	}
}

// Flush attempts delivery of everything queued, requeueing failures. It
// returns the number of notifications still pending.
func (d *Dispatcher) Flush(ctx context.Context) int {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	var failed []Notification
	for _, n := range batch {
		if err := d.Sink.Dispatch(ctx, n); err != nil {
			d.Log.WithFields(logrus.Fields{
				"alert": n.IdempotencyKey,
				"kind":  n.Kind,
			}).WithError(err).Warn("notification dispatch failed; queued for redelivery")
			failed = append(failed, n)
		}
	}
	d.mu.Lock()
	d.pending = append(failed, d.pending...)
	remaining := len(d.pending)
	d.mu.Unlock()
	return remaining
}

func summaryLine(a *Alert) string {
	loc := a.FieldID
	if loc == "" {
		loc = "farm " + a.FarmID
	}
	return string(a.Severity) + " " + string(a.Kind) + " alert for " + loc
}
