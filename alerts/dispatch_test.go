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
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/agrimodel/cropmap"
)

// flakySink fails the first failUntil deliveries, then succeeds.
type flakySink struct {
	mu        sync.Mutex
	failUntil int
	calls     int
	delivered []Notification
}

func (s *flakySink) Dispatch(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failUntil {
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, n)
	return nil
}

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func testAlert(id string, sev Severity) *Alert {
	return &Alert{
		ID:       id,
		FarmID:   "farm1",
		FieldID:  "f1",
		Kind:     KindDroughtCritical,
		Severity: sev,
		Urgency:  sev.Rank(),
		Status:   StatusActive,
	}
}

func TestDispatcherDelivers(t *testing.T) {
	sink := &flakySink{}
	d := NewDispatcher(sink, quietLog())
	d.Enqueue(testAlert("a1", SeverityCritical))
	d.Enqueue(testAlert("a2", SeverityEmergency))

	if remaining := d.Flush(context.Background()); remaining != 0 {
		t.Errorf("remaining after flush: got %d, want 0", remaining)
	}
	if len(sink.delivered) != 2 {
		t.Fatalf("delivered: got %d, want 2", len(sink.delivered))
	}
	n := sink.delivered[0]
	if n.IdempotencyKey != "a1" || n.FarmID != "farm1" || n.Kind != KindDroughtCritical {
		t.Errorf("notification: %+v", n)
	}
	if n.Summary != "critical drought_critical alert for f1" {
		t.Errorf("summary: %q", n.Summary)
	}
}

// A failing sink requeues; a later flush redelivers the same notification.
func TestDispatcherRequeuesFailures(t *testing.T) {
	sink := &flakySink{failUntil: 1}
	d := NewDispatcher(sink, quietLog())
	d.Enqueue(testAlert("a1", SeverityCritical))

	if remaining := d.Flush(context.Background()); remaining != 1 {
		t.Errorf("remaining after failed flush: got %d, want 1", remaining)
	}
	if len(sink.delivered) != 0 {
		t.Errorf("delivered after failed flush: got %d, want 0", len(sink.delivered))
	}
	if remaining := d.Flush(context.Background()); remaining != 0 {
		t.Errorf("remaining after retry flush: got %d, want 0", remaining)
	}
	if len(sink.delivered) != 1 || sink.delivered[0].IdempotencyKey != "a1" {
		t.Errorf("delivered after retry: %+v", sink.delivered)
	}
}

func TestFarmLevelSummaryLine(t *testing.T) {
	a := testAlert("a1", SeverityHigh)
	a.FieldID = ""
	a.Kind = KindFrost
	if got := summaryLine(a); got != "high frost alert for farm farm1" {
		t.Errorf("summary: %q", got)
	}
}

// The engine enqueues critical-and-above only, unless DispatchAll is set.
func TestEngineDispatchThreshold(t *testing.T) {
	// A hard-hit field raises a critical drought alert and a high-severity
	// decline alert.
	a := cropmap.ResultTestData("f1", "farm1", 0.22, testClock)

	sink := &flakySink{}
	e := testEngine(newMemStore())
	e.Dispatcher = NewDispatcher(sink, quietLog())
	if _, err := e.Evaluate(context.Background(), "farm1", []*cropmap.AnalysisResult{a}, nil); err != nil {
		t.Fatal(err)
	}
	e.Dispatcher.Flush(context.Background())
	if len(sink.delivered) != 1 || sink.delivered[0].Kind != KindDroughtCritical {
		t.Errorf("default dispatch: %+v", sink.delivered)
	}

	sink = &flakySink{}
	e = testEngine(newMemStore())
	e.Dispatcher = NewDispatcher(sink, quietLog())
	e.DispatchAll = true
	if _, err := e.Evaluate(context.Background(), "farm1", []*cropmap.AnalysisResult{a}, nil); err != nil {
		t.Fatal(err)
	}
	e.Dispatcher.Flush(context.Background())
	if len(sink.delivered) != 2 {
		t.Errorf("DispatchAll delivered: got %d, want 2", len(sink.delivered))
	}
}
