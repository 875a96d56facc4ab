// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DebugExporter keeps recent spans in memory so they can be inspected
// without standing up a collector. Safe for concurrent use.
type DebugExporter struct {
	mu      sync.RWMutex
	spans   map[string]*DebugSpan
	maxSize int
}

// DebugSpan is the flattened, JSON-friendly view of one captured span.
type DebugSpan struct {
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Name         string            `json:"name"`
	StartTime    int64             `json:"start_time_unix_nano"`
	EndTime      int64             `json:"end_time_unix_nano"`
	DurationMs   float64           `json:"duration_ms"`
	Attributes   map[string]string `json:"attributes"`
	Events       []SpanEvent       `json:"events,omitempty"`
	Status       string            `json:"status"`
	StatusMsg    string            `json:"status_message,omitempty"`
}

// SpanEvent is one event recorded on a captured span.
type SpanEvent struct {
	Name       string            `json:"name"`
	TimeUnix   int64             `json:"time_unix_nano"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewDebugExporter builds an exporter retaining up to 1000 spans.
func NewDebugExporter() *DebugExporter {
	return &DebugExporter{spans: make(map[string]*DebugSpan), maxSize: 1000}
}

// WithMaxSize overrides the retention limit.
func (e *DebugExporter) WithMaxSize(size int) *DebugExporter {
	e.maxSize = size
	return e
}

// ExportSpans implements sdktrace.SpanExporter, capturing the span names
// shouldCapture accepts and evicting past the retention limit.
func (e *DebugExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, span := range spans {
		if !e.shouldCapture(span.Name()) {
			continue
		}
		ds := flattenSpan(span)
		e.spans[ds.SpanID] = ds
		e.evictOverLimit()
	}
	return nil
}

// shouldCapture limits capture to the span names this runtime emits.
func (e *DebugExporter) shouldCapture(name string) bool {
	return name == SpanHTTPRequest
}

func flattenSpan(span sdktrace.ReadOnlySpan) *DebugSpan {
	start := span.StartTime().UnixNano()
	end := span.EndTime().UnixNano()

	ds := &DebugSpan{
		TraceID:    span.SpanContext().TraceID().String(),
		SpanID:     span.SpanContext().SpanID().String(),
		Name:       span.Name(),
		StartTime:  start,
		EndTime:    end,
		DurationMs: float64(end-start) / 1e6,
		Attributes: make(map[string]string),
		Status:     span.Status().Code.String(),
		StatusMsg:  span.Status().Description,
	}
	if span.Parent().HasSpanID() {
		ds.ParentSpanID = span.Parent().SpanID().String()
	}

	for _, attr := range span.Attributes() {
		ds.Attributes[string(attr.Key)] = attr.Value.AsString()
	}
	for _, ev := range span.Events() {
		se := SpanEvent{Name: ev.Name, TimeUnix: ev.Time.UnixNano(), Attributes: make(map[string]string)}
		for _, attr := range ev.Attributes {
			se.Attributes[string(attr.Key)] = attr.Value.AsString()
		}
		ds.Events = append(ds.Events, se)
	}
	return ds
}

// evictOverLimit drops arbitrary entries down to maxSize. Map iteration
// order makes this approximate rather than strictly-oldest, which is
// fine for a debugging buffer. Caller holds the write lock.
func (e *DebugExporter) evictOverLimit() {
	excess := len(e.spans) - e.maxSize
	for id := range e.spans {
		if excess <= 0 {
			return
		}
		delete(e.spans, id)
		excess--
	}
}

// Shutdown implements sdktrace.SpanExporter, dropping all captured spans.
func (e *DebugExporter) Shutdown(ctx context.Context) error {
	e.Clear()
	return nil
}

// GetSpan returns one span by span id, or nil.
func (e *DebugExporter) GetSpan(spanID string) *DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spans[spanID]
}

// GetAllSpans returns every captured span in unspecified order.
func (e *DebugExporter) GetAllSpans() []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*DebugSpan, 0, len(e.spans))
	for _, s := range e.spans {
		out = append(out, s)
	}
	return out
}

// GetSpansByName returns captured spans matching name.
func (e *DebugExporter) GetSpansByName(name string) []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*DebugSpan
	for _, s := range e.spans {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// GetSpansByTrace returns captured spans belonging to traceID.
func (e *DebugExporter) GetSpansByTrace(traceID string) []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*DebugSpan
	for _, s := range e.spans {
		if s.TraceID == traceID {
			out = append(out, s)
		}
	}
	return out
}

// Clear drops every captured span.
func (e *DebugExporter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = make(map[string]*DebugSpan)
}

// Count reports how many spans are currently retained.
func (e *DebugExporter) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.spans)
}

var _ sdktrace.SpanExporter = (*DebugExporter)(nil)
