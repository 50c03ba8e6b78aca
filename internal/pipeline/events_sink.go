// Copyright 2026 The PktMask Authors.
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

package pipeline

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// eventRecord is the JSON-safe projection of Event: Kind and Severity are
// rendered as strings so the log is self-describing without importing this
// package.
type eventRecord struct {
	Kind      string     `json:"kind"`
	Path      string     `json:"path,omitempty"`
	StageName string     `json:"stage_name,omitempty"`
	Stats     StageStats `json:"stats,omitempty"`
	Severity  string     `json:"severity,omitempty"`
	Message   string     `json:"message,omitempty"`
	Context   string     `json:"context,omitempty"`
}

var eventKindNames = map[EventKind]string{
	EventPipelineStart: "pipeline_start",
	EventFileStart:     "file_start",
	EventStepStart:     "step_start",
	EventStepEnd:       "step_end",
	EventFileEnd:       "file_end",
	EventPipelineEnd:   "pipeline_end",
	EventError:         "error",
}

var severityNames = map[ErrorSeverity]string{
	SeverityWarning: "warning",
	SeverityFatal:   "fatal",
}

// EventFileSink is a buffered, append-only JSONL sink for the raw event
// stream, for audit/replay independent of FileResult snapshots. Mirrors
// ResultFileSink's structure with a finer-grained record.
type EventFileSink struct {
	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	lastFlush time.Time
}

// NewEventFileSink opens (or creates) path in append mode.
func NewEventFileSink(path string) (*EventFileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &EventFileSink{f: f, w: bufio.NewWriterSize(f, 1<<20), lastFlush: time.Now()}, nil
}

// OnEvent implements ProgressFunc.
func (s *EventFileSink) OnEvent(ev Event) {
	rec := eventRecord{
		Kind:      eventKindNames[ev.Kind],
		Path:      ev.Path,
		StageName: ev.StageName,
		Message:   ev.Message,
		Context:   ev.Context,
	}
	if ev.Kind == EventStepEnd {
		rec.Stats = ev.Stats
	}
	if ev.Kind == EventError {
		rec.Severity = severityNames[ev.Severity]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	if err := enc.Encode(&rec); err != nil {
		_ = s.w.Flush()
		_ = enc.Encode(&rec)
	}
	if time.Since(s.lastFlush) > 100*time.Millisecond {
		_ = s.w.Flush()
		s.lastFlush = time.Now()
	}
}

// Flush forces buffered data to disk.
func (s *EventFileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = time.Now()
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *EventFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
	return s.f.Close()
}
