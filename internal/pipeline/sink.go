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

// ResultFileSink is a buffered, append-only JSONL sink for FileResults. It
// lets an external report tool (explicitly out of this module's scope) tail
// a directory run's outcomes without coupling to the core's in-process
// event stream. Safe for concurrent use by a parallel DirectoryRunner.
type ResultFileSink struct {
	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	lastFlush time.Time
}

// NewResultFileSink opens (or creates) path in append mode with a buffered
// writer. Call Close when done.
func NewResultFileSink(path string) (*ResultFileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &ResultFileSink{f: f, w: bufio.NewWriterSize(f, 1<<20), lastFlush: time.Now()}, nil
}

// OnEvent implements ProgressFunc, recording only file_end events (the
// point at which a FileResult is complete).
func (s *ResultFileSink) OnEvent(ev Event) {
	if ev.Kind != EventFileEnd {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	if err := enc.Encode(&ev.Result); err != nil {
		_ = s.w.Flush()
		_ = enc.Encode(&ev.Result)
	}
	if time.Since(s.lastFlush) > 100*time.Millisecond {
		_ = s.w.Flush()
		s.lastFlush = time.Now()
	}
}

// Flush forces buffered data to disk.
func (s *ResultFileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = time.Now()
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *ResultFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
	return s.f.Close()
}

// ReadAllResults reads an entire FileResult log back, for tests or replay.
func ReadAllResults(path string) ([]FileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []FileResult
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1<<20)
	scanner.Buffer(buf, 1<<26)
	for scanner.Scan() {
		var r FileResult
		if err := json.Unmarshal(scanner.Bytes(), &r); err == nil {
			out = append(out, r)
		}
	}
	return out, scanner.Err()
}
