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

import "time"

// StageStats is produced once per stage per file.
type StageStats struct {
	StageName        string
	PacketsProcessed int64
	PacketsModified  int64
	Duration         time.Duration
	Extras           map[string]any
}

// FileResult is the outcome of running the executor over a single file.
type FileResult struct {
	Input  string
	Output string
	OK     bool
	Stages []StageStats
	Errors []string
}

// Aggregate folds FileResults across a directory run. It is intentionally a
// plain value (not atomics) — the DirectoryRunner owns synchronization
// around concurrent appends; see internal/dirrun.
type Aggregate struct {
	FilesTotal     int
	FilesOK        int
	FilesFailed    int
	PacketsTotal   int64
	PacketsDropped int64 // dedup removals, summed across files
	FailedFiles    []string
}

// Add folds one FileResult into the aggregate.
func (a *Aggregate) Add(r FileResult) {
	a.FilesTotal++
	if r.OK {
		a.FilesOK++
	} else {
		a.FilesFailed++
		a.FailedFiles = append(a.FailedFiles, r.Input)
	}
	for _, s := range r.Stages {
		a.PacketsTotal += s.PacketsProcessed
		if s.StageName == "dedup" {
			if removed, ok := s.Extras["removed_count"].(int64); ok {
				a.PacketsDropped += removed
			}
		}
	}
}
