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

// Package dirrun implements the directory runner: it owns the
// directory-scoped IPMap, builds one pipeline.Executor per file from a
// config.Config, and aggregates FileResults into a DirectoryResult. File
// discovery/walking belongs to the CLI surface — callers pass an explicit
// list of FileJobs.
package dirrun

import (
	"context"
	"sync"

	"pktmask/internal/anonymize"
	"pktmask/internal/config"
	"pktmask/internal/dedup"
	"pktmask/internal/mask"
	"pktmask/internal/pipeline"
)

// FileJob names one file's input and output path for a directory run.
type FileJob struct {
	InputPath  string
	OutputPath string
}

// DirectoryResult is the outcome of a directory-scoped run: every file's
// FileResult plus the folded Aggregate.
type DirectoryResult struct {
	Files     []pipeline.FileResult
	Aggregate pipeline.Aggregate
}

// Runner owns the directory-scoped IPMap across every file in a run, so
// the same source address maps to the same pseudonym in every output file.
type Runner struct {
	cfg      config.Config
	ipmap    *anonymize.IPMap
	dedupKey [dedup.DigestSize]byte
}

// New constructs a Runner for one directory-scope run. A fresh IPMap and a
// fresh dedup digest key are created once per Runner and reused across
// every file the Runner processes; callers that want pseudonyms stable
// across multiple Run calls should keep reusing the same Runner.
func New(cfg config.Config) *Runner {
	key, err := dedup.NewRunKey()
	if err != nil {
		// crypto/rand failure is not recoverable; a Runner with an
		// all-zero key still functions (digests are merely predictable
		// within this run), so we degrade rather than panic.
		key = [dedup.DigestSize]byte{}
	}
	return &Runner{cfg: cfg, ipmap: anonymize.NewIPMap(), dedupKey: key}
}

// buildStages turns cfg into the fixed-order, filtered Stage list: dedup,
// then anonymize, then mask, each present only if enabled.
func (r *Runner) buildStages() []pipeline.Stage {
	var stages []pipeline.Stage
	if r.cfg.Dedup.Enabled {
		stages = append(stages, dedup.NewWithKey(r.dedupKey))
	}
	if r.cfg.Anonymize.Enabled {
		stages = append(stages, anonymize.NewStage(r.ipmap))
	}
	if r.cfg.Mask.Enabled {
		stages = append(stages, mask.NewStage(r.cfg.Mask))
	}
	return stages
}

// Run processes every job in jobs, honoring opts.Concurrency, and returns
// the folded DirectoryResult. progress is invoked for every event across
// every file; callers wanting per-file isolation should filter on
// Event.Path themselves.
func (r *Runner) Run(ctx context.Context, jobs []FileJob, opts config.RunOptions, progress pipeline.ProgressFunc) DirectoryResult {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu     sync.Mutex
		result DirectoryResult
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, concurrency)

	pipeline.Emit(progress, pipeline.Event{Kind: pipeline.EventPipelineStart})

	for _, job := range jobs {
		job := job
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			// Each file gets its own Executor instance (stages carry no
			// cross-file state of their own — dedup's digest set and
			// mask's marker/masker are rebuilt fresh per file — except
			// anonymize, whose Stage wraps the Runner's shared IPMap).
			exec := pipeline.NewExecutor(r.buildStages())
			fileResult := exec.Run(ctx, job.InputPath, job.OutputPath, progress)

			mu.Lock()
			result.Files = append(result.Files, fileResult)
			result.Aggregate.Add(fileResult)
			mu.Unlock()
		}()
	}
	wg.Wait()

	pipeline.Emit(progress, pipeline.Event{Kind: pipeline.EventPipelineEnd, Aggregate: result.Aggregate})
	return result
}
