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

// Package pipeline implements the file-processing executor: it sequences
// an ordered, independently-enabled set of Stages over one file, chaining
// scoped temporary files between them and aggregating per-stage stats into
// a FileResult.
//
// The façade shape — a constructor taking the ordered stage list, a single
// entry point that does the wiring — keeps construction and execution
// separate; a run has no background lifecycle to Start/Stop, so Executor
// exposes only Run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrCancelled is recorded in FileResult.Errors (the "cancelled" error
// kind) when ctx is done before the file finishes processing.
var ErrCancelled = errors.New("pipeline: cancelled")

// Executor runs a fixed, ordered list of Stages over a single file.
// Stages are named "dedup", "anonymize", "mask", always in that order;
// any subset may be present — disabled stages are simply absent from
// Stages, and an empty Stages list degenerates to a byte-for-byte copy.
type Executor struct {
	Stages []Stage
}

// NewExecutor constructs an Executor from an already-filtered, ordered
// stage list. Filtering "enabled vs disabled" into this list is the
// caller's job (internal/dirrun does it from a config.Config) so Executor
// itself never has to branch on enablement.
func NewExecutor(stages []Stage) *Executor {
	return &Executor{Stages: stages}
}

// Run executes every stage over input, producing output: chain through
// N-1 scoped temp files, stop on the first stage error, and always clean
// up temporaries.
func (e *Executor) Run(ctx context.Context, input, output string, progress ProgressFunc) FileResult {
	if progress == nil {
		progress = noopProgress
	}
	result := FileResult{Input: input, Output: output, OK: false}

	safeCall(progress, Event{Kind: EventFileStart, Path: input})

	if len(e.Stages) == 0 {
		if err := copyFile(input, output); err != nil {
			result.Errors = append(result.Errors, err.Error())
			safeCall(progress, Event{Kind: EventError, Severity: SeverityFatal, Message: err.Error(), Context: input})
			safeCall(progress, Event{Kind: EventFileEnd, Result: result})
			return result
		}
		result.OK = true
		safeCall(progress, Event{Kind: EventFileEnd, Result: result})
		return result
	}

	var temps []*scopedTempFile
	defer func() {
		for _, t := range temps {
			t.Remove()
		}
	}()

	currentIn := input
	for i, stage := range e.Stages {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ErrCancelled, ctx.Err()))
			_ = os.Remove(output)
			safeCall(progress, Event{Kind: EventError, Severity: SeverityFatal, Message: ErrCancelled.Error(), Context: input})
			safeCall(progress, Event{Kind: EventFileEnd, Result: result})
			return result
		default:
		}

		last := i == len(e.Stages)-1
		var target string
		var tmp *scopedTempFile
		if last {
			target = output
		} else {
			t, err := newScopedTempFile(output, stage.Name())
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				safeCall(progress, Event{Kind: EventError, Severity: SeverityFatal, Message: err.Error(), Context: input})
				safeCall(progress, Event{Kind: EventFileEnd, Result: result})
				return result
			}
			tmp = t
			temps = append(temps, tmp)
			target = tmp.path
		}

		safeCall(progress, Event{Kind: EventStepStart, Path: input, StageName: stage.Name()})
		start := time.Now()
		stats, err := stage.ProcessFile(ctx, currentIn, target, progress)
		stats.Duration = time.Since(start)
		stats.StageName = stage.Name()
		result.Stages = append(result.Stages, stats)
		safeCall(progress, Event{Kind: EventStepEnd, Path: input, StageName: stage.Name(), Stats: stats})

		if err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %v", ErrCancelled, err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", stage.Name(), err))
			if last {
				_ = os.Remove(output)
			}
			safeCall(progress, Event{Kind: EventError, Severity: SeverityFatal, Message: err.Error(), Context: input, StageName: stage.Name()})
			safeCall(progress, Event{Kind: EventFileEnd, Result: result})
			return result
		}

		currentIn = target
	}

	result.OK = true
	safeCall(progress, Event{Kind: EventFileEnd, Result: result})
	return result
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("pipeline: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("pipeline: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("pipeline: copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("pipeline: close %s: %w", dst, err)
	}
	return nil
}
