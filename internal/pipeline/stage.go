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

import "context"

// Stage is the closed set of pipeline steps the executor can sequence: a
// plain interface rather than a string-keyed registry, with the executor
// holding an ordered slice of Stage values. Implemented by the dedup,
// anonymize, and mask packages.
type Stage interface {
	// Name returns the stage's stable identifier ("dedup", "anonymize",
	// "mask") used in StageStats, events, and error context.
	Name() string

	// ProcessFile reads the capture at in, applies the stage's
	// transformation, and writes the result to out. progress is called at
	// most for this stage's own sub-steps (the executor handles
	// step_start/step_end framing around the call). ctx is checked at
	// natural suspension points only (file open/read/write); no per-packet
	// cooperative yielding is required.
	ProcessFile(ctx context.Context, in, out string, progress ProgressFunc) (StageStats, error)
}
