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

package dedup

import (
	"context"
	"fmt"
	"io"
	"time"

	"pktmask/internal/pipeline"
	"pktmask/pkg/pcap"
)

// Stage implements pipeline.Stage for exact-duplicate removal. Two packets
// are duplicates when their full bytes (link layer through payload, but not
// their capture timestamp) match exactly; the first copy seen is kept and
// every later one is dropped.
type Stage struct {
	key [DigestSize]byte
}

// New constructs a dedup stage with a fresh random digest key.
func New() (*Stage, error) {
	key, err := newRunKey()
	if err != nil {
		return nil, fmt.Errorf("dedup: generate digest key: %w", err)
	}
	return &Stage{key: key}, nil
}

// NewWithKey constructs a dedup stage using an already-generated digest key,
// so a directory run can share one key (generated once via NewRunKey) across
// every file's Stage instance rather than re-randomizing per file.
func NewWithKey(key [DigestSize]byte) *Stage {
	return &Stage{key: key}
}

// NewRunKey generates a fresh digest key for a directory run. Digests are
// only ever compared within a single file, so sharing this key across every
// file in a run is a matter of the key being generated once per run rather
// than a correctness requirement.
func NewRunKey() ([DigestSize]byte, error) {
	return newRunKey()
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "dedup" }

// ProcessFile implements pipeline.Stage.
func (s *Stage) ProcessFile(ctx context.Context, in, out string, _ pipeline.ProgressFunc) (pipeline.StageStats, error) {
	start := time.Now()
	stats := pipeline.StageStats{StageName: s.Name()}

	r, err := pcap.OpenReader(in)
	if err != nil {
		return stats, err
	}
	defer r.Close()

	w, err := pcap.OpenWriter(out, r.Format(), r.LinkType(), 0)
	if err != nil {
		return stats, err
	}
	defer w.Close()

	seen := make(map[Digest]struct{})
	var processed, removed int64

	for {
		select {
		case <-ctx.Done():
			stats.Duration = time.Since(start)
			return stats, ctx.Err()
		default:
		}

		rec, err := r.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("dedup: read packet %d of %s: %w", processed+1, in, err)
		}
		processed++

		d := digestOf(s.key, rec.Data)
		if _, dup := seen[d]; dup {
			removed++
			continue
		}
		seen[d] = struct{}{}

		if err := w.WritePacket(rec); err != nil {
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("dedup: write packet %d of %s: %w", processed, out, err)
		}
	}

	stats.PacketsProcessed = processed
	stats.PacketsModified = removed
	stats.Duration = time.Since(start)
	stats.Extras = map[string]any{
		"unique_packets": processed - removed,
		"removed_count":  removed,
	}
	return stats, nil
}
