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

package mask

import "sort"

// KeepRule is one half-open range in a stream direction's 32-bit sequence
// space that the masker must preserve byte-exact. SeqEndExclusive == 0 is
// the sentinel for "wraps exactly to the top of the space" (sequence
// number 2^32, congruent to 0) rather than an empty range — AddRange never
// stores a genuinely empty rule.
type KeepRule struct {
	SeqStart        uint32
	SeqEndExclusive uint32
}

// LocalKeepRange is a KeepRule's overlap with one packet's payload,
// expressed as a byte offset/length local to that payload rather than in
// absolute sequence space, for the masker to index directly.
type LocalKeepRange struct {
	Offset int
	Length int
}

// KeepRuleSet is an input file's complete set of keep-ranges, partitioned
// by (stream, direction). It is built single-threaded by the Marker over
// one file, then consulted read-only by the Masker's second pass over the
// same file.
type KeepRuleSet struct {
	partitions map[PartitionKey][]KeepRule
}

// NewKeepRuleSet returns an empty set.
func NewKeepRuleSet() *KeepRuleSet {
	return &KeepRuleSet{partitions: make(map[PartitionKey][]KeepRule)}
}

// AddRange records that [start, start+length) must be preserved in pk's
// partition. A range that crosses the 2^32 boundary is split into two
// sub-ranges, one on each side of the wrap.
func (s *KeepRuleSet) AddRange(pk PartitionKey, start, length uint32) {
	if length == 0 {
		return
	}
	sum := uint64(start) + uint64(length)
	if sum <= 1<<32 {
		s.partitions[pk] = append(s.partitions[pk], KeepRule{SeqStart: start, SeqEndExclusive: uint32(sum)})
		return
	}
	remainder := uint32(sum - 1<<32)
	s.partitions[pk] = append(s.partitions[pk], KeepRule{SeqStart: start, SeqEndExclusive: 0})
	s.partitions[pk] = append(s.partitions[pk], KeepRule{SeqStart: 0, SeqEndExclusive: remainder})
}

// span is an unwrapped [lo, hi) pair in a 64-bit space large enough that
// no rule or query needs to wrap a second time while Normalize/KeepOffsets
// reason about it.
type span struct{ lo, hi uint64 }

func (r KeepRule) span() span {
	lo, hi := uint64(r.SeqStart), uint64(r.SeqEndExclusive)
	if hi <= lo {
		hi += 1 << 32
	}
	return span{lo, hi}
}

// Normalize sorts and merges overlapping/adjacent ranges within every
// partition. Call once after the Marker has finished reading the file.
func (s *KeepRuleSet) Normalize() {
	for pk, rules := range s.partitions {
		if len(rules) == 0 {
			continue
		}
		spans := make([]span, len(rules))
		for i, r := range rules {
			spans[i] = r.span()
		}
		sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })

		merged := spans[:1]
		for _, sp := range spans[1:] {
			last := &merged[len(merged)-1]
			if sp.lo <= last.hi {
				if sp.hi > last.hi {
					last.hi = sp.hi
				}
				continue
			}
			merged = append(merged, sp)
		}

		var out []KeepRule
		for _, sp := range merged {
			lo, hi := sp.lo, sp.hi
			for hi > 1<<32 {
				if lo >= 1<<32 {
					lo -= 1 << 32
					hi -= 1 << 32
					continue
				}
				out = append(out, KeepRule{SeqStart: uint32(lo), SeqEndExclusive: 0})
				lo, hi = 0, hi-(1<<32)
			}
			out = append(out, KeepRule{SeqStart: uint32(lo), SeqEndExclusive: uint32(hi)})
		}
		s.partitions[pk] = out
	}
}

// KeepOffsets returns, as byte offsets local to a payload of segLen bytes
// starting at sequence number segStart, every sub-range of that payload
// the partition pk says must be preserved. An absent partition (no TLS
// rules ever emitted for this stream/direction) yields nil, telling the
// masker to zero the whole payload.
func (s *KeepRuleSet) KeepOffsets(pk PartitionKey, segStart uint32, segLen int) []LocalKeepRange {
	if segLen <= 0 {
		return nil
	}
	rules, ok := s.partitions[pk]
	if !ok {
		return nil
	}
	qStart := uint64(segStart)
	qEnd := qStart + uint64(segLen)

	var out []LocalKeepRange
	for _, r := range rules {
		sp := r.span()
		// A payload that runs past 2^32 also overlaps rules stored at the
		// bottom of the space, which sit one wrap above it in query terms.
		for _, shift := range [2]uint64{0, 1 << 32} {
			lo, hi := sp.lo+shift, sp.hi+shift
			if lo < qStart {
				lo = qStart
			}
			if hi > qEnd {
				hi = qEnd
			}
			if lo < hi {
				out = append(out, LocalKeepRange{Offset: int(lo - qStart), Length: int(hi - lo)})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// HasPartition reports whether any rule was ever emitted for pk.
func (s *KeepRuleSet) HasPartition(pk PartitionKey) bool {
	_, ok := s.partitions[pk]
	return ok
}

// RuleCount returns the total number of rules across every partition,
// after Normalize has merged what it can — used for the
// rules_generated stats extra.
func (s *KeepRuleSet) RuleCount() int {
	n := 0
	for _, rules := range s.partitions {
		n += len(rules)
	}
	return n
}
