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

// Package mask implements TLS-aware payload masking: a Marker that
// reassembles TCP streams and emits keep-ranges, a Masker that zeroes
// everything outside them, and a Stage that runs both in sequence over the
// same input file.
package mask

// seqLess reports whether a precedes b in 32-bit modular TCP sequence
// space: a < b iff 0 < (b-a) mod 2^32 < 2^31. Every comparison in this package
// funnels through here and seqAdvance below rather than repeating the
// modular arithmetic inline.
func seqLess(a, b uint32) bool {
	return int32(b-a) > 0
}

// seqLessEq reports a <= b in the same modular sense.
func seqLessEq(a, b uint32) bool {
	return a == b || seqLess(a, b)
}

// seqAdvance returns how many sequence numbers separate a from b, assuming
// b is at or after a (the caller has already established that via
// seqLessEq); the result wraps correctly since it's plain uint32
// subtraction.
func seqAdvance(a, b uint32) uint32 {
	return b - a
}
