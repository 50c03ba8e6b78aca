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

import (
	"testing"
	"testing/quick"
)

func TestSeqLessAcrossWrap(t *testing.T) {
	cases := []struct {
		a, b uint32
		want bool
	}{
		{0, 1, true},
		{1, 0, false},
		{100, 100, false},
		{0xFFFFFFFF, 0, true},       // wrap: max precedes zero
		{0, 0xFFFFFFFF, false},      // and not the other way around
		{0xFFFFFF00, 0x00000100, true},
		{0x7FFFFFFF, 0xFFFFFFFE, true},
		{0x80000001, 0x00000000, true},
	}
	for _, c := range cases {
		if got := seqLess(c.a, c.b); got != c.want {
			t.Errorf("seqLess(%#x, %#x) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestSeqLessIsAntisymmetric(t *testing.T) {
	f := func(a, b uint32) bool {
		if a == b {
			return !seqLess(a, b) && !seqLess(b, a)
		}
		// Exactly opposite points (distance 2^31) are the one ambiguous
		// pair; the definition makes both directions false there.
		if b-a == 1<<31 {
			return true
		}
		return seqLess(a, b) != seqLess(b, a)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestSeqAdvanceWraps(t *testing.T) {
	if got := seqAdvance(0xFFFFFFF0, 0x10); got != 0x20 {
		t.Fatalf("seqAdvance across wrap = %d, want 32", got)
	}
	if got := seqAdvance(5, 5); got != 0 {
		t.Fatalf("seqAdvance(5,5) = %d, want 0", got)
	}
}
