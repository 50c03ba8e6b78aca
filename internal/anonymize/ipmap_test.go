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

package anonymize

import (
	"net"
	"testing"
	"testing/quick"
)

func commonPrefixLen(a, b net.IP) int {
	n := len(a) * 8
	for i := 0; i < n; i++ {
		byteIdx, bitIdx := i/8, 7-(i%8)
		if (a[byteIdx]>>uint(bitIdx))&1 != (b[byteIdx]>>uint(bitIdx))&1 {
			return i
		}
	}
	return n
}

func TestIPMapIsDeterministic(t *testing.T) {
	m := NewIPMap()
	ip := net.ParseIP("203.0.113.7").To4()
	a := m.GetOrInsert(ip)
	b := m.GetOrInsert(ip)
	if !a.Equal(b) {
		t.Fatalf("GetOrInsert not deterministic: %v != %v", a, b)
	}
}

func TestIPMapIsInjective(t *testing.T) {
	m := NewIPMap()
	seen := map[string]string{}
	addrs := []string{"203.0.113.1", "203.0.113.2", "198.51.100.5", "192.0.2.9", "10.1.2.3"}
	for _, s := range addrs {
		out := m.GetOrInsert(net.ParseIP(s).To4())
		if prev, ok := seen[out.String()]; ok {
			t.Fatalf("collision: %s and %s both map to %s", prev, s, out)
		}
		seen[out.String()] = s
	}
}

func TestIPMapPreservesSharedPrefixLength(t *testing.T) {
	m := NewIPMap()
	a := net.ParseIP("203.0.113.1").To4()
	b := net.ParseIP("203.0.113.2").To4()
	c := net.ParseIP("198.51.100.9").To4()

	aOut := m.GetOrInsert(a)
	bOut := m.GetOrInsert(b)
	cOut := m.GetOrInsert(c)

	wantAB := commonPrefixLen(a, b)
	gotAB := commonPrefixLen(aOut, bOut)
	if gotAB != wantAB {
		t.Fatalf("prefix(a,b) = %d, want %d", gotAB, wantAB)
	}

	wantAC := commonPrefixLen(a, c)
	gotAC := commonPrefixLen(aOut, cOut)
	if gotAC != wantAC {
		t.Fatalf("prefix(a,c) = %d, want %d", gotAC, wantAC)
	}
}

// TestIPMapPreservesSharedPrefixLengthProperty checks the shared-prefix
// invariant over many random address pairs rather than one fixed pair, so a
// construction that only preserves prefixes on a lucky subset of inputs
// (e.g. one keyed per trie edge instead of per trie node) cannot pass by
// chance the way a single hand-picked pair could.
func TestIPMapPreservesSharedPrefixLengthProperty(t *testing.T) {
	f := func(a, b uint32) bool {
		aIP := net.IPv4(byte(a>>24), byte(a>>16), byte(a>>8), byte(a)).To4()
		bIP := net.IPv4(byte(b>>24), byte(b>>16), byte(b>>8), byte(b)).To4()
		if isReserved(aIP) || isReserved(bIP) {
			return true
		}

		m := NewIPMap()
		aOut := m.GetOrInsert(aIP)
		bOut := m.GetOrInsert(bIP)

		return commonPrefixLen(aOut, bOut) == commonPrefixLen(aIP, bIP)
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 2000}); err != nil {
		t.Error(err)
	}
}

func TestIPMapReservedAddressesAreIdentity(t *testing.T) {
	m := NewIPMap()
	cases := []string{"127.0.0.1", "224.0.0.1", "0.0.0.0", "255.255.255.255", "169.254.1.1"}
	for _, s := range cases {
		ip := net.ParseIP(s).To4()
		out := m.GetOrInsert(ip)
		if !out.Equal(ip) {
			t.Errorf("reserved address %s mapped to %s, want identity", s, out)
		}
	}
}

func TestIPMapPreservesFamily(t *testing.T) {
	m := NewIPMap()
	v4 := net.ParseIP("203.0.113.1").To4()
	v6 := net.ParseIP("2001:db8::1").To16()

	outV4 := m.GetOrInsert(v4)
	if outV4.To4() == nil {
		t.Fatalf("IPv4 input produced non-IPv4 output: %v", outV4)
	}
	outV6 := m.GetOrInsert(v6)
	if len(outV6) != net.IPv6len || outV6.To4() != nil {
		t.Fatalf("IPv6 input produced non-IPv6 output: %v", outV6)
	}
}
