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
	"encoding/binary"
	"net"
	"testing"

	"pktmask/internal/netutil"
)

// buildIPv4TCPFrame constructs a minimal Ethernet+IPv4+TCP frame (no
// payload) with a correct IPv4 header checksum and TCP checksum, so tests
// can assert the rewrite preserves validity rather than merely changing
// bytes.
func buildIPv4TCPFrame(src, dst [4]byte) []byte {
	frame := make([]byte, netutil.EthernetHeaderLen+20+20)
	binary.BigEndian.PutUint16(frame[12:14], netutil.EtherTypeIPv4)

	ip := frame[netutil.EthernetHeaderLen:]
	ip[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(ip[2:4], 40) // total length
	ip[8] = 64   // TTL
	ip[9] = netutil.ProtoTCP
	copy(ip[12:16], src[:])
	copy(ip[16:20], dst[:])
	binary.BigEndian.PutUint16(ip[10:12], netutil.IPv4HeaderChecksum(ip[:20]))

	tcp := ip[20:]
	binary.BigEndian.PutUint16(tcp[0:2], 1234) // src port
	binary.BigEndian.PutUint16(tcp[2:4], 443)  // dst port
	tcp[12] = 5 << 4                           // data offset 20
	binary.BigEndian.PutUint16(tcp[16:18], netutil.TCPChecksumV4(src, dst, tcp))

	return frame
}

func TestRewritePacketChangesAddressesAndKeepsChecksumsValid(t *testing.T) {
	m := NewIPMap()
	s := NewStage(m)

	src := [4]byte{203, 0, 113, 10}
	dst := [4]byte{198, 51, 100, 20}
	frame := buildIPv4TCPFrame(src, dst)

	didRewrite, v4n, v6n := s.rewritePacket(frame)
	if !didRewrite {
		t.Fatal("expected rewrite to succeed")
	}
	if v4n != 2 || v6n != 0 {
		t.Fatalf("v4n=%d v6n=%d, want 2,0", v4n, v6n)
	}

	ip := frame[netutil.EthernetHeaderLen:]
	newSrc := [4]byte{ip[12], ip[13], ip[14], ip[15]}
	newDst := [4]byte{ip[16], ip[17], ip[18], ip[19]}
	if newSrc == src {
		t.Error("source address was not changed")
	}
	if newDst == dst {
		t.Error("destination address was not changed")
	}

	if residue := netutil.Checksum16(ip[:20]); residue != 0 {
		t.Errorf("IPv4 header checksum invalid after rewrite: residue %#04x", residue)
	}

	tcp := ip[20:]
	stored := binary.BigEndian.Uint16(tcp[16:18])
	recomputed := netutil.TCPChecksumV4(newSrc, newDst, tcp)
	if stored != recomputed {
		t.Errorf("stored TCP checksum %#04x does not match recomputed %#04x over the new addresses", stored, recomputed)
	}
}

func TestGetOrInsertProducesSamePseudonymForSeparatelyParsedAddress(t *testing.T) {
	m := NewIPMap()
	ip := net.ParseIP("192.0.2.55").To4()
	first := m.GetOrInsert(ip)
	second := m.GetOrInsert(net.ParseIP("192.0.2.55").To4())
	if !first.Equal(second) {
		t.Fatalf("got %v and %v for the same address", first, second)
	}
}
