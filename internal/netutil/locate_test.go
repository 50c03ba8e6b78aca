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

package netutil

import (
	"encoding/binary"
	"testing"
)

// ethHeader returns a 14-byte Ethernet header introducing etherType.
func ethHeader(etherType uint16) []byte {
	h := make([]byte, EthernetHeaderLen)
	binary.BigEndian.PutUint16(h[12:14], etherType)
	return h
}

// vlanTag returns one 802.1Q tag (tci + inner ethertype).
func vlanTag(inner uint16) []byte {
	tag := make([]byte, VLANTagLen)
	binary.BigEndian.PutUint16(tag[0:2], 100) // VID 100
	binary.BigEndian.PutUint16(tag[2:4], inner)
	return tag
}

// ipv4Header returns a 20-byte optionless IPv4 header for proto carrying
// payloadLen payload bytes.
func ipv4Header(proto uint8, payloadLen int) []byte {
	h := make([]byte, IPv4MinHeaderLen)
	h[0] = 0x45
	binary.BigEndian.PutUint16(h[2:4], uint16(IPv4MinHeaderLen+payloadLen))
	h[8] = 64
	h[9] = proto
	copy(h[12:16], []byte{10, 0, 0, 1})
	copy(h[16:20], []byte{10, 0, 0, 2})
	binary.BigEndian.PutUint16(h[10:12], IPv4HeaderChecksum(h))
	return h
}

// ipv6Header returns a fixed 40-byte IPv6 header with the given next header
// and payload length.
func ipv6Header(nextHeader uint8, payloadLen int) []byte {
	h := make([]byte, IPv6HeaderLen)
	h[0] = 0x60
	binary.BigEndian.PutUint16(h[4:6], uint16(payloadLen))
	h[6] = nextHeader
	h[7] = 64
	h[8] = 0x20
	h[9] = 0x01
	h[24] = 0x20
	h[25] = 0x02
	return h
}

func tcpHeader(seq uint32) []byte {
	h := make([]byte, TCPMinHeaderLen)
	binary.BigEndian.PutUint16(h[0:2], 40000)
	binary.BigEndian.PutUint16(h[2:4], 443)
	binary.BigEndian.PutUint32(h[4:8], seq)
	h[12] = 5 << 4
	return h
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestLocateTransportPlainIPv4TCP(t *testing.T) {
	pkt := concat(ethHeader(EtherTypeIPv4), ipv4Header(ProtoTCP, TCPMinHeaderLen), tcpHeader(1))
	loc, ok := LocateTransport(pkt)
	if !ok {
		t.Fatal("LocateTransport failed on a plain IPv4/TCP frame")
	}
	if loc.Transport.Proto != ProtoTCP {
		t.Fatalf("transport proto = %d, want TCP", loc.Transport.Proto)
	}
	if want := EthernetHeaderLen + IPv4MinHeaderLen; loc.Transport.Offset != want {
		t.Fatalf("transport offset = %d, want %d", loc.Transport.Offset, want)
	}
	if len(loc.IPLayers) != 1 || loc.IPLayers[0].IsV6 {
		t.Fatalf("unexpected IP layers: %+v", loc.IPLayers)
	}
}

func TestLocateTransportSingleVLAN(t *testing.T) {
	pkt := concat(ethHeader(EtherTypeVLAN), vlanTag(EtherTypeIPv4),
		ipv4Header(ProtoUDP, UDPHeaderLen), make([]byte, UDPHeaderLen))
	loc, ok := LocateTransport(pkt)
	if !ok {
		t.Fatal("LocateTransport failed on a VLAN-tagged frame")
	}
	if loc.Transport.Proto != ProtoUDP {
		t.Fatalf("transport proto = %d, want UDP", loc.Transport.Proto)
	}
	if want := EthernetHeaderLen + VLANTagLen + IPv4MinHeaderLen; loc.Transport.Offset != want {
		t.Fatalf("transport offset = %d, want %d", loc.Transport.Offset, want)
	}
}

func TestLocateTransportQinQ(t *testing.T) {
	pkt := concat(ethHeader(EtherTypeVLANQinQ), vlanTag(EtherTypeVLAN), vlanTag(EtherTypeIPv4),
		ipv4Header(ProtoTCP, TCPMinHeaderLen), tcpHeader(1))
	loc, ok := LocateTransport(pkt)
	if !ok {
		t.Fatal("LocateTransport failed on a QinQ frame")
	}
	if want := EthernetHeaderLen + 2*VLANTagLen + IPv4MinHeaderLen; loc.Transport.Offset != want {
		t.Fatalf("transport offset = %d, want %d", loc.Transport.Offset, want)
	}
}

func TestParseEthernetRejectsTripleTag(t *testing.T) {
	pkt := concat(ethHeader(EtherTypeVLANQinQ), vlanTag(EtherTypeVLAN), vlanTag(EtherTypeVLAN),
		vlanTag(EtherTypeIPv4))
	if _, ok := ParseEthernet(pkt); ok {
		t.Fatal("expected a three-deep VLAN stack to be rejected")
	}
}

func TestLocateTransportIPv6ExtensionChain(t *testing.T) {
	// IPv6 -> Hop-by-Hop -> Destination Options -> TCP.
	hbh := make([]byte, 8)
	hbh[0] = ProtoDstOpts
	hbh[1] = 0 // (0+1)*8 = 8 bytes
	dst := make([]byte, 8)
	dst[0] = ProtoTCP
	dst[1] = 0
	payload := concat(hbh, dst, tcpHeader(7))
	pkt := concat(ethHeader(EtherTypeIPv6), ipv6Header(ProtoHopByHop, len(payload)), payload)

	loc, ok := LocateTransport(pkt)
	if !ok {
		t.Fatal("LocateTransport failed on an IPv6 extension chain")
	}
	if loc.Transport.Proto != ProtoTCP {
		t.Fatalf("transport proto = %d, want TCP", loc.Transport.Proto)
	}
	if want := EthernetHeaderLen + IPv6HeaderLen + 16; loc.Transport.Offset != want {
		t.Fatalf("transport offset = %d, want %d", loc.Transport.Offset, want)
	}
	if len(loc.IPLayers) != 1 || !loc.IPLayers[0].IsV6 {
		t.Fatalf("unexpected IP layers: %+v", loc.IPLayers)
	}
}

func TestLocateTransportIPv6FragmentHeader(t *testing.T) {
	frag := make([]byte, 8)
	frag[0] = ProtoUDP
	payload := concat(frag, make([]byte, UDPHeaderLen))
	pkt := concat(ethHeader(EtherTypeIPv6), ipv6Header(ProtoFragment, len(payload)), payload)

	loc, ok := LocateTransport(pkt)
	if !ok {
		t.Fatal("LocateTransport failed on a fragment header")
	}
	if loc.Transport.Proto != ProtoUDP {
		t.Fatalf("transport proto = %d, want UDP", loc.Transport.Proto)
	}
	if want := EthernetHeaderLen + IPv6HeaderLen + 8; loc.Transport.Offset != want {
		t.Fatalf("transport offset = %d, want %d", loc.Transport.Offset, want)
	}
}

func TestLocateTransportStopsAtESP(t *testing.T) {
	pkt := concat(ethHeader(EtherTypeIPv6), ipv6Header(ProtoESP, 16), make([]byte, 16))
	loc, ok := LocateTransport(pkt)
	if !ok {
		t.Fatal("LocateTransport should succeed with ESP as the terminal protocol")
	}
	if loc.Transport.Proto != ProtoESP {
		t.Fatalf("transport proto = %d, want ESP", loc.Transport.Proto)
	}
}

func TestLocateTransportIPinIP(t *testing.T) {
	inner := concat(ipv4Header(ProtoTCP, TCPMinHeaderLen), tcpHeader(3))
	pkt := concat(ethHeader(EtherTypeIPv4), ipv4Header(ProtoIPv4, len(inner)), inner)

	loc, ok := LocateTransport(pkt)
	if !ok {
		t.Fatal("LocateTransport failed on IPv4-in-IPv4")
	}
	if len(loc.IPLayers) != 2 {
		t.Fatalf("got %d IP layers, want 2", len(loc.IPLayers))
	}
	if loc.Transport.Proto != ProtoTCP {
		t.Fatalf("transport proto = %d, want TCP", loc.Transport.Proto)
	}
	innermost, ok := loc.InnermostIP()
	if !ok || innermost.Offset != EthernetHeaderLen+IPv4MinHeaderLen {
		t.Fatalf("innermost IP layer offset = %d, want %d", innermost.Offset, EthernetHeaderLen+IPv4MinHeaderLen)
	}
}

func TestLocateTransportSixInFour(t *testing.T) {
	inner := concat(ipv6Header(ProtoTCP, TCPMinHeaderLen), tcpHeader(9))
	pkt := concat(ethHeader(EtherTypeIPv4), ipv4Header(ProtoIPv6, len(inner)), inner)

	loc, ok := LocateTransport(pkt)
	if !ok {
		t.Fatal("LocateTransport failed on IPv6-in-IPv4")
	}
	if len(loc.IPLayers) != 2 || !loc.IPLayers[1].IsV6 {
		t.Fatalf("unexpected IP layers: %+v", loc.IPLayers)
	}
	if loc.Transport.Proto != ProtoTCP {
		t.Fatalf("transport proto = %d, want TCP", loc.Transport.Proto)
	}
}

func TestLocateTransportRejectsARP(t *testing.T) {
	pkt := concat(ethHeader(EtherTypeARP), make([]byte, 28))
	if _, ok := LocateTransport(pkt); ok {
		t.Fatal("expected ARP to be unlocatable")
	}
}

func TestLocateTransportRejectsTruncatedIPv4(t *testing.T) {
	pkt := concat(ethHeader(EtherTypeIPv4), make([]byte, 10))
	if _, ok := LocateTransport(pkt); ok {
		t.Fatal("expected a truncated IPv4 header to be rejected")
	}
}

func TestParseTCPRejectsBogusDataOffset(t *testing.T) {
	h := tcpHeader(1)
	h[12] = 3 << 4 // data offset below the minimum
	if _, ok := ParseTCP(h, len(h)); ok {
		t.Fatal("expected data offset 12 to be rejected")
	}
	h[12] = 15 << 4 // data offset past the segment end
	if _, ok := ParseTCP(h, len(h)); ok {
		t.Fatal("expected data offset past segment end to be rejected")
	}
}
