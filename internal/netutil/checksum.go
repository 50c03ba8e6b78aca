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

// Package netutil hand-rolls encapsulation parsing and editing for
// Ethernet/VLAN/QinQ, IPv4, IPv6 (with extension headers), TCP, UDP,
// ICMPv4, and ICMPv6, plus RFC 1071 checksum recomputation. Per the
// module's design notes, this is explicit struct-layout, bounds-checked
// slicing — no reflection-like generic field access, and no dependency on
// a packet-decoding library for this concern (container framing, a
// separate concern, does use gopacket/pcapgo; see pkg/pcap).
package netutil

import "encoding/binary"

// Checksum16 computes the RFC 1071 Internet checksum ones'-complement sum
// over data, folding carries into 16 bits and returning the ones'
// complement. This is the single routine every header/pseudo-header
// checksum in this package builds on.
func Checksum16(data []byte) uint16 {
	var sum uint32
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// checksumAccumulate folds data into a running ones'-complement sum without
// finalizing it, so pseudo-header + payload can be summed across
// non-contiguous buffers before one final fold+complement.
func checksumAccumulate(sum uint32, data []byte) uint32 {
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	return sum
}

func checksumFinalize(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// IPv4HeaderChecksum recomputes the IPv4 header checksum over header
// (the IHL*4-byte header with the checksum field itself treated as zero).
func IPv4HeaderChecksum(header []byte) uint16 {
	// Copy so we can zero the checksum field (bytes 10-11) without
	// mutating the caller's slice.
	tmp := make([]byte, len(header))
	copy(tmp, header)
	if len(tmp) >= 12 {
		tmp[10], tmp[11] = 0, 0
	}
	return Checksum16(tmp)
}

// pseudoHeaderV4 builds the IPv4 TCP/UDP pseudo-header: src(4) dst(4)
// zero(1) proto(1) length(2).
func pseudoHeaderV4(src, dst [4]byte, proto uint8, length uint16) []byte {
	buf := make([]byte, 12)
	copy(buf[0:4], src[:])
	copy(buf[4:8], dst[:])
	buf[8] = 0
	buf[9] = proto
	binary.BigEndian.PutUint16(buf[10:12], length)
	return buf
}

// pseudoHeaderV6 builds the IPv6 TCP/UDP/ICMPv6 pseudo-header: src(16)
// dst(16) upperLayerLength(4) zero(3) nextHeader(1).
func pseudoHeaderV6(src, dst [16]byte, nextHeader uint8, length uint32) []byte {
	buf := make([]byte, 40)
	copy(buf[0:16], src[:])
	copy(buf[16:32], dst[:])
	binary.BigEndian.PutUint32(buf[32:36], length)
	buf[36], buf[37], buf[38] = 0, 0, 0
	buf[39] = nextHeader
	return buf
}

// TCPChecksumV4 recomputes the TCP checksum for an IPv4 segment. segment is
// the full TCP header+payload with the checksum field (bytes 16-17) not
// required to be pre-zeroed — it is zeroed internally.
func TCPChecksumV4(src, dst [4]byte, segment []byte) uint16 {
	tmp := make([]byte, len(segment))
	copy(tmp, segment)
	if len(tmp) >= 18 {
		tmp[16], tmp[17] = 0, 0
	}
	sum := checksumAccumulate(0, pseudoHeaderV4(src, dst, ProtoTCP, uint16(len(segment))))
	sum = checksumAccumulate(sum, tmp)
	return checksumFinalize(sum)
}

// TCPChecksumV6 recomputes the TCP checksum for an IPv6 segment.
func TCPChecksumV6(src, dst [16]byte, segment []byte) uint16 {
	tmp := make([]byte, len(segment))
	copy(tmp, segment)
	if len(tmp) >= 18 {
		tmp[16], tmp[17] = 0, 0
	}
	sum := checksumAccumulate(0, pseudoHeaderV6(src, dst, ProtoTCP, uint32(len(segment))))
	sum = checksumAccumulate(sum, tmp)
	return checksumFinalize(sum)
}

// UDPChecksumV4 recomputes the UDP checksum for an IPv4 datagram. Per
// RFC 768, a zero checksum over IPv4 means "no checksum" and must be
// preserved as zero rather than recomputed into a real value; callers
// check for that before calling this.
func UDPChecksumV4(src, dst [4]byte, segment []byte) uint16 {
	tmp := make([]byte, len(segment))
	copy(tmp, segment)
	if len(tmp) >= 8 {
		tmp[6], tmp[7] = 0, 0
	}
	sum := checksumAccumulate(0, pseudoHeaderV4(src, dst, ProtoUDP, uint16(len(segment))))
	sum = checksumAccumulate(sum, tmp)
	cs := checksumFinalize(sum)
	if cs == 0 {
		// RFC 768: a computed checksum of 0 is transmitted as all-ones.
		cs = 0xFFFF
	}
	return cs
}

// UDPChecksumV6 recomputes the UDP checksum for an IPv6 datagram. IPv6 UDP
// checksums are mandatory (never zero).
func UDPChecksumV6(src, dst [16]byte, segment []byte) uint16 {
	tmp := make([]byte, len(segment))
	copy(tmp, segment)
	if len(tmp) >= 8 {
		tmp[6], tmp[7] = 0, 0
	}
	sum := checksumAccumulate(0, pseudoHeaderV6(src, dst, ProtoUDP, uint32(len(segment))))
	sum = checksumAccumulate(sum, tmp)
	cs := checksumFinalize(sum)
	if cs == 0 {
		cs = 0xFFFF
	}
	return cs
}

// ICMPv4Checksum recomputes the ICMPv4 checksum, which has no pseudo-header
// and is unaffected by IP address changes; recomputing still matters when
// an inner ICMP error payload embeds an IP header whose addresses were
// themselves rewritten.
func ICMPv4Checksum(msg []byte) uint16 {
	tmp := make([]byte, len(msg))
	copy(tmp, msg)
	if len(tmp) >= 4 {
		tmp[2], tmp[3] = 0, 0
	}
	return Checksum16(tmp)
}

// ICMPv6Checksum recomputes the ICMPv6 checksum, which (unlike ICMPv4)
// includes the IPv6 pseudo-header and therefore must always be recomputed
// after address rewriting.
func ICMPv6Checksum(src, dst [16]byte, msg []byte) uint16 {
	tmp := make([]byte, len(msg))
	copy(tmp, msg)
	if len(tmp) >= 4 {
		tmp[2], tmp[3] = 0, 0
	}
	sum := checksumAccumulate(0, pseudoHeaderV6(src, dst, ProtoICMPv6, uint32(len(msg))))
	sum = checksumAccumulate(sum, tmp)
	return checksumFinalize(sum)
}
