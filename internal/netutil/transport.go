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

import "encoding/binary"

// TCPMinHeaderLen is the fixed portion of a TCP header (no options).
const TCPMinHeaderLen = 20

// UDPHeaderLen is the fixed UDP header size.
const UDPHeaderLen = 8

// TCPView describes a TCP header located within a packet buffer, all
// offsets relative to the start of the header.
type TCPView struct {
	HeaderLen     int
	SeqNum        uint32
	AckNum        uint32
	Flags         uint8
	PayloadOffset int
}

// ParseTCP reads a TCP header from data (data[0] is the source-port high
// byte). segLen is the total TCP segment length (header+payload) as known
// from the enclosing IP layer, used to validate the data-offset field.
func ParseTCP(data []byte, segLen int) (TCPView, bool) {
	if len(data) < TCPMinHeaderLen || segLen < TCPMinHeaderLen {
		return TCPView{}, false
	}
	dataOffset := int(data[12]>>4) * 4
	if dataOffset < TCPMinHeaderLen || dataOffset > segLen || len(data) < dataOffset {
		return TCPView{}, false
	}
	return TCPView{
		HeaderLen:     dataOffset,
		SeqNum:        binary.BigEndian.Uint32(data[4:8]),
		AckNum:        binary.BigEndian.Uint32(data[8:12]),
		Flags:         data[13],
		PayloadOffset: dataOffset,
	}, true
}

// FixChecksumV4 recomputes and writes the TCP checksum in place for an IPv4
// segment.
func (v TCPView) FixChecksumV4(src, dst [4]byte, segment []byte) {
	cs := TCPChecksumV4(src, dst, segment)
	binary.BigEndian.PutUint16(segment[16:18], cs)
}

// FixChecksumV6 recomputes and writes the TCP checksum in place for an
// IPv6 segment.
func (v TCPView) FixChecksumV6(src, dst [16]byte, segment []byte) {
	cs := TCPChecksumV6(src, dst, segment)
	binary.BigEndian.PutUint16(segment[16:18], cs)
}

// UDPView describes a UDP header.
type UDPView struct {
	Length int // from the UDP length field, header+payload
}

// ParseUDP reads the fixed 8-byte UDP header.
func ParseUDP(data []byte) (UDPView, bool) {
	if len(data) < UDPHeaderLen {
		return UDPView{}, false
	}
	return UDPView{Length: int(binary.BigEndian.Uint16(data[4:6]))}, true
}

// FixChecksumV4 recomputes the UDP checksum in place for an IPv4 datagram,
// preserving an all-zero "no checksum" field per RFC 768.
func (v UDPView) FixChecksumV4(src, dst [4]byte, segment []byte) {
	if len(segment) >= 8 && segment[6] == 0 && segment[7] == 0 {
		return
	}
	cs := UDPChecksumV4(src, dst, segment)
	binary.BigEndian.PutUint16(segment[6:8], cs)
}

// FixChecksumV6 recomputes the UDP checksum in place for an IPv6 datagram.
func (v UDPView) FixChecksumV6(src, dst [16]byte, segment []byte) {
	cs := UDPChecksumV6(src, dst, segment)
	binary.BigEndian.PutUint16(segment[6:8], cs)
}

// ICMPv4HeaderLen is the fixed portion common to all ICMPv4 messages
// (type, code, checksum); message-specific fields follow.
const ICMPv4HeaderLen = 4

// ICMPv6HeaderLen mirrors ICMPv4HeaderLen for ICMPv6.
const ICMPv6HeaderLen = 4

// FixICMPv4Checksum recomputes and writes the ICMPv4 checksum in place.
func FixICMPv4Checksum(msg []byte) {
	cs := ICMPv4Checksum(msg)
	binary.BigEndian.PutUint16(msg[2:4], cs)
}

// FixICMPv6Checksum recomputes and writes the ICMPv6 checksum in place.
func FixICMPv6Checksum(src, dst [16]byte, msg []byte) {
	cs := ICMPv6Checksum(src, dst, msg)
	binary.BigEndian.PutUint16(msg[2:4], cs)
}
