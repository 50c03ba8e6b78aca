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

// IPv6HeaderLen is the fixed IPv6 header size; extension headers follow it.
const IPv6HeaderLen = 40

// maxIPv6Extensions bounds the extension-header chain walk so a malformed
// or adversarial capture can't spin the loop indefinitely.
const maxIPv6Extensions = 8

// IPv6View describes the fixed IPv6 header.
type IPv6View struct {
	PayloadLen int
	NextHeader uint8
	SrcOffset  int // always 8
	DstOffset  int // always 24
}

// ParseIPv6 reads the fixed 40-byte IPv6 header from data (data[0] must be
// the version/traffic-class byte). ok=false on truncation or a version
// mismatch.
func ParseIPv6(data []byte) (IPv6View, bool) {
	if len(data) < IPv6HeaderLen {
		return IPv6View{}, false
	}
	if data[0]>>4 != 6 {
		return IPv6View{}, false
	}
	return IPv6View{
		PayloadLen: int(binary.BigEndian.Uint16(data[4:6])),
		NextHeader: data[6],
		SrcOffset:  8,
		DstOffset:  24,
	}, true
}

// SrcIP returns the 16-byte source address.
func (v IPv6View) SrcIP(header []byte) [16]byte {
	var out [16]byte
	copy(out[:], header[v.SrcOffset:v.SrcOffset+16])
	return out
}

// DstIP returns the 16-byte destination address.
func (v IPv6View) DstIP(header []byte) [16]byte {
	var out [16]byte
	copy(out[:], header[v.DstOffset:v.DstOffset+16])
	return out
}

// SetSrcIP overwrites the source address in place.
func (v IPv6View) SetSrcIP(header []byte, ip [16]byte) {
	copy(header[v.SrcOffset:v.SrcOffset+16], ip[:])
}

// SetDstIP overwrites the destination address in place.
func (v IPv6View) SetDstIP(header []byte, ip [16]byte) {
	copy(header[v.DstOffset:v.DstOffset+16], ip[:])
}

// isIPv6ExtensionHeader reports whether proto is one of the walkable
// extension header types (HBH, Routing, Fragment, AH, Destination Options,
// Mobility). ESP is deliberately excluded: its
// contents are opaque without the security association, so it is the
// chain's terminus rather than another link.
func isIPv6ExtensionHeader(proto uint8) bool {
	switch proto {
	case ProtoHopByHop, ProtoRouting, ProtoFragment, ProtoAH, ProtoDstOpts, ProtoMobility:
		return true
	default:
		return false
	}
}

// WalkIPv6Extensions walks the extension header chain starting at offset
// in data with the first header type nextHeader (IPv6View.NextHeader).
// It returns the byte offset of the upper-layer payload and the protocol
// that introduces it. When the chain runs into ESP, the walk stops there
// and reports ProtoESP with transportOffset pointing at the ESP header
// itself; callers treat that as "no further decoding possible".
func WalkIPv6Extensions(data []byte, offset int, nextHeader uint8) (transportOffset int, transportProto uint8, ok bool) {
	proto := nextHeader
	for i := 0; i < maxIPv6Extensions; i++ {
		if !isIPv6ExtensionHeader(proto) {
			return offset, proto, true
		}
		if proto == ProtoFragment {
			if len(data) < offset+8 {
				return 0, 0, false
			}
			proto = data[offset]
			offset += 8
			continue
		}
		if proto == ProtoAH {
			if len(data) < offset+2 {
				return 0, 0, false
			}
			nextProto := data[offset]
			payloadLenWords := int(data[offset+1])
			hdrLen := (payloadLenWords + 2) * 4
			if len(data) < offset+hdrLen {
				return 0, 0, false
			}
			proto = nextProto
			offset += hdrLen
			continue
		}
		// Hop-by-Hop, Routing, Destination Options, Mobility share a
		// common TLV-prefixed layout: nextHeader(1) hdrExtLen(1) ...
		if len(data) < offset+2 {
			return 0, 0, false
		}
		nextProto := data[offset]
		hdrExtLen := int(data[offset+1])
		hdrLen := (hdrExtLen + 1) * 8
		if len(data) < offset+hdrLen {
			return 0, 0, false
		}
		proto = nextProto
		offset += hdrLen
	}
	return 0, 0, false
}
