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

// IPv4MinHeaderLen is the fixed portion of an IPv4 header (no options).
const IPv4MinHeaderLen = 20

// IPv4View describes an IPv4 header located within a packet buffer, all
// offsets relative to the start of the header (data[0] == version/IHL
// byte).
type IPv4View struct {
	HeaderLen int
	TotalLen  int
	Protocol  uint8
	SrcOffset int    // always 12
	DstOffset int    // always 16
	FragOff   uint16 // 13-bit fragment offset
	MoreFrags bool
}

// ParseIPv4 reads the fixed+options portion of an IPv4 header from data
// (data[0] must be the version/IHL byte). It returns ok=false on
// truncation or an invalid IHL, in which case the packet passes through
// every stage unchanged.
func ParseIPv4(data []byte) (IPv4View, bool) {
	if len(data) < IPv4MinHeaderLen {
		return IPv4View{}, false
	}
	version := data[0] >> 4
	if version != 4 {
		return IPv4View{}, false
	}
	ihl := int(data[0]&0x0F) * 4
	if ihl < IPv4MinHeaderLen || len(data) < ihl {
		return IPv4View{}, false
	}
	totalLen := int(binary.BigEndian.Uint16(data[2:4]))
	flagsFrag := binary.BigEndian.Uint16(data[6:8])
	return IPv4View{
		HeaderLen: ihl,
		TotalLen:  totalLen,
		Protocol:  data[9],
		SrcOffset: 12,
		DstOffset: 16,
		FragOff:   flagsFrag & 0x1FFF,
		MoreFrags: flagsFrag&0x2000 != 0,
	}, true
}

// SrcIP returns the 4-byte source address.
func (v IPv4View) SrcIP(header []byte) [4]byte {
	var out [4]byte
	copy(out[:], header[v.SrcOffset:v.SrcOffset+4])
	return out
}

// DstIP returns the 4-byte destination address.
func (v IPv4View) DstIP(header []byte) [4]byte {
	var out [4]byte
	copy(out[:], header[v.DstOffset:v.DstOffset+4])
	return out
}

// SetSrcIP overwrites the source address in place.
func (v IPv4View) SetSrcIP(header []byte, ip [4]byte) { copy(header[v.SrcOffset:v.SrcOffset+4], ip[:]) }

// SetDstIP overwrites the destination address in place.
func (v IPv4View) SetDstIP(header []byte, ip [4]byte) { copy(header[v.DstOffset:v.DstOffset+4], ip[:]) }

// FixChecksum recomputes and writes the IPv4 header checksum in place.
func (v IPv4View) FixChecksum(header []byte) {
	cs := IPv4HeaderChecksum(header[:v.HeaderLen])
	binary.BigEndian.PutUint16(header[10:12], cs)
}
