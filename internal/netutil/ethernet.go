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

// EthernetHeaderLen is dst(6)+src(6)+ethertype(2).
const EthernetHeaderLen = 14

// VLANTagLen is the size of one 802.1Q/802.1ad tag (tpid already consumed
// as the ethertype; this is tci(2)+inner ethertype(2)).
const VLANTagLen = 4

// EthernetView describes the parsed link-layer prefix of a packet: where
// the payload starts and which ethertype ultimately introduces it, after
// walking any stacked VLAN tags.
type EthernetView struct {
	PayloadOffset int
	EtherType     uint16
	VLANTagCount  int
}

// ParseEthernet walks an Ethernet header and up to maxVLANTags stacked
// 802.1Q/802.1ad tags. It returns ok=false on truncation or an
// unrecognized tag depth, in which case callers must pass the packet
// through unchanged.
func ParseEthernet(data []byte) (EthernetView, bool) {
	if len(data) < EthernetHeaderLen {
		return EthernetView{}, false
	}
	offset := 12 // skip dst+src MAC
	etherType := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2

	tags := 0
	for etherType == EtherTypeVLAN || etherType == EtherTypeVLANQinQ {
		if tags >= maxVLANTags {
			return EthernetView{}, false
		}
		if len(data) < offset+VLANTagLen {
			return EthernetView{}, false
		}
		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += VLANTagLen
		tags++
	}

	return EthernetView{PayloadOffset: offset, EtherType: etherType, VLANTagCount: tags}, true
}
