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

// EtherType values the encapsulation walk recognizes.
const (
	EtherTypeIPv4     uint16 = 0x0800
	EtherTypeIPv6     uint16 = 0x86DD
	EtherTypeVLAN     uint16 = 0x8100 // 802.1Q
	EtherTypeVLANQinQ uint16 = 0x88A8 // 802.1ad, accepted as an outer QinQ tag too
	EtherTypeARP      uint16 = 0x0806
)

// IP protocol numbers (IPv4 protocol field / IPv6 next header) the
// encapsulation walk and checksum fixups care about.
const (
	ProtoICMPv4   uint8 = 1
	ProtoIPv4     uint8 = 4 // IP-in-IP encapsulation
	ProtoTCP      uint8 = 6
	ProtoUDP      uint8 = 17
	ProtoIPv6     uint8 = 41 // IPv6 encapsulated in IPv4/IPv6
	ProtoRouting  uint8 = 43
	ProtoFragment uint8 = 44
	ProtoESP      uint8 = 50
	ProtoAH       uint8 = 51
	ProtoICMPv6   uint8 = 58
	ProtoNoNext   uint8 = 59
	ProtoDstOpts  uint8 = 60
	ProtoMobility uint8 = 135
	ProtoHopByHop uint8 = 0
)

// maxVLANTags bounds how many stacked 802.1Q/802.1ad tags ParseEthernet
// (and so LocateTransport) will walk through (Ethernet + single + QinQ; a
// third tag is treated as malformed rather than looped over indefinitely).
const maxVLANTags = 2
