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

// maxIPTunnelDepth bounds IP-in-IP recursion: an encapsulated IPv4/IPv6
// header inside another IP packet is itself walked, to a bounded depth
// rather than indefinitely.
const maxIPTunnelDepth = 4

// IPLayer records one IP header found while locating the transport layer,
// innermost last. AnonymizationStage rewrites every layer's addresses;
// MaskingStage only cares about the innermost one.
type IPLayer struct {
	Offset int // byte offset of this IP header within the packet
	IsV6   bool
	V4     IPv4View
	V6     IPv6View
}

// Transport identifies the upper-layer protocol and its byte offset,
// following whatever chain of Ethernet/VLAN, IP-in-IP tunnels, and IPv6
// extension headers precedes it.
type Transport struct {
	Offset int
	Proto  uint8 // ProtoTCP, ProtoUDP, ProtoICMPv4, ProtoICMPv6, or the
	// terminal extension-header protocol (e.g. ProtoESP) when no further
	// decoding is possible.
}

// Located is the result of walking a full packet's encapsulation stack.
type Located struct {
	LinkPayloadOffset int // start of the first IP header
	IPLayers          []IPLayer
	Transport         Transport
}

// LocateTransport walks data's link layer, any IP-in-IP tunnel nesting,
// and IPv6 extension header chain to find the upper-layer transport
// protocol and its offset. ok=false means the packet
// doesn't fit the recognized encapsulation stack (non-IP ethertype,
// truncation, malformed header) and must be passed through unchanged by
// every stage that calls this.
func LocateTransport(data []byte) (Located, bool) {
	eth, ok := ParseEthernet(data)
	if !ok {
		return Located{}, false
	}

	result := Located{LinkPayloadOffset: eth.PayloadOffset}
	offset := eth.PayloadOffset
	etherType := eth.EtherType

	for depth := 0; depth < maxIPTunnelDepth; depth++ {
		switch etherType {
		case EtherTypeIPv4:
			v4, ok := ParseIPv4(data[offset:])
			if !ok {
				return Located{}, false
			}
			result.IPLayers = append(result.IPLayers, IPLayer{Offset: offset, V4: v4})
			transportOffset := offset + v4.HeaderLen
			switch v4.Protocol {
			case ProtoIPv4:
				offset = transportOffset
				etherType = EtherTypeIPv4
				continue
			case ProtoIPv6:
				offset = transportOffset
				etherType = EtherTypeIPv6
				continue
			default:
				result.Transport = Transport{Offset: transportOffset, Proto: v4.Protocol}
				return result, true
			}

		case EtherTypeIPv6:
			v6, ok := ParseIPv6(data[offset:])
			if !ok {
				return Located{}, false
			}
			result.IPLayers = append(result.IPLayers, IPLayer{Offset: offset, IsV6: true, V6: v6})
			transportOffset, transportProto, ok := WalkIPv6Extensions(data[offset:], IPv6HeaderLen, v6.NextHeader)
			if !ok {
				return Located{}, false
			}
			switch transportProto {
			case ProtoIPv4:
				offset += transportOffset
				etherType = EtherTypeIPv4
				continue
			case ProtoIPv6:
				offset += transportOffset
				etherType = EtherTypeIPv6
				continue
			default:
				result.Transport = Transport{Offset: offset + transportOffset, Proto: transportProto}
				return result, true
			}

		default:
			return Located{}, false
		}
	}
	return Located{}, false
}

// InnermostIP returns the last (innermost) IP layer found, the one whose
// addresses bound the transport segment MaskingStage operates on.
func (l Located) InnermostIP() (IPLayer, bool) {
	if len(l.IPLayers) == 0 {
		return IPLayer{}, false
	}
	return l.IPLayers[len(l.IPLayers)-1], true
}
