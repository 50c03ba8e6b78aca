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

// Package pcap provides a single PacketRecord stream abstraction over both
// classic PCAP and PCAPNG capture files. Container framing (this package)
// is delegated to github.com/google/gopacket/pcapgo; packet-layer parsing
// and editing is hand-rolled elsewhere (see internal/netutil) per the
// module's design notes — gopacket's reflection-like generic layer access
// is deliberately not used for that.
package pcap

import "time"

// LinkType mirrors the pcap DLT_* link-layer type space (tcpdump.org's
// link-layer header types registry). A few common values are named; the
// module's encapsulation helpers (internal/netutil) parse Ethernet framing
// only, and every value round-trips opaquely through Reader/Writer.
type LinkType uint16

const (
	LinkTypeNull     LinkType = 0
	LinkTypeEthernet LinkType = 1
	LinkTypeRaw      LinkType = 101
	LinkTypeIPv4     LinkType = 228
	LinkTypeIPv6     LinkType = 229
	LinkTypeLinuxSLL LinkType = 113
)

// PacketRecord is the module's canonical per-packet unit: timestamp,
// captured/original lengths, link type, and raw bytes. It round-trips
// losslessly through Reader/Writer regardless of the source container
// format.
type PacketRecord struct {
	Timestamp   time.Time
	CapturedLen uint32
	OriginalLen uint32
	LinkType    LinkType
	Data        []byte
}
