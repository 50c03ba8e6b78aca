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

package mask

import (
	"encoding/binary"
	"net"

	"pktmask/internal/config"
	"pktmask/internal/netutil"
)

// Masker is the rewrite pass: it reads the same input file the Marker
// read, zeroes every TCP payload byte outside the KeepRuleSet's ranges,
// and recomputes the TCP checksum. With opts.VerifyChecksums set, each
// segment's stored checksum is verified against its bytes before the
// rewrite destroys the evidence; mismatches (corrupt or offloaded-capture
// checksums) are counted, not fatal.
type Masker struct {
	keeps *KeepRuleSet
	opts  config.MaskerOptions

	checksumMismatches int64
}

// NewMasker builds a Masker consulting keeps, the KeepRuleSet the Marker
// produced for this same file.
func NewMasker(keeps *KeepRuleSet, opts config.MaskerOptions) *Masker {
	return &Masker{keeps: keeps, opts: opts}
}

// ipDatagramEnd returns the absolute offset one past layer's IP datagram,
// bounding the transport segment passed to checksum recomputation.
func ipDatagramEnd(layer netutil.IPLayer) int {
	if layer.IsV6 {
		return layer.Offset + netutil.IPv6HeaderLen + layer.V6.PayloadLen
	}
	return layer.Offset + layer.V4.TotalLen
}

// MaskPacket rewrites data in place. It returns masked=false
// for anything that isn't a located TCP segment with a non-empty payload —
// those packets are left completely untouched, per the stage's "non-TCP
// passes through unchanged" rule.
func (mk *Masker) MaskPacket(data []byte) (masked bool, zeroedBytes, keptBytes int) {
	loc, ok := netutil.LocateTransport(data)
	if !ok || loc.Transport.Proto != netutil.ProtoTCP {
		return false, 0, 0
	}
	innermost, ok := loc.InnermostIP()
	if !ok {
		return false, 0, 0
	}

	end := ipDatagramEnd(innermost)
	if end > len(data) {
		end = len(data)
	}
	if loc.Transport.Offset >= end {
		return false, 0, 0
	}
	segment := data[loc.Transport.Offset:end]

	tcpView, ok := netutil.ParseTCP(segment, len(segment))
	if !ok {
		return false, 0, 0
	}
	payload := segment[tcpView.PayloadOffset:]
	if len(payload) == 0 {
		return false, 0, 0
	}

	srcPort := binary.BigEndian.Uint16(segment[0:2])
	dstPort := binary.BigEndian.Uint16(segment[2:4])

	header := data[innermost.Offset:]
	var srcIPStr, dstIPStr string
	var src4, dst4 [4]byte
	var src6, dst6 [16]byte
	if innermost.IsV6 {
		src6, dst6 = innermost.V6.SrcIP(header), innermost.V6.DstIP(header)
		srcIPStr, dstIPStr = net.IP(src6[:]).String(), net.IP(dst6[:]).String()
	} else {
		src4, dst4 = innermost.V4.SrcIP(header), innermost.V4.DstIP(header)
		srcIPStr, dstIPStr = net.IP(src4[:]).String(), net.IP(dst4[:]).String()
	}

	if mk.opts.VerifyChecksums {
		stored := binary.BigEndian.Uint16(segment[16:18])
		var want uint16
		if innermost.IsV6 {
			want = netutil.TCPChecksumV6(src6, dst6, segment)
		} else {
			want = netutil.TCPChecksumV4(src4, dst4, segment)
		}
		if stored != want {
			mk.checksumMismatches++
		}
	}

	pk := ClassifyStream(srcIPStr, srcPort, dstIPStr, dstPort)
	keepRanges := mk.keeps.KeepOffsets(pk, tcpView.SeqNum, len(payload))

	keep := make([]bool, len(payload))
	for _, r := range keepRanges {
		limit := r.Offset + r.Length
		if limit > len(payload) {
			limit = len(payload)
		}
		for i := r.Offset; i < limit; i++ {
			keep[i] = true
		}
	}
	for i := range payload {
		if keep[i] {
			keptBytes++
		} else {
			payload[i] = 0
			zeroedBytes++
		}
	}

	if innermost.IsV6 {
		tcpView.FixChecksumV6(src6, dst6, segment)
	} else {
		tcpView.FixChecksumV4(src4, dst4, segment)
	}

	return true, zeroedBytes, keptBytes
}

// ChecksumMismatches reports how many TCP segments failed the pre-rewrite
// checksum verification. Always zero when VerifyChecksums is off.
func (mk *Masker) ChecksumMismatches() int64 { return mk.checksumMismatches }
