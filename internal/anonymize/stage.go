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

package anonymize

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"pktmask/internal/netutil"
	"pktmask/internal/pipeline"
	"pktmask/pkg/pcap"
)

// Stage is the anonymization step of the pipeline: it rewrites every IP
// address found while walking a packet's encapsulation stack (including
// IP-in-IP tunnels) through a shared, directory-scoped IPMap and
// recomputes every checksum that depends on those addresses.
type Stage struct {
	ipmap *IPMap
}

// NewStage builds an anonymization stage sharing ipmap with every other
// file in the same directory run, so pseudonyms stay consistent run-wide.
func NewStage(ipmap *IPMap) *Stage {
	return &Stage{ipmap: ipmap}
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "anonymize" }

// ProcessFile implements pipeline.Stage.
func (s *Stage) ProcessFile(ctx context.Context, in, out string, _ pipeline.ProgressFunc) (pipeline.StageStats, error) {
	start := time.Now()
	stats := pipeline.StageStats{StageName: s.Name()}

	r, err := pcap.OpenReader(in)
	if err != nil {
		return stats, err
	}
	defer r.Close()

	w, err := pcap.OpenWriter(out, r.Format(), r.LinkType(), 0)
	if err != nil {
		return stats, err
	}
	defer w.Close()

	var processed, rewritten int64
	var v4Mapped, v6Mapped int64

	for {
		select {
		case <-ctx.Done():
			stats.Duration = time.Since(start)
			return stats, ctx.Err()
		default:
		}

		rec, err := r.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("anonymize: read packet %d of %s: %w", processed+1, in, err)
		}
		processed++

		didRewrite, v4n, v6n := s.rewritePacket(rec.Data)
		if didRewrite {
			rewritten++
			v4Mapped += int64(v4n)
			v6Mapped += int64(v6n)
		}

		if err := w.WritePacket(rec); err != nil {
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("anonymize: write packet %d of %s: %w", processed, out, err)
		}
	}

	stats.PacketsProcessed = processed
	stats.PacketsModified = rewritten
	stats.Duration = time.Since(start)
	stats.Extras = map[string]any{
		"ipv4_addresses_mapped": v4Mapped,
		"ipv6_addresses_mapped": v6Mapped,
		"packets_rewritten":     rewritten,
	}
	return stats, nil
}

// rewritePacket rewrites every IP layer's addresses in place and fixes up
// dependent checksums. A packet whose encapsulation stack doesn't parse
// (non-IP ethertype, truncation, malformed header) is left untouched and
// reported as not rewritten.
func (s *Stage) rewritePacket(data []byte) (rewrote bool, ipv4Count, ipv6Count int) {
	loc, ok := netutil.LocateTransport(data)
	if !ok || len(loc.IPLayers) == 0 {
		return false, 0, 0
	}

	for _, layer := range loc.IPLayers {
		header := data[layer.Offset:]
		if layer.IsV6 {
			src := layer.V6.SrcIP(header)
			dst := layer.V6.DstIP(header)
			newSrc := s.ipmap.GetOrInsert(net.IP(src[:]))
			newDst := s.ipmap.GetOrInsert(net.IP(dst[:]))
			var srcArr, dstArr [16]byte
			copy(srcArr[:], newSrc.To16())
			copy(dstArr[:], newDst.To16())
			layer.V6.SetSrcIP(header, srcArr)
			layer.V6.SetDstIP(header, dstArr)
			ipv6Count += 2
		} else {
			src := layer.V4.SrcIP(header)
			dst := layer.V4.DstIP(header)
			newSrc := s.ipmap.GetOrInsert(net.IP(src[:]))
			newDst := s.ipmap.GetOrInsert(net.IP(dst[:]))
			var srcArr, dstArr [4]byte
			copy(srcArr[:], newSrc.To4())
			copy(dstArr[:], newDst.To4())
			layer.V4.SetSrcIP(header, srcArr)
			layer.V4.SetDstIP(header, dstArr)
			ipv4Count += 2
		}
	}

	if innermost, ok := loc.InnermostIP(); ok {
		fixTransportChecksum(data, loc, innermost)
	}

	for _, layer := range loc.IPLayers {
		if !layer.IsV6 {
			layer.V4.FixChecksum(data[layer.Offset:])
		}
	}

	return true, ipv4Count, ipv6Count
}

// ipPacketEnd returns the absolute offset one past the end of the IP
// datagram described by layer, used to bound the transport segment passed
// to checksum recomputation.
func ipPacketEnd(layer netutil.IPLayer) int {
	if layer.IsV6 {
		return layer.Offset + netutil.IPv6HeaderLen + layer.V6.PayloadLen
	}
	return layer.Offset + layer.V4.TotalLen
}

// fixTransportChecksum recomputes the checksum of the transport-layer
// message under the (now-rewritten) innermost IP layer's addresses.
func fixTransportChecksum(data []byte, loc netutil.Located, innermost netutil.IPLayer) {
	end := ipPacketEnd(innermost)
	if end > len(data) {
		end = len(data)
	}
	if loc.Transport.Offset >= end {
		return
	}
	segment := data[loc.Transport.Offset:end]

	if innermost.IsV6 {
		src, dst := innermost.V6.SrcIP(data[innermost.Offset:]), innermost.V6.DstIP(data[innermost.Offset:])
		switch loc.Transport.Proto {
		case netutil.ProtoTCP:
			if v, ok := netutil.ParseTCP(segment, len(segment)); ok {
				v.FixChecksumV6(src, dst, segment)
			}
		case netutil.ProtoUDP:
			if v, ok := netutil.ParseUDP(segment); ok {
				v.FixChecksumV6(src, dst, segment)
			}
		case netutil.ProtoICMPv6:
			if len(segment) >= netutil.ICMPv6HeaderLen {
				netutil.FixICMPv6Checksum(src, dst, segment)
			}
		}
		return
	}

	src, dst := innermost.V4.SrcIP(data[innermost.Offset:]), innermost.V4.DstIP(data[innermost.Offset:])
	switch loc.Transport.Proto {
	case netutil.ProtoTCP:
		if v, ok := netutil.ParseTCP(segment, len(segment)); ok {
			v.FixChecksumV4(src, dst, segment)
		}
	case netutil.ProtoUDP:
		if v, ok := netutil.ParseUDP(segment); ok {
			v.FixChecksumV4(src, dst, segment)
		}
	case netutil.ProtoICMPv4:
		if len(segment) >= netutil.ICMPv4HeaderLen {
			netutil.FixICMPv4Checksum(segment)
		}
	}
}
