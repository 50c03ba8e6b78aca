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
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"pktmask/internal/config"
	"pktmask/internal/netutil"
	"pktmask/internal/pipeline"
	"pktmask/pkg/pcap"
)

// Stage is the masking step of the pipeline: it runs the Marker over the
// input file, then the Masker over the same input file again, producing
// the masked output.
type Stage struct {
	protocol   config.MaskProtocol
	tlsOpts    config.TLSOptions
	maskerOpts config.MaskerOptions
}

// NewStage builds a masking stage from the masking configuration surface.
// With MaskProtocolNone the marker pass is skipped entirely: no keep-rules
// exist, so every TCP payload byte is zeroed.
func NewStage(opts config.MaskOptions) *Stage {
	return &Stage{protocol: opts.Protocol, tlsOpts: opts.TLS, maskerOpts: opts.Masker}
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "mask" }

// ProcessFile implements pipeline.Stage.
func (s *Stage) ProcessFile(ctx context.Context, in, out string, _ pipeline.ProgressFunc) (pipeline.StageStats, error) {
	start := time.Now()
	stats := pipeline.StageStats{StageName: s.Name()}

	marker := NewMarker(s.tlsOpts, s.maskerOpts.MaxOutOfOrderBytes)
	if s.protocol == config.MaskProtocolTLS {
		if err := runMarkerPass(ctx, in, marker); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}
	}
	keeps, markerStats := marker.Finish()

	masker := NewMasker(keeps, s.maskerOpts)
	packetsRead, packetsMasked, zeroed, kept, streamsSeen, err := runMaskerPass(ctx, in, out, masker)
	if err != nil {
		stats.Duration = time.Since(start)
		return stats, err
	}

	stats.PacketsProcessed = packetsRead
	stats.PacketsModified = packetsMasked
	stats.Duration = time.Since(start)
	stats.Extras = map[string]any{
		"rules_generated":       int64(keeps.RuleCount()),
		"keep_bytes":            kept,
		"masked_bytes":          zeroed,
		"streams_seen":          streamsSeen,
		"tls_records_seen":      markerStats.TLSRecordsSeen,
		"tls23_records":         markerStats.TLS23Records,
		"tls_handshake_records": markerStats.TLSHandshakeRecords,
		"streams_parsed":        markerStats.StreamsParsed,
		"streams_abandoned":     markerStats.StreamsAbandoned,
		"packets_masked":        packetsMasked,
		"payload_bytes_zeroed":  zeroed,
		"payload_bytes_kept":    kept,
		"checksum_mismatches":   masker.ChecksumMismatches(),
	}
	return stats, nil
}

// runMarkerPass is the Marker's read-only pass over in: every TCP
// segment's payload is fed to marker.Observe.
func runMarkerPass(ctx context.Context, in string, marker *Marker) error {
	r, err := pcap.OpenReader(in)
	if err != nil {
		return err
	}
	defer r.Close()

	var n int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rec, err := r.ReadPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mask: marker pass read packet %d of %s: %w", n+1, in, err)
		}
		n++
		observeTCPPayload(marker, rec.Data)
	}
}

// observeTCPPayload locates data's TCP segment, if any, and hands its
// payload to the marker. Non-TCP or malformed packets are silently
// skipped — they carry no TLS keep-ranges.
func observeTCPPayload(marker *Marker, data []byte) {
	loc, ok := netutil.LocateTransport(data)
	if !ok || loc.Transport.Proto != netutil.ProtoTCP {
		return
	}
	innermost, ok := loc.InnermostIP()
	if !ok {
		return
	}
	end := ipDatagramEnd(innermost)
	if end > len(data) {
		end = len(data)
	}
	if loc.Transport.Offset >= end {
		return
	}
	segment := data[loc.Transport.Offset:end]
	tcpView, ok := netutil.ParseTCP(segment, len(segment))
	if !ok {
		return
	}
	payload := segment[tcpView.PayloadOffset:]
	if len(payload) == 0 {
		return
	}

	header := data[innermost.Offset:]
	var srcIPStr, dstIPStr string
	if innermost.IsV6 {
		src, dst := innermost.V6.SrcIP(header), innermost.V6.DstIP(header)
		srcIPStr, dstIPStr = net.IP(src[:]).String(), net.IP(dst[:]).String()
	} else {
		src, dst := innermost.V4.SrcIP(header), innermost.V4.DstIP(header)
		srcIPStr, dstIPStr = net.IP(src[:]).String(), net.IP(dst[:]).String()
	}
	srcPort := binary.BigEndian.Uint16(segment[0:2])
	dstPort := binary.BigEndian.Uint16(segment[2:4])

	pk := ClassifyStream(srcIPStr, srcPort, dstIPStr, dstPort)
	marker.Observe(pk, tcpView.SeqNum, payload)
}

// runMaskerPass reads in a second time and writes the masked result to
// out, returning aggregate stats.
func runMaskerPass(ctx context.Context, in, out string, masker *Masker) (packetsRead, packetsMasked, zeroed, kept, streamsSeen int64, err error) {
	r, err := pcap.OpenReader(in)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	defer r.Close()

	w, err := pcap.OpenWriter(out, r.Format(), r.LinkType(), 0)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	defer w.Close()

	seenStreams := make(map[StreamKey]struct{})
	for {
		select {
		case <-ctx.Done():
			return packetsRead, packetsMasked, zeroed, kept, int64(len(seenStreams)), ctx.Err()
		default:
		}
		rec, rerr := r.ReadPacket()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return packetsRead, packetsMasked, zeroed, kept, int64(len(seenStreams)), fmt.Errorf("mask: masker pass read packet %d of %s: %w", packetsRead+1, in, rerr)
		}
		packetsRead++

		didMask, z, k := masker.MaskPacket(rec.Data)
		if didMask {
			packetsMasked++
			zeroed += int64(z)
			kept += int64(k)
			if pk, ok := streamKeyOf(rec.Data); ok {
				seenStreams[pk] = struct{}{}
			}
		}

		if werr := w.WritePacket(rec); werr != nil {
			return packetsRead, packetsMasked, zeroed, kept, int64(len(seenStreams)), fmt.Errorf("mask: write packet %d of %s: %w", packetsRead, out, werr)
		}
	}
	return packetsRead, packetsMasked, zeroed, kept, int64(len(seenStreams)), nil
}

// streamKeyOf re-derives just the StreamKey (ignoring direction) for a
// packet already known to be TCP, for the streams_seen stat.
func streamKeyOf(data []byte) (StreamKey, bool) {
	loc, ok := netutil.LocateTransport(data)
	if !ok || loc.Transport.Proto != netutil.ProtoTCP {
		return StreamKey{}, false
	}
	innermost, ok := loc.InnermostIP()
	if !ok {
		return StreamKey{}, false
	}
	end := ipDatagramEnd(innermost)
	if end > len(data) {
		end = len(data)
	}
	if loc.Transport.Offset >= end {
		return StreamKey{}, false
	}
	segment := data[loc.Transport.Offset:end]
	if len(segment) < netutil.TCPMinHeaderLen {
		return StreamKey{}, false
	}
	header := data[innermost.Offset:]
	var srcIPStr, dstIPStr string
	if innermost.IsV6 {
		src, dst := innermost.V6.SrcIP(header), innermost.V6.DstIP(header)
		srcIPStr, dstIPStr = net.IP(src[:]).String(), net.IP(dst[:]).String()
	} else {
		src, dst := innermost.V4.SrcIP(header), innermost.V4.DstIP(header)
		srcIPStr, dstIPStr = net.IP(src[:]).String(), net.IP(dst[:]).String()
	}
	srcPort := binary.BigEndian.Uint16(segment[0:2])
	dstPort := binary.BigEndian.Uint16(segment[2:4])
	return ClassifyStream(srcIPStr, srcPort, dstIPStr, dstPort).Stream, true
}
