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

import "pktmask/internal/config"

// directionState is one (stream, direction) partition's TCP reassembly and
// TLS-parsing progress.
type directionState struct {
	haveInitial  bool
	expectedNext uint32

	bufBaseSeq uint32 // sequence number of buf[0]
	buf        []byte // contiguous delivered bytes not yet consumed as complete TLS records

	pending      map[uint32][]byte // seq -> out-of-order fragment awaiting a gap fill
	pendingBytes uint32

	synced    bool // a first plausible TLS record header has been located
	abandoned bool
}

// MarkerStats collects the marker pass's stats extras.
type MarkerStats struct {
	TLSRecordsSeen      int64
	TLS23Records        int64
	TLSHandshakeRecords int64
	StreamsParsed       int64
	StreamsAbandoned    int64
}

// Marker reassembles every TCP stream/direction in a file and emits a
// KeepRuleSet of the byte ranges that must survive masking.
type Marker struct {
	tlsOpts config.TLSOptions
	maxOOO  uint32

	dirs  map[PartitionKey]*directionState
	keeps *KeepRuleSet
	stats MarkerStats
}

// NewMarker constructs a Marker for one file. maxOutOfOrderBytes bounds
// each direction's pending-fragment buffer.
func NewMarker(tlsOpts config.TLSOptions, maxOutOfOrderBytes uint32) *Marker {
	return &Marker{
		tlsOpts: tlsOpts,
		maxOOO:  maxOutOfOrderBytes,
		dirs:    make(map[PartitionKey]*directionState),
		keeps:   NewKeepRuleSet(),
	}
}

func (m *Marker) direction(pk PartitionKey) *directionState {
	ds, ok := m.dirs[pk]
	if !ok {
		ds = &directionState{pending: make(map[uint32][]byte)}
		m.dirs[pk] = ds
		m.stats.StreamsParsed++
	}
	return ds
}

// Observe feeds one TCP segment's payload (already known to belong to pk)
// into reassembly and TLS parsing.
func (m *Marker) Observe(pk PartitionKey, seq uint32, payload []byte) {
	if len(payload) == 0 {
		return
	}
	ds := m.direction(pk)
	if ds.abandoned {
		return
	}
	if !ds.haveInitial {
		ds.haveInitial = true
		ds.expectedNext = seq
		ds.bufBaseSeq = seq
	}
	m.deliver(ds, seq, payload)
	m.parse(pk, ds)
}

// deliver folds one segment into ds's contiguous buffer, buffering it as
// out-of-order if it arrives ahead of expectedNext and dropping the
// already-delivered prefix of a retransmission.
func (m *Marker) deliver(ds *directionState, seq uint32, payload []byte) {
	end := seq + uint32(len(payload))

	if seqLessEq(end, ds.expectedNext) {
		return // fully-covered retransmission: no new data
	}
	if seqLess(ds.expectedNext, seq) {
		if _, exists := ds.pending[seq]; exists {
			return
		}
		if ds.pendingBytes+uint32(len(payload)) > m.maxOOO {
			ds.abandoned = true
			m.stats.StreamsAbandoned++
			return
		}
		ds.pending[seq] = payload
		ds.pendingBytes += uint32(len(payload))
		return
	}

	skip := seqAdvance(seq, ds.expectedNext)
	newData := payload[skip:]
	ds.buf = append(ds.buf, newData...)
	ds.expectedNext += uint32(len(newData))
	m.drainPending(ds)
}

// drainPending repeatedly folds any now-contiguous pending fragments into
// ds.buf, since deliver can make more than one prior gap closable at once.
func (m *Marker) drainPending(ds *directionState) {
	for {
		progressed := false
		for seq, frag := range ds.pending {
			end := seq + uint32(len(frag))
			if seqLessEq(end, ds.expectedNext) {
				delete(ds.pending, seq)
				ds.pendingBytes -= uint32(len(frag))
				progressed = true
				continue
			}
			if seqLessEq(seq, ds.expectedNext) {
				skip := seqAdvance(seq, ds.expectedNext)
				newData := frag[skip:]
				ds.buf = append(ds.buf, newData...)
				ds.expectedNext += uint32(len(newData))
				delete(ds.pending, seq)
				ds.pendingBytes -= uint32(len(frag))
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

// syncToFirstRecord scans ds.buf for the first plausible TLS record header.
// A capture may join a connection mid-stream or carry pre-TLS bytes (a
// record can begin anywhere in the first delivered segment), so the strict
// unknown-content-type desync rule only applies once a direction has locked
// onto record framing; until then, bytes that can't start a record are
// classified as maskable and skipped. Bytes scanned past are dropped from
// the buffer (they get no keep-rule), keeping at most a header's worth of
// tail in case a real header straddles the next segment boundary.
func (ds *directionState) syncToFirstRecord() {
	i := 0
	for ; i+tlsRecordHeaderLen <= len(ds.buf); i++ {
		if isPlausibleTLSRecordStart(ds.buf[i:]) {
			ds.synced = true
			break
		}
	}
	if i > 0 {
		ds.buf = ds.buf[i:]
		ds.bufBaseSeq += uint32(i)
	}
}

// parse consumes every complete TLS record currently available at the
// front of ds.buf, emitting keep-rules per the content-type policy, and
// trims consumed bytes so the buffer only ever holds an in-progress
// record's partial bytes.
func (m *Marker) parse(pk PartitionKey, ds *directionState) {
	if !ds.synced {
		ds.syncToFirstRecord()
		if !ds.synced {
			return
		}
	}
	for {
		hdr, ok := parseTLSRecordHeader(ds.buf)
		if !ok {
			return
		}
		if !isKnownTLSContentType(hdr.ContentType) || hdr.Length > maxTLSRecordLength {
			ds.abandoned = true
			m.stats.StreamsAbandoned++
			return
		}
		total := tlsRecordHeaderLen + hdr.Length
		if len(ds.buf) < total {
			return
		}

		headerStartSeq := ds.bufBaseSeq
		m.stats.TLSRecordsSeen++
		m.emitRule(pk, hdr.ContentType, headerStartSeq, uint32(total))

		ds.buf = ds.buf[total:]
		ds.bufBaseSeq += uint32(total)
	}
}

// emitRule applies the per-content-type preserve policy (config.TLSOptions
// toggles, defaulting to preserving everything but application data) for
// one parsed record.
func (m *Marker) emitRule(pk PartitionKey, contentType uint8, headerStartSeq, total uint32) {
	preserveFull := true
	switch contentType {
	case TLSApplicationData:
		preserveFull = m.tlsOpts.PreserveApplicationData
		m.stats.TLS23Records++
	case TLSHandshake:
		preserveFull = m.tlsOpts.PreserveHandshake
		m.stats.TLSHandshakeRecords++
	case TLSAlert:
		preserveFull = m.tlsOpts.PreserveAlert
	case TLSChangeCipherSpec:
		preserveFull = m.tlsOpts.PreserveChangeCipherSpec
	case TLSHeartbeat:
		preserveFull = m.tlsOpts.PreserveHeartbeat
	}
	if preserveFull {
		m.keeps.AddRange(pk, headerStartSeq, total)
	} else {
		m.keeps.AddRange(pk, headerStartSeq, tlsRecordHeaderLen)
	}
}

// Finish normalizes the accumulated KeepRuleSet and returns it along with
// final marker stats. Call once after every packet in the file has been
// observed. A direction that carried payload but never locked onto TLS
// record framing counts as abandoned: it emitted no rules, so the masker
// will zero its full payload, the same outcome as any non-TLS stream.
func (m *Marker) Finish() (*KeepRuleSet, MarkerStats) {
	for _, ds := range m.dirs {
		if ds.haveInitial && !ds.synced && !ds.abandoned {
			ds.abandoned = true
			m.stats.StreamsAbandoned++
		}
	}
	m.keeps.Normalize()
	return m.keeps, m.stats
}
