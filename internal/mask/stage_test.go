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
	"io"
	"path/filepath"
	"testing"
	"time"

	"pktmask/internal/config"
	"pktmask/internal/netutil"
	"pktmask/pkg/pcap"
)

func writeMaskFixture(t *testing.T, path string, frames [][]byte) {
	t.Helper()
	w, err := pcap.OpenWriter(path, pcap.FormatPcap, pcap.LinkTypeEthernet, 262144)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer w.Close()
	ts := time.Unix(1700000000, 0)
	for i, f := range frames {
		rec := pcap.PacketRecord{
			Timestamp:   ts.Add(time.Duration(i) * time.Millisecond),
			CapturedLen: uint32(len(f)),
			OriginalLen: uint32(len(f)),
			LinkType:    pcap.LinkTypeEthernet,
			Data:        f,
		}
		if err := w.WritePacket(rec); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
}

func readMaskFixture(t *testing.T, path string) [][]byte {
	t.Helper()
	r, err := pcap.OpenReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()
	var out [][]byte
	for {
		rec, err := r.ReadPacket()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("read packet: %v", err)
		}
		out = append(out, rec.Data)
	}
}

// TestStageMasksHandshakeRecordSplitAcrossTwoPackets runs the full
// two-pass Stage end-to-end over a capture where a single TLS handshake
// record's 300-byte body is split across two TCP segments.
// Since handshake records are fully preserved by default, every byte of the
// reassembled record must survive masking unchanged in both packets.
func TestStageMasksHandshakeRecordSplitAcrossTwoPackets(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pcap")
	out := filepath.Join(dir, "out.pcap")

	body := make([]byte, 300)
	for i := range body {
		body[i] = byte(i)
	}
	record := tlsRecord(TLSHandshake, body) // 305 bytes

	src := [4]byte{10, 0, 0, 1}
	dst := [4]byte{10, 0, 0, 2}
	seqA := uint32(1000)
	partA := record[:150]
	partB := record[150:]
	seqB := seqA + uint32(len(partA))

	frameA := buildIPv4TCPFrame(src, dst, 50000, 443, seqA, partA)
	frameB := buildIPv4TCPFrame(src, dst, 50000, 443, seqB, partB)
	writeMaskFixture(t, in, [][]byte{frameA, frameB})

	st := NewStage(config.MaskOptions{Protocol: config.MaskProtocolTLS, TLS: config.DefaultTLSOptions(), Masker: config.DefaultMaskerOptions()})
	stats, err := st.ProcessFile(context.Background(), in, out, nil)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if stats.PacketsModified != 2 {
		t.Fatalf("PacketsModified = %d, want 2", stats.PacketsModified)
	}

	frames := readMaskFixture(t, out)
	if len(frames) != 2 {
		t.Fatalf("got %d output frames, want 2", len(frames))
	}

	gotA := frames[0][netutil.EthernetHeaderLen+20+20:]
	gotB := frames[1][netutil.EthernetHeaderLen+20+20:]
	if string(gotA) != string(partA) {
		t.Errorf("first segment's handshake bytes were altered: got %x, want %x", gotA, partA)
	}
	if string(gotB) != string(partB) {
		t.Errorf("second segment's handshake bytes were altered: got %x, want %x", gotB, partB)
	}
}

// TestStageMasksApplicationDataKeepingOnlyHeader exercises the common case:
// a single application-data record in one packet must have its 5-byte
// header preserved and its body zeroed.
func TestStageMasksApplicationDataKeepingOnlyHeader(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pcap")
	out := filepath.Join(dir, "out.pcap")

	body := make([]byte, 64)
	for i := range body {
		body[i] = byte(i + 1)
	}
	record := tlsRecord(TLSApplicationData, body)

	src := [4]byte{172, 16, 0, 1}
	dst := [4]byte{172, 16, 0, 2}
	seq := uint32(5000)
	frame := buildIPv4TCPFrame(src, dst, 55000, 443, seq, record)
	writeMaskFixture(t, in, [][]byte{frame})

	st := NewStage(config.MaskOptions{Protocol: config.MaskProtocolTLS, TLS: config.DefaultTLSOptions(), Masker: config.DefaultMaskerOptions()})
	stats, err := st.ProcessFile(context.Background(), in, out, nil)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if stats.PacketsModified != 1 {
		t.Fatalf("PacketsModified = %d, want 1", stats.PacketsModified)
	}

	frames := readMaskFixture(t, out)
	got := frames[0][netutil.EthernetHeaderLen+20+20:]
	if string(got[:tlsRecordHeaderLen]) != string(record[:tlsRecordHeaderLen]) {
		t.Errorf("record header was altered: got %x, want %x", got[:tlsRecordHeaderLen], record[:tlsRecordHeaderLen])
	}
	for i, b := range got[tlsRecordHeaderLen:] {
		if b != 0 {
			t.Errorf("application-data body byte %d: got %#02x, want 0", i, b)
		}
	}
}
