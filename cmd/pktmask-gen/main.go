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

// Package main generates synthetic PCAP fixtures exercising every stage of
// the core pipeline: exact duplicates for the dedup stage, varied source
// addresses for the anonymize stage, and a TLS handshake record deliberately
// split across two TCP segments for the masking stage's marker. It exists
// for manual exploration of the pipeline against cmd/pktmask.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"time"

	"pktmask/internal/netutil"
	"pktmask/pkg/pcap"
)

func main() {
	out := flag.String("out", "fixture.pcap", "output capture path")
	duplicates := flag.Int("duplicates", 3, "number of exact copies of one packet to emit, for the dedup stage")
	streams := flag.Int("streams", 4, "number of distinct (src,dst) address pairs, for the anonymize stage")
	flag.Parse()

	w, err := pcap.OpenWriter(*out, pcap.FormatPcap, pcap.LinkTypeEthernet, 262144)
	if err != nil {
		log.Fatalf("pktmask-gen: open writer: %v", err)
	}
	defer w.Close()

	ts := time.Unix(1700000000, 0)
	seq := 0
	write := func(frame []byte) {
		rec := pcap.PacketRecord{
			Timestamp:   ts.Add(time.Duration(seq) * time.Millisecond),
			CapturedLen: uint32(len(frame)),
			OriginalLen: uint32(len(frame)),
			LinkType:    pcap.LinkTypeEthernet,
			Data:        frame,
		}
		if err := w.WritePacket(rec); err != nil {
			log.Fatalf("pktmask-gen: write packet %d: %v", seq, err)
		}
		seq++
	}

	// Duplicate packets: the same frame repeated verbatim.
	dup := tcpFrame([4]byte{203, 0, 113, 1}, [4]byte{198, 51, 100, 1}, 40000, 443, 1000, []byte("duplicate payload"))
	for i := 0; i < *duplicates; i++ {
		write(dup)
	}

	// One distinct stream per requested address pair, each carrying a
	// unique payload so none collide with the duplicate set above.
	for i := 0; i < *streams; i++ {
		src := [4]byte{10, 0, byte(i >> 8), byte(i)}
		dst := [4]byte{10, 1, byte(i >> 8), byte(i)}
		payload := []byte("stream payload marker " + string(rune('A'+i%26)))
		write(tcpFrame(src, dst, uint16(50000+i), 443, 2000, payload))
	}

	// A TLS handshake record (300-byte body) split across two TCP
	// segments of the same stream, to exercise the marker's reassembly.
	body := make([]byte, 300)
	for i := range body {
		body[i] = byte(i)
	}
	record := tlsRecord(22 /* handshake */, body)
	src := [4]byte{172, 16, 0, 1}
	dst := [4]byte{172, 16, 0, 2}
	seqA := uint32(9000)
	partA, partB := record[:150], record[150:]
	write(tcpFrame(src, dst, 60000, 443, seqA, partA))
	write(tcpFrame(src, dst, 60000, 443, seqA+uint32(len(partA)), partB))

	// An application-data record in its own packet, to show the default
	// "keep the header, zero the body" masking behavior.
	appData := tlsRecord(23 /* application data */, []byte("top secret application payload"))
	write(tcpFrame(src, dst, 60000, 443, seqA+uint32(len(record)), appData))

	log.Printf("pktmask-gen: wrote %d packets to %s\n", seq, *out)
}

func tlsRecord(contentType uint8, body []byte) []byte {
	rec := make([]byte, 5+len(body))
	rec[0] = contentType
	binary.BigEndian.PutUint16(rec[1:3], 0x0303)
	binary.BigEndian.PutUint16(rec[3:5], uint16(len(body)))
	copy(rec[5:], body)
	return rec
}

func tcpFrame(src, dst [4]byte, srcPort, dstPort uint16, seq uint32, payload []byte) []byte {
	frame := make([]byte, netutil.EthernetHeaderLen+20+20+len(payload))
	binary.BigEndian.PutUint16(frame[12:14], netutil.EtherTypeIPv4)

	ip := frame[netutil.EthernetHeaderLen:]
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], uint16(40+len(payload)))
	ip[8] = 64
	ip[9] = netutil.ProtoTCP
	copy(ip[12:16], src[:])
	copy(ip[16:20], dst[:])
	binary.BigEndian.PutUint16(ip[10:12], netutil.IPv4HeaderChecksum(ip[:20]))

	tcp := ip[20:]
	binary.BigEndian.PutUint16(tcp[0:2], srcPort)
	binary.BigEndian.PutUint16(tcp[2:4], dstPort)
	binary.BigEndian.PutUint32(tcp[4:8], seq)
	tcp[12] = 5 << 4
	copy(tcp[20:], payload)
	binary.BigEndian.PutUint16(tcp[16:18], netutil.TCPChecksumV4(src, dst, tcp))

	return frame
}
