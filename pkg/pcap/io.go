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

package pcap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ErrUnsupportedFormat is returned when a file's magic bytes match neither
// classic PCAP nor PCAPNG.
var ErrUnsupportedFormat = errors.New("pcap: unsupported capture format")

// Capture container magic numbers.
const (
	magicPcapUsecBE = 0xA1B2C3D4
	magicPcapUsecLE = 0xD4C3B2A1
	magicPcapNsecBE = 0xA1B23C4D
	magicPcapNsecLE = 0x4D3CB2A1
	magicPcapNg     = 0x0A0D0D0A // Section Header Block type, first PCAPNG block
)

// Reader streams PacketRecords out of a capture file, hiding whether the
// underlying container is classic PCAP or PCAPNG.
type Reader interface {
	// ReadPacket returns the next record, or io.EOF when exhausted.
	ReadPacket() (PacketRecord, error)
	// Format reports which container this reader was opened as, so callers
	// that chain stages through temp files can write the same format back
	// out rather than guessing.
	Format() Format
	// LinkType reports the capture's link-layer type.
	LinkType() LinkType
	Close() error
}

// Writer appends PacketRecords to a capture file being created.
type Writer interface {
	WritePacket(PacketRecord) error
	Close() error
}

// Format identifies which container a file uses.
type Format int

const (
	FormatUnknown Format = iota
	FormatPcap
	FormatPcapNg
)

// Sniff classifies the container format from magic, a file's first 4 bytes
// read big-endian. OpenReader peeks those bytes from a buffered reader so
// they are still available to the container parser.
func Sniff(magic uint32) Format {
	switch magic {
	case magicPcapUsecBE, magicPcapUsecLE, magicPcapNsecBE, magicPcapNsecLE:
		return FormatPcap
	case magicPcapNg:
		return FormatPcapNg
	default:
		return FormatUnknown
	}
}

// OpenReader opens path and returns a format-appropriate Reader. The
// format is detected from the file's first 4 bytes.
func OpenReader(path string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcap: open %s: %w", path, err)
	}
	br := bufio.NewReaderSize(f, 1<<20)
	head, err := br.Peek(4)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("pcap: read magic of %s: %w", path, err)
	}
	magic := binary.BigEndian.Uint32(head)
	switch Sniff(magic) {
	case FormatPcap:
		r, err := pcapgo.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("pcap: open classic reader for %s: %w", path, err)
		}
		return &classicReader{f: f, r: r}, nil
	case FormatPcapNg:
		r, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("pcap: open pcapng reader for %s: %w", path, err)
		}
		return &ngReader{f: f, r: r}, nil
	default:
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// OpenWriter creates path and returns a Writer for the given format and
// link type. snaplen bounds the per-packet capture length recorded in the
// file header; 0 selects a 262144-byte default that covers any realistic
// capture.
func OpenWriter(path string, format Format, linkType LinkType, snaplen uint32) (Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("pcap: create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	lt := layers.LinkType(linkType)
	if snaplen == 0 {
		snaplen = 262144
	}
	switch format {
	case FormatPcap:
		w := pcapgo.NewWriter(bw)
		if err := w.WriteFileHeader(snaplen, lt); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("pcap: write classic header for %s: %w", path, err)
		}
		return &classicWriter{f: f, bw: bw, w: w}, nil
	case FormatPcapNg:
		w, err := pcapgo.NewNgWriter(bw, lt)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("pcap: open pcapng writer for %s: %w", path, err)
		}
		return &ngWriter{f: f, bw: bw, w: w}, nil
	default:
		_ = f.Close()
		return nil, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, format)
	}
}

type classicReader struct {
	f *os.File
	r *pcapgo.Reader
}

func (c *classicReader) ReadPacket() (PacketRecord, error) {
	data, ci, err := c.r.ReadPacketData()
	if err != nil {
		return PacketRecord{}, err
	}
	return PacketRecord{
		Timestamp:   ci.Timestamp,
		CapturedLen: uint32(ci.CaptureLength),
		OriginalLen: uint32(ci.Length),
		LinkType:    LinkType(c.r.LinkType()),
		Data:        data,
	}, nil
}

func (c *classicReader) Close() error { return c.f.Close() }

func (c *classicReader) Format() Format     { return FormatPcap }
func (c *classicReader) LinkType() LinkType { return LinkType(c.r.LinkType()) }

type ngReader struct {
	f *os.File
	r *pcapgo.NgReader
}

func (n *ngReader) ReadPacket() (PacketRecord, error) {
	data, ci, err := n.r.ReadPacketData()
	if err != nil {
		return PacketRecord{}, err
	}
	return PacketRecord{
		Timestamp:   ci.Timestamp,
		CapturedLen: uint32(ci.CaptureLength),
		OriginalLen: uint32(ci.Length),
		LinkType:    LinkType(n.r.LinkType()),
		Data:        data,
	}, nil
}

func (n *ngReader) Close() error { return n.f.Close() }

func (n *ngReader) Format() Format     { return FormatPcapNg }
func (n *ngReader) LinkType() LinkType { return LinkType(n.r.LinkType()) }

type classicWriter struct {
	f  *os.File
	bw *bufio.Writer
	w  *pcapgo.Writer
}

func (c *classicWriter) WritePacket(p PacketRecord) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     p.Timestamp,
		CaptureLength: int(p.CapturedLen),
		Length:        int(p.OriginalLen),
	}
	return c.w.WritePacket(ci, p.Data)
}

func (c *classicWriter) Close() error {
	if err := c.bw.Flush(); err != nil {
		_ = c.f.Close()
		return err
	}
	return c.f.Close()
}

type ngWriter struct {
	f  *os.File
	bw *bufio.Writer
	w  *pcapgo.NgWriter
}

func (n *ngWriter) WritePacket(p PacketRecord) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     p.Timestamp,
		CaptureLength: int(p.CapturedLen),
		Length:        int(p.OriginalLen),
	}
	return n.w.WritePacket(ci, p.Data)
}

func (n *ngWriter) Close() error {
	if err := n.w.Flush(); err != nil {
		_ = n.bw.Flush()
		_ = n.f.Close()
		return err
	}
	if err := n.bw.Flush(); err != nil {
		_ = n.f.Close()
		return err
	}
	return n.f.Close()
}
