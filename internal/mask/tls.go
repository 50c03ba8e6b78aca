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

import "encoding/binary"

// TLS record content types (RFC 8446 section 5.1; heartbeat from RFC 6520).
const (
	TLSChangeCipherSpec uint8 = 20
	TLSAlert            uint8 = 21
	TLSHandshake        uint8 = 22
	TLSApplicationData  uint8 = 23
	TLSHeartbeat        uint8 = 24
)

// tlsRecordHeaderLen is content_type(1) + version(2) + length(2).
const tlsRecordHeaderLen = 5

// maxTLSRecordLength is deliberately looser than the RFC's 2^14+2048 bound
// so a borderline-padded record doesn't trip the desync rule.
const maxTLSRecordLength = 1<<14 + 2304

// tlsRecordHeader is one parsed TLS record header.
type tlsRecordHeader struct {
	ContentType uint8
	Length      int // ciphertext/plaintext fragment length, header excluded
}

// isKnownTLSContentType reports whether ct is one of the five record
// types this marker understands.
func isKnownTLSContentType(ct uint8) bool {
	switch ct {
	case TLSChangeCipherSpec, TLSAlert, TLSHandshake, TLSApplicationData, TLSHeartbeat:
		return true
	default:
		return false
	}
}

// isPlausibleTLSRecordStart reports whether buf begins with something that
// could be a TLS record header: a known content type, a 3.x protocol
// version, and an in-bounds length. Used only while a direction is still
// hunting for its first record; once framing is locked, the parser trusts
// record lengths and applies the stricter desync rule instead.
func isPlausibleTLSRecordStart(buf []byte) bool {
	if len(buf) < tlsRecordHeaderLen {
		return false
	}
	if !isKnownTLSContentType(buf[0]) {
		return false
	}
	if buf[1] != 3 || buf[2] > 4 {
		return false
	}
	return int(binary.BigEndian.Uint16(buf[3:5])) <= maxTLSRecordLength
}

// parseTLSRecordHeader reads one record header from the start of buf.
// ok=false with a zero header means "not enough bytes yet" (buf shorter
// than tlsRecordHeaderLen) — not a parse failure; the caller waits for
// more reassembled data before retrying.
func parseTLSRecordHeader(buf []byte) (tlsRecordHeader, bool) {
	if len(buf) < tlsRecordHeaderLen {
		return tlsRecordHeader{}, false
	}
	return tlsRecordHeader{
		ContentType: buf[0],
		Length:      int(binary.BigEndian.Uint16(buf[3:5])),
	}, true
}
