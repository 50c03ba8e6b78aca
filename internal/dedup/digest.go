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

// Package dedup implements the exact-duplicate removal stage: a single
// linear pass keeping the first occurrence of each distinct packet and
// dropping every later byte-identical one.
package dedup

import (
	"crypto/rand"

	"github.com/codahale/kt128"
)

// DigestSize is the digest width used for dedup comparisons: 256 bits,
// comfortably clear of any realistic birthday-collision concern for a
// single capture file.
const DigestSize = 32

// Digest is a fixed-size dedup fingerprint over one packet's bytes.
type Digest [DigestSize]byte

// newRunKey generates a fresh random digest key, either for one stage
// instance (New) or for a whole directory run (NewRunKey). Keying the
// digest (rather than hashing packet bytes unkeyed) means a capture crafted
// to collide under a known, fixed hash can't also collide here — the key
// is never persisted or logged.
func newRunKey() ([DigestSize]byte, error) {
	var key [DigestSize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, err
	}
	return key, nil
}

// digestOf computes the keyed KT128 digest of data. KT128 (RFC 9861) is an
// extendable-output function; DigestSize bytes are read from it, keyed by
// treating the key as the hash customization so packets are compared under
// a fingerprint space that is unpredictable without the key; stages built
// with the same key (NewWithKey) share that space.
func digestOf(key [DigestSize]byte, data []byte) Digest {
	h := kt128.NewCustom(key[:])
	h.Write(data)
	var out Digest
	h.Read(out[:])
	return out
}
