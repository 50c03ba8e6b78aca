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

// Direction distinguishes the two halves of a bidirectional TCP stream.
type Direction uint8

const (
	DirAToB Direction = iota
	DirBToA
)

// endpoint is one side of a TCP connection.
type endpoint struct {
	ip   string
	port uint16
}

func (e endpoint) less(o endpoint) bool {
	if e.ip != o.ip {
		return e.ip < o.ip
	}
	return e.port < o.port
}

// StreamKey identifies a TCP stream independent of which side sent a given
// packet: {ip_a,port_a}<->{ip_b,port_b} with A chosen as the
// lexicographically smaller endpoint, so both directions of one connection
// hash to the same key.
type StreamKey struct {
	A, B endpoint
}

// PartitionKey is the unit KeepRuleSet partitions rules by: a stream plus
// the direction of travel within it.
type PartitionKey struct {
	Stream StreamKey
	Dir    Direction
}

// ClassifyStream derives the canonical StreamKey and this packet's
// Direction from its source/destination endpoints.
func ClassifyStream(srcIP string, srcPort uint16, dstIP string, dstPort uint16) PartitionKey {
	src := endpoint{srcIP, srcPort}
	dst := endpoint{dstIP, dstPort}
	if src.less(dst) {
		return PartitionKey{Stream: StreamKey{A: src, B: dst}, Dir: DirAToB}
	}
	return PartitionKey{Stream: StreamKey{A: dst, B: src}, Dir: DirBToA}
}
