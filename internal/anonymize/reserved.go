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

import "net"

var ipv4Broadcast = net.IPv4(255, 255, 255, 255)

// isReserved reports whether ip falls into one of the ranges that map to
// themselves rather than being pseudonymized: loopback, multicast,
// link-local, broadcast, unspecified, and IPv4-mapped-IPv6.
func isReserved(ip net.IP) bool {
	// Checked first: To4() on a 16-byte input would otherwise silently
	// collapse an IPv4-mapped-IPv6 address to its 4-byte form and route it
	// through the ordinary IPv4 checks below, losing the distinction.
	if isIPv4MappedIPv6(ip) {
		return true
	}
	if ip.IsLoopback() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.Equal(ipv4Broadcast.To4())
	}
	return false
}

// isIPv4MappedIPv6 reports whether a 16-byte address is in the
// ::ffff:0:0/96 IPv4-mapped range. net.IP.To4() already collapses these to
// 4 bytes for most purposes, but the anonymization stage always calls
// GetOrInsert with the address in its original wire width, so this case is
// checked explicitly for 16-byte inputs that reach here.
func isIPv4MappedIPv6(ip net.IP) bool {
	if len(ip) != net.IPv6len {
		return false
	}
	for i := 0; i < 10; i++ {
		if ip[i] != 0 {
			return false
		}
	}
	return ip[10] == 0xff && ip[11] == 0xff
}
