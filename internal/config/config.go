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

// Package config defines the struct surface the core pipeline accepts from
// its callers (CLI, GUI, or tests). It deliberately parses nothing: no file
// format, no flag binding. Those belong to the excluded outer surface; this
// package only names the options a complete Config must carry and their
// defaults.
package config

// DedupOptions configures the DeduplicationStage.
type DedupOptions struct {
	Enabled bool
}

// AnonymizeOptions configures the AnonymizationStage.
type AnonymizeOptions struct {
	Enabled bool
}

// TLSOptions configures which TLS record content types the marker preserves
// in full versus only by 5-byte header.
type TLSOptions struct {
	PreserveHandshake        bool
	PreserveApplicationData  bool
	PreserveAlert            bool
	PreserveChangeCipherSpec bool
	PreserveHeartbeat        bool
}

// DefaultTLSOptions returns the default preserve policy: everything
// except the application-data body is preserved.
func DefaultTLSOptions() TLSOptions {
	return TLSOptions{
		PreserveHandshake:        true,
		PreserveApplicationData:  false,
		PreserveAlert:            true,
		PreserveChangeCipherSpec: true,
		PreserveHeartbeat:        true,
	}
}

// MaskerOptions configures the payload-rewrite pass of the masking stage.
type MaskerOptions struct {
	VerifyChecksums    bool
	MaxOutOfOrderBytes uint32
}

// DefaultMaskerOptions returns the masking pass defaults.
func DefaultMaskerOptions() MaskerOptions {
	return MaskerOptions{
		VerifyChecksums:    true,
		MaxOutOfOrderBytes: 16 * 1024 * 1024,
	}
}

// MaskProtocol names the application protocol the marker understands. Only
// "tls" is implemented; the zero value disables masking protocol detection
// even if Enabled is true.
type MaskProtocol string

const (
	MaskProtocolNone MaskProtocol = ""
	MaskProtocolTLS  MaskProtocol = "tls"
)

// MaskOptions configures the MaskingStage.
type MaskOptions struct {
	Enabled  bool
	Protocol MaskProtocol
	TLS      TLSOptions
	Masker   MaskerOptions
}

// DefaultMaskOptions returns the masking defaults with TLS as the protocol.
func DefaultMaskOptions() MaskOptions {
	return MaskOptions{
		Enabled:  false,
		Protocol: MaskProtocolTLS,
		TLS:      DefaultTLSOptions(),
		Masker:   DefaultMaskerOptions(),
	}
}

// Config is the full configuration surface consumed by the core pipeline.
// Each stage is independently optional.
type Config struct {
	Dedup     DedupOptions
	Anonymize AnonymizeOptions
	Mask      MaskOptions
}

// RunOptions configures a directory-scope run.
type RunOptions struct {
	// Concurrency bounds how many files are processed in parallel within a
	// directory run. 0 or 1 means strictly sequential.
	Concurrency int
}
