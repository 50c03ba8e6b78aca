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

// Package telemetry mirrors pipeline.Event/StageStats onto Prometheus
// collectors: package-level collectors registered once via
// prometheus.MustRegister, updated from a sink that attaches alongside any
// caller-supplied pipeline.ProgressFunc. This is additive instrumentation;
// callers that don't want Prometheus simply don't construct a
// PrometheusSink.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"pktmask/internal/pipeline"
)

var (
	filesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pktmask_files_total",
		Help: "Total files processed by the pipeline, labeled by outcome",
	}, []string{"outcome"})

	packetsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pktmask_packets_processed_total",
		Help: "Total packets read by a stage, labeled by stage name",
	}, []string{"stage"})

	packetsModifiedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pktmask_packets_modified_total",
		Help: "Total packets a stage removed, rewrote, or masked, labeled by stage name",
	}, []string{"stage"})

	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pktmask_stage_duration_seconds",
		Help:    "Per-file stage processing duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pktmask_errors_total",
		Help: "Total EventError occurrences, labeled by severity",
	}, []string{"severity"})

	dedupKeyDigestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pktmask_dedup_unique_packets_total",
		Help: "Total packets kept unique by the dedup stage across all files",
	})

	ipAddressesAnonymizedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pktmask_ip_addresses_anonymized_total",
		Help: "Total IPv4 and IPv6 addresses rewritten by the anonymize stage",
	})

	tlsRecordsSeenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pktmask_tls_records_seen_total",
		Help: "Total TLS records parsed by the masking stage's marker pass",
	})

	maskedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pktmask_payload_bytes_zeroed_total",
		Help: "Total TCP payload bytes zeroed by the masking stage",
	})
)

func init() {
	prometheus.MustRegister(
		filesTotal,
		packetsProcessedTotal,
		packetsModifiedTotal,
		stageDuration,
		errorsTotal,
		dedupKeyDigestsTotal,
		ipAddressesAnonymizedTotal,
		tlsRecordsSeenTotal,
		maskedBytesTotal,
	)
}

// PrometheusSink is a pipeline.ProgressFunc-compatible sink: attach it via
// OnEvent alongside any other ProgressFunc a caller already has (Chain
// below fans one ProgressFunc out to every attached sink).
type PrometheusSink struct{}

// NewPrometheusSink returns a ready-to-use sink. There is no per-instance
// state: all collectors are package-level.
func NewPrometheusSink() *PrometheusSink { return &PrometheusSink{} }

// OnEvent implements pipeline.ProgressFunc.
func (s *PrometheusSink) OnEvent(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventStepEnd:
		s.observeStage(ev.Stats)
	case pipeline.EventFileEnd:
		if ev.Result.OK {
			filesTotal.WithLabelValues("ok").Inc()
		} else {
			filesTotal.WithLabelValues("failed").Inc()
		}
	case pipeline.EventError:
		sev := "warning"
		if ev.Severity == pipeline.SeverityFatal {
			sev = "fatal"
		}
		errorsTotal.WithLabelValues(sev).Inc()
	}
}

func (s *PrometheusSink) observeStage(stats pipeline.StageStats) {
	packetsProcessedTotal.WithLabelValues(stats.StageName).Add(float64(stats.PacketsProcessed))
	packetsModifiedTotal.WithLabelValues(stats.StageName).Add(float64(stats.PacketsModified))
	stageDuration.WithLabelValues(stats.StageName).Observe(stats.Duration.Seconds())

	switch stats.StageName {
	case "dedup":
		if unique, ok := stats.Extras["unique_packets"].(int64); ok {
			dedupKeyDigestsTotal.Add(float64(unique))
		}
	case "anonymize":
		v4, _ := stats.Extras["ipv4_addresses_mapped"].(int64)
		v6, _ := stats.Extras["ipv6_addresses_mapped"].(int64)
		ipAddressesAnonymizedTotal.Add(float64(v4 + v6))
	case "mask":
		if seen, ok := stats.Extras["tls_records_seen"].(int64); ok {
			tlsRecordsSeenTotal.Add(float64(seen))
		}
		if zeroed, ok := stats.Extras["payload_bytes_zeroed"].(int64); ok {
			maskedBytesTotal.Add(float64(zeroed))
		}
	}
}

// Chain combines sinks into a single pipeline.ProgressFunc that calls each
// in turn, converting pipeline.Event into the OnEvent convention used by
// PrometheusSink and pipeline.ResultFileSink alike.
func Chain(sinks ...interface{ OnEvent(pipeline.Event) }) pipeline.ProgressFunc {
	return func(ev pipeline.Event) {
		for _, s := range sinks {
			if s != nil {
				s.OnEvent(ev)
			}
		}
	}
}
