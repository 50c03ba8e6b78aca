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

package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pktmask/internal/pipeline"
)

func TestPrometheusSinkRecordsStageAndFileCounters(t *testing.T) {
	sink := NewPrometheusSink()

	before := testutil.ToFloat64(packetsProcessedTotal.WithLabelValues("dedup"))

	sink.OnEvent(pipeline.Event{
		Kind:      pipeline.EventStepEnd,
		StageName: "dedup",
		Stats: pipeline.StageStats{
			StageName:        "dedup",
			PacketsProcessed: 10,
			PacketsModified:  3,
			Duration:         5 * time.Millisecond,
			Extras:           map[string]any{"unique_packets": int64(7)},
		},
	})

	after := testutil.ToFloat64(packetsProcessedTotal.WithLabelValues("dedup"))
	if after-before != 10 {
		t.Fatalf("packetsProcessedTotal increased by %v, want 10", after-before)
	}

	sink.OnEvent(pipeline.Event{
		Kind:   pipeline.EventFileEnd,
		Result: pipeline.FileResult{OK: true},
	})
	if got := testutil.ToFloat64(filesTotal.WithLabelValues("ok")); got < 1 {
		t.Fatalf("filesTotal{outcome=ok} = %v, want >= 1", got)
	}

	sink.OnEvent(pipeline.Event{Kind: pipeline.EventError, Severity: pipeline.SeverityFatal})
	if got := testutil.ToFloat64(errorsTotal.WithLabelValues("fatal")); got < 1 {
		t.Fatalf("errorsTotal{severity=fatal} = %v, want >= 1", got)
	}
}

func TestChainCallsEverySink(t *testing.T) {
	var calls int
	rec := recorderSink{fn: func(pipeline.Event) { calls++ }}
	chained := Chain(rec, rec)
	chained(pipeline.Event{Kind: pipeline.EventFileStart})
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

type recorderSink struct {
	fn func(pipeline.Event)
}

func (r recorderSink) OnEvent(ev pipeline.Event) { r.fn(ev) }
