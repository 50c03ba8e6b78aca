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

// Package main is a thin CLI demonstration of the core pipeline
// (internal/pipeline, internal/dirrun). Directory discovery, a config file
// format, and report rendering are deliberately left to outer tooling;
// this binary exists only to exercise the core against real files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pktmask/internal/config"
	"pktmask/internal/dirrun"
	"pktmask/internal/pipeline"
	"pktmask/internal/telemetry"
)

func main() {
	outDir := flag.String("out", "", "output directory for processed captures (required)")
	dedupEnabled := flag.Bool("dedup", true, "remove exact-duplicate packets")
	anonymizeEnabled := flag.Bool("anonymize", true, "apply prefix-preserving IP anonymization")
	maskEnabled := flag.Bool("mask", true, "apply TLS-aware payload masking")
	concurrency := flag.Int("concurrency", 1, "number of files to process in parallel")
	maxOOOBytes := flag.Uint64("mask_max_ooo_bytes", uint64(config.DefaultMaskerOptions().MaxOutOfOrderBytes), "per-stream out-of-order byte budget for the TLS marker")
	resultsLog := flag.String("results_log", "", "if non-empty, append a FileResult per file as JSONL to this path")
	eventsLog := flag.String("events_log", "", "if non-empty, append every pipeline event as JSONL to this path")
	metricsAddr := flag.String("metrics_addr", "", "if non-empty, expose Prometheus /metrics and /healthz on this address (e.g. :9090)")
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 || *outDir == "" {
		fmt.Fprintln(os.Stderr, "usage: pktmask -out <dir> [flags] <capture file>...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("pktmask: create output directory %s: %v", *outDir, err)
	}

	cfg := config.Config{
		Dedup:     config.DedupOptions{Enabled: *dedupEnabled},
		Anonymize: config.AnonymizeOptions{Enabled: *anonymizeEnabled},
		Mask:      config.DefaultMaskOptions(),
	}
	cfg.Mask.Enabled = *maskEnabled
	cfg.Mask.Masker.MaxOutOfOrderBytes = uint32(*maxOOOBytes)

	jobs := make([]dirrun.FileJob, 0, len(inputs))
	for _, in := range inputs {
		jobs = append(jobs, dirrun.FileJob{
			InputPath:  in,
			OutputPath: filepath.Join(*outDir, strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))+"_masked"+filepath.Ext(in)),
		})
	}

	var sinks []interface{ OnEvent(pipeline.Event) }
	sinks = append(sinks, telemetry.NewPrometheusSink())

	if *resultsLog != "" {
		rs, err := pipeline.NewResultFileSink(*resultsLog)
		if err != nil {
			log.Fatalf("pktmask: open results log: %v", err)
		}
		defer rs.Close()
		sinks = append(sinks, rs)
	}
	if *eventsLog != "" {
		es, err := pipeline.NewEventFileSink(*eventsLog)
		if err != nil {
			log.Fatalf("pktmask: open events log: %v", err)
		}
		defer es.Close()
		sinks = append(sinks, es)
	}

	if *metricsAddr != "" {
		srv := telemetry.NewServer(*metricsAddr)
		go func() {
			fmt.Printf("metrics listening on %s\n", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("pktmask: metrics server stopped: %v", err)
			}
		}()
		defer func() {
			_ = telemetry.Shutdown(srv, 5*time.Second)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		fmt.Println("\npktmask: shutting down, finishing in-flight files...")
		cancel()
	}()

	runner := dirrun.New(cfg)
	result := runner.Run(ctx, jobs, config.RunOptions{Concurrency: *concurrency}, telemetry.Chain(sinks...))

	fmt.Printf("processed %d files: %d ok, %d failed, %d packets total, %d packets removed by dedup\n",
		result.Aggregate.FilesTotal,
		result.Aggregate.FilesOK,
		result.Aggregate.FilesFailed,
		result.Aggregate.PacketsTotal,
		result.Aggregate.PacketsDropped,
	)
	if result.Aggregate.FilesFailed > 0 {
		for _, f := range result.Aggregate.FailedFiles {
			fmt.Fprintf(os.Stderr, "failed: %s\n", f)
		}
		os.Exit(1)
	}
}
