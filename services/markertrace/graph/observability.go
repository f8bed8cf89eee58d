// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "markertrace.graph"

var (
	metricsOnce     sync.Once
	analyzeCounter  metric.Int64Counter
	analyzeDuration metric.Float64Histogram
)

func initMetrics() {
	meter := otel.Meter(instrumentationName)
	analyzeCounter, _ = meter.Int64Counter("markertrace.analyze.count",
		metric.WithDescription("Number of analysis runs"))
	analyzeDuration, _ = meter.Float64Histogram("markertrace.analyze.duration_ms",
		metric.WithDescription("Analysis duration in milliseconds"),
		metric.WithUnit("ms"))
}

// startAnalyzeSpan begins a tracing span for one analysis run.
func startAnalyzeSpan(ctx context.Context, entryPath, entryModule string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "graph.analyze",
		trace.WithAttributes(
			attribute.String("entry", entryPath),
			attribute.String("entry_module", entryModule),
		))
}

// setAnalyzeSpanResult records the outcome attributes on an analyze span.
func setAnalyzeSpanResult(span trace.Span, aliases, modulesVisited int) {
	span.SetAttributes(
		attribute.Int("aliases", aliases),
		attribute.Int("modules_visited", modulesVisited),
	)
}

// recordAnalyzeMetrics records one analysis outcome.
func recordAnalyzeMetrics(ctx context.Context, duration time.Duration, modulesVisited int, success bool) {
	metricsOnce.Do(initMetrics)
	attrs := metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.Int("modules_visited", modulesVisited),
	)
	if analyzeCounter != nil {
		analyzeCounter.Add(ctx, 1, attrs)
	}
	if analyzeDuration != nil {
		analyzeDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}
