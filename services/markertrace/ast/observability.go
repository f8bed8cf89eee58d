// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "markertrace.ast"

var (
	metricsOnce   sync.Once
	parseCounter  metric.Int64Counter
	parseDuration metric.Float64Histogram
)

// initMetrics creates the package's instruments against the global meter
// provider. A no-op provider (the default) makes every record a no-op.
func initMetrics() {
	meter := otel.Meter(instrumentationName)
	parseCounter, _ = meter.Int64Counter("markertrace.parse.count",
		metric.WithDescription("Number of source units parsed"))
	parseDuration, _ = meter.Float64Histogram("markertrace.parse.duration_ms",
		metric.WithDescription("Parse duration in milliseconds"),
		metric.WithUnit("ms"))
}

// startParseSpan begins a tracing span for one Parse call.
func startParseSpan(ctx context.Context, filePath string, sizeBytes int) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "ast.parse",
		trace.WithAttributes(
			attribute.String("file", filePath),
			attribute.Int("size_bytes", sizeBytes),
		))
}

// setParseSpanResult records the outcome attributes on a parse span.
func setParseSpanResult(span trace.Span, statements, errors int) {
	span.SetAttributes(
		attribute.Int("statements", statements),
		attribute.Int("errors", errors),
	)
}

// recordParseMetrics records one parse outcome.
func recordParseMetrics(ctx context.Context, duration time.Duration, success bool) {
	metricsOnce.Do(initMetrics)
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	if parseCounter != nil {
		parseCounter.Add(ctx, 1, attrs)
	}
	if parseDuration != nil {
		parseDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}
