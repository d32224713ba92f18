package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// configOTEL installs an OTLP/HTTP tracer provider when OTEL_EXPORTER_OTLP_ENDPOINT is set
// (eg, http://localhost:4318). The exporter reads the remaining OTEL_* variables itself.
//
// The returned func flushes buffered spans. It is a no-op when tracing is off.
func configOTEL(logger *slog.Logger, serviceName string) func() {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func() {}
	}

	exp, err := otlptracehttp.New(context.Background())
	if err != nil {
		logger.Error("tracing disabled: creating exporter", "err", err)
		return func() {}
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(versioninfo.Short()),
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		attrs = append(attrs, attribute.String("environment", env))
	}
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("exporting traces", "endpoint", endpoint)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("flushing traces", "err", err)
		}
	}
}
