// Package tracing provides OpenTelemetry tracing for wikiexport.
// Spans cover page fetches and file downloads. Tracing is off unless
// OTEL_ENABLED=true or an OTLP endpoint is configured; when off, the global
// no-op tracer provider makes every span free.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for all spans.
const TracerName = "wikiexport"

// Config holds tracing configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool

	// OTLPEndpoint selects the OTLP/HTTP exporter when set; otherwise spans
	// are pretty-printed to Writer.
	OTLPEndpoint string

	// Writer receives stdout-exporter output. Defaults to os.Stderr so
	// spans do not mix with progress output.
	Writer io.Writer
}

// DefaultConfig reads the OTEL_* environment variables.
func DefaultConfig(version string) Config {
	return Config{
		ServiceName:    TracerName,
		ServiceVersion: version,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "",
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Writer:         os.Stderr,
	}
}

// Setup installs a tracer provider and returns its shutdown function.
// When tracing is disabled the returned function is a no-op.
func Setup(ctx context.Context, config Config) (func(context.Context) error, error) {
	if !config.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	if config.OTLPEndpoint != "" {
		var target otlpTarget
		target, err = parseOTLPEndpoint(config.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		exporter, err = otlptracehttp.New(ctx, target.options()...)
	} else {
		w := config.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// tracesPath is appended to a base OTLP endpoint URL, as the OTLP
// exporter specification does for OTEL_EXPORTER_OTLP_ENDPOINT.
const tracesPath = "/v1/traces"

// otlpTarget is where the OTLP/HTTP exporter sends spans.
type otlpTarget struct {
	Host     string
	Path     string
	Insecure bool
}

// parseOTLPEndpoint accepts a base URL such as "http://collector:4318" or a
// bare "collector:4318". A bare host:port is sent plain HTTP.
func parseOTLPEndpoint(endpoint string) (otlpTarget, error) {
	if !strings.Contains(endpoint, "://") {
		return otlpTarget{Host: endpoint, Path: tracesPath, Insecure: true}, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return otlpTarget{}, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return otlpTarget{}, fmt.Errorf("invalid OTLP endpoint %q: want http(s)://host[:port]", endpoint)
	}
	return otlpTarget{
		Host:     u.Host,
		Path:     strings.TrimRight(u.Path, "/") + tracesPath,
		Insecure: u.Scheme == "http",
	}, nil
}

func (t otlpTarget) options() []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(t.Host),
		otlptracehttp.WithURLPath(t.Path),
	}
	if t.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// StartSpan starts a span on the wikiexport tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, opts...)
}

// AddPageAttributes tags span with the page title.
func AddPageAttributes(span trace.Span, title string) {
	span.SetAttributes(attribute.String("wiki.page.title", title))
}

// AddFileAttributes tags span with the downloaded file URL.
func AddFileAttributes(span trace.Span, url string) {
	span.SetAttributes(attribute.String("wiki.file.url", url))
}

// RecordError records err on span, if any.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}
