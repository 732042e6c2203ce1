package tracing

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg := DefaultConfig("1.2.3")

	if cfg.ServiceName != TracerName {
		t.Errorf("expected service name %q, got %q", TracerName, cfg.ServiceName)
	}
	if cfg.ServiceVersion != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", cfg.ServiceVersion)
	}
	if cfg.Enabled {
		t.Error("expected tracing to be disabled by default")
	}
}

func TestDefaultConfig_Enabled(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	cfg := DefaultConfig("dev")
	if !cfg.Enabled {
		t.Error("expected endpoint to enable tracing")
	}
	if cfg.OTLPEndpoint != "localhost:4318" {
		t.Errorf("unexpected endpoint %q", cfg.OTLPEndpoint)
	}
}

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestSetup_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{
		ServiceName:    "test",
		ServiceVersion: "0",
		Enabled:        true,
		Writer:         &buf,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, span := StartSpan(context.Background(), "wiki.FetchPage")
	AddPageAttributes(span, "Home")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("wiki.FetchPage")) {
		t.Errorf("expected span in exporter output, got %q", buf.String())
	}
}

func TestParseOTLPEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
		want     otlpTarget
	}{
		{"base url", "http://collector:4318", otlpTarget{Host: "collector:4318", Path: "/v1/traces", Insecure: true}},
		{"base url with slash", "http://collector:4318/", otlpTarget{Host: "collector:4318", Path: "/v1/traces", Insecure: true}},
		{"https with prefix", "https://otel.example.com/ingest", otlpTarget{Host: "otel.example.com", Path: "/ingest/v1/traces"}},
		{"bare host and port", "localhost:4318", otlpTarget{Host: "localhost:4318", Path: "/v1/traces", Insecure: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseOTLPEndpoint(tt.endpoint)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseOTLPEndpoint(%q) = %+v, want %+v", tt.endpoint, got, tt.want)
			}
		})
	}

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Parallel()

		if _, err := parseOTLPEndpoint("ftp://collector:4318"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestSetup_OTLPEndpointURL(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	shutdown, err := Setup(context.Background(), Config{
		ServiceName:    "test",
		ServiceVersion: "0",
		Enabled:        true,
		OTLPEndpoint:   collector.URL,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, span := StartSpan(context.Background(), "wiki.Download")
	AddFileAttributes(span, "https://wiki.example.com/f/a.png")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) == 0 {
		t.Fatal("collector received no export request")
	}
	for _, p := range paths {
		if p != "POST /v1/traces" {
			t.Errorf("unexpected request %q", p)
		}
	}
}

func TestSetup_InvalidEndpoint(t *testing.T) {
	t.Parallel()

	_, err := Setup(context.Background(), Config{Enabled: true, OTLPEndpoint: "ftp://collector"})
	if err == nil || !strings.Contains(err.Error(), "invalid OTLP endpoint") {
		t.Errorf("expected invalid endpoint error, got %v", err)
	}
}
