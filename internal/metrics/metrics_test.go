package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, m *Metrics, vec string, label string) float64 {
	t.Helper()

	var metric dto.Metric
	switch vec {
	case "pages":
		if err := m.PageFetches.WithLabelValues(label).Write(&metric); err != nil {
			t.Fatalf("failed to write metric: %v", err)
		}
	case "downloads":
		if err := m.Downloads.WithLabelValues(label).Write(&metric); err != nil {
			t.Fatalf("failed to write metric: %v", err)
		}
	}
	return metric.GetCounter().GetValue()
}

func TestObservePageFetch(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObservePageFetch(10*time.Millisecond, nil)
	m.ObservePageFetch(20*time.Millisecond, nil)
	m.ObservePageFetch(5*time.Millisecond, errors.New("404"))

	if got := counterValue(t, m, "pages", OutcomeSuccess); got != 2 {
		t.Errorf("expected 2 successes, got %v", got)
	}
	if got := counterValue(t, m, "pages", OutcomeError); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestObserveDownload(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveDownload(time.Millisecond, 100, nil)
	m.ObserveDownload(time.Millisecond, 0, errors.New("reset"))

	if got := counterValue(t, m, "downloads", OutcomeSuccess); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}

	var metric dto.Metric
	if err := m.BytesDownloaded.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.GetCounter().GetValue() != 100 {
		t.Errorf("expected 100 bytes, got %v", metric.GetCounter().GetValue())
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObservePageFetch(time.Second, nil)
	m.ObserveDownload(time.Second, 10, nil)
	m.ObserveRun(3, time.Now())
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObservePageFetch(time.Millisecond, nil)
	m.ObserveRun(7, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "wikiexport.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("failed to write textfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`wikiexport_page_fetches_total{outcome="success"} 1`,
		"wikiexport_pages_exported 7",
		"wikiexport_last_run_timestamp_seconds 1.7e+09",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
