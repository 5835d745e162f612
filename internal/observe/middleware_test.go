package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withTracing installs an in-memory tracer provider for the test.
func withTracing(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// withLogs captures info-level default logs for the test.
func withLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func status(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) })
}

func TestMiddleware_HealthPathLogging(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		code    int
		wantLog bool
	}{
		{"healthy liveness check is quiet", "/healthz", http.StatusOK, false},
		{"scrape is quiet", "/metrics", http.StatusOK, false},
		{"failing readiness is logged", "/readyz", http.StatusServiceUnavailable, true},
		{"other paths are logged", "/debug", http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMetrics(t)
			logs := withLogs(t)

			rec := httptest.NewRecorder()
			Middleware(m)(status(tt.code)).ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
			if got := strings.Contains(logs.String(), "request completed"); got != tt.wantLog {
				t.Errorf("logged = %v, want %v; output: %s", got, tt.wantLog, logs.String())
			}
		})
	}
}

func TestMiddleware_RecordsDurationPerPath(t *testing.T) {
	m, reader := newTestMetrics(t)
	h := Middleware(m)(status(http.StatusOK))
	for _, p := range []string{"/healthz", "/readyz", "/readyz"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, nil))
	}

	met := findMetric(collect(t, reader), "glyphchat.http.request.duration")
	if met == nil {
		t.Fatal("glyphchat.http.request.duration not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric data is %T, want histogram", met.Data)
	}
	counts := make(map[string]uint64)
	for _, dp := range hist.DataPoints {
		if v, ok := dp.Attributes.Value("path"); ok {
			counts[v.AsString()] += dp.Count
		}
	}
	if counts["/healthz"] != 1 || counts["/readyz"] != 2 {
		t.Errorf("samples per path = %v, want /healthz:1 /readyz:2", counts)
	}
}

func TestMiddleware_SpanCarriesStatus(t *testing.T) {
	exp := withTracing(t)
	m, _ := newTestMetrics(t)

	var cid string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid = CorrelationID(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))

	if len(cid) != 32 || rec.Header().Get("X-Correlation-ID") != cid {
		t.Errorf("correlation id = %q, header = %q", cid, rec.Header().Get("X-Correlation-ID"))
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "HTTP GET /readyz" {
		t.Fatalf("spans = %v", spans)
	}
	var code int64
	for _, a := range spans[0].Attributes {
		if a.Key == "http.response.status_code" {
			code = a.Value.AsInt64()
		}
	}
	if code != http.StatusServiceUnavailable {
		t.Errorf("span status code = %d, want 503", code)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	withTracing(t)
	m, _ := newTestMetrics(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var cid string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid = CorrelationID(r.Context())
	}))
	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if cid != traceID {
		t.Errorf("correlation id = %q, want incoming trace %q", cid, traceID)
	}
	if tp := rec.Header().Get("traceparent"); !strings.Contains(tp, traceID) {
		t.Errorf("response traceparent = %q, want trace %q", tp, traceID)
	}
}
