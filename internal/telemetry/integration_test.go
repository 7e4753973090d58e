package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Requests through the otelmux middleware must produce spans, and an incoming
// traceparent header must join the caller's trace instead of starting a new one.
func TestTraceContextPropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("memory-api-test"))
	r.HandleFunc("/ctx", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	const upstream = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	t.Run("fresh trace", func(t *testing.T) {
		exporter.Reset()

		req := httptest.NewRequest("GET", "/ctx", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rr.Code)
		}
		if err := tp.ForceFlush(context.Background()); err != nil {
			t.Fatalf("ForceFlush() error = %v", err)
		}

		spans := exporter.GetSpans()
		if len(spans) == 0 {
			t.Fatal("Expected a span for the request")
		}
		if !spans[0].SpanContext.TraceID().IsValid() {
			t.Error("Expected a valid trace ID")
		}
	})

	t.Run("joins upstream trace", func(t *testing.T) {
		exporter.Reset()

		req := httptest.NewRequest("GET", "/ctx", nil)
		req.Header.Set("traceparent", upstream)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rr.Code)
		}
		if err := tp.ForceFlush(context.Background()); err != nil {
			t.Fatalf("ForceFlush() error = %v", err)
		}

		spans := exporter.GetSpans()
		if len(spans) == 0 {
			t.Fatal("Expected a span for the request")
		}
		if got := spans[0].SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
			t.Errorf("Expected span to join the upstream trace, got trace ID %s", got)
		}
	})
}
