package telemetry

import (
	"context"
	"io"
	"log"
	"testing"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TraceConfig{Exporter: "none"}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "jaeger"}, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestSetupTracingRequiresOTLPEndpoint(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "otlp"}, nil); err == nil {
		t.Fatal("expected error when otlp endpoint is missing")
	}
}

func TestServiceResourceCarriesIdentity(t *testing.T) {
	res := serviceResource("")
	attrs := res.Attributes()

	var name, version string
	for _, kv := range attrs {
		switch string(kv.Key) {
		case "service.name":
			name = kv.Value.AsString()
		case "service.version":
			version = kv.Value.AsString()
		}
	}
	if name != "canvas" {
		t.Errorf("service.name = %q, want canvas", name)
	}
	if version == "" {
		t.Error("service.version attribute missing")
	}
}
