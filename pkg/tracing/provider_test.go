package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/toolkitcfg"
)

func resetProvider(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
}

func TestSetupStdoutExportsSpans(t *testing.T) {
	resetProvider(t)
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), toolkitcfg.TracingConfig{Exporter: "stdout", ServiceName: "mbfid-test"}, &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "identification.run")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "identification.run") || !strings.Contains(buf.String(), "mbfid-test") {
		t.Fatalf("span not exported:\n%s", buf.String())
	}
}

func TestSetupNone(t *testing.T) {
	shutdown, err := Setup(context.Background(), toolkitcfg.TracingConfig{Exporter: "none"}, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	if _, err := Setup(context.Background(), toolkitcfg.TracingConfig{Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error")
	}
}
