package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
)

func sampleNotice() schema.FaultNotice {
	return schema.FaultNotice{
		NoticeID:    "0b6f6c4e-2f41-5f57-9d0e-8a4c3c1d2e10",
		RunID:       "run-test-01",
		ExampleID:   "example_1",
		Key:         "PANEL_ANGLE_ID",
		Family:      "panel_angle",
		Label:       "Panel Angle Stuck near 0.3 [rad]",
		OnsetNS:     60_000_000_000,
		Steps:       60,
		Persistent:  true,
		GeneratedAt: time.Now().UTC(),
	}
}

func fastExporter(url string, format Format) *Exporter {
	e := New(url, "", format, 5000)
	e.Backoff = time.Millisecond
	return e
}

func TestSendGenericPayload(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := fastExporter(server.URL, FormatGeneric)
	if err := e.Send(context.Background(), sampleNotice()); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var notice schema.FaultNotice
	if err := json.Unmarshal(received, &notice); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if notice.Label != "Panel Angle Stuck near 0.3 [rad]" {
		t.Errorf("label: got %s", notice.Label)
	}
}

func TestSendWithHMACSignature(t *testing.T) {
	secret := "test-secret-key"
	var signature string
	var body []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Webhook-Signature")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := New(server.URL, secret, FormatGeneric, 5000)
	if err := e.Send(context.Background(), sampleNotice()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if signature == "" {
		t.Fatal("expected signature header")
	}
	if !VerifyHMAC(body, secret, signature) {
		t.Fatal("HMAC verification failed")
	}
}

func TestRetryOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			t.Errorf("read request body: %v", err)
		}
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := fastExporter(server.URL, FormatGeneric)
	if err := e.Send(context.Background(), sampleNotice()); err != nil {
		t.Fatalf("send should succeed after retries: %v", err)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestFailAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	e := fastExporter(server.URL, FormatGeneric)
	e.MaxRetry = 2
	if err := e.Send(context.Background(), sampleNotice()); err == nil {
		t.Fatal("expected error after max retries")
	}
}

func TestNoRetryOn4xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	e := fastExporter(server.URL, FormatGeneric)
	if err := e.Send(context.Background(), sampleNotice()); err == nil {
		t.Fatal("expected error on 4xx")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("expected 1 attempt for 4xx, got %d", attempts)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	e := New(server.URL, "", FormatGeneric, 5000)
	e.Backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.Send(ctx, sampleNotice()); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPagerDutyFormat(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := fastExporter(server.URL, FormatPagerDuty)
	if err := e.Send(context.Background(), sampleNotice()); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(received, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["event_action"] != "trigger" {
		t.Errorf("expected event_action=trigger, got %v", payload["event_action"])
	}
	inner := payload["payload"].(map[string]interface{})
	if inner["severity"] != "critical" {
		t.Errorf("expected critical severity for a persistent fault, got %v", inner["severity"])
	}
}

func TestOpsgenieFormat(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notice := sampleNotice()
	notice.Persistent = false
	e := fastExporter(server.URL, FormatOpsgenie)
	if err := e.Send(context.Background(), notice); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(received, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["alias"] != notice.NoticeID {
		t.Errorf("expected alias=%s, got %v", notice.NoticeID, payload["alias"])
	}
	if payload["priority"] != "P3" {
		t.Errorf("expected priority=P3, got %v", payload["priority"])
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatGeneric {
		t.Fatalf("empty format: %v %v", f, err)
	}
	if _, err := ParseFormat("slack"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
