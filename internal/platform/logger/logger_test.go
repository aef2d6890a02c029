package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_levels_and_format(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", slog.Int("tile", 3))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn: %s", out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", out, err)
	}
	if rec["msg"] != "shown" || rec["tile"] != float64(3) {
		t.Errorf("unexpected record: %v", rec)
	}

	buf.Reset()
	New(&buf, "debug", "text").Debug("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	mw := RequestLogger(New(&buf, "info", "json"))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("tea"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/layouts", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) != "req-1" {
		t.Errorf("request id not echoed: %q", rec.Header().Get(RequestIDHeader))
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line: %v", err)
	}
	if line["status"] != float64(http.StatusTeapot) || line["size"] != float64(3) || line["request_id"] != "req-1" {
		t.Errorf("unexpected log line: %v", line)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/layouts", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated request id")
	}
}

func TestRequestLogger_implicit_ok(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogger(New(&buf, "info", "json"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/layouts", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line: %v", err)
	}
	if line["status"] != float64(http.StatusOK) || line["size"] != float64(0) {
		t.Errorf("unexpected log line: %v", line)
	}
}
