package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/presentations", nil))

	if seen == "" {
		t.Fatal("handler should see a generated request id")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("response header = %q, want %q", got, seen)
	}
}

func TestRequestIDHonorsInbound(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/presentations", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "trace-42" {
		t.Fatalf("request id = %q, want trace-42", seen)
	}
}

func TestLoggerRecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"step_busy","message":"busy"}}`))
	})))

	req := httptest.NewRequest(http.MethodPost, "/presentations/p1/steps/slides/run", nil)
	req.Header.Set("X-Request-ID", "trace-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["status"] != float64(http.StatusConflict) {
		t.Fatalf("status = %v, want %d", record["status"], http.StatusConflict)
	}
	if record["method"] != http.MethodPost {
		t.Fatalf("method = %v, want POST", record["method"])
	}
	if record["request_id"] != "trace-7" {
		t.Fatalf("request_id = %v, want trace-7", record["request_id"])
	}
	if record["bytes"] == float64(0) {
		t.Fatal("bytes should count the written body")
	}
}
