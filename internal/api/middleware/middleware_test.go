package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, GetCorrelationID(c)) })
	return r
}

func TestCorrelationIDGeneratedAndEchoed(t *testing.T) {
	r := newEngine(CorrelationIDMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	id := w.Header().Get(CorrelationIDHeader)
	if id == "" || w.Body.String() != id {
		t.Fatalf("expected generated id echoed, header=%q body=%q", id, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(CorrelationIDHeader); got != "abc-123" {
		t.Fatalf("expected caller id kept, got %q", got)
	}
}

func TestSlogLoggerMiddlewareWritesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := newEngine(CorrelationIDMiddleware(), SlogLoggerMiddleware(logger))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIDHeader, "corr-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"request completed", "correlation_id=corr-1", "status=200", "path=/ping"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %q: %s", want, out)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	counter := newFakeCounter()
	r := newEngine(RateLimitMiddleware(counter, "fb:", 2, time.Minute))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if len(counter.expires) != 1 {
		t.Fatalf("expected ttl set once per window, got %v", counter.expires)
	}
	for key := range counter.expires {
		if !strings.HasPrefix(key, "fb:ratelimit:") {
			t.Fatalf("unexpected key %q", key)
		}
	}
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("connection refused")
	r := newEngine(RateLimitMiddleware(counter, "", 1, time.Minute))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected request to pass when redis fails, got %d", w.Code)
		}
	}
}
