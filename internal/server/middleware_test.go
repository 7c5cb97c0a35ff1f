package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func reqFromIP(ip string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/transpile", nil)
	r.RemoteAddr = ip + ":12345"
	return r
}

// rateLimitWrap creates a rate-limited handler whose sweeper stops when the
// test finishes.
func rateLimitWrap(t *testing.T, rps float64, burst, maxIPs int, next http.Handler) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mw, _ := RateLimitMiddleware(ctx, rps, burst, maxIPs)
	return mw(next)
}

func serve(h http.Handler, r *http.Request) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Code
}

func TestRateLimitBurstExhausted(t *testing.T) {
	wrapped := rateLimitWrap(t, 0.001, 2, 10, okHandler())

	assert.Equal(t, http.StatusOK, serve(wrapped, reqFromIP("1.1.1.1")))
	assert.Equal(t, http.StatusOK, serve(wrapped, reqFromIP("1.1.1.1")))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, reqFromIP("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, serve(wrapped, reqFromIP("2.2.2.2")))
}

// An evicted IP that returns gets a fresh bucket.
func TestRateLimitEvictedIPGetsFreshLimiter(t *testing.T) {
	wrapped := rateLimitWrap(t, 0.001, 1, 2, okHandler())

	if code := serve(wrapped, reqFromIP("1.1.1.1")); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := serve(wrapped, reqFromIP("1.1.1.1")); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}

	for _, ip := range []string{"2.2.2.2", "3.3.3.3"} {
		if code := serve(wrapped, reqFromIP(ip)); code != http.StatusOK {
			t.Fatalf("IP %s: expected 200, got %d", ip, code)
		}
	}

	if code := serve(wrapped, reqFromIP("1.1.1.1")); code != http.StatusOK {
		t.Errorf("evicted IP returning: expected 200, got %d", code)
	}
}

// Touching an entry moves it to the front, so the next eviction takes
// another one.
func TestRateLimitMRUNotEvicted(t *testing.T) {
	l := newIPLimiters(100, 100, 3)
	now := time.Now()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.allow(ip, now)
	}
	l.allow("10.0.0.1", now)
	l.allow("10.0.0.4", now)

	assert.Equal(t, 3, l.len())
	assert.Contains(t, l.items, "10.0.0.1")
	assert.NotContains(t, l.items, "10.0.0.2")
}

func TestRateLimitNeverRejectsAtCapacity(t *testing.T) {
	wrapped := rateLimitWrap(t, 100, 100, 5, okHandler())

	for i := 0; i < 20; i++ {
		ip := fmt.Sprintf("192.168.%d.%d", i/256, i%256)
		if code := serve(wrapped, reqFromIP(ip)); code != http.StatusOK {
			t.Errorf("IP %s: expected 200, got %d", ip, code)
		}
	}
}

func TestRateLimitSweep(t *testing.T) {
	l := newIPLimiters(1, 1, 0)
	start := time.Now()

	l.allow("a", start)
	l.allow("b", start.Add(8*time.Minute))
	l.allow("c", start.Add(9*time.Minute))

	removed := l.sweep(start.Add(12*time.Minute), limiterIdleTTL)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, l.len())
	assert.Equal(t, defaultMaxTrackedIPs, l.maxIPs)
}

func TestRateLimitConcurrentAccess(t *testing.T) {
	wrapped := rateLimitWrap(t, 1000, 1000, 100, okHandler())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ip := fmt.Sprintf("10.0.%d.%d", id/256, id%256)
			for j := 0; j < 10; j++ {
				if code := serve(wrapped, reqFromIP(ip)); code != http.StatusOK {
					t.Errorf("IP %s: got %d under concurrent load", ip, code)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestRateLimitCleanupStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, done := RateLimitMiddleware(ctx, 100, 100, 100)

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup goroutine did not exit within 2s")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"public peer ignores forwarding", "203.0.113.7:5000", "1.2.3.4", "", "203.0.113.7"},
		{"loopback proxy uses first hop", "127.0.0.1:5000", "1.2.3.4, 10.0.0.1", "", "1.2.3.4"},
		{"private proxy real ip", "10.1.1.1:5000", "", " 5.6.7.8 ", "5.6.7.8"},
		{"no port", "198.51.100.2", "", "", "198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := CORSMiddleware(nil)(okHandler())
		r := httptest.NewRequest(http.MethodPost, "/api/transpile", nil)
		r.Header.Set("Origin", "https://example.com")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origin is echoed", func(t *testing.T) {
		h := CORSMiddleware([]string{"https://a.test", "https://b.test"})(okHandler())
		r := httptest.NewRequest(http.MethodPost, "/api/transpile", nil)
		r.Header.Set("Origin", "https://b.test")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, "https://b.test", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unlisted origin", func(t *testing.T) {
		h := CORSMiddleware([]string{"https://a.test"})(okHandler())
		r := httptest.NewRequest(http.MethodPost, "/api/transpile", nil)
		r.Header.Set("Origin", "https://evil.test")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard preflight", func(t *testing.T) {
		h := CORSMiddleware([]string{"*"})(okHandler())
		r := httptest.NewRequest(http.MethodOptions, "/api/transpile", nil)
		r.Header.Set("Origin", "https://any.test")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeadersMiddleware()(okHandler())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "connect-src 'self'")
}
