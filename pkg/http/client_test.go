package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/double" || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %q", r.URL.Path, r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Client") != "boostlab" {
			t.Errorf("missing custom header")
		}
		var in map[string]float64
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]float64{"double": in["x"] * 2})
	}))
	defer srv.Close()

	c := NewJSONClient(srv.URL+"/", WithTimeout(time.Second), WithHeader("X-Client", "boostlab"))
	var out map[string]float64
	if err := c.PostJSON(context.Background(), "/double", map[string]float64{"x": 21}, &out); err != nil {
		t.Fatalf("post: %v", err)
	}
	if out["double"] != 42 {
		t.Fatalf("unexpected response %v", out)
	}
}

func TestRetries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retries   int
		wantCalls int32
		retryable bool
	}{
		{"server error retried", http.StatusServiceUnavailable, 2, 3, true},
		{"rate limit retried", http.StatusTooManyRequests, 1, 2, true},
		{"client error not retried", http.StatusBadRequest, 3, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewJSONClient(srv.URL, WithRetries(tt.retries, time.Millisecond))
			err := c.GetJSON(context.Background(), "/", nil)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if se.Code != tt.status || se.Retryable() != tt.retryable || se.Body != "nope" {
				t.Fatalf("unexpected status error %+v", se)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}
