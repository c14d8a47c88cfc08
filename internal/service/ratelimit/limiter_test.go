package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestAllowRefills(t *testing.T) {
	l := New(2, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("expected burst of 2")
	}
	if l.Allow("a") {
		t.Fatalf("expected bucket to be empty")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must not share buckets")
	}
	now = now.Add(1500 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatalf("expected refill after 1.5s")
	}
	if l.Allow("a") {
		t.Fatalf("only one token should have refilled")
	}
}

func TestMiddlewareRejects(t *testing.T) {
	l := New(1, 0)
	e := echo.New()
	e.POST("/train", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, l.Middleware())

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/train", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
}
