package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applogger "BoostLab/pkg/logger"

	"github.com/labstack/echo/v4"
)

type echoRoutes struct{}

func (echoRoutes) RegisterRoutes(e *echo.Echo) {
	e.POST("/echo", func(c echo.Context) error {
		var body map[string]string
		if err := c.Bind(&body); err != nil {
			return err
		}
		return SuccessResponse(c, body)
	})
	e.GET("/boom", func(c echo.Context) error {
		return AppErrorResponse(c, ConflictError("busy"))
	})
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerEnvelopeCarriesRequestID(t *testing.T) {
	s := NewServer(echoRoutes{}, WithLogger(applogger.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := serve(s, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	var env APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := rec.Header().Get(echo.HeaderXRequestID)
	if id == "" || env.RequestID != id {
		t.Fatalf("request id header %q, envelope %q", id, env.RequestID)
	}
	if env.Status != http.StatusConflict || env.Message != "Conflict" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestServerCORSAndBodyLimit(t *testing.T) {
	s := NewServer(echoRoutes{},
		WithLogger(applogger.Nop()),
		WithCORSOrigins([]string{"https://lab.example"}),
		WithBodyLimit("1K"),
	)

	req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
	req.Header.Set(echo.HeaderOrigin, "https://lab.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := serve(s, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "https://lab.example" {
		t.Fatalf("allow origin %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"rows":"`+strings.Repeat("x", 2048)+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec := serve(s, req); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: status %d, want 413", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"b"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Fatalf("small body: status %d", rec.Code)
	}
}
