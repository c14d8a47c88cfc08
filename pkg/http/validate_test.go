package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type sampleRequest struct {
	ID    string `param:"id" json:"-" validate:"required"`
	Top   int    `query:"top" json:"top" default:"10" validate:"gte=1,lte=50"`
	Order string `json:"order" default:"asc" validate:"oneof=asc desc"`
	From  string `json:"from" validate:"omitempty,timestr"`
}

func newContext(method, target, body string, id string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return c
}

func TestBindRequestDefaults(t *testing.T) {
	var req sampleRequest
	c := newContext(http.MethodPost, "/", `{"from":"2024-01-31"}`, "m1")
	if errs := BindRequest(c, &req); errs != nil {
		t.Fatalf("unexpected errors %v", errs)
	}
	if req.ID != "m1" || req.Top != 10 || req.Order != "asc" {
		t.Fatalf("bind/defaults not applied: %+v", req)
	}
}

func TestBindRequestErrors(t *testing.T) {
	var req sampleRequest
	c := newContext(http.MethodPost, "/", `{"top":99,"order":"up","from":"yesterday"}`, "")
	errs := BindRequest(c, &req)
	codes := map[string]string{}
	for _, e := range errs {
		codes[e.Field] = e.Code
	}
	want := map[string]string{"id": "ERR_REQUIRED", "top": "ERR_LTE", "order": "ERR_ONEOF", "from": "ERR_TIMESTR"}
	for field, code := range want {
		if codes[field] != code {
			t.Errorf("%s: got %q want %q (all %v)", field, codes[field], code, codes)
		}
	}
	for _, e := range errs {
		if e.Message == "" {
			t.Errorf("%s: empty message", e.Field)
		}
	}

	c = newContext(http.MethodPost, "/", `{not json`, "m1")
	errs = BindRequest(c, &req)
	if len(errs) != 1 || errs[0].Code != "ERR_BIND" {
		t.Fatalf("expected one bind error, got %v", errs)
	}
}
