package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"BoostLab/internal/domain/models"
	"BoostLab/pkg/config"
)

func TestDisabledWithoutURL(t *testing.T) {
	cfg, _ := config.Default()
	s := New(cfg)
	if s.Enabled() {
		t.Fatalf("expected disabled service")
	}
	text, err := s.Commentary(context.Background(), &models.BacktestReport{})
	if err != nil || text != "" {
		t.Fatalf("disabled service should be silent: %q %v", text, err)
	}
}

func TestCommentaryRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var req commentaryReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Metrics["sharpe_ratio"] != 1.25 {
			t.Errorf("unexpected metrics %v", req.Metrics)
		}
		_ = json.NewEncoder(w).Encode(commentaryResp{Commentary: " steady gains \n"})
	}))
	defer srv.Close()

	cfg, _ := config.Default()
	cfg.Insight.URL = srv.URL + "/"
	cfg.Insight.Retries = 2
	s := New(cfg)

	text, err := s.Commentary(context.Background(), &models.BacktestReport{
		ArtifactID: "m1",
		Result:     models.BacktestResult{SharpeRatio: 1.25},
	})
	if err != nil {
		t.Fatalf("commentary: %v", err)
	}
	if text != "steady gains" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("got %q after %d calls", text, calls)
	}
}

func TestCommentaryStopsOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg, _ := config.Default()
	cfg.Insight.URL = srv.URL
	cfg.Insight.Retries = 3
	if _, err := New(cfg).Commentary(context.Background(), &models.BacktestReport{}); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls)
	}
}
