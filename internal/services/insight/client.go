package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"BoostLab/internal/domain/models"
	domsvc "BoostLab/internal/domain/service"
	"BoostLab/pkg/config"
	xhttp "BoostLab/pkg/http"
)

// HTTPInsightService asks an external commentary service to describe a
// finished backtest. It only ever sees the computed metrics, never prices.
type HTTPInsightService struct {
	client *xhttp.JSONClient
}

// New returns nil when no URL is configured; callers treat a nil service as
// disabled through Enabled.
func New(cfg *config.Config) *HTTPInsightService {
	url := strings.TrimRight(cfg.Insight.URL, "/")
	if url == "" {
		return nil
	}
	timeout := cfg.Insight.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPInsightService{
		client: xhttp.NewJSONClient(url,
			xhttp.WithTimeout(timeout),
			xhttp.WithRetries(cfg.Insight.Retries, 100*time.Millisecond),
		),
	}
}

type commentaryReq struct {
	ArtifactID string             `json:"artifact_id"`
	Symbol     string             `json:"symbol"`
	Mode       string             `json:"mode"`
	Metrics    map[string]float64 `json:"metrics"`
}

type commentaryResp struct {
	Commentary string `json:"commentary"`
}

func (s *HTTPInsightService) Enabled() bool { return s != nil }

func (s *HTTPInsightService) Commentary(ctx context.Context, report *models.BacktestReport) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	r := report.Result
	req := commentaryReq{
		ArtifactID: report.ArtifactID,
		Symbol:     report.Symbol,
		Mode:       report.Mode,
		Metrics: map[string]float64{
			"total_return":      r.TotalReturn,
			"annualized_return": r.AnnualizedReturn,
			"volatility":        r.Volatility,
			"sharpe_ratio":      r.SharpeRatio,
			"max_drawdown":      r.MaxDrawdown,
			"calmar_ratio":      r.CalmarRatio,
			"win_rate":          r.WinRate,
			"total_trades":      float64(r.TotalTrades),
			"fee_impact":        r.FeeImpact,
		},
	}
	var resp commentaryResp
	if err := s.client.PostJSON(ctx, "/commentary", req, &resp); err != nil {
		return "", fmt.Errorf("post commentary: %w", err)
	}
	return strings.TrimSpace(resp.Commentary), nil
}

var _ domsvc.TextInsightService = (*HTTPInsightService)(nil)
