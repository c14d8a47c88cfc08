package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"BoostLab/internal/domain/models"
	domrepo "BoostLab/internal/domain/repository"
	pkgch "BoostLab/pkg/clickhouse"
	applogger "BoostLab/pkg/logger"
)

// CHPriceSource implements PriceSeriesSource backed by the ClickHouse bars table.
type CHPriceSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.PriceSeriesSource = (*CHPriceSource)(nil)

func NewCHPriceSource(ch *pkgch.Client, l *applogger.Logger) *CHPriceSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHPriceSource{db: ch.DB(), table: ch.BarsTable(), l: l}
}

func (s *CHPriceSource) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.PriceBar, error) {
	start := time.Now()
	if to.IsZero() {
		to = time.Now().UTC()
	}
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, string(tf), from, to)
	if err != nil {
		s.logErr("get_bars query error", symbol, tf, err)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out, err := s.scan(rows, symbol, tf, 1024)
	if err != nil {
		return nil, err
	}
	s.l.Info("clickhouse get_bars ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHPriceSource) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.PriceBar, error) {
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND timeframe = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, string(tf), n)
	if err != nil {
		s.logErr("latest_bars query error", symbol, tf, err)
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	out, err := s.scan(rows, symbol, tf, n)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHPriceSource) scan(rows *sql.Rows, symbol string, tf domrepo.Timeframe, capacity int) ([]models.PriceBar, error) {
	out := make([]models.PriceBar, 0, capacity)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.logErr("scan error", symbol, tf, err)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		s.logErr("rows error", symbol, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// StoreBars inserts bars in multi-row chunks.
func (s *CHPriceSource) StoreBars(ctx context.Context, symbol string, tf domrepo.Timeframe, bars []models.PriceBar) error {
	const chunkSize = 2000
	for lo := 0; lo < len(bars); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(bars) {
			hi = len(bars)
		}
		values := make([]string, 0, hi-lo)
		args := make([]any, 0, (hi-lo)*8)
		for _, b := range bars[lo:hi] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Timestamp.UTC(), symbol, string(tf), b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, timeframe, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logErr("store_bars error", symbol, tf, err)
			return fmt.Errorf("store bars: %w", err)
		}
	}
	s.l.Info("clickhouse store_bars ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(bars)),
	)
	return nil
}

func (s *CHPriceSource) logErr(msg, symbol string, tf domrepo.Timeframe, err error) {
	s.l.Error("clickhouse "+msg,
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}
