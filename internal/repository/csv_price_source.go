package repository

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"BoostLab/internal/domain/models"
	domrepo "BoostLab/internal/domain/repository"
	applogger "BoostLab/pkg/logger"
	"BoostLab/pkg/util"
)

var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// CSVPriceSource reads OHLCV rows from a file, or from <dir>/<SYMBOL>.csv
// when path is a directory.
type CSVPriceSource struct {
	path string
	l    *applogger.Logger
}

var _ domrepo.PriceSeriesSource = (*CSVPriceSource)(nil)

func NewCSVPriceSource(path string, l *applogger.Logger) *CSVPriceSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &CSVPriceSource{path: path, l: l}
}

func (s *CSVPriceSource) file(symbol string) string {
	if fi, err := os.Stat(s.path); err == nil && fi.IsDir() {
		return filepath.Join(s.path, strings.ToUpper(symbol)+".csv")
	}
	return s.path
}

func (s *CSVPriceSource) GetBars(ctx context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.PriceBar, error) {
	start := time.Now()
	path := s.file(symbol)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	bars, err := ReadBarsCSV(ctx, f)
	if err != nil {
		s.l.Error("csv read error", applogger.String("path", path), applogger.Error(err))
		return nil, err
	}
	out := bars[:0]
	for _, b := range bars {
		if !from.IsZero() && b.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && b.Timestamp.After(to) {
			continue
		}
		out = append(out, b)
	}
	s.l.Info("csv get_bars ok",
		applogger.String("path", path),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CSVPriceSource) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.PriceBar, error) {
	bars, err := s.GetBars(ctx, symbol, time.Time{}, time.Time{}, tf)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

// ReadBarsCSV parses a headered OHLCV table. Column order is free; "date" and
// "time" are accepted for the timestamp. Any empty or null cell rejects the
// whole input.
func ReadBarsCSV(ctx context.Context, r io.Reader) ([]models.PriceBar, error) {
	cr := csv.NewReader(bufio.NewReaderSize(r, 1<<16))
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, &models.SchemaValidationError{Field: "header", Index: -1, Reason: err.Error()}
	}
	col := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch h {
		case "date", "time", "datetime":
			h = "timestamp"
		}
		col[h] = i
	}
	idx := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		j, ok := col[name]
		if !ok {
			return nil, &models.SchemaValidationError{Field: name, Index: -1, Reason: "missing column"}
		}
		idx[i] = j
	}

	var bars []models.PriceBar
	for row := 0; ; row++ {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &models.SchemaValidationError{Field: "row", Index: row, Reason: err.Error()}
		}
		b, err := parseBar(rec, idx, row)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseBar(rec []string, idx []int, row int) (models.PriceBar, error) {
	var b models.PriceBar
	raw := rec[idx[0]]
	ts, ok := util.ParseTime(strings.TrimSpace(raw))
	if !ok {
		return b, &models.SchemaValidationError{Field: "timestamp", Index: row, Reason: fmt.Sprintf("unparseable timestamp %q", raw)}
	}
	b.Timestamp = ts.UTC()
	dst := []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume}
	for i, p := range dst {
		cell := strings.TrimSpace(rec[idx[i+1]])
		if cell == "" || strings.EqualFold(cell, "null") || strings.EqualFold(cell, "nan") {
			return b, &models.SchemaValidationError{Field: csvColumns[i+1], Index: row, Timestamp: b.Timestamp, Reason: "null value"}
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return b, &models.SchemaValidationError{Field: csvColumns[i+1], Index: row, Timestamp: b.Timestamp, Reason: err.Error()}
		}
		*p = v
	}
	return b, nil
}
