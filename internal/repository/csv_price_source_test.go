package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"BoostLab/internal/domain/models"
	domrepo "BoostLab/internal/domain/repository"
)

const sampleCSV = `Date,Open,High,Low,Close,Volume
2023-01-02,10,11,9,10.5,100
2023-01-03,10.5,12,10,11.5,120
2023-01-04,11.5,12,11,11,90
`

func TestReadBarsCSV(t *testing.T) {
	bars, err := ReadBarsCSV(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadBarsCSV: %v", err)
	}
	if len(bars) != 3 || bars[1].Close != 11.5 || bars[2].Volume != 90 {
		t.Fatalf("bars = %+v", bars)
	}
	if !bars[0].Timestamp.Equal(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp = %v", bars[0].Timestamp)
	}
}

func TestReadBarsCSVRejectsNulls(t *testing.T) {
	cases := map[string]string{
		"empty cell":     "timestamp,open,high,low,close,volume\n2023-01-02,10,11,9,,100\n",
		"null literal":   "timestamp,open,high,low,close,volume\n2023-01-02,10,11,9,10,NULL\n",
		"bad timestamp":  "timestamp,open,high,low,close,volume\nsoon,10,11,9,10,1\n",
		"missing column": "timestamp,open,high,low,close\n2023-01-02,10,11,9,10\n",
	}
	for name, in := range cases {
		_, err := ReadBarsCSV(context.Background(), strings.NewReader(in))
		var sve *models.SchemaValidationError
		if !errors.As(err, &sve) {
			t.Errorf("%s: expected schema error, got %v", name, err)
		}
	}
}

func TestCSVPriceSourceDirectoryAndRange(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewCSVPriceSource(dir, nil)
	ctx := context.Background()
	bars, err := src.GetBars(ctx, "aapl", time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), time.Time{}, domrepo.TF1d)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if len(bars) != 2 || bars[0].Close != 11.5 {
		t.Fatalf("bars = %+v", bars)
	}
	last, err := src.GetLatestNBars(ctx, "AAPL", 1, domrepo.TF1d)
	if err != nil || len(last) != 1 || last[0].Close != 11 {
		t.Fatalf("latest = %+v, %v", last, err)
	}
	if _, err := src.GetBars(ctx, "MSFT", time.Time{}, time.Time{}, domrepo.TF1d); err == nil {
		t.Fatal("expected error for missing file")
	}
}
