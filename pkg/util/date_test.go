package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDateOnly(t *testing.T) {
	for _, s := range []string{"2023-03-01", "2023-03-01 00:00:00"} {
		got, ok := ParseTime(s)
		if !ok || !got.Equal(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("%q: got %v ok=%v", s, got, ok)
		}
	}
	if _, ok := ParseTime("yesterday"); ok {
		t.Fatalf("expected failure")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a, ,b,c ")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("SplitList = %v", got)
	}
}
