package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.With(String("run_id", "r1")).Info("trial recorded", Int("trial", 3), Error(errors.New("boom")))
	l.Debug("hidden")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	for _, want := range []string{`"message":"trial recorded"`, `"run_id":"r1"`, `"trial":3`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q lacks %s", out, want)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level")
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
