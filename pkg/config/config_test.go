package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.Equal(t, "lightgbm", c.Model.Type)
	require.Equal(t, "direction", c.Target.Type)
	require.Equal(t, 5, c.Validation.NSplits)
	require.Equal(t, "expanding", c.Validation.Scheme)
	require.Equal(t, 0.001, c.Backtest.FeeRate)
	require.Equal(t, 10000.0, c.Backtest.InitialCapital)
	require.Equal(t, time.Hour, c.Search.Timeout)
	require.Equal(t, int64(42), c.Search.Seed)
	require.True(t, c.Explain.Enabled)
	require.Equal(t, "info", c.App.Log.Level)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
model:
  model_type: xgboost
target:
  target_type: returns
  horizon: 3
search:
  n_trials: 7
  metric: rmse
  search_space:
    xgboost:
      max_depth: {range: [2, 8], kind: int}
      learning_rate: {range: [0.01, 0.3], log: true}
explain:
  enabled: false
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "xgboost", c.Model.Type)
	require.Equal(t, 3, c.Target.Horizon)
	require.Equal(t, 7, c.Search.NTrials)
	require.False(t, c.Explain.Enabled)
	require.Equal(t, "int", c.Search.SearchSpace["xgboost"]["max_depth"].Kind)
	require.Equal(t, "float", c.Search.SearchSpace["xgboost"]["learning_rate"].Kind)
	require.Equal(t, 50, c.Model.EarlyStoppingRounds)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "model:\n  model_typo: lightgbm\n",
		"bad model type":   "model:\n  model_type: catboost\n",
		"bad target":       "target:\n  target_type: price\n",
		"horizon":          "target:\n  horizon: 0\n",
		"splits":           "validation:\n  n_splits: 1\n",
		"metric mismatch":  "search:\n  metric: auc\ntarget:\n  target_type: volatility\n",
		"range shape":      "search:\n  search_space:\n    lightgbm:\n      num_leaves: {range: [10]}\n",
		"range order":      "search:\n  search_space:\n    lightgbm:\n      num_leaves: {range: [40, 10], kind: int}\n",
		"csv without path": "data:\n  source: csv\n  csv_path: \"\"\n",
		"kafka no brokers": "kafka:\n  enabled: true\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	path := writeConfig(t, "model:\n  model_type: lightgbm\nvalidation:\n  n_splits: 3\n")
	t.Setenv("MODEL_TYPE", "xgboost")
	t.Setenv("N_SPLITS", "4")
	t.Setenv("OPTUNA_TRIALS", "12")
	t.Setenv("SEARCH_TIMEOUT", "90s")
	t.Setenv("FEE_RATE", "0.002")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CLICKHOUSE_ADDR", "ch.local:9440")
	t.Setenv("REDIS_ADDR", "redis:6379")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	require.Equal(t, "xgboost", c.Model.Type)
	require.Equal(t, 4, c.Validation.NSplits)
	require.Equal(t, 12, c.Search.NTrials)
	require.Equal(t, 90*time.Second, c.Search.Timeout)
	require.Equal(t, 0.002, c.Backtest.FeeRate)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	require.True(t, c.Kafka.Enabled)
	require.Equal(t, "ch.local", c.ClickHouse.Host)
	require.Equal(t, 9440, c.ClickHouse.Port)
	require.True(t, c.Cache.Redis.Enabled)
}

func TestEnvOverridesAreValidated(t *testing.T) {
	t.Setenv("MODEL_TYPE", "catboost")
	_, err := LoadWithEnv("")
	require.Error(t, err)

	t.Setenv("MODEL_TYPE", "xgboost")
	t.Setenv("HORIZON", "soon")
	_, err = LoadWithEnv("")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "HORIZON"))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	body := "BOOSTLAB_TEST_DOTENV=from-file\nBOOSTLAB_TEST_KEEP=from-file\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOOSTLAB_TEST_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("BOOSTLAB_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	require.Equal(t, "from-file", os.Getenv("BOOSTLAB_TEST_DOTENV"))
	require.Equal(t, "from-env", os.Getenv("BOOSTLAB_TEST_KEEP"))
}

func TestRetrainCron(t *testing.T) {
	cases := []struct {
		spec string
		ok   bool
	}{
		{"", true},
		{"0 3 * * *", true},
		{"@every 6h", true},
		{"every night", false},
		{"0 0 3 * * *", false},
	}
	for _, tc := range cases {
		c, err := Default()
		require.NoError(t, err)
		c.Schedule.RetrainCron = tc.spec
		if err := c.Validate(); (err == nil) != tc.ok {
			t.Errorf("retrain_cron %q: err = %v, want ok=%v", tc.spec, err, tc.ok)
		}
	}
}
