package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"BoostLab/pkg/logger"
	"BoostLab/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	App         struct {
		Name string        `yaml:"name" default:"boostlab"`
		Log  logger.Config `yaml:"log"`
	} `yaml:"app"`
	Data struct {
		Source        string `yaml:"source" default:"synthetic" validate:"oneof=csv clickhouse synthetic"`
		CSVPath       string `yaml:"csv_path" default:"data/sample_data.csv"`
		Symbol        string `yaml:"symbol" default:"SYN" validate:"required"`
		Timeframe     string `yaml:"timeframe" default:"1d" validate:"oneof=1m 5m 15m 1h 4h 1d"`
		From          string `yaml:"from"`
		To            string `yaml:"to"`
		SyntheticBars int    `yaml:"synthetic_bars" default:"1000" validate:"gte=10"`
		SyntheticSeed int64  `yaml:"synthetic_seed" default:"7"`
	} `yaml:"data"`
	Features struct {
		Indicators []string `yaml:"indicators"`
	} `yaml:"features"`
	Target struct {
		Type               string  `yaml:"target_type" default:"direction" validate:"oneof=direction returns volatility"`
		Horizon            int     `yaml:"horizon" default:"1" validate:"gte=1"`
		DirectionThreshold float64 `yaml:"direction_threshold"`
	} `yaml:"target"`
	Validation struct {
		NSplits  int     `yaml:"n_splits" default:"5" validate:"gte=2"`
		Scheme   string  `yaml:"scheme" default:"expanding" validate:"oneof=expanding rolling"`
		TestSize float64 `yaml:"test_size" default:"0.2" validate:"gt=0,lt=1"`
	} `yaml:"validation"`
	Model struct {
		Type                string             `yaml:"model_type" default:"lightgbm" validate:"oneof=lightgbm xgboost"`
		EarlyStoppingRounds int                `yaml:"early_stopping_rounds" default:"50" validate:"gte=0"`
		BaseParams          map[string]float64 `yaml:"base_params"`
	} `yaml:"model"`
	Search struct {
		NTrials          int                             `yaml:"n_trials" default:"50" validate:"gte=0"`
		Timeout          time.Duration                   `yaml:"timeout" default:"1h"`
		TrialTimeout     time.Duration                   `yaml:"trial_timeout" default:"5m"`
		Seed             int64                           `yaml:"seed" default:"42"`
		Parallelism      int                             `yaml:"parallelism" default:"1" validate:"gte=1"`
		Direction        string                          `yaml:"direction" validate:"omitempty,oneof=maximize minimize"`
		Metric           string                          `yaml:"metric" validate:"omitempty,oneof=auc logloss accuracy rmse mae"`
		Pruning          bool                            `yaml:"pruning" default:"true"`
		PruningMinTrials int                             `yaml:"pruning_min_trials" default:"5" validate:"gte=1"`
		PruningWarmup    int                             `yaml:"pruning_warmup_folds" default:"1" validate:"gte=0"`
		NStartupTrials   int                             `yaml:"n_startup_trials" default:"10" validate:"gte=1"`
		NEICandidates    int                             `yaml:"n_ei_candidates" default:"24" validate:"gte=1"`
		SearchSpace      map[string]map[string]ParamSpec `yaml:"search_space" validate:"dive,dive"`
	} `yaml:"search"`
	Backtest struct {
		FeeRate        float64 `yaml:"fee_rate" default:"0.001" validate:"gte=0,lt=1"`
		InitialCapital float64 `yaml:"initial_capital" default:"10000" validate:"gt=0"`
		RiskFreeRate   float64 `yaml:"risk_free_rate" default:"0.02"`
		PeriodsPerYear float64 `yaml:"periods_per_year" default:"252" validate:"gt=0"`
		AllowShort     bool    `yaml:"allow_short"`
		LongThreshold  float64 `yaml:"long_threshold" default:"0.5"`
		ShortThreshold float64 `yaml:"short_threshold" default:"0.5"`
		TrainWindow    int     `yaml:"train_window" default:"252" validate:"gte=2"`
		Step           int     `yaml:"step" default:"21" validate:"gte=1"`
	} `yaml:"backtest"`
	Explain struct {
		Enabled        bool  `yaml:"enabled" default:"true"`
		BackgroundSize int   `yaml:"background_size" default:"100" validate:"gte=1"`
		MaxSamples     int   `yaml:"max_samples" default:"500" validate:"gte=1"`
		NPermutations  int   `yaml:"n_permutations" default:"8" validate:"gte=1"`
		Seed           int64 `yaml:"seed" default:"42"`
	} `yaml:"explain"`
	Artifacts struct {
		Dir string `yaml:"dir" default:"artifacts" validate:"required"`
	} `yaml:"artifacts"`
	Cache struct {
		TTL           time.Duration `yaml:"ttl" default:"10m"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"1000" validate:"gte=1"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"boostlab"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		BodyLimit       string        `yaml:"body_limit" default:"8M"`
		RateLimit       struct {
			Capacity     float64 `yaml:"capacity" default:"5"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"0.5"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"boostlab.events"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			Topic      string        `yaml:"topic" default:"train.requests"`
			GroupID    string        `yaml:"group_id" default:"boostlab-trainer"`
			Workers    int           `yaml:"workers" default:"1" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"1s"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"30s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"train.requests.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"boostlab"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		InitSchema       bool          `yaml:"init_schema" default:"true"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Schedule struct {
		RetrainCron string `yaml:"retrain_cron"`
	} `yaml:"schedule"`
	Insight struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout" default:"20s"`
		Retries int           `yaml:"retries" default:"2"`
	} `yaml:"insight"`
}

// ParamSpec is one search dimension: an inclusive [lo, hi] range.
type ParamSpec struct {
	Range []float64 `yaml:"range" validate:"len=2"`
	Kind  string    `yaml:"kind" default:"float" validate:"oneof=int float"`
	Log   bool      `yaml:"log"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults. Unknown keys are an error.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, space := range c.Search.SearchSpace {
		for name, spec := range space {
			if spec.Kind == "" {
				spec.Kind = "float"
				space[name] = spec
			}
		}
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables
// and validates the result. An empty path starts from defaults. Variables in
// a .env file in the working directory are exported first; real environment
// variables win over it.
func LoadWithEnv(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Parse(nil)
	} else {
		c, err = read(path)
	}
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadDotEnv exports the variables of each existing file without replacing
// ones already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var bad []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				bad = append(bad, key)
				return
			}
			*dst = n
		}
	}
	flt := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				bad = append(bad, key)
				return
			}
			*dst = f
		}
	}

	str("ENVIRONMENT", &c.Environment)
	str("LOG_LEVEL", &c.App.Log.Level)
	str("DATA_SOURCE", &c.Data.Source)
	str("CSV_PATH", &c.Data.CSVPath)
	str("SYMBOL", &c.Data.Symbol)
	num("N_SPLITS", &c.Validation.NSplits)
	num("OPTUNA_TRIALS", &c.Search.NTrials)
	str("MODEL_TYPE", &c.Model.Type)
	str("TARGET_TYPE", &c.Target.Type)
	num("HORIZON", &c.Target.Horizon)
	if v, ok := lookup("SEARCH_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			bad = append(bad, "SEARCH_TIMEOUT")
		} else {
			c.Search.Timeout = d
		}
	}
	flt("FEE_RATE", &c.Backtest.FeeRate)
	flt("INITIAL_CAPITAL", &c.Backtest.InitialCapital)
	flt("RISK_FREE_RATE", &c.Backtest.RiskFreeRate)
	str("ARTIFACTS_DIR", &c.Artifacts.Dir)
	num("SERVER_PORT", &c.Server.Port)

	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v, ok := lookup("CLICKHOUSE_ADDR"); ok && v != "" {
		host, port, err := net.SplitHostPort(v)
		p, perr := strconv.Atoi(port)
		if err != nil || perr != nil {
			bad = append(bad, "CLICKHOUSE_ADDR")
		} else {
			c.ClickHouse.Host, c.ClickHouse.Port, c.ClickHouse.Enabled = host, p, true
		}
	}
	str("INSIGHT_URL", &c.Insight.URL)
	str("RETRAIN_CRON", &c.Schedule.RetrainCron)

	if len(bad) > 0 {
		return fmt.Errorf("invalid environment overrides: %v", bad)
	}
	return nil
}

// Validate checks tags first, then rules spanning several fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Data.Source == "csv" && c.Data.CSVPath == "" {
		return fmt.Errorf("data.csv_path is required when data.source is csv")
	}
	if c.Data.Source == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("data.source clickhouse requires clickhouse.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Backtest.ShortThreshold > c.Backtest.LongThreshold {
		return fmt.Errorf("backtest.short_threshold %v exceeds long_threshold %v",
			c.Backtest.ShortThreshold, c.Backtest.LongThreshold)
	}
	if c.Backtest.TrainWindow <= c.Target.Horizon {
		return fmt.Errorf("backtest.train_window must exceed target.horizon")
	}
	if m := c.Search.Metric; m != "" {
		classification := c.Target.Type == "direction"
		isClass := m == "auc" || m == "logloss" || m == "accuracy"
		if classification != isClass {
			return fmt.Errorf("search.metric %s does not fit target %s", m, c.Target.Type)
		}
	}
	if spec := c.Schedule.RetrainCron; spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("schedule.retrain_cron: %w", err)
		}
	}
	for model, space := range c.Search.SearchSpace {
		if model != "lightgbm" && model != "xgboost" {
			return fmt.Errorf("search.search_space: unknown model type %q", model)
		}
		for name, spec := range space {
			if spec.Range[0] > spec.Range[1] {
				return fmt.Errorf("search.search_space.%s.%s: low exceeds high", model, name)
			}
			if spec.Log && spec.Range[0] <= 0 {
				return fmt.Errorf("search.search_space.%s.%s: log scale needs a positive low", model, name)
			}
		}
	}
	return nil
}
