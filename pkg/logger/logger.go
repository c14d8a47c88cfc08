package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout"` // stdout, stderr, or file path
	TimeFormat string `yaml:"time_format"`
	// Rotation of file output.
	MaxSizeMB  int  `yaml:"max_size_mb" default:"100"`
	MaxBackups int  `yaml:"max_backups" default:"5"`
	MaxAgeDays int  `yaml:"max_age_days" default:"28"`
	Compress   bool `yaml:"compress"`
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, fmt.Errorf("could not create log directory: %w", err)
		}
		output = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: timeFormat,
		}
	}

	zl := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &Logger{zl: zl}, nil
}

// Nop returns a logger that discards everything. Used by tests and CLI dry runs.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that always carries the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		k, v := f.GetKeyValue()
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, field := range fields {
		field.AddTo(event)
	}
	event.Msg(msg)
}

// Field is one structured key/value on a log line.
type Field interface {
	AddTo(event *zerolog.Event)
	GetKeyValue() (string, interface{})
}

type typedField[T any] struct {
	key   string
	value T
	add   func(e *zerolog.Event, key string, v T) *zerolog.Event
}

func (f typedField[T]) AddTo(event *zerolog.Event) { f.add(event, f.key, f.value) }

func (f typedField[T]) GetKeyValue() (string, interface{}) { return f.key, f.value }

type errorField struct{ err error }

func (f errorField) AddTo(event *zerolog.Event) { event.Err(f.err) }

func (f errorField) GetKeyValue() (string, interface{}) {
	if f.err == nil {
		return zerolog.ErrorFieldName, nil
	}
	return zerolog.ErrorFieldName, f.err.Error()
}

func String(key, value string) Field {
	return typedField[string]{key, value, (*zerolog.Event).Str}
}

func Int(key string, value int) Field {
	return typedField[int]{key, value, (*zerolog.Event).Int}
}

func Int64(key string, value int64) Field {
	return typedField[int64]{key, value, (*zerolog.Event).Int64}
}

func Float64(key string, value float64) Field {
	return typedField[float64]{key, value, (*zerolog.Event).Float64}
}

// Floats logs a slice such as per-fold scores.
func Floats(key string, value []float64) Field {
	return typedField[[]float64]{key, value, (*zerolog.Event).Floats64}
}

func Bool(key string, value bool) Field {
	return typedField[bool]{key, value, (*zerolog.Event).Bool}
}

func Any(key string, value interface{}) Field {
	return typedField[interface{}]{key, value, (*zerolog.Event).Interface}
}

func Error(err error) Field { return errorField{err} }

// Duration logs whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}
