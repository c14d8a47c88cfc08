package repository

import "time"

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF1h, TF4h, TF1d:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1d }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Duration returns the length of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// BarsPerYear returns the number of bars per year for a timeframe, assuming
// equity-style sessions for daily bars and continuous trading for intraday bars.
func (tf Timeframe) BarsPerYear() float64 {
	switch tf {
	case TF1d:
		return 252
	case TF4h:
		return 365 * 6
	case TF1h:
		return 365 * 24
	case TF15m:
		return 365 * 24 * 4
	case TF5m:
		return 365 * 24 * 12
	case TF1m:
		return 365 * 24 * 60
	default:
		return 252
	}
}

// AlignFromTo rounds a time range to bar boundaries.
func AlignFromTo(from, to time.Time, tf Timeframe) (time.Time, time.Time) {
	d := tf.Duration()
	if d >= 24*time.Hour {
		y1, m1, d1 := from.UTC().Date()
		y2, m2, d2 := to.UTC().Date()
		return time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC), time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	}
	return from.Truncate(d), to.Truncate(d)
}
