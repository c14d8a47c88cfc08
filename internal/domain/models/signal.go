package models

import (
	"fmt"
	"time"
)

// Position is the side held during a bar.
type Position int8

const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1
)

func (p Position) String() string {
	switch p {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

func (p Position) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Position) UnmarshalText(b []byte) error {
	switch string(b) {
	case "long":
		*p = Long
	case "short":
		*p = Short
	case "flat", "":
		*p = Flat
	default:
		return fmt.Errorf("unknown position %q", b)
	}
	return nil
}

// Signal is the decision for one timestamp.
type Signal struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Position  Position  `json:"position" yaml:"position"`
	Score     float64   `json:"score" yaml:"score"`
}
