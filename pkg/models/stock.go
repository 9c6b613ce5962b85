package models

import (
	"strings"
	"time"
)

// Symbol is a normalized ticker identifier (uppercase, trimmed).
type Symbol string

// NormalizeSymbol trims and uppercases raw operator or provider input.
func NormalizeSymbol(raw string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(raw)))
}

func (s Symbol) String() string { return string(s) }

// StockUpdate represents a single market tick for a stock symbol
type StockUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
	SeqID     int64   `json:"seq_id"`    // monotonic counter per symbol
}

// Quote is one (symbol, price) pair returned by a market data lookup.
type Quote struct {
	Symbol Symbol
	Price  float64
}

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// AlertEvent is emitted once per target crossing.
type AlertEvent struct {
	ID        string    `json:"id"`
	Symbol    Symbol    `json:"symbol"`
	Target    float64   `json:"target"`
	Price     float64   `json:"price"`
	Previous  float64   `json:"previous"`
	Direction string    `json:"direction"`
	At        time.Time `json:"at"`
}

// SnapshotKeyPrefix is the Redis key layout shared by the processor (writer) and the tracker (reader).
const SnapshotKeyPrefix = "stock:"

func SnapshotKey(s Symbol) string { return SnapshotKeyPrefix + string(s) }
