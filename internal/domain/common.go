package domain

import "github.com/shopspring/decimal"

// PositionState represents the lifecycle state of a trading position.
type PositionState string

const (
	StateOpen   PositionState = "Open"
	StateClosed PositionState = "Closed"
)

// SampleTerm selects the sampling window an ATR figure is computed over.
type SampleTerm string

const (
	TradingTerm SampleTerm = "TradingTerm"
	ShortTerm   SampleTerm = "ShortTerm"
	LongTerm    SampleTerm = "LongTerm"
)

// Numeric maps the term onto the feature value fed to the model (1, 2 or 3).
func (t SampleTerm) Numeric() decimal.Decimal {
	switch t {
	case ShortTerm:
		return decimal.NewFromInt(2)
	case LongTerm:
		return decimal.NewFromInt(3)
	default:
		return decimal.NewFromInt(1)
	}
}

// TrendType is the market direction a strategy trades on.
type TrendType string

const (
	TrendUp   TrendType = "Up"
	TrendDown TrendType = "Down"
	TrendAny  TrendType = "Any"
)

// Strategy kinds understood by the trading engine.
const (
	StrategyInago                = "Inago"
	StrategyInagoReversion       = "InagoReversion"
	StrategyGridEntry            = "GridEntry"
	StrategyFlashCrash           = "FlashCrash"
	StrategyRandomInago          = "RandomInago"
	StrategyRandomInagoReversion = "RandomInagoReversion"
	StrategyRandomGridEntry      = "RandomGridEntry"
)

// TradingStrategy identifies the strategy a fund runs. The persistence layer stores
// it as an opaque value; matching rules live with the trading engine.
type TradingStrategy struct {
	Kind  string    `json:"kind"`
	Trend TrendType `json:"trend,omitempty"`
}
