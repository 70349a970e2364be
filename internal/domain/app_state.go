package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppStateID is the fixed identity of the single application state record.
const AppStateID uint32 = 1

// FundConfig configures one fund. It has no lifecycle of its own and is only
// persisted as part of ApplicationState.
type FundConfig struct {
	Token             string           `json:"token"`
	TradingStrategy   TradingStrategy  `json:"trading_strategy"`
	AmountPerStrategy decimal.Decimal  `json:"amount_per_strategy"`
	RiskReward        decimal.Decimal  `json:"risk_reward"`
	TakeProfitRatio   *decimal.Decimal `json:"take_profit_ratio"`
	ATRSpread         *decimal.Decimal `json:"atr_spread"`
	ATRTerm           SampleTerm       `json:"atr_term"`
	OpenHours         int64            `json:"open_hours"`
}

// ApplicationState is the mutable, process-wide state of the trading application.
// Exactly one record exists, identified by AppStateID.
type ApplicationState struct {
	ID                uint32           `json:"id"`
	LastExecutionTime *time.Time       `json:"last_execution_time"`
	LastEquity        *decimal.Decimal `json:"last_equity"`
	AveDD             *decimal.Decimal `json:"ave_dd"`
	MaxDD             *decimal.Decimal `json:"max_dd"` // Running maximum drawdown
	CumulativeReturn  decimal.Decimal  `json:"cumulative_return"`
	CumulativeDD      decimal.Decimal  `json:"cumulative_dd"`
	Score             *decimal.Decimal `json:"score"`
	Score2            *decimal.Decimal `json:"score_2"`
	Score3            *decimal.Decimal `json:"score_3"`
	CircuitBreak      bool             `json:"circuit_break"`
	ErrorTime         []string         `json:"error_time"` // Append-only log of error timestamps
	MaxInvestedAmount decimal.Decimal  `json:"max_invested_amount"`
	FundConfigs       []FundConfig     `json:"fund_configs"`
}

// DefaultApplicationState returns the state used before anything was persisted.
func DefaultApplicationState() ApplicationState {
	return ApplicationState{
		ID:                AppStateID,
		CumulativeReturn:  decimal.Zero,
		CumulativeDD:      decimal.Zero,
		ErrorTime:         []string{},
		MaxInvestedAmount: decimal.Zero,
		FundConfigs:       []FundConfig{},
	}
}

// RecordID implements the identity accessor used by the repositories.
func (s ApplicationState) RecordID() uint32 { return AppStateID }
