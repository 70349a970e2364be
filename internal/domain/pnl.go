package domain

import "github.com/shopspring/decimal"

// ProfitAndLoss records the realised result of one trading day.
type ProfitAndLoss struct {
	ID   uint32          `json:"id,omitempty"`
	Date string          `json:"date"`
	PnL  decimal.Decimal `json:"pnl"`
}

// RecordID implements the identity accessor used by the repositories.
func (p ProfitAndLoss) RecordID() uint32 { return p.ID }
