package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a single market observation for a token.
type PricePoint struct {
	Timestamp    int64            `json:"timestamp"` // Unix seconds
	TimestampStr string           `json:"timestamp_str"`
	Price        decimal.Decimal  `json:"price"`
	Volume       *decimal.Decimal `json:"volume"`
	NumTrades    *uint64          `json:"num_trades"`
	FundingRate  *decimal.Decimal `json:"funding_rate"`
	OpenInterest *decimal.Decimal `json:"open_interest"`
	OraclePrice  *decimal.Decimal `json:"oracle_price"`
}

// NewPricePoint builds a point for price. When timestamp is nil the point is
// stamped with the current local time.
func NewPricePoint(price decimal.Decimal, timestamp *int64) PricePoint {
	now := time.Now()
	ts := now.Unix()
	if timestamp != nil {
		ts = *timestamp
	}
	return PricePoint{
		Timestamp:    ts,
		TimestampStr: now.Format("2006-01-02 15:04:05"),
		Price:        price,
	}
}

// Price is one stored price observation, keyed by source name and token.
type Price struct {
	ID         uint32     `json:"id,omitempty"`
	Name       string     `json:"name"`       // Price source, e.g. the DEX name
	TokenName  string     `json:"token_name"` // Token or market within the source
	PricePoint PricePoint `json:"price_point"`
}

// RecordID implements the identity accessor used by the repositories.
func (p Price) RecordID() uint32 { return p.ID }
