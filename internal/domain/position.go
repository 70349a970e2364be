package domain

import "github.com/shopspring/decimal"

// Position represents a trading position opened by one of the funds.
type Position struct {
	ID               uint32          `json:"id,omitempty"` // Assigned from the position counter; 0 until then
	FundName         string          `json:"fund_name"`
	OrderID          string          `json:"order_id"`
	OrderedPrice     decimal.Decimal `json:"ordered_price"`
	State            PositionState   `json:"state"`
	TokenName        string          `json:"token_name"`
	OpenTimeStr      string          `json:"open_time_str"`
	OpenTimestamp    int64           `json:"open_timestamp"` // Unix seconds, range-scanned through its indexes
	CloseTimeStr     string          `json:"close_time_str"`
	AverageOpenPrice decimal.Decimal `json:"average_open_price"`
	PositionType     string          `json:"position_type"` // Long or Short
	ClosePrice       decimal.Decimal `json:"close_price"`
	AssetInUSD       decimal.Decimal `json:"asset_in_usd"`
	PnL              decimal.Decimal `json:"pnl"`
	Fee              decimal.Decimal `json:"fee"`
	Debug            DebugFeatures   `json:"debug"`
}

// RecordID implements the identity accessor used by the repositories.
func (p Position) RecordID() uint32 { return p.ID }

// IsOpen checks if the position state is open.
func (p *Position) IsOpen() bool {
	return p.State == StateOpen
}
