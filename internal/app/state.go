package app

import (
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
)

// StateUpdate is a partial change to the application state. Nil fields leave the
// stored value alone.
//
// Merge rules:
//   - LastExecutionTime, LastEquity, AveDD, Score*, MaxInvestedAmount, FundConfigs replace.
//   - MaxDD replaces only when strictly greater than the stored value (or none is stored).
//   - CumulativeReturn and CumulativeDD are added to the stored totals.
//   - CircuitBreak always overwrites, including with false.
//   - ErrorTime is appended to the stored list.
type StateUpdate struct {
	LastExecutionTime *time.Time
	LastEquity        *decimal.Decimal
	AveDD             *decimal.Decimal
	MaxDD             *decimal.Decimal
	CumulativeReturn  *decimal.Decimal
	CumulativeDD      *decimal.Decimal
	Score             *decimal.Decimal
	Score2            *decimal.Decimal
	Score3            *decimal.Decimal
	CircuitBreak      bool
	ErrorTime         *string
	MaxInvestedAmount *decimal.Decimal
	FundConfigs       []domain.FundConfig // nil keeps the stored list
}

// Apply merges u into s.
func (u StateUpdate) Apply(s *domain.ApplicationState) {
	if u.LastExecutionTime != nil {
		t := *u.LastExecutionTime
		s.LastExecutionTime = &t
	}
	if u.LastEquity != nil {
		s.LastEquity = copyDecimal(u.LastEquity)
	}
	if u.AveDD != nil {
		s.AveDD = copyDecimal(u.AveDD)
	}
	if u.MaxDD != nil && (s.MaxDD == nil || u.MaxDD.GreaterThan(*s.MaxDD)) {
		s.MaxDD = copyDecimal(u.MaxDD)
	}
	if u.CumulativeReturn != nil {
		s.CumulativeReturn = s.CumulativeReturn.Add(*u.CumulativeReturn)
	}
	if u.CumulativeDD != nil {
		s.CumulativeDD = s.CumulativeDD.Add(*u.CumulativeDD)
	}
	if u.Score != nil {
		s.Score = copyDecimal(u.Score)
	}
	if u.Score2 != nil {
		s.Score2 = copyDecimal(u.Score2)
	}
	if u.Score3 != nil {
		s.Score3 = copyDecimal(u.Score3)
	}

	s.CircuitBreak = u.CircuitBreak

	if u.ErrorTime != nil {
		s.ErrorTime = append(s.ErrorTime, *u.ErrorTime)
	}
	if u.MaxInvestedAmount != nil {
		s.MaxInvestedAmount = *u.MaxInvestedAmount
	}
	if u.FundConfigs != nil {
		s.FundConfigs = make([]domain.FundConfig, len(u.FundConfigs))
		copy(s.FundConfigs, u.FundConfigs)
	}
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	v := *d
	return &v
}
