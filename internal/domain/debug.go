package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CandlePattern is a recognised candlestick formation.
type CandlePattern int

const (
	PatternNone CandlePattern = iota
	PatternHammer
	PatternInvertedHammer
	PatternBullishEngulfing
	PatternBearishEngulfing
	PatternDoji
	PatternMarubozu
	PatternMorningStar
	PatternEveningStar
	PatternThreeWhiteSoldiers
	PatternThreeBlackCrows
	PatternPiercingPattern
	PatternDarkCloudCover
	PatternHarami
	PatternHaramiCross
	PatternSpinningTop
)

// NumCandlePatterns is the width of the one-hot encoding.
const NumCandlePatterns = 16

var candlePatternNames = [NumCandlePatterns]string{
	"None",
	"Hammer",
	"InvertedHammer",
	"BullishEngulfing",
	"BearishEngulfing",
	"Doji",
	"Marubozu",
	"MorningStar",
	"EveningStar",
	"ThreeWhiteSoldiers",
	"ThreeBlackCrows",
	"PiercingPattern",
	"DarkCloudCover",
	"Harami",
	"HaramiCross",
	"SpinningTop",
}

func (p CandlePattern) String() string {
	if p < 0 || int(p) >= NumCandlePatterns {
		return "Unknown"
	}
	return candlePatternNames[p]
}

// MarshalText encodes the pattern by name.
func (p CandlePattern) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= NumCandlePatterns {
		return nil, fmt.Errorf("invalid candle pattern %d", int(p))
	}
	return []byte(candlePatternNames[p]), nil
}

// UnmarshalText decodes a pattern name.
func (p *CandlePattern) UnmarshalText(text []byte) error {
	for i, name := range candlePatternNames {
		if name == string(text) {
			*p = CandlePattern(i)
			return nil
		}
	}
	return fmt.Errorf("unknown candle pattern %q", string(text))
}

// OneHot encodes the pattern as a one-hot feature vector.
func (p CandlePattern) OneHot() [NumCandlePatterns]decimal.Decimal {
	var v [NumCandlePatterns]decimal.Decimal
	for i := range v {
		v[i] = decimal.Zero
	}
	if p >= 0 && int(p) < NumCandlePatterns {
		v[p] = decimal.NewFromInt(1)
	}
	return v
}

const (
	NumDebugInputs   = 29
	NumDebugPatterns = 10
)

// DebugFeatures is the model feature vector captured when a position was opened,
// together with the model outputs it produced.
type DebugFeatures struct {
	Inputs   [NumDebugInputs]decimal.Decimal `json:"inputs"`
	Patterns [NumDebugPatterns]CandlePattern `json:"patterns"`
	Output1  decimal.Decimal                 `json:"output_1"`
	Output2  decimal.Decimal                 `json:"output_2"`
	Output3  *decimal.Decimal                `json:"output_3"`
	Output4  *decimal.Decimal                `json:"output_4"`
	Output5  *decimal.Decimal                `json:"output_5"`
}
