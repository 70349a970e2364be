package utils

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
)

// WriteMarketDataToCSV writes grouped price points to filename, one row per point,
// sorted by name and token, points kept in the given order.
func WriteMarketDataToCSV(data map[string]map[string][]domain.PricePoint, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"name", "token", "timestamp", "timestamp_str", "price", "volume", "num_trades", "funding_rate", "open_interest", "oracle_price"})

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tokens := make([]string, 0, len(data[name]))
		for token := range data[name] {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)

		for _, token := range tokens {
			for _, p := range data[name][token] {
				numTrades := ""
				if p.NumTrades != nil {
					numTrades = strconv.FormatUint(*p.NumTrades, 10)
				}
				writer.Write([]string{
					name,
					token,
					strconv.FormatInt(p.Timestamp, 10),
					p.TimestampStr,
					p.Price.String(),
					optional(p.Volume),
					numTrades,
					optional(p.FundingRate),
					optional(p.OpenInterest),
					optional(p.OraclePrice),
				})
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func optional(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.String()
}
