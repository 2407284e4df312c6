package gateway

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseBRLAmount parses a Brazilian-formatted amount into cents.
// "R$ 1.234,56" -> 123456, "49,90" -> 4990, "100" -> 10000.
func parseBRLAmount(s string) (int64, error) {
	clean := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	clean = strings.ReplaceAll(clean, ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, err
	}

	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}
