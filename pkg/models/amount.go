package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var amountReplacer = strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "")

// ParseAmount normalizes a monetary value into a decimal. Strings may carry a
// currency symbol and thousands separators. Values that cannot be parsed
// become zero; use ParseAmountStrict where that would hide bad input.
func ParseAmount(v any) decimal.Decimal {
	d, err := ParseAmountStrict(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAmountStrict is ParseAmount that reports unparseable input.
func ParseAmountStrict(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("amount is empty")
	case decimal.Decimal:
		return t, nil
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, fmt.Errorf("amount is empty")
		}
		return *t, nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int32:
		return decimal.NewFromInt32(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case string:
		return parseAmountString(t)
	case fmt.Stringer:
		return parseAmountString(t.String())
	}
	return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
}

func parseAmountString(s string) (decimal.Decimal, error) {
	cleaned := amountReplacer.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
