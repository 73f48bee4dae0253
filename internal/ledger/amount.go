package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eternalab/hop-wallet/internal/constants"
)

var octasPerCoin = decimal.New(1, constants.NativeDecimals)

// OctasToCoin converts a raw native amount to whole coins.
func OctasToCoin(octas decimal.Decimal) decimal.Decimal {
	return octas.Div(octasPerCoin)
}

// FormatGasFee renders gas used as a native-coin amount with exactly
// 8 fraction digits.
func FormatGasFee(gasUsed string) (string, error) {
	g, err := decimal.NewFromString(strings.TrimSpace(gasUsed))
	if err != nil {
		return "", fmt.Errorf("parse gas used %q: %w", gasUsed, err)
	}
	return OctasToCoin(g).StringFixed(constants.NativeDecimals), nil
}

// ParseNativeAmount converts a coin amount such as "1.5" to octas, dropping
// anything below one octa.
func ParseNativeAmount(amount string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", amount)
	}
	octas := d.Mul(octasPerCoin).Floor()
	if !octas.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %q out of range", amount)
	}
	return octas.BigInt().Uint64(), nil
}

// ScaleAmount renders a raw amount with the given decimals, trimming
// trailing zeros.
func ScaleAmount(raw decimal.Decimal, decimals int) string {
	return raw.Shift(int32(-decimals)).String()
}

// FormatNativeAmount renders octas as EDS, trimming trailing zeros.
func FormatNativeAmount(octas uint64) string {
	return ScaleAmount(decimal.NewFromBigInt(new(big.Int).SetUint64(octas), 0), constants.NativeDecimals)
}
