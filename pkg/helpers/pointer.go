package helpers

import "github.com/shopspring/decimal"

// DecimalPointer converts d for JSON fields where null means unknown. It
// returns nil unless ok.
func DecimalPointer(d decimal.Decimal, ok bool) *float64 {
	if !ok {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
