// Package validator rejects malformed strategy requests before anything
// reaches the exchange. All checks are pure; bounds come from Limits.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"tranche/internal/gateway/exchange"
)

var symbolPattern = regexp.MustCompile(`^[A-Z]{2,10}USDT$`)

// Limits carries the configured quantity bounds.
type Limits struct {
	MinQuantity float64
	MaxQuantity float64
}

type Validator struct {
	limits Limits
}

func New(limits Limits) *Validator {
	return &Validator{limits: limits}
}

func (v *Validator) Limits() Limits { return v.limits }

// NormalizeSymbol upper-cases and trims; callers validate the result.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (v *Validator) Symbol(symbol string) error {
	if !symbolPattern.MatchString(NormalizeSymbol(symbol)) {
		return fmt.Errorf("symbol %q is not a valid USDT pair", symbol)
	}
	return nil
}

func (v *Validator) Side(side exchange.Side) error {
	switch side {
	case exchange.SideBuy, exchange.SideSell:
		return nil
	}
	return fmt.Errorf("side must be BUY or SELL, got %q", side)
}

func (v *Validator) Quantity(qty float64) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %v", qty)
	}
	if qty < v.limits.MinQuantity {
		return fmt.Errorf("quantity %v is below minimum %v", qty, v.limits.MinQuantity)
	}
	if qty > v.limits.MaxQuantity {
		return fmt.Errorf("quantity %v exceeds maximum %v", qty, v.limits.MaxQuantity)
	}
	return nil
}

func (v *Validator) Price(price float64) error {
	if price <= 0 {
		return fmt.Errorf("price must be positive, got %v", price)
	}
	return nil
}

func (v *Validator) TimeInForce(tif exchange.TimeInForce) error {
	switch tif {
	case "", exchange.TIFGoodTillCancel, exchange.TIFImmediate, exchange.TIFFillOrKill, exchange.TIFPostOnly:
		return nil
	}
	return fmt.Errorf("time in force must be GTC, IOC, FOK or GTX, got %q", tif)
}
