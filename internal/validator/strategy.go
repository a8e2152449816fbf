package validator

import (
	"fmt"

	"tranche/internal/gateway/exchange"
)

const (
	MinTWAPChunks      = 2
	MaxTWAPChunks      = 100
	MinTWAPIntervalSec = 10

	MinGridLevels    = 3
	MaxGridLevels    = 50
	MinGridSpreadPct = 5.0
)

// TWAP validates the full TWAP parameter set, including that the per-chunk
// quantity clears the exchange minimum.
func (v *Validator) TWAP(symbol string, side exchange.Side, totalQty float64, numChunks, intervalSec int) error {
	if err := v.Symbol(symbol); err != nil {
		return err
	}
	if err := v.Side(side); err != nil {
		return err
	}
	if err := v.Quantity(totalQty); err != nil {
		return err
	}
	if numChunks < MinTWAPChunks || numChunks > MaxTWAPChunks {
		return fmt.Errorf("chunk count must be between %d and %d, got %d", MinTWAPChunks, MaxTWAPChunks, numChunks)
	}
	if intervalSec < MinTWAPIntervalSec {
		return fmt.Errorf("interval must be at least %d seconds, got %d", MinTWAPIntervalSec, intervalSec)
	}
	if chunk := totalQty / float64(numChunks); chunk < v.limits.MinQuantity {
		return fmt.Errorf("chunk size %v is below minimum quantity %v", chunk, v.limits.MinQuantity)
	}
	return nil
}

// Grid validates the grid parameter set. The current-price window check is
// the engine's responsibility because it requires a market data call.
func (v *Validator) Grid(symbol string, lowerPrice, upperPrice, qtyPerLevel float64, numLevels int) error {
	if err := v.Symbol(symbol); err != nil {
		return err
	}
	if err := v.Price(lowerPrice); err != nil {
		return err
	}
	if err := v.Price(upperPrice); err != nil {
		return err
	}
	if err := v.Quantity(qtyPerLevel); err != nil {
		return err
	}
	if lowerPrice >= upperPrice {
		return fmt.Errorf("lower price %v must be below upper price %v", lowerPrice, upperPrice)
	}
	if numLevels < MinGridLevels || numLevels > MaxGridLevels {
		return fmt.Errorf("grid levels must be between %d and %d, got %d", MinGridLevels, MaxGridLevels, numLevels)
	}
	if spread := (upperPrice - lowerPrice) / lowerPrice * 100; spread < MinGridSpreadPct {
		return fmt.Errorf("price spread %.2f%% is below the %.0f%% minimum for an effective grid", spread, MinGridSpreadPct)
	}
	return nil
}

// OCO validates the pair parameters. Side is the side of the position being
// protected, so a SELL OCO takes profit below the stop and a BUY OCO above.
func (v *Validator) OCO(symbol string, side exchange.Side, qty, takeProfit, stopLoss, stopLimit float64) error {
	if err := v.Symbol(symbol); err != nil {
		return err
	}
	if err := v.Side(side); err != nil {
		return err
	}
	if err := v.Quantity(qty); err != nil {
		return err
	}
	if err := v.Price(takeProfit); err != nil {
		return err
	}
	if err := v.Price(stopLoss); err != nil {
		return err
	}
	if err := v.Price(stopLimit); err != nil {
		return err
	}
	switch side {
	case exchange.SideSell:
		if takeProfit >= stopLoss {
			return fmt.Errorf("SELL OCO requires take profit %v below stop loss %v", takeProfit, stopLoss)
		}
	case exchange.SideBuy:
		if takeProfit <= stopLoss {
			return fmt.Errorf("BUY OCO requires take profit %v above stop loss %v", takeProfit, stopLoss)
		}
	}
	return nil
}

// StopLimit validates a standalone stop-limit order's parameters.
func (v *Validator) StopLimit(symbol string, side exchange.Side, qty, price, stopPrice float64) error {
	if err := v.Symbol(symbol); err != nil {
		return err
	}
	if err := v.Side(side); err != nil {
		return err
	}
	if err := v.Quantity(qty); err != nil {
		return err
	}
	if err := v.Price(price); err != nil {
		return err
	}
	return v.Price(stopPrice)
}
