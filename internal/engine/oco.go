package engine

import (
	"context"
	"fmt"
	"time"

	"tranche/internal/gateway/exchange"
	"tranche/internal/logger"
	"tranche/internal/validator"
)

// OCORequest describes a simulated one-cancels-the-other pair closing a
// position: a take-profit limit order plus a stop-limit stop-loss, both on
// the side opposite to Side. StopLimitPrice defaults to StopLossPrice.
type OCORequest struct {
	Symbol          string
	Side            exchange.Side
	Quantity        float64
	TakeProfitPrice float64
	StopLossPrice   float64
	StopLimitPrice  float64
}

// OCOResult is the outcome of a pair placement. The venue has no native OCO
// primitive, so the two orders are independent: when either fills, the caller
// must cancel the surviving leg.
type OCOResult struct {
	OCOID      string          `json:"oco_id"`
	Symbol     string          `json:"symbol"`
	Quantity   float64         `json:"quantity"`
	TakeProfit *exchange.Order `json:"take_profit"`
	StopLoss   *exchange.Order `json:"stop_loss"`
}

// PlaceOCO synchronously places the pair. If the stop-loss leg fails after
// the take-profit leg was accepted, the take-profit order is cancelled
// best-effort and the placement error is returned; a cancel failure is logged
// but never masks the original error.
func (e *Engine) PlaceOCO(ctx context.Context, req OCORequest) (*OCOResult, error) {
	req.Symbol = validator.NormalizeSymbol(req.Symbol)
	if req.StopLimitPrice <= 0 {
		req.StopLimitPrice = req.StopLossPrice
	}
	if err := e.check.OCO(req.Symbol, req.Side, req.Quantity, req.TakeProfitPrice, req.StopLossPrice, req.StopLimitPrice); err != nil {
		return nil, invalidParams(err)
	}
	if err := e.client.Ping(ctx); err != nil {
		return nil, err
	}

	if quote, err := e.client.GetPrice(ctx, req.Symbol); err != nil {
		logger.Warnf("OCO: could not fetch current %s price: %v", req.Symbol, err)
	} else {
		tpPct := (req.TakeProfitPrice - quote.Price) / quote.Price * 100
		slPct := (req.StopLossPrice - quote.Price) / quote.Price * 100
		logger.Infof("OCO %s %s: take profit %v (%+.2f%%), stop loss %v (%+.2f%%)",
			req.Side, req.Symbol, req.TakeProfitPrice, tpPct, req.StopLossPrice, slPct)
	}

	// Once the first leg is accepted the pair must settle as a unit: the
	// caller going away mid-placement must not strand a lone take-profit,
	// nor break the rollback cancel.
	ctx = context.WithoutCancel(ctx)

	exitSide := req.Side.Opposite()
	result := &OCOResult{
		OCOID:    fmt.Sprintf("OCO_%d", time.Now().Unix()),
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
	}

	tpOrder, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:        req.Symbol,
		Side:          exitSide,
		Type:          exchange.OrderTypeLimit,
		Quantity:      req.Quantity,
		Price:         req.TakeProfitPrice,
		TimeInForce:   exchange.TIFGoodTillCancel,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		return nil, fmt.Errorf("take profit leg: %w", err)
	}
	result.TakeProfit = tpOrder
	logger.Infof("OCO %s: take profit order %d placed", result.OCOID, tpOrder.OrderID)

	e.sleep(ctx, e.placementDelay)

	slOrder, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:        req.Symbol,
		Side:          exitSide,
		Type:          exchange.OrderTypeStop,
		Quantity:      req.Quantity,
		Price:         req.StopLimitPrice,
		StopPrice:     req.StopLossPrice,
		TimeInForce:   exchange.TIFGoodTillCancel,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		// Roll back the first leg so a lone take-profit never rests alone.
		if _, cancelErr := e.client.CancelOrder(ctx, req.Symbol, tpOrder.OrderID); cancelErr != nil {
			logger.Warnf("OCO %s: rollback of take profit order %d failed: %v", result.OCOID, tpOrder.OrderID, cancelErr)
		} else {
			logger.Infof("OCO %s: take profit order %d rolled back", result.OCOID, tpOrder.OrderID)
		}
		return nil, fmt.Errorf("stop loss leg: %w", err)
	}
	result.StopLoss = slOrder

	logger.Infof("OCO %s placed on %s: take profit %d, stop loss %d (caller must cancel the survivor on fill)",
		result.OCOID, req.Symbol, tpOrder.OrderID, slOrder.OrderID)
	return result, nil
}
