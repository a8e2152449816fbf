package engine

import (
	"context"

	"tranche/internal/gateway/exchange"
	"tranche/internal/logger"
	"tranche/internal/validator"
)

// One-shot order operations. These share the engine's validator and client
// but register no run: the order either rests on the venue or is done.

func (e *Engine) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, qty float64) (*exchange.Order, error) {
	symbol = validator.NormalizeSymbol(symbol)
	if err := firstErr(e.check.Symbol(symbol), e.check.Side(side), e.check.Quantity(qty)); err != nil {
		return nil, invalidParams(err)
	}
	if err := e.client.Ping(ctx); err != nil {
		return nil, err
	}
	order, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          exchange.OrderTypeMarket,
		Quantity:      qty,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("market order %d: %s %v %s, status %s", order.OrderID, side, qty, symbol, order.Status)
	return order, nil
}

func (e *Engine) PlaceLimitOrder(ctx context.Context, symbol string, side exchange.Side, qty, price float64, tif exchange.TimeInForce) (*exchange.Order, error) {
	symbol = validator.NormalizeSymbol(symbol)
	if tif == "" {
		tif = exchange.TIFGoodTillCancel
	}
	if err := firstErr(
		e.check.Symbol(symbol),
		e.check.Side(side),
		e.check.Quantity(qty),
		e.check.Price(price),
		e.check.TimeInForce(tif),
	); err != nil {
		return nil, invalidParams(err)
	}
	if err := e.client.Ping(ctx); err != nil {
		return nil, err
	}
	order, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          exchange.OrderTypeLimit,
		Quantity:      qty,
		Price:         price,
		TimeInForce:   tif,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("limit order %d: %s %v %s @ %v (%s)", order.OrderID, side, qty, symbol, price, tif)
	return order, nil
}

// PlaceStopLimitOrder rests a stop-limit: trigger at stopPrice, execute at
// price. The trigger side sanity is advisory: a BUY stop normally triggers
// above the market, a SELL stop below.
func (e *Engine) PlaceStopLimitOrder(ctx context.Context, symbol string, side exchange.Side, qty, price, stopPrice float64) (*exchange.Order, error) {
	symbol = validator.NormalizeSymbol(symbol)
	if err := e.check.StopLimit(symbol, side, qty, price, stopPrice); err != nil {
		return nil, invalidParams(err)
	}
	if err := e.client.Ping(ctx); err != nil {
		return nil, err
	}
	if quote, err := e.client.GetPrice(ctx, symbol); err == nil {
		if (side == exchange.SideBuy && stopPrice < quote.Price) ||
			(side == exchange.SideSell && stopPrice > quote.Price) {
			logger.Warnf("stop price %v is on the passive side of the market (%v); order may trigger immediately", stopPrice, quote.Price)
		}
	}
	order, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          exchange.OrderTypeStop,
		Quantity:      qty,
		Price:         price,
		StopPrice:     stopPrice,
		TimeInForce:   exchange.TIFGoodTillCancel,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("stop-limit order %d: %s %v %s trigger %v limit %v", order.OrderID, side, qty, symbol, stopPrice, price)
	return order, nil
}

func (e *Engine) OrderStatus(ctx context.Context, symbol string, orderID int64) (*exchange.Order, error) {
	symbol = validator.NormalizeSymbol(symbol)
	if err := e.check.Symbol(symbol); err != nil {
		return nil, invalidParams(err)
	}
	return e.client.GetOrder(ctx, symbol, orderID)
}

func (e *Engine) CancelOrder(ctx context.Context, symbol string, orderID int64) (*exchange.Order, error) {
	symbol = validator.NormalizeSymbol(symbol)
	if err := e.check.Symbol(symbol); err != nil {
		return nil, invalidParams(err)
	}
	order, err := e.client.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		return nil, err
	}
	logger.Infof("order %d on %s cancelled", orderID, symbol)
	return order, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
