// Package exchange defines the client capability the execution engine
// consumes. Concrete backends (Binance futures, test fakes) implement Client;
// the engine never talks to a venue directly.
package exchange

import "context"

type Client interface {
	// GetPrice returns the latest traded price for symbol.
	GetPrice(ctx context.Context, symbol string) (PriceQuote, error)

	// PlaceOrder submits a new order and returns the exchange's view of it,
	// including any immediate fills for market orders.
	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// GetOrder fetches the current state of a previously placed order.
	GetOrder(ctx context.Context, symbol string, orderID int64) (*Order, error)

	// CancelOrder cancels a resting order.
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*Order, error)

	// Ping verifies connectivity with the venue.
	Ping(ctx context.Context) error
}
