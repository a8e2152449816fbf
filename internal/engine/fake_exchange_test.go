package engine

import (
	"context"
	"sync"

	"tranche/internal/gateway/exchange"
)

// fakeExchange is a scriptable in-memory venue. Market orders fill instantly
// at the quoted price; limit and stop orders rest as NEW until a test flips
// their status.
type fakeExchange struct {
	mu sync.Mutex

	price    float64
	priceErr error
	pingErr  error

	// failPlacement returns an error for the n-th placement (1-based).
	failPlacement func(n int) error
	// holdPlacement parks the n-th placement attempt on the returned channel
	// until it is closed or the call's context ends. Nil means no hold.
	holdPlacement func(n int) <-chan struct{}
	cancelErr     error

	nextID        int64
	placeAttempts int
	placed        []exchange.OrderRequest
	orders      map[int64]*exchange.Order
	cancelCalls []int64
}

var _ exchange.Client = (*fakeExchange)(nil)

func newFakeExchange(price float64) *fakeExchange {
	return &fakeExchange{price: price, orders: make(map[int64]*exchange.Order)}
}

func (f *fakeExchange) GetPrice(ctx context.Context, symbol string) (exchange.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return exchange.PriceQuote{}, f.priceErr
	}
	return exchange.PriceQuote{Symbol: symbol, Price: f.price}, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	f.mu.Lock()
	f.placeAttempts++
	n := f.placeAttempts
	hold := f.holdPlacement
	f.mu.Unlock()
	if hold != nil {
		if gate := hold(n); gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPlacement != nil {
		if err := f.failPlacement(n); err != nil {
			return nil, err
		}
	}
	f.placed = append(f.placed, req)
	f.nextID++
	order := &exchange.Order{
		OrderID:       f.nextID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Status:        exchange.OrderStatusNew,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		OrigQuantity:  req.Quantity,
	}
	if req.Type == exchange.OrderTypeMarket {
		order.Status = exchange.OrderStatusFilled
		order.ExecutedQty = req.Quantity
		order.AvgPrice = f.price
		order.Fills = []exchange.Fill{{Price: f.price, Quantity: req.Quantity}}
	}
	f.orders[order.OrderID] = order
	return copyOrder(order), nil
}

func (f *fakeExchange) GetOrder(ctx context.Context, symbol string, orderID int64) (*exchange.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, &exchange.APIError{Code: -2013, Message: "Order does not exist."}
	}
	return copyOrder(order), nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (*exchange.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, orderID)
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, &exchange.APIError{Code: -2011, Message: "Unknown order sent."}
	}
	order.Status = exchange.OrderStatusCanceled
	return copyOrder(order), nil
}

func (f *fakeExchange) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

// fillOrder flips a resting order to FILLED at its limit price.
func (f *fakeExchange) fillOrder(orderID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order, ok := f.orders[orderID]; ok {
		order.Status = exchange.OrderStatusFilled
		order.ExecutedQty = order.OrigQuantity
		order.AvgPrice = order.Price
	}
}

func (f *fakeExchange) setPrice(p float64) {
	f.mu.Lock()
	f.price = p
	f.mu.Unlock()
}

func (f *fakeExchange) placedRequests() []exchange.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchange.OrderRequest(nil), f.placed...)
}

func (f *fakeExchange) cancelledOrders() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.cancelCalls...)
}

func copyOrder(o *exchange.Order) *exchange.Order {
	c := *o
	c.Fills = append([]exchange.Fill(nil), o.Fills...)
	return &c
}
