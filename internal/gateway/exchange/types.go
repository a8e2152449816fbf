package exchange

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side; closing a BUY position trades SELL.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeStop             OrderType = "STOP"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfit       OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

type TimeInForce string

const (
	TIFGoodTillCancel TimeInForce = "GTC"
	TIFImmediate      TimeInForce = "IOC"
	TIFFillOrKill     TimeInForce = "FOK"
	TIFPostOnly       TimeInForce = "GTX"
)

// OrderStatus mirrors the venue's order states.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// OrderRequest describes a new order. Price is required for limit and stop
// orders, StopPrice for stop orders only. ClientOrderID is optional; when set
// the venue deduplicates retries on it.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      float64
	Price         float64
	StopPrice     float64
	TimeInForce   TimeInForce
	ClientOrderID string
	ReduceOnly    bool
}

// Fill is one execution of an order.
type Fill struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Order is the exchange's view of an order.
type Order struct {
	OrderID       int64       `json:"order_id"`
	ClientOrderID string      `json:"client_order_id"`
	Symbol        string      `json:"symbol"`
	Side          Side        `json:"side"`
	Type          OrderType   `json:"type"`
	Status        OrderStatus `json:"status"`
	Price         float64     `json:"price"`
	StopPrice     float64     `json:"stop_price"`
	OrigQuantity  float64     `json:"orig_quantity"`
	ExecutedQty   float64     `json:"executed_qty"`
	AvgPrice      float64     `json:"avg_price"`
	Fills         []Fill      `json:"fills,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// ExecutedValue is the quote-currency value of everything filled so far.
// Market fills carry per-fill prices; resting orders report an average price.
func (o *Order) ExecutedValue() float64 {
	if len(o.Fills) > 0 {
		var total float64
		for _, f := range o.Fills {
			total += f.Price * f.Quantity
		}
		return total
	}
	return o.AvgPrice * o.ExecutedQty
}

type PriceQuote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}
