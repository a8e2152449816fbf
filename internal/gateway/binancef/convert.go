package binancef

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"tranche/internal/gateway/exchange"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// formatQuantity truncates toward zero so a rounded quantity never exceeds
// what the caller asked for.
func (c *Client) formatQuantity(q float64) string {
	return decimal.NewFromFloat(q).RoundDown(int32(c.cfg.QuantityPrecision)).String()
}

func (c *Client) formatPrice(p float64) string {
	return decimal.NewFromFloat(p).Round(int32(c.cfg.PricePrecision)).String()
}

func fromCreateResponse(res *futures.CreateOrderResponse) *exchange.Order {
	return &exchange.Order{
		OrderID:       res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          exchange.Side(res.Side),
		Type:          exchange.OrderType(res.Type),
		Status:        exchange.OrderStatus(res.Status),
		Price:         parseFloat(res.Price),
		StopPrice:     parseFloat(res.StopPrice),
		OrigQuantity:  parseFloat(res.OrigQuantity),
		ExecutedQty:   parseFloat(res.ExecutedQuantity),
		AvgPrice:      parseFloat(res.AvgPrice),
		UpdatedAt:     time.UnixMilli(res.UpdateTime),
	}
}

func fromOrder(res *futures.Order) *exchange.Order {
	return &exchange.Order{
		OrderID:       res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          exchange.Side(res.Side),
		Type:          exchange.OrderType(res.Type),
		Status:        exchange.OrderStatus(res.Status),
		Price:         parseFloat(res.Price),
		StopPrice:     parseFloat(res.StopPrice),
		OrigQuantity:  parseFloat(res.OrigQuantity),
		ExecutedQty:   parseFloat(res.ExecutedQuantity),
		AvgPrice:      parseFloat(res.AvgPrice),
		UpdatedAt:     time.UnixMilli(res.UpdateTime),
	}
}

func fromCancelResponse(res *futures.CancelOrderResponse) *exchange.Order {
	return &exchange.Order{
		OrderID:       res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          exchange.Side(res.Side),
		Type:          exchange.OrderType(res.Type),
		Status:        exchange.OrderStatus(res.Status),
		Price:         parseFloat(res.Price),
		StopPrice:     parseFloat(res.StopPrice),
		OrigQuantity:  parseFloat(res.OrigQuantity),
		ExecutedQty:   parseFloat(res.ExecutedQuantity),
	}
}

// wrapErr maps SDK errors onto the capability's error taxonomy: venue
// rejections become *exchange.APIError, transport failures wrap
// exchange.ErrConnectivity.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &exchange.APIError{Code: apiErr.Code, Message: apiErr.Message}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", exchange.ErrConnectivity, err)
	}
	return err
}
