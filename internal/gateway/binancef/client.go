// Package binancef implements the exchange client capability on top of the
// Binance USDT-M futures REST API via the go-binance SDK.
package binancef

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"tranche/internal/gateway/exchange"

	"github.com/adshao/go-binance/v2/futures"
)

// Client wraps a futures.Client behind the exchange.Client interface.
type Client struct {
	cfg    Config
	client *futures.Client
}

var _ exchange.Client = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Client{cfg: final, client: client}, nil
}

func (c *Client) GetPrice(ctx context.Context, symbol string) (exchange.PriceQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	prices, err := c.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return exchange.PriceQuote{}, wrapErr(err)
	}
	for _, p := range prices {
		if p == nil || p.Symbol != symbol {
			continue
		}
		return exchange.PriceQuote{Symbol: symbol, Price: parseFloat(p.Price)}, nil
	}
	return exchange.PriceQuote{}, fmt.Errorf("no price returned for %s", symbol)
}

func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	svc := c.client.NewCreateOrderService().
		Symbol(strings.ToUpper(strings.TrimSpace(req.Symbol))).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Type)).
		Quantity(c.formatQuantity(req.Quantity))
	if req.Price > 0 {
		svc = svc.Price(c.formatPrice(req.Price))
	}
	if req.StopPrice > 0 {
		svc = svc.StopPrice(c.formatPrice(req.StopPrice))
	}
	if req.TimeInForce != "" {
		svc = svc.TimeInForce(futures.TimeInForceType(req.TimeInForce))
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	// RESULT responses include executed quantity and average price, which
	// market-order callers read back immediately.
	svc = svc.NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return fromCreateResponse(res), nil
}

func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (*exchange.Order, error) {
	res, err := c.client.NewGetOrderService().
		Symbol(strings.ToUpper(strings.TrimSpace(symbol))).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return fromOrder(res), nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*exchange.Order, error) {
	res, err := c.client.NewCancelOrderService().
		Symbol(strings.ToUpper(strings.TrimSpace(symbol))).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return fromCancelResponse(res), nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("%w: %v", exchange.ErrConnectivity, err)
	}
	return nil
}
