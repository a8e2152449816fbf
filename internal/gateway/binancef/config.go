package binancef

import (
	"strings"
	"time"
)

type Config struct {
	APIKey      string
	APISecret   string
	RESTBaseURL string
	HTTPTimeout time.Duration

	ProxyURL string

	// Decimal places used when serializing quantities and prices.
	QuantityPrecision int
	PricePrecision    int
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	if out.QuantityPrecision <= 0 {
		out.QuantityPrecision = 3
	}
	if out.PricePrecision <= 0 {
		out.PricePrecision = 2
	}
	return out
}
