package config

import "fmt"

func validate(c *Config) error {
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("exchange.api_key and exchange.api_secret are required (or set BINANCE_API_KEY / BINANCE_API_SECRET)")
	}
	if c.Trading.MinQuantity >= c.Trading.MaxQuantity {
		return fmt.Errorf("trading.min_quantity (%v) must be below trading.max_quantity (%v)",
			c.Trading.MinQuantity, c.Trading.MaxQuantity)
	}
	switch c.App.Env {
	case "testnet", "production":
	default:
		return fmt.Errorf("app.env must be testnet or production, got %q", c.App.Env)
	}
	if !c.Exchange.Testnet && c.App.Env == "testnet" {
		return fmt.Errorf("app.env=testnet requires exchange.testnet=true")
	}
	return nil
}
