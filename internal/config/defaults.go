package config

const (
	defaultLogLevel          = "info"
	defaultHTTPAddr          = ":9980"
	defaultTimeoutSeconds    = 10
	defaultMinQuantity       = 0.001
	defaultMaxQuantity       = 1000
	defaultQuantityPrecision = 3
	defaultPricePrecision    = 2
	defaultPlacementDelayMS  = 100
	defaultSentimentURL      = "https://api.alternative.me/fng/?limit=30"

	testnetRESTBaseURL    = "https://testnet.binancefuture.com"
	productionRESTBaseURL = "https://fapi.binance.com"
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "testnet"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultHTTPAddr
	}
	if c.Exchange.RESTBaseURL == "" {
		if c.Exchange.Testnet {
			c.Exchange.RESTBaseURL = testnetRESTBaseURL
		} else {
			c.Exchange.RESTBaseURL = productionRESTBaseURL
		}
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		c.Exchange.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Trading.MinQuantity <= 0 {
		c.Trading.MinQuantity = defaultMinQuantity
	}
	if c.Trading.MaxQuantity <= 0 {
		c.Trading.MaxQuantity = defaultMaxQuantity
	}
	if c.Trading.QuantityPrecision <= 0 {
		c.Trading.QuantityPrecision = defaultQuantityPrecision
	}
	if c.Trading.PricePrecision <= 0 {
		c.Trading.PricePrecision = defaultPricePrecision
	}
	if c.Trading.PlacementDelayMS <= 0 {
		c.Trading.PlacementDelayMS = defaultPlacementDelayMS
	}
	if c.Analytics.SentimentEndpoint == "" {
		c.Analytics.SentimentEndpoint = defaultSentimentURL
	}
}
