package config

// Config is the top-level configuration carrier.
type Config struct {
	App       AppConfig       `toml:"app"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Trading   TradingConfig   `toml:"trading"`
	Analytics AnalyticsConfig `toml:"analytics"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

type ExchangeConfig struct {
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	Testnet        bool   `toml:"testnet"`
	RESTBaseURL    string `toml:"rest_base_url"`
	ProxyURL       string `toml:"proxy_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TradingConfig bounds order parameters before anything reaches the exchange.
type TradingConfig struct {
	MinQuantity       float64 `toml:"min_quantity"`
	MaxQuantity       float64 `toml:"max_quantity"`
	QuantityPrecision int     `toml:"quantity_precision"`
	PricePrecision    int     `toml:"price_precision"`
	PlacementDelayMS  int     `toml:"placement_delay_ms"`
}

type AnalyticsConfig struct {
	HistoryFile       string `toml:"history_file"`
	SentimentEndpoint string `toml:"sentiment_endpoint"`
}
