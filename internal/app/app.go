// Package app wires configuration, the exchange gateway, the strategy engine
// and the HTTP surface into a runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"tranche/internal/analytics"
	"tranche/internal/config"
	"tranche/internal/engine"
	"tranche/internal/gateway/binancef"
	"tranche/internal/logger"
	apihttp "tranche/internal/transport/http/api"
	"tranche/internal/validator"

	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 30 * time.Second

type App struct {
	cfg    *config.Config
	engine *engine.Engine
	server *apihttp.Server
}

// New builds the application object without starting anything.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	client, err := binancef.New(binancef.Config{
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.APISecret,
		RESTBaseURL:       cfg.Exchange.RESTBaseURL,
		HTTPTimeout:       time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
		ProxyURL:          cfg.Exchange.ProxyURL,
		QuantityPrecision: cfg.Trading.QuantityPrecision,
		PricePrecision:    cfg.Trading.PricePrecision,
	})
	if err != nil {
		return nil, fmt.Errorf("building exchange client failed: %w", err)
	}

	eng := engine.New(engine.Params{
		Client: client,
		Validator: validator.New(validator.Limits{
			MinQuantity: cfg.Trading.MinQuantity,
			MaxQuantity: cfg.Trading.MaxQuantity,
		}),
		PlacementDelay: time.Duration(cfg.Trading.PlacementDelayMS) * time.Millisecond,
	})

	history, err := analytics.LoadHistory(cfg.Analytics.HistoryFile)
	if err != nil {
		return nil, fmt.Errorf("loading trade history failed: %w", err)
	}

	server, err := apihttp.NewServer(apihttp.RouterConfig{
		Engine:    eng,
		Sentiment: analytics.NewSentimentService(cfg.Analytics.SentimentEndpoint),
		History:   history,
	}, cfg.App.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("building http server failed: %w", err)
	}

	return &App{cfg: cfg, engine: eng, server: server}, nil
}

// Engine exposes the strategy engine, mainly for test harnesses.
func (a *App) Engine() *engine.Engine { return a.engine }

// Run serves until ctx is cancelled, then drains active runs before returning.
func (a *App) Run(ctx context.Context) error {
	logger.Infof("tranche starting (env=%s, http=%s)", a.cfg.App.Env, a.server.Addr())

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	err := group.Wait()

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if shErr := a.engine.Registry().Shutdown(shCtx); shErr != nil {
		logger.Warnf("shutdown timed out with workers still running: %v", shErr)
	} else {
		logger.Infof("all strategy workers drained")
	}
	return err
}
