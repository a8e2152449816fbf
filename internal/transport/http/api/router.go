package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tranche/internal/analytics"
	"tranche/internal/engine"
	"tranche/internal/gateway/exchange"
	"tranche/internal/logger"

	"github.com/gin-gonic/gin"
)

// RouterConfig carries the handler dependencies. Sentiment and History are
// optional; their routes answer 503 when absent.
type RouterConfig struct {
	Engine    *engine.Engine
	Sentiment *analytics.SentimentService
	History   *analytics.HistoryAnalyzer
}

type Router struct {
	engine    *engine.Engine
	sentiment *analytics.SentimentService
	history   *analytics.HistoryAnalyzer
}

func NewRouter(cfg RouterConfig) *Router {
	return &Router{engine: cfg.Engine, sentiment: cfg.Sentiment, history: cfg.History}
}

func (r *Router) Register(group *gin.RouterGroup) {
	group.POST("/twap", r.handleStartTWAP)
	group.GET("/twap", r.handleListTWAP)
	group.GET("/twap/:id", r.handleTWAPStatus)
	group.DELETE("/twap/:id", r.handleStopTWAP)

	group.POST("/grid", r.handleStartGrid)
	group.GET("/grid", r.handleListGrid)
	group.GET("/grid/:id", r.handleGridStatus)
	group.DELETE("/grid/:id", r.handleStopGrid)
	group.DELETE("/grid/:id/orders", r.handleCancelGridOrders)

	group.POST("/oco", r.handlePlaceOCO)

	group.POST("/orders/market", r.handleMarketOrder)
	group.POST("/orders/limit", r.handleLimitOrder)
	group.POST("/orders/stop-limit", r.handleStopLimitOrder)
	group.GET("/orders", r.handleOrderStatus)
	group.DELETE("/orders", r.handleCancelOrder)

	group.GET("/analytics/sentiment", r.handleSentiment)
	group.GET("/analytics/history", r.handleHistory)
}

type twapRequest struct {
	Symbol          string  `json:"symbol" binding:"required"`
	Side            string  `json:"side" binding:"required"`
	TotalQuantity   float64 `json:"total_quantity" binding:"required"`
	NumChunks       int     `json:"num_chunks" binding:"required"`
	IntervalSeconds int     `json:"interval_seconds" binding:"required"`
	PriceLimit      float64 `json:"price_limit"`
	Randomize       bool    `json:"randomize"`
}

func (r *Router) handleStartTWAP(c *gin.Context) {
	var req twapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := r.engine.StartTWAP(c.Request.Context(), engine.TWAPRequest{
		Symbol:          req.Symbol,
		Side:            exchange.Side(strings.ToUpper(req.Side)),
		TotalQuantity:   req.TotalQuantity,
		NumChunks:       req.NumChunks,
		IntervalSeconds: req.IntervalSeconds,
		PriceLimit:      req.PriceLimit,
		Randomize:       req.Randomize,
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": snap})
}

func (r *Router) handleListTWAP(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": r.engine.Registry().TWAPSnapshots()})
}

func (r *Router) handleTWAPStatus(c *gin.Context) {
	snap, err := r.engine.TWAPStatus(c.Param("id"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": snap})
}

func (r *Router) handleStopTWAP(c *gin.Context) {
	if err := r.engine.StopTWAP(c.Param("id")); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

type gridRequest struct {
	Symbol           string  `json:"symbol" binding:"required"`
	LowerPrice       float64 `json:"lower_price" binding:"required"`
	UpperPrice       float64 `json:"upper_price" binding:"required"`
	QuantityPerLevel float64 `json:"quantity_per_level" binding:"required"`
	NumLevels        int     `json:"num_levels" binding:"required"`
	Rebalance        bool    `json:"rebalance"`
}

func (r *Router) handleStartGrid(c *gin.Context) {
	var req gridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := r.engine.StartGrid(c.Request.Context(), engine.GridRequest{
		Symbol:           req.Symbol,
		LowerPrice:       req.LowerPrice,
		UpperPrice:       req.UpperPrice,
		QuantityPerLevel: req.QuantityPerLevel,
		NumLevels:        req.NumLevels,
		Rebalance:        req.Rebalance,
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": snap})
}

func (r *Router) handleListGrid(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": r.engine.Registry().GridSnapshots()})
}

func (r *Router) handleGridStatus(c *gin.Context) {
	snap, err := r.engine.GridStatus(c.Param("id"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": snap})
}

func (r *Router) handleStopGrid(c *gin.Context) {
	if err := r.engine.StopGrid(c.Param("id")); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

func (r *Router) handleCancelGridOrders(c *gin.Context) {
	snap, errs := r.engine.CancelAllGridOrders(c.Request.Context(), c.Param("id"))
	if len(errs) > 0 {
		if len(errs) == 1 && errors.Is(errs[0], engine.ErrRunNotFound) {
			writeEngineError(c, errs[0])
			return
		}
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		c.JSON(http.StatusMultiStatus, gin.H{"run": snap, "errors": msgs})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": snap})
}

type ocoRequest struct {
	Symbol          string  `json:"symbol" binding:"required"`
	Side            string  `json:"side" binding:"required"`
	Quantity        float64 `json:"quantity" binding:"required"`
	TakeProfitPrice float64 `json:"take_profit_price" binding:"required"`
	StopLossPrice   float64 `json:"stop_loss_price" binding:"required"`
	StopLimitPrice  float64 `json:"stop_limit_price"`
}

func (r *Router) handlePlaceOCO(c *gin.Context) {
	var req ocoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := r.engine.PlaceOCO(c.Request.Context(), engine.OCORequest{
		Symbol:          req.Symbol,
		Side:            exchange.Side(strings.ToUpper(req.Side)),
		Quantity:        req.Quantity,
		TakeProfitPrice: req.TakeProfitPrice,
		StopLossPrice:   req.StopLossPrice,
		StopLimitPrice:  req.StopLimitPrice,
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"oco": res})
}

type marketOrderRequest struct {
	Symbol   string  `json:"symbol" binding:"required"`
	Side     string  `json:"side" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required"`
}

func (r *Router) handleMarketOrder(c *gin.Context) {
	var req marketOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := r.engine.PlaceMarketOrder(c.Request.Context(), req.Symbol, exchange.Side(strings.ToUpper(req.Side)), req.Quantity)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

type limitOrderRequest struct {
	Symbol      string  `json:"symbol" binding:"required"`
	Side        string  `json:"side" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required"`
	Price       float64 `json:"price" binding:"required"`
	TimeInForce string  `json:"time_in_force"`
}

func (r *Router) handleLimitOrder(c *gin.Context) {
	var req limitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := r.engine.PlaceLimitOrder(c.Request.Context(), req.Symbol,
		exchange.Side(strings.ToUpper(req.Side)), req.Quantity, req.Price,
		exchange.TimeInForce(strings.ToUpper(req.TimeInForce)))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

type stopLimitOrderRequest struct {
	Symbol    string  `json:"symbol" binding:"required"`
	Side      string  `json:"side" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required"`
	Price     float64 `json:"price" binding:"required"`
	StopPrice float64 `json:"stop_price" binding:"required"`
}

func (r *Router) handleStopLimitOrder(c *gin.Context) {
	var req stopLimitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := r.engine.PlaceStopLimitOrder(c.Request.Context(), req.Symbol,
		exchange.Side(strings.ToUpper(req.Side)), req.Quantity, req.Price, req.StopPrice)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (r *Router) handleOrderStatus(c *gin.Context) {
	symbol, orderID, ok := orderQuery(c)
	if !ok {
		return
	}
	order, err := r.engine.OrderStatus(c.Request.Context(), symbol, orderID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (r *Router) handleCancelOrder(c *gin.Context) {
	symbol, orderID, ok := orderQuery(c)
	if !ok {
		return
	}
	order, err := r.engine.CancelOrder(c.Request.Context(), symbol, orderID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func orderQuery(c *gin.Context) (string, int64, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return "", 0, false
	}
	orderID, err := strconv.ParseInt(c.Query("order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id must be a positive integer"})
		return "", 0, false
	}
	return symbol, orderID, true
}

func (r *Router) handleSentiment(c *gin.Context) {
	if r.sentiment == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sentiment service not configured"})
		return
	}
	r.sentiment.RefreshIfStale(c.Request.Context())
	data, ok := r.sentiment.Get()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sentiment data not available yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sentiment": data})
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history analytics not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": r.history.Insights()})
}

// writeEngineError maps engine failures onto HTTP statuses: rejected
// parameters are the caller's fault, an unknown run id is a 404, an
// unreachable venue is a bad gateway.
func writeEngineError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidParameters):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrConnectivity):
		status = http.StatusBadGateway
	default:
		if apiErr, ok := exchange.IsAPIError(err); ok {
			logger.Warnf("[api] venue rejection code=%d msg=%s", apiErr.Code, apiErr.Message)
			status = http.StatusBadGateway
		}
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("[api] request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
