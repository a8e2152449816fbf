package engine

import (
	"context"
	"fmt"
	"time"

	"tranche/internal/gateway/exchange"
	"tranche/internal/logger"
	"tranche/internal/validator"
)

const (
	gridPollInterval  = 10 * time.Second
	gridErrorInterval = 30 * time.Second
)

// GridRequest describes a price ladder: NumLevels evenly spaced limit orders
// spanning [LowerPrice, UpperPrice], buys below the current price and sells
// above. With Rebalance set, a monitor polls for fills and places the
// replacement order on the opposite side one step away.
type GridRequest struct {
	Symbol           string
	LowerPrice       float64
	UpperPrice       float64
	QuantityPerLevel float64
	NumLevels        int
	Rebalance        bool
}

// gridLevels spaces NumLevels prices evenly and inclusively across the range.
func gridLevels(lower, upper float64, numLevels int) []float64 {
	step := (upper - lower) / float64(numLevels-1)
	levels := make([]float64, numLevels)
	for i := range levels {
		levels[i] = lower + float64(i)*step
	}
	return levels
}

// StartGrid validates the request, requires the current price to sit strictly
// inside the range, places the initial ladder and, when rebalancing, spawns
// the fill monitor.
func (e *Engine) StartGrid(ctx context.Context, req GridRequest) (GridSnapshot, error) {
	req.Symbol = validator.NormalizeSymbol(req.Symbol)
	if err := e.check.Grid(req.Symbol, req.LowerPrice, req.UpperPrice, req.QuantityPerLevel, req.NumLevels); err != nil {
		return GridSnapshot{}, invalidParams(err)
	}
	if err := e.client.Ping(ctx); err != nil {
		return GridSnapshot{}, err
	}
	quote, err := e.client.GetPrice(ctx, req.Symbol)
	if err != nil {
		return GridSnapshot{}, err
	}
	if quote.Price <= req.LowerPrice || quote.Price >= req.UpperPrice {
		return GridSnapshot{}, invalidParams(fmt.Errorf(
			"current price %v must be inside the grid range %v-%v", quote.Price, req.LowerPrice, req.UpperPrice))
	}

	run := &GridRun{
		runState: runState{
			id:        e.reg.newRunID("GRID", req.Symbol),
			symbol:    req.Symbol,
			status:    RunStatusActive,
			startTime: time.Now(),
		},
		lowerPrice:       req.LowerPrice,
		upperPrice:       req.UpperPrice,
		quantityPerLevel: req.QuantityPerLevel,
		numLevels:        req.NumLevels,
		rebalance:        req.Rebalance,
		gridLevels:       gridLevels(req.LowerPrice, req.UpperPrice, req.NumLevels),
		startPrice:       quote.Price,
	}

	var cancel context.CancelFunc
	workerCtx := context.Background()
	if req.Rebalance {
		workerCtx, cancel = context.WithCancel(context.Background())
	}
	e.reg.addGrid(run, cancel)

	// The ladder outlives the request that started it: once the run is
	// registered, placements must not be torn down by the caller going away.
	e.placeInitialGridOrders(context.WithoutCancel(ctx), run)

	if req.Rebalance {
		e.reg.track()
		go func() {
			defer e.reg.workerDone()
			e.monitorGrid(workerCtx, run)
		}()
	}

	logger.Infof("grid %s started: %d levels %v-%v on %s (rebalance=%v)",
		run.id, req.NumLevels, req.LowerPrice, req.UpperPrice, req.Symbol, req.Rebalance)
	return run.Snapshot(), nil
}

// placeInitialGridOrders rests a limit order per level: BUY below the start
// price, SELL above. A level equal to the start price is the pivot and gets
// no order. Per-level failures are recorded and do not stop the rest.
func (e *Engine) placeInitialGridOrders(ctx context.Context, run *GridRun) {
	var buys, sells int
	for i, level := range run.gridLevels {
		var side exchange.Side
		switch {
		case level < run.startPrice:
			side = exchange.SideBuy
		case level > run.startPrice:
			side = exchange.SideSell
		default:
			continue // pivot level
		}

		if e.placeGridLevel(ctx, run, i, side, level) {
			if side == exchange.SideBuy {
				buys++
			} else {
				sells++
			}
		}
		e.sleep(ctx, e.placementDelay)
	}
	logger.Infof("grid %s initial orders placed: %d BUY, %d SELL", run.id, buys, sells)
}

func (e *Engine) placeGridLevel(ctx context.Context, run *GridRun, index int, side exchange.Side, price float64) bool {
	// Detached so a stop never aborts a placement in flight.
	order, err := e.client.PlaceOrder(context.WithoutCancel(ctx), exchange.OrderRequest{
		Symbol:        run.symbol,
		Side:          side,
		Type:          exchange.OrderTypeLimit,
		Quantity:      run.quantityPerLevel,
		Price:         price,
		TimeInForce:   exchange.TIFGoodTillCancel,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		logger.Errorf("grid %s: placing %s at level %v failed: %v", run.id, side, price, err)
		run.appendChild(ChildOrder{
			Index:           index,
			Side:            side,
			PlannedQuantity: run.quantityPerLevel,
			PlannedPrice:    price,
			Status:          ChildStatusFailed,
			Error:           err.Error(),
		})
		return false
	}
	run.appendChild(ChildOrder{
		Index:           index,
		Side:            side,
		PlannedQuantity: run.quantityPerLevel,
		PlannedPrice:    price,
		ExchangeOrderID: order.OrderID,
		ClientOrderID:   order.ClientOrderID,
		Status:          ChildStatusPlaced,
	})
	return true
}

// monitorGrid polls resting orders until the run is stopped. The poll backs
// off after an errored tick.
func (e *Engine) monitorGrid(ctx context.Context, run *GridRun) {
	interval := gridPollInterval
	for {
		if ctx.Err() != nil || run.cancelled() {
			break
		}
		run.mu.Lock()
		terminal := run.status.Terminal()
		run.mu.Unlock()
		if terminal {
			break
		}
		if !e.sleep(ctx, interval) {
			break
		}
		if err := e.checkGridFills(ctx, run); err != nil {
			logger.Errorf("grid %s monitor: %v", run.id, err)
			interval = gridErrorInterval
		} else {
			interval = gridPollInterval
		}
	}
	// Stop via flag or shutdown lands here; a full cancel has already
	// assigned CANCELLED and the transition is then a no-op.
	if run.transition(RunStatusCancelled) {
		logger.Infof("grid %s monitoring stopped", run.id)
	}
}

// checkGridFills queries every PLACED child and applies fills. Step spacing
// for the replacement order comes from the level grid.
func (e *Engine) checkGridFills(ctx context.Context, run *GridRun) error {
	run.mu.Lock()
	placed := make([]ChildOrder, 0, len(run.children))
	for _, c := range run.children {
		if c.Status == ChildStatusPlaced && c.ExchangeOrderID != 0 {
			placed = append(placed, c)
		}
	}
	step := (run.upperPrice - run.lowerPrice) / float64(run.numLevels-1)
	run.mu.Unlock()

	callCtx := context.WithoutCancel(ctx)
	var firstErr error
	for _, child := range placed {
		order, err := e.client.GetOrder(callCtx, run.symbol, child.ExchangeOrderID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if order.Status != exchange.OrderStatusFilled {
			continue
		}
		filled := e.applyGridFill(run, child.ExchangeOrderID, order)
		if !filled {
			continue
		}
		logger.Infof("grid %s: %s order filled at %v", run.id, child.Side, child.PlannedPrice)
		if run.rebalance {
			e.rebalanceLevel(ctx, run, child, step)
		}
	}
	return firstErr
}

// applyGridFill marks the child FILLED and records it. Returns false when the
// child already left PLACED (fill observed on an earlier tick).
func (e *Engine) applyGridFill(run *GridRun, orderID int64, order *exchange.Order) bool {
	run.mu.Lock()
	defer run.mu.Unlock()
	for i := range run.children {
		c := &run.children[i]
		if c.ExchangeOrderID != orderID || c.Status != ChildStatusPlaced {
			continue
		}
		c.Status = ChildStatusFilled
		c.ExecutedQty = order.ExecutedQty
		c.AvgPrice = order.AvgPrice
		run.filledOrders = append(run.filledOrders, *c)
		return true
	}
	return false
}

// rebalanceLevel places the replacement order on the opposite side one step
// away: a filled BUY at p rests a SELL at p+step, a filled SELL a BUY at
// p-step. The replacement must stay inside the grid range.
func (e *Engine) rebalanceLevel(ctx context.Context, run *GridRun, filled ChildOrder, step float64) {
	side := filled.Side.Opposite()
	price := filled.PlannedPrice + step
	if side == exchange.SideBuy {
		price = filled.PlannedPrice - step
	}
	if price < run.lowerPrice || price > run.upperPrice {
		logger.Warnf("grid %s: replacement %s at %v falls outside range, skipped", run.id, side, price)
		return
	}
	run.mu.Lock()
	index := len(run.children)
	run.mu.Unlock()
	if e.placeGridLevel(ctx, run, index, side, price) {
		logger.Infof("grid %s rebalanced: %s resting at %v", run.id, side, price)
	}
	e.sleep(ctx, e.placementDelay)
}

// StopGrid requests cooperative cancellation of the run and its monitor.
// Resting orders stay on the book; use CancelAllGridOrders to pull them.
func (e *Engine) StopGrid(runID string) error {
	run, ok := e.reg.gridRun(runID)
	if !ok {
		return ErrRunNotFound
	}
	if !run.requestCancel() {
		return nil
	}
	if cancel, ok := e.reg.cancelFunc(runID); ok {
		cancel()
	} else {
		// No monitor goroutine owns this run; assign the terminal state here.
		run.transition(RunStatusCancelled)
	}
	logger.Infof("grid %s: stop requested", runID)
	return nil
}

// CancelAllGridOrders actively cancels every resting child order on both
// sides and moves the run to CANCELLED. Cancellation is best-effort per
// order; failures are collected and returned alongside the final snapshot.
func (e *Engine) CancelAllGridOrders(ctx context.Context, runID string) (GridSnapshot, []error) {
	run, ok := e.reg.gridRun(runID)
	if !ok {
		return GridSnapshot{}, []error{ErrRunNotFound}
	}

	run.requestCancel()
	if cancel, ok := e.reg.cancelFunc(runID); ok {
		cancel()
	}

	run.mu.Lock()
	placed := make([]ChildOrder, 0, len(run.children))
	for _, c := range run.children {
		if c.Status == ChildStatusPlaced && c.ExchangeOrderID != 0 {
			placed = append(placed, c)
		}
	}
	run.mu.Unlock()

	// The run is already marked for cancellation; pulling the book must not
	// stop halfway because the caller disconnected.
	cancelCtx := context.WithoutCancel(ctx)
	var errs []error
	cancelled := 0
	for _, child := range placed {
		if _, err := e.client.CancelOrder(cancelCtx, run.symbol, child.ExchangeOrderID); err != nil {
			logger.Errorf("grid %s: cancelling order %d failed: %v", runID, child.ExchangeOrderID, err)
			errs = append(errs, fmt.Errorf("order %d: %w", child.ExchangeOrderID, err))
			continue
		}
		e.markChildCancelled(run, child.ExchangeOrderID)
		cancelled++
	}

	run.transition(RunStatusCancelled)
	logger.Infof("grid %s cancelled: %d orders pulled, %d failures", runID, cancelled, len(errs))
	return run.Snapshot(), errs
}

func (e *Engine) markChildCancelled(run *GridRun, orderID int64) {
	run.mu.Lock()
	defer run.mu.Unlock()
	for i := range run.children {
		c := &run.children[i]
		if c.ExchangeOrderID == orderID && c.Status == ChildStatusPlaced {
			c.Status = ChildStatusCancelled
			return
		}
	}
}

// GridStatus returns a snapshot of the run.
func (e *Engine) GridStatus(runID string) (GridSnapshot, error) {
	run, ok := e.reg.gridRun(runID)
	if !ok {
		return GridSnapshot{}, ErrRunNotFound
	}
	return run.Snapshot(), nil
}
