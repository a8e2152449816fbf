package engine

import (
	"context"
	"time"

	"tranche/internal/gateway/exchange"
	"tranche/internal/logger"
	"tranche/internal/validator"
)

// TWAPRequest describes a time-sliced execution of TotalQuantity split into
// NumChunks market orders, one every IntervalSeconds. PriceLimit optionally
// gates each chunk: a BUY chunk is skipped while the market trades above it,
// a SELL chunk while below. Randomize jitters the wait by ±20%.
type TWAPRequest struct {
	Symbol          string
	Side            exchange.Side
	TotalQuantity   float64
	NumChunks       int
	IntervalSeconds int
	PriceLimit      float64
	Randomize       bool
}

// StartTWAP validates the request, checks connectivity, registers the run and
// spawns its worker. It returns the run id without waiting for execution.
func (e *Engine) StartTWAP(ctx context.Context, req TWAPRequest) (TWAPSnapshot, error) {
	req.Symbol = validator.NormalizeSymbol(req.Symbol)
	if err := e.check.TWAP(req.Symbol, req.Side, req.TotalQuantity, req.NumChunks, req.IntervalSeconds); err != nil {
		return TWAPSnapshot{}, invalidParams(err)
	}
	if err := e.client.Ping(ctx); err != nil {
		return TWAPSnapshot{}, err
	}

	run := &TWAPRun{
		runState: runState{
			id:        e.reg.newRunID("TWAP", req.Symbol),
			symbol:    req.Symbol,
			status:    RunStatusActive,
			startTime: time.Now(),
		},
		side:            req.Side,
		totalQuantity:   req.TotalQuantity,
		chunkSize:       req.TotalQuantity / float64(req.NumChunks),
		numChunks:       req.NumChunks,
		intervalSeconds: req.IntervalSeconds,
		priceLimit:      req.PriceLimit,
		randomize:       req.Randomize,
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	e.reg.addTWAP(run, cancel)
	e.reg.track()
	go func() {
		defer e.reg.workerDone()
		e.runTWAP(workerCtx, run)
	}()

	logger.Infof("TWAP %s started: %s %v %s in %d chunks every %ds",
		run.id, req.Side, req.TotalQuantity, req.Symbol, req.NumChunks, req.IntervalSeconds)
	return run.Snapshot(), nil
}

// StopTWAP requests cooperative cancellation. The worker observes it at the
// next loop boundary. Stopping a terminal run is a no-op.
func (e *Engine) StopTWAP(runID string) error {
	run, ok := e.reg.twapRun(runID)
	if !ok {
		return ErrRunNotFound
	}
	if !run.requestCancel() {
		return nil
	}
	if cancel, ok := e.reg.cancelFunc(runID); ok {
		cancel()
	}
	logger.Infof("TWAP %s: stop requested", runID)
	return nil
}

// TWAPStatus returns a snapshot of the run.
func (e *Engine) TWAPStatus(runID string) (TWAPSnapshot, error) {
	run, ok := e.reg.twapRun(runID)
	if !ok {
		return TWAPSnapshot{}, ErrRunNotFound
	}
	return run.Snapshot(), nil
}

func (e *Engine) runTWAP(ctx context.Context, run *TWAPRun) {
	for chunkIndex := 0; chunkIndex < run.numChunks; chunkIndex++ {
		if ctx.Err() != nil || run.cancelled() {
			e.finishTWAP(run, RunStatusCancelled)
			return
		}

		qty := run.chunkSize
		if chunkIndex == run.numChunks-1 {
			// Last chunk absorbs accumulated rounding drift.
			run.mu.Lock()
			qty = run.totalQuantity - run.executedQuantity
			run.mu.Unlock()
		}

		e.executeTWAPChunk(ctx, run, chunkIndex, qty)

		if chunkIndex < run.numChunks-1 {
			wait := time.Duration(float64(run.intervalSeconds)*e.waitFactor(run.randomize)) * time.Second
			if !e.sleep(ctx, wait) {
				// Interrupted mid-wait; the next loop check settles status.
				continue
			}
		}
	}
	e.finishTWAP(run, RunStatusCompleted)
}

func (e *Engine) executeTWAPChunk(ctx context.Context, run *TWAPRun, chunkIndex int, qty float64) {
	// Venue calls ride a detached context: a stop must not abort an order
	// already on the wire. Cancellation is observed at the loop boundaries;
	// the gateway's client timeout still bounds each call.
	callCtx := context.WithoutCancel(ctx)
	if qty <= 0 {
		// Earlier chunks over-filled; nothing left to place.
		run.mu.Lock()
		run.skippedChunks++
		run.mu.Unlock()
		return
	}
	if run.priceLimit > 0 {
		quote, err := e.client.GetPrice(callCtx, run.symbol)
		if err != nil {
			logger.Errorf("TWAP %s chunk %d: price fetch failed: %v", run.id, chunkIndex+1, err)
			run.appendChild(ChildOrder{
				Index:           chunkIndex,
				Side:            run.side,
				PlannedQuantity: qty,
				Status:          ChildStatusFailed,
				Error:           err.Error(),
			})
			return
		}
		if (run.side == exchange.SideBuy && quote.Price > run.priceLimit) ||
			(run.side == exchange.SideSell && quote.Price < run.priceLimit) {
			logger.Warnf("TWAP %s chunk %d skipped: price %v outside limit %v",
				run.id, chunkIndex+1, quote.Price, run.priceLimit)
			run.mu.Lock()
			run.skippedChunks++
			run.mu.Unlock()
			return
		}
	}

	order, err := e.client.PlaceOrder(callCtx, exchange.OrderRequest{
		Symbol:        run.symbol,
		Side:          run.side,
		Type:          exchange.OrderTypeMarket,
		Quantity:      qty,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		// A single failed chunk does not abort the run.
		logger.Errorf("TWAP %s chunk %d/%d failed: %v", run.id, chunkIndex+1, run.numChunks, err)
		run.appendChild(ChildOrder{
			Index:           chunkIndex,
			Side:            run.side,
			PlannedQuantity: qty,
			Status:          ChildStatusFailed,
			Error:           err.Error(),
		})
		return
	}

	child := ChildOrder{
		Index:           chunkIndex,
		Side:            run.side,
		PlannedQuantity: qty,
		ExchangeOrderID: order.OrderID,
		ClientOrderID:   order.ClientOrderID,
		Status:          ChildStatusPlaced,
		ExecutedQty:     order.ExecutedQty,
		AvgPrice:        order.AvgPrice,
	}
	if order.Status == exchange.OrderStatusFilled {
		child.Status = ChildStatusFilled
	}

	run.mu.Lock()
	run.children = append(run.children, child)
	run.executedChunks++
	run.executedQuantity += order.ExecutedQty
	run.totalValue += order.ExecutedValue()
	run.mu.Unlock()

	logger.Infof("TWAP %s chunk %d/%d executed: %v %s", run.id, chunkIndex+1, run.numChunks, qty, run.symbol)
}

func (e *Engine) waitFactor(randomize bool) float64 {
	if !randomize {
		return 1.0
	}
	return e.jitterFn()
}

func (e *Engine) finishTWAP(run *TWAPRun, status RunStatus) {
	if !run.transition(status) {
		return
	}
	snap := run.Snapshot()
	logger.Infof("TWAP %s %s: executed %v/%v over %d chunks (avg price %v)",
		run.id, status, snap.ExecutedQuantity, snap.TotalQuantity, snap.ExecutedChunks, snap.AvgPrice)
}
