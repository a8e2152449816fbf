package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"tranche/internal/gateway/exchange"
	"tranche/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, fake *fakeExchange) *Engine {
	t.Helper()
	eng := New(Params{
		Client:         fake,
		Validator:      validator.New(validator.Limits{MinQuantity: 0.001, MaxQuantity: 1000}),
		PlacementDelay: time.Millisecond,
	})
	// Collapse waits so runs complete within test time.
	eng.sleep = func(ctx context.Context, d time.Duration) bool {
		return ctx.Err() == nil
	}
	return eng
}

func waitForTWAP(t *testing.T, eng *Engine, id string, status RunStatus) TWAPSnapshot {
	t.Helper()
	var snap TWAPSnapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = eng.TWAPStatus(id)
		return err == nil && snap.Status == status
	}, 2*time.Second, 2*time.Millisecond)
	return snap
}

func TestStartTWAPFillsAllChunks(t *testing.T) {
	fake := newFakeExchange(100)
	eng := newTestEngine(t, fake)

	snap, err := eng.StartTWAP(context.Background(), TWAPRequest{
		Symbol:          "BTCUSDT",
		Side:            exchange.SideBuy,
		TotalQuantity:   1.0,
		NumChunks:       4,
		IntervalSeconds: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, RunStatusActive, snap.Status)
	assert.Contains(t, snap.ID, "TWAP_BTCUSDT_")

	final := waitForTWAP(t, eng, snap.ID, RunStatusCompleted)
	assert.InDelta(t, 1.0, final.ExecutedQuantity, 1e-12)
	assert.Equal(t, 100.0, final.AvgPrice)
	require.Len(t, final.ChildOrders, 4)
	for _, child := range final.ChildOrders {
		assert.Equal(t, ChildStatusFilled, child.Status)
	}

	// Sum of planned chunks matches the total exactly.
	var planned float64
	for _, child := range final.ChildOrders {
		planned += child.PlannedQuantity
	}
	assert.Equal(t, 1.0, planned)
	assert.False(t, final.EndTime.IsZero())
}

func TestTWAPLastChunkAbsorbsRemainder(t *testing.T) {
	fake := newFakeExchange(50)
	eng := newTestEngine(t, fake)

	// 1.0 / 3 is not representable; the last chunk must absorb the drift.
	snap, err := eng.StartTWAP(context.Background(), TWAPRequest{
		Symbol:          "ETHUSDT",
		Side:            exchange.SideSell,
		TotalQuantity:   1.0,
		NumChunks:       3,
		IntervalSeconds: 10,
	})
	require.NoError(t, err)

	final := waitForTWAP(t, eng, snap.ID, RunStatusCompleted)
	assert.Equal(t, 1.0, final.ExecutedQuantity)
}

func TestTWAPPriceLimitSkipsChunks(t *testing.T) {
	fake := newFakeExchange(105)
	eng := newTestEngine(t, fake)

	snap, err := eng.StartTWAP(context.Background(), TWAPRequest{
		Symbol:          "BTCUSDT",
		Side:            exchange.SideBuy,
		TotalQuantity:   0.4,
		NumChunks:       4,
		IntervalSeconds: 10,
		PriceLimit:      100, // market above the BUY limit: every chunk skipped
	})
	require.NoError(t, err)

	final := waitForTWAP(t, eng, snap.ID, RunStatusCompleted)
	assert.Equal(t, 4, final.SkippedChunks)
	assert.Zero(t, final.ExecutedQuantity)
	assert.Empty(t, fake.placedRequests())
	assert.Zero(t, final.AvgPrice)
}

func TestTWAPToleratesChunkFailures(t *testing.T) {
	fake := newFakeExchange(100)
	fake.failPlacement = func(n int) error {
		if n == 2 {
			return &exchange.APIError{Code: -1013, Message: "Filter failure: LOT_SIZE"}
		}
		return nil
	}
	eng := newTestEngine(t, fake)

	snap, err := eng.StartTWAP(context.Background(), TWAPRequest{
		Symbol:          "BTCUSDT",
		Side:            exchange.SideBuy,
		TotalQuantity:   0.4,
		NumChunks:       4,
		IntervalSeconds: 10,
	})
	require.NoError(t, err)

	// A single rejected chunk is recorded and the run still completes.
	final := waitForTWAP(t, eng, snap.ID, RunStatusCompleted)
	require.Len(t, final.ChildOrders, 4)
	var failed int
	for _, child := range final.ChildOrders {
		if child.Status == ChildStatusFailed {
			failed++
			assert.Zero(t, child.ExchangeOrderID)
			assert.Contains(t, child.Error, "LOT_SIZE")
		}
	}
	assert.Equal(t, 1, failed)
	// The last chunk picks up the failed quantity.
	assert.Equal(t, 0.4, final.ExecutedQuantity)
}

func TestStopTWAPIsCooperativeAndIdempotent(t *testing.T) {
	fake := newFakeExchange(100)
	eng := newTestEngine(t, fake)
	gate := make(chan struct{})
	eng.sleep = func(ctx context.Context, d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-gate:
			return true
		}
	}

	snap, err := eng.StartTWAP(context.Background(), TWAPRequest{
		Symbol:          "BTCUSDT",
		Side:            exchange.SideBuy,
		TotalQuantity:   1.0,
		NumChunks:       10,
		IntervalSeconds: 10,
	})
	require.NoError(t, err)

	// First chunk goes out, then the worker parks in its wait.
	require.Eventually(t, func() bool {
		return len(fake.placedRequests()) == 1
	}, 2*time.Second, 2*time.Millisecond)

	require.NoError(t, eng.StopTWAP(snap.ID))
	final := waitForTWAP(t, eng, snap.ID, RunStatusCancelled)
	assert.NotEqual(t, RunStatusCompleted, final.Status)
	assert.Len(t, fake.placedRequests(), 1)

	// Stopping a terminal run changes nothing.
	require.NoError(t, eng.StopTWAP(snap.ID))
	again, err := eng.TWAPStatus(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCancelled, again.Status)
	assert.Equal(t, final.EndTime, again.EndTime)
}

func TestStopTWAPLetsInFlightPlacementSettle(t *testing.T) {
	fake := newFakeExchange(100)
	inFlight := make(chan struct{})
	release := make(chan struct{})
	fake.holdPlacement = func(n int) <-chan struct{} {
		if n != 2 {
			return nil
		}
		close(inFlight)
		return release
	}
	eng := newTestEngine(t, fake)

	snap, err := eng.StartTWAP(context.Background(), TWAPRequest{
		Symbol:          "BTCUSDT",
		Side:            exchange.SideBuy,
		TotalQuantity:   1.0,
		NumChunks:       4,
		IntervalSeconds: 10,
	})
	require.NoError(t, err)

	select {
	case <-inFlight:
	case <-time.After(2 * time.Second):
		t.Fatal("second placement never started")
	}

	// Stop lands while chunk 2 is on the wire; the call must settle, not
	// abort with a context error.
	require.NoError(t, eng.StopTWAP(snap.ID))
	close(release)

	final := waitForTWAP(t, eng, snap.ID, RunStatusCancelled)
	require.Len(t, final.ChildOrders, 2)
	second := final.ChildOrders[1]
	assert.Equal(t, ChildStatusFilled, second.Status)
	assert.Empty(t, second.Error)
	assert.Len(t, fake.placedRequests(), 2)
	assert.InDelta(t, 0.5, final.ExecutedQuantity, 1e-12)
}

func TestWaitFactorStaysWithinJitterBounds(t *testing.T) {
	eng := newTestEngine(t, newFakeExchange(100))
	assert.Equal(t, 1.0, eng.waitFactor(false))
	for i := 0; i < 1000; i++ {
		v := eng.waitFactor(true)
		assert.GreaterOrEqual(t, v, 0.8)
		assert.LessOrEqual(t, v, 1.2)
	}
}

func TestStartTWAPRejectsBadParameters(t *testing.T) {
	fake := newFakeExchange(100)
	eng := newTestEngine(t, fake)

	cases := []TWAPRequest{
		{Symbol: "BADSYM", Side: exchange.SideBuy, TotalQuantity: 1, NumChunks: 4, IntervalSeconds: 10},
		{Symbol: "BTCUSDT", Side: "HOLD", TotalQuantity: 1, NumChunks: 4, IntervalSeconds: 10},
		{Symbol: "BTCUSDT", Side: exchange.SideBuy, TotalQuantity: 1, NumChunks: 1, IntervalSeconds: 10},
		{Symbol: "BTCUSDT", Side: exchange.SideBuy, TotalQuantity: 1, NumChunks: 101, IntervalSeconds: 10},
		{Symbol: "BTCUSDT", Side: exchange.SideBuy, TotalQuantity: 1, NumChunks: 4, IntervalSeconds: 5},
		{Symbol: "BTCUSDT", Side: exchange.SideBuy, TotalQuantity: 0.002, NumChunks: 4, IntervalSeconds: 10},
	}
	for _, req := range cases {
		_, err := eng.StartTWAP(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidParameters, "request %+v", req)
	}
	assert.Empty(t, fake.placedRequests())
}

func TestStartTWAPFailsWithoutConnectivity(t *testing.T) {
	fake := newFakeExchange(100)
	fake.pingErr = exchange.ErrConnectivity
	eng := newTestEngine(t, fake)

	_, err := eng.StartTWAP(context.Background(), TWAPRequest{
		Symbol:          "BTCUSDT",
		Side:            exchange.SideBuy,
		TotalQuantity:   1.0,
		NumChunks:       4,
		IntervalSeconds: 10,
	})
	require.ErrorIs(t, err, exchange.ErrConnectivity)
	// No run was registered.
	assert.Empty(t, eng.Registry().TWAPSnapshots())
}

func TestTWAPStatusUnknownRun(t *testing.T) {
	eng := newTestEngine(t, newFakeExchange(100))
	_, err := eng.TWAPStatus("TWAP_BTCUSDT_0")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.True(t, errors.Is(eng.StopTWAP("TWAP_BTCUSDT_0"), ErrRunNotFound))
}
