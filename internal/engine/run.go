package engine

import (
	"sync"
	"time"

	"tranche/internal/gateway/exchange"
)

// RunStatus is the lifecycle state of a strategy run. Transitions are
// monotonic: ACTIVE moves to exactly one terminal state and never leaves it.
type RunStatus string

const (
	RunStatusActive    RunStatus = "ACTIVE"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusCancelled RunStatus = "CANCELLED"
	RunStatusFailed    RunStatus = "FAILED"
)

func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusCancelled || s == RunStatusFailed
}

// ChildStatus tracks one chunk or level order. FILLED is terminal; PLACED may
// move to FILLED or CANCELLED, or stay PLACED if unresolved at run end.
type ChildStatus string

const (
	ChildStatusPlaced    ChildStatus = "PLACED"
	ChildStatusFilled    ChildStatus = "FILLED"
	ChildStatusCancelled ChildStatus = "CANCELLED"
	ChildStatusFailed    ChildStatus = "FAILED"
)

// ChildOrder records one submission attempt. A failed placement has no
// exchange order id and carries the error text instead.
type ChildOrder struct {
	Index           int           `json:"index"`
	Side            exchange.Side `json:"side"`
	PlannedQuantity float64       `json:"planned_quantity"`
	PlannedPrice    float64       `json:"planned_price,omitempty"`
	ExchangeOrderID int64         `json:"exchange_order_id,omitempty"`
	ClientOrderID   string        `json:"client_order_id,omitempty"`
	Status          ChildStatus   `json:"status"`
	ExecutedQty     float64       `json:"executed_qty"`
	AvgPrice        float64       `json:"avg_price,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// runState is the part shared by TWAP and Grid runs. The owning worker is the
// only mutator; everyone else reads through a locked snapshot.
type runState struct {
	mu              sync.Mutex
	id              string
	symbol          string
	status          RunStatus
	startTime       time.Time
	endTime         time.Time
	children        []ChildOrder
	cancelRequested bool
}

func (r *runState) ID() string { return r.id }

// transition moves the run to a terminal status. Returns false when the run
// is already terminal; the first terminal transition wins.
func (r *runState) transition(to RunStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return false
	}
	r.status = to
	r.endTime = time.Now()
	return true
}

func (r *runState) requestCancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return false
	}
	r.cancelRequested = true
	return true
}

func (r *runState) cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelRequested
}

func (r *runState) appendChild(c ChildOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children = append(r.children, c)
}

// TWAPRun is a time-sliced execution of a single large order.
type TWAPRun struct {
	runState

	side            exchange.Side
	totalQuantity   float64
	chunkSize       float64
	numChunks       int
	intervalSeconds int
	priceLimit      float64
	randomize       bool

	executedQuantity float64
	totalValue       float64
	executedChunks   int
	skippedChunks    int
}

// TWAPSnapshot is a defensive copy of a TWAP run for status queries.
type TWAPSnapshot struct {
	ID               string        `json:"id"`
	Symbol           string        `json:"symbol"`
	Side             exchange.Side `json:"side"`
	Status           RunStatus     `json:"status"`
	TotalQuantity    float64       `json:"total_quantity"`
	ChunkSize        float64       `json:"chunk_size"`
	NumChunks        int           `json:"num_chunks"`
	IntervalSeconds  int           `json:"interval_seconds"`
	PriceLimit       float64       `json:"price_limit,omitempty"`
	Randomize        bool          `json:"randomize"`
	ExecutedQuantity float64       `json:"executed_quantity"`
	ExecutedChunks   int           `json:"executed_chunks"`
	SkippedChunks    int           `json:"skipped_chunks"`
	AvgPrice         float64       `json:"avg_price"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time,omitempty"`
	ChildOrders      []ChildOrder  `json:"child_orders"`
}

func (r *TWAPRun) Snapshot() TWAPSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := TWAPSnapshot{
		ID:               r.id,
		Symbol:           r.symbol,
		Side:             r.side,
		Status:           r.status,
		TotalQuantity:    r.totalQuantity,
		ChunkSize:        r.chunkSize,
		NumChunks:        r.numChunks,
		IntervalSeconds:  r.intervalSeconds,
		PriceLimit:       r.priceLimit,
		Randomize:        r.randomize,
		ExecutedQuantity: r.executedQuantity,
		ExecutedChunks:   r.executedChunks,
		SkippedChunks:    r.skippedChunks,
		StartTime:        r.startTime,
		EndTime:          r.endTime,
		ChildOrders:      append([]ChildOrder(nil), r.children...),
	}
	if r.executedQuantity > 0 {
		snap.AvgPrice = r.totalValue / r.executedQuantity
	}
	return snap
}

// GridRun is a set of resting limit orders laddered across a price range.
type GridRun struct {
	runState

	lowerPrice       float64
	upperPrice       float64
	quantityPerLevel float64
	numLevels        int
	rebalance        bool
	gridLevels       []float64
	startPrice       float64

	filledOrders []ChildOrder
}

// GridSnapshot is a defensive copy of a grid run for status queries.
type GridSnapshot struct {
	ID               string       `json:"id"`
	Symbol           string       `json:"symbol"`
	Status           RunStatus    `json:"status"`
	LowerPrice       float64      `json:"lower_price"`
	UpperPrice       float64      `json:"upper_price"`
	QuantityPerLevel float64      `json:"quantity_per_level"`
	NumLevels        int          `json:"num_levels"`
	Rebalance        bool         `json:"rebalance"`
	GridLevels       []float64    `json:"grid_levels"`
	StartPrice       float64      `json:"start_price"`
	StartTime        time.Time    `json:"start_time"`
	EndTime          time.Time    `json:"end_time,omitempty"`
	ChildOrders      []ChildOrder `json:"child_orders"`
	FilledOrders     []ChildOrder `json:"filled_orders"`
}

func (r *GridRun) Snapshot() GridSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return GridSnapshot{
		ID:               r.id,
		Symbol:           r.symbol,
		Status:           r.status,
		LowerPrice:       r.lowerPrice,
		UpperPrice:       r.upperPrice,
		QuantityPerLevel: r.quantityPerLevel,
		NumLevels:        r.numLevels,
		Rebalance:        r.rebalance,
		GridLevels:       append([]float64(nil), r.gridLevels...),
		StartPrice:       r.startPrice,
		StartTime:        r.startTime,
		EndTime:          r.endTime,
		ChildOrders:      append([]ChildOrder(nil), r.children...),
		FilledOrders:     append([]ChildOrder(nil), r.filledOrders...),
	}
}
