// Package sim runs the discrete-tick market: it owns the traders and the
// price state, collects one round of proposals per tick against a frozen
// snapshot, clears each asset through the matching engine and appends the
// resulting clearing prices to the history.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/efreitasn/tickmarket/internal/domain"
	"github.com/efreitasn/tickmarket/internal/engine"
	"github.com/efreitasn/tickmarket/internal/metrics"
	"github.com/efreitasn/tickmarket/internal/policy"
	"github.com/efreitasn/tickmarket/internal/store"
)

// State is the lifecycle stage of a Simulation.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// PolicyFactory builds the policy for the i-th trader.
type PolicyFactory func(i int, kind domain.PolicyKind) (policy.Policy, error)

// Option configures a Simulation.
type Option func(*Simulation)

// WithPolicyFactory replaces the default policy construction.
func WithPolicyFactory(f PolicyFactory) Option {
	return func(s *Simulation) { s.factory = f }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// agent pairs a trader's ledger record with its policy and private
// random stream.
type agent struct {
	trader *domain.Trader
	policy policy.Policy
	rng    *rand.Rand
}

// Totals are market-wide sums used to check conservation.
type Totals struct {
	Cash      decimal.Decimal
	Inventory map[domain.Asset]int64
}

// Simulation is one run of the market. It is not restartable: once
// Finished, a new run needs a new Simulation.
type Simulation struct {
	id      string
	params  Params
	assets  *domain.AssetRegistry
	traders *store.TraderStore
	history *store.PriceHistory
	matcher *engine.Matcher
	agents  []agent
	factory PolicyFactory
	logger  *slog.Logger
	initial Totals

	stepMu sync.Mutex // serializes Step

	mu     sync.RWMutex // protects state, tick, prices, err
	state  State
	tick   int
	prices map[domain.Asset]decimal.Decimal
	err    error

	subMu   sync.Mutex
	subs    map[int]chan TickEvent
	nextSub int
	closed  bool
}

// New validates p and initializes a market: traders with their policies
// and random streams, the initial inventory allocation, and seed prices
// at tick 0. Nothing is created when p is invalid.
func New(p Params, opts ...Option) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	assets, err := domain.NewAssetRegistry(p.Assets...)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		id:      uuid.NewString(),
		params:  p,
		assets:  assets,
		traders: store.NewTraderStore(),
		history: store.NewPriceHistory(),
		factory: func(_ int, kind domain.PolicyKind) (policy.Policy, error) { return policy.New(kind) },
		logger:  slog.Default(),
		state:   StateInitializing,
		prices:  make(map[domain.Asset]decimal.Decimal, assets.Len()),
		subs:    make(map[int]chan TickEvent),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("run_id", s.id))
	s.matcher = engine.NewMatcher(assets, s.traders)

	// Stream 0 drives setup; trader i draws from stream i+1.
	setup := policy.NewRand(p.Seed, 0)

	ledger := make([]*domain.Trader, p.NumTraders)
	s.agents = make([]agent, p.NumTraders)
	for i := 0; i < p.NumTraders; i++ {
		kind := p.kindAt(i)
		pol, err := s.factory(i, kind)
		if err != nil {
			return nil, fmt.Errorf("trader %d: %w", i, err)
		}
		tr := &domain.Trader{
			TraderID:  fmt.Sprintf("trader-%03d", i),
			Kind:      kind,
			Cash:      p.InitialCash,
			Inventory: make(map[domain.Asset]int64, assets.Len()),
		}
		if err := s.traders.Create(tr); err != nil {
			return nil, err
		}
		ledger[i] = tr
		s.agents[i] = agent{trader: tr, policy: pol, rng: policy.NewRand(p.Seed, uint64(i)+1)}
	}

	for _, a := range assets.List() {
		allocate(setup, ledger, a, p.InitialSupply, p.MaxAllocation)
	}
	for _, a := range assets.List() {
		price := seedPrice(setup, p.InitialPriceMin, p.InitialPriceMax)
		s.prices[a] = price
		s.history.Append(a, price)
	}

	s.initial = s.Totals()
	s.state = StateRunning

	s.logger.Info("simulation initialized",
		slog.Int("traders", s.traders.Len()),
		slog.Int("assets", assets.Len()),
		slog.Int("ticks", p.Ticks),
		slog.Uint64("seed", p.Seed),
	)
	return s, nil
}

// Run steps the simulation until it finishes, waiting interval between
// ticks. A zero interval runs ticks back to back. Cancelling ctx aborts
// the run between ticks.
func (s *Simulation) Run(ctx context.Context, interval time.Duration) error {
	var pace <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		pace = ticker.C
	}

	for s.State() != StateFinished {
		if _, err := s.Step(ctx); err != nil {
			return err
		}
		if pace == nil || s.State() == StateFinished {
			continue
		}
		select {
		case <-ctx.Done():
			s.abort(ctx.Err())
			return ctx.Err()
		case <-pace:
		}
	}

	totals := s.Totals()
	s.logger.Info("simulation finished",
		slog.Int("tick", s.Tick()),
		slog.String("total_cash", totals.Cash.String()),
		slog.Bool("cash_conserved", totals.Cash.Equal(s.initial.Cash)),
	)
	return nil
}

// Step runs exactly one tick and returns its event. It returns
// domain.ErrSimulationFinished once all ticks have run. Any other error
// aborts the run.
func (s *Simulation) Step(ctx context.Context) (*TickEvent, error) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	if s.State() == StateFinished {
		return nil, domain.ErrSimulationFinished
	}
	if err := ctx.Err(); err != nil {
		s.abort(err)
		return nil, err
	}

	start := time.Now()
	snap := s.snapshot()
	tick := snap.Tick + 1

	// Step 1: Collect. All proposals are in before any matching starts.
	orders, err := s.collect(snap)
	if err != nil {
		err = fmt.Errorf("tick %d: collect proposals: %w", tick, err)
		s.abort(err)
		return nil, err
	}

	// Step 2: Partition by asset and side, in trader order.
	buys := make(map[domain.Asset][]*domain.Order, s.assets.Len())
	sells := make(map[domain.Asset][]*domain.Order, s.assets.Len())
	for _, o := range orders {
		if o == nil {
			continue
		}
		if o.Side == domain.SideBuy {
			buys[o.Asset] = append(buys[o.Asset], o)
		} else {
			sells[o.Asset] = append(sells[o.Asset], o)
		}
	}

	// Step 3: Match each asset. Passes run one after another so no two
	// settle against the same trader at once.
	ev := &TickEvent{
		RunID:  s.id,
		Tick:   tick,
		Assets: make([]AssetTick, 0, s.assets.Len()),
	}
	observed := make([]metrics.AssetTick, 0, s.assets.Len())
	for _, a := range s.assets.List() {
		res, err := s.matcher.Match(a, buys[a], sells[a], snap.Prices[a])
		if err != nil {
			err = fmt.Errorf("tick %d: match %s: %w", tick, a, err)
			s.abort(err)
			return nil, err
		}
		at := AssetTick{
			Asset:     a,
			Previous:  res.OpeningPrice,
			Price:     res.ClearingPrice,
			Buys:      len(buys[a]),
			Sells:     len(sells[a]),
			Trades:    len(res.Trades),
			Volume:    res.Volume,
			Turnover:  res.Turnover,
			Capped:    res.Capped,
			Skipped:   res.Skipped,
			Filled:    res.Filled,
			Discarded: res.Discarded,
		}
		ev.Assets = append(ev.Assets, at)
		observed = append(observed, metrics.AssetTick{
			Asset:  string(a),
			Buys:   at.Buys,
			Sells:  at.Sells,
			Trades: at.Trades,
			Volume: at.Volume,
			Capped: at.Capped + at.Skipped,
			Price:  at.Price.InexactFloat64(),
		})
		s.logger.Debug("asset cleared",
			slog.Int("tick", tick),
			slog.String("asset", string(a)),
			slog.Int("buys", at.Buys),
			slog.Int("sells", at.Sells),
			slog.Int("trades", at.Trades),
			slog.Int64("volume", at.Volume),
			slog.Int("resting", res.Resting),
			slog.Int64("discarded", at.Discarded),
			slog.String("price", at.Price.String()),
		)
	}

	// Step 4: Advance. Prices and history move together.
	s.mu.Lock()
	for _, at := range ev.Assets {
		s.prices[at.Asset] = at.Price
		s.history.Append(at.Asset, at.Price)
	}
	s.tick = tick
	if s.tick >= s.params.Ticks {
		s.state = StateFinished
		ev.Finished = true
	}
	s.mu.Unlock()

	metrics.RecordTick(time.Since(start), observed)
	s.publish(*ev)
	if ev.Finished {
		s.closeSubscribers()
	}
	return ev, nil
}

// snapshot freezes the current prices and histories for one tick.
func (s *Simulation) snapshot() *policy.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &policy.Snapshot{
		Tick:    s.tick,
		Assets:  s.assets.List(),
		Prices:  make(map[domain.Asset]decimal.Decimal, s.assets.Len()),
		History: make(map[domain.Asset][]decimal.Decimal, s.assets.Len()),
	}
	for _, a := range snap.Assets {
		snap.Prices[a] = s.prices[a]
		snap.History[a] = s.history.Get(a)
	}
	return snap
}

// collect asks every agent for a proposal in parallel. Each agent reads
// the shared snapshot and its own ledger view, and draws from its own
// random stream, so the result does not depend on scheduling.
func (s *Simulation) collect(snap *policy.Snapshot) ([]*domain.Order, error) {
	views := make([]domain.TraderView, len(s.agents))
	for i, ag := range s.agents {
		ag.trader.Mu.Lock()
		views[i] = ag.trader.View()
		ag.trader.Mu.Unlock()
	}

	orders := make([]*domain.Order, len(s.agents))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, ag := range s.agents {
		g.Go(func() error {
			prop, ok := ag.policy.Propose(snap, views[i], ag.rng)
			if !ok {
				return nil
			}
			o := &domain.Order{
				OrderID:           uuid.NewString(),
				TraderID:          ag.trader.TraderID,
				Side:              prop.Side,
				Asset:             prop.Asset,
				Price:             prop.Price,
				Quantity:          prop.Quantity,
				RemainingQuantity: prop.Quantity,
			}
			if err := o.Validate(s.assets); err != nil {
				return fmt.Errorf("trader %s (%s): %w", ag.trader.TraderID, ag.policy.Kind(), err)
			}
			orders[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return orders, nil
}

// abort ends the run after a failed or cancelled tick.
func (s *Simulation) abort(err error) {
	s.mu.Lock()
	if s.state != StateFinished {
		s.state = StateFinished
		s.err = err
	}
	s.mu.Unlock()

	s.logger.Error("simulation aborted", slog.String("error", err.Error()))
	s.closeSubscribers()
}

// ID returns the run identifier.
func (s *Simulation) ID() string {
	return s.id
}

// Params returns the parameters the run was created with.
func (s *Simulation) Params() Params {
	return s.params
}

// State returns the current lifecycle state.
func (s *Simulation) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error that aborted the run, or nil.
func (s *Simulation) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Assets returns the traded assets in registry order.
func (s *Simulation) Assets() []domain.Asset {
	return s.assets.List()
}

// Prices returns a copy of the current clearing prices.
func (s *Simulation) Prices() map[domain.Asset]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.Asset]decimal.Decimal, len(s.prices))
	for a, p := range s.prices {
		out[a] = p
	}
	return out
}

// History returns the price series for an asset starting at index from.
// Entry 0 is the seed price; entry i is the price after tick i.
func (s *Simulation) History(a domain.Asset, from int) ([]decimal.Decimal, error) {
	if !s.assets.Exists(a) {
		return nil, fmt.Errorf("history %q: %w", a, domain.ErrUnknownAsset)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Since(a, from), nil
}

// Trader returns a copy of a trader's ledger state.
func (s *Simulation) Trader(id string) (domain.TraderView, error) {
	tr, err := s.traders.Get(id)
	if err != nil {
		return domain.TraderView{}, err
	}
	tr.Mu.Lock()
	defer tr.Mu.Unlock()
	return tr.View(), nil
}

// Traders returns copies of every trader's ledger state in creation order.
func (s *Simulation) Traders() []domain.TraderView {
	list := s.traders.List()
	out := make([]domain.TraderView, len(list))
	for i, tr := range list {
		tr.Mu.Lock()
		out[i] = tr.View()
		tr.Mu.Unlock()
	}
	return out
}

// Totals sums cash and per-asset inventory across all traders.
func (s *Simulation) Totals() Totals {
	t := Totals{
		Cash:      s.traders.TotalCash(),
		Inventory: make(map[domain.Asset]int64, s.assets.Len()),
	}
	for _, a := range s.assets.List() {
		t.Inventory[a] = s.traders.TotalInventory(a)
	}
	return t
}

// InitialTotals returns the totals recorded right after initialization.
func (s *Simulation) InitialTotals() Totals {
	return s.initial
}
