package sim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
)

// Params is the market setup read once when a Simulation is created.
type Params struct {
	Assets          []domain.Asset
	NumTraders      int
	RandomTraders   int
	TrendTraders    int
	WhaleTraders    int
	InitialCash     decimal.Decimal // per trader
	InitialSupply   int64           // per asset, spread across traders
	MaxAllocation   int64           // cap on a single allocation draw
	InitialPriceMin float64
	InitialPriceMax float64
	Ticks           int
	Seed            uint64
}

// DefaultParams returns a five-fruit market of 100 traders.
func DefaultParams() Params {
	return Params{
		Assets:          []domain.Asset{"apple", "banana", "orange", "grape", "strawberry"},
		NumTraders:      100,
		RandomTraders:   70,
		TrendTraders:    20,
		WhaleTraders:    10,
		InitialCash:     decimal.NewFromInt(1000),
		InitialSupply:   1000,
		MaxAllocation:   10,
		InitialPriceMin: 10,
		InitialPriceMax: 20,
		Ticks:           200,
		Seed:            1,
	}
}

// Validate checks the parameters. It returns a *domain.ValidationError
// describing the first problem found.
func (p Params) Validate() error {
	fail := func(format string, args ...any) error {
		return &domain.ValidationError{Message: fmt.Sprintf(format, args...)}
	}

	if _, err := domain.NewAssetRegistry(p.Assets...); err != nil {
		return err
	}
	switch {
	case p.NumTraders <= 0:
		return fail("number of traders must be > 0, got %d", p.NumTraders)
	case p.RandomTraders < 0 || p.TrendTraders < 0 || p.WhaleTraders < 0:
		return fail("trader type counts must be >= 0")
	case p.RandomTraders+p.TrendTraders+p.WhaleTraders != p.NumTraders:
		return fail("trader type counts %d+%d+%d do not sum to %d traders",
			p.RandomTraders, p.TrendTraders, p.WhaleTraders, p.NumTraders)
	case p.InitialCash.IsNegative():
		return fail("initial cash must be >= 0, got %s", p.InitialCash)
	case p.InitialSupply <= 0:
		return fail("initial supply must be > 0, got %d", p.InitialSupply)
	case p.MaxAllocation <= 0:
		return fail("max allocation must be > 0, got %d", p.MaxAllocation)
	case p.InitialPriceMin <= 0:
		return fail("initial price min must be > 0, got %v", p.InitialPriceMin)
	case p.InitialPriceMax < p.InitialPriceMin:
		return fail("initial price max %v is below min %v", p.InitialPriceMax, p.InitialPriceMin)
	case p.Ticks <= 0:
		return fail("ticks must be > 0, got %d", p.Ticks)
	}
	return nil
}

// kindAt returns the policy kind of the i-th trader: random walkers
// first, then trend followers, then whales.
func (p Params) kindAt(i int) domain.PolicyKind {
	switch {
	case i < p.RandomTraders:
		return domain.PolicyRandomWalker
	case i < p.RandomTraders+p.TrendTraders:
		return domain.PolicyTrendFollower
	default:
		return domain.PolicyRareLargeActor
	}
}
