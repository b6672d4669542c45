// Package equity computes tournament payout equity (the "independent chip
// model", or ICM) for two distinguished players in a multi-player
// elimination contest. A Calculator owns a fixed payout structure and the
// fixed stacks of every other player; repeated queries vary only the two
// distinguished stacks and share a concurrent result cache. Small fields are
// solved exactly with a bitmask DP over subsets of active players; larger
// ones fall back to a Monte Carlo estimate.
package equity

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/pairofjacks/icm/cache"
	"github.com/pairofjacks/icm/montecarlo"
)

const (
	// DefaultIterations is the per-player Monte Carlo iteration count used
	// when a query is routed to the estimator.
	DefaultIterations = 80000

	// MaxExactPayouts bounds the payout positions the exact solver will
	// enumerate; past this the (mask, position) state space is impractical.
	MaxExactPayouts = 16

	// MaxExactPlayers is a structural ceiling tied to the width of the
	// uint64 player bitmask, not a tunable. Raising it means a wider mask
	// representation.
	MaxExactPlayers = 64
)

// Result is an equity pair canonicalized by stack size, so a single cached
// entry serves both argument orders of Calculate.
type Result struct {
	ShortStack float64
	DeepStack  float64
}

// Calculator computes equities against a fixed payout structure and a fixed
// set of other players' stacks. It is safe for concurrent use; the result
// cache is the only shared state, and it tolerates concurrent misses (both
// callers compute, last write wins).
type Calculator struct {
	payouts     []float64
	otherStacks []float64

	iterations int
	estimator  *montecarlo.Estimator
	results    *cache.Map[Result]
}

// NewCalculator creates a calculator. otherStacks holds every stack except
// the two distinguished players'; payouts[0] is first place. Both are fixed
// for the life of the calculator — cached results assume the other-player
// stack multiset never changes.
func NewCalculator(otherStacks []int, payouts []int) *Calculator {
	toFloat := func(v int, _ int) float64 { return float64(v) }
	return &Calculator{
		payouts:     lo.Map(payouts, toFloat),
		otherStacks: lo.Map(otherStacks, toFloat),
		iterations:  DefaultIterations,
		estimator:   montecarlo.NewEstimator(),
		results:     cache.NewMap[Result](),
	}
}

// SetIterations overrides the per-player iteration count for the estimator
// path.
func (c *Calculator) SetIterations(iterations int) {
	c.iterations = iterations
}

// SetThreads sizes the estimator's worker pool.
func (c *Calculator) SetThreads(threads int) {
	c.estimator.SetThreads(threads)
}

func (c *Calculator) Estimator() *montecarlo.Estimator {
	return c.estimator
}

// CachedResults returns the number of distinct queries resolved so far.
func (c *Calculator) CachedResults() int {
	return c.results.Len()
}

// NumPlayers returns the total field size, the two distinguished players
// included.
func (c *Calculator) NumPlayers() int {
	return len(c.otherStacks) + 2
}

// Calculate returns the expected payouts of the two distinguished players,
// in argument order. It blocks until the computation finishes. Equity
// depends only on the multiset of all stacks, so min(stackA, stackB) keys
// the cache: swapping the arguments yields the swapped result.
func (c *Calculator) Calculate(stackA, stackB int) (float64, float64) {
	key := int64(min(stackA, stackB))
	if r, ok := c.results.Get(key); ok {
		log.Debug().Int64("key", key).Msg("equity-cache-hit")
		if stackA <= stackB {
			return r.ShortStack, r.DeepStack
		}
		return r.DeepStack, r.ShortStack
	}

	if len(c.payouts) == 0 {
		c.results.Set(key, Result{})
		return 0, 0
	}

	equities := c.allEquities(c.assembleStacks(stackA, stackB))
	equityA, equityB := equities[0], equities[1]

	// Ties canonicalize with A in the short-stack slot.
	result := Result{ShortStack: equityA, DeepStack: equityB}
	if stackA > stackB {
		result = Result{ShortStack: equityB, DeepStack: equityA}
	}
	c.results.Set(key, result)
	return equityA, equityB
}

// AllEquities returns the expected payout of every player in the field:
// A, B, then the other stacks in construction order. It bypasses the pair
// cache, recomputing each time.
func (c *Calculator) AllEquities(stackA, stackB int) []float64 {
	if len(c.payouts) == 0 {
		return make([]float64, c.NumPlayers())
	}
	return c.allEquities(c.assembleStacks(stackA, stackB))
}

func (c *Calculator) assembleStacks(stackA, stackB int) []float64 {
	allStacks := make([]float64, 0, c.NumPlayers())
	allStacks = append(allStacks, float64(stackA), float64(stackB))
	allStacks = append(allStacks, c.otherStacks...)
	return allStacks
}

func (c *Calculator) allEquities(allStacks []float64) []float64 {
	numPlayers := len(allStacks)
	if len(c.payouts) > MaxExactPayouts || numPlayers > MaxExactPlayers {
		log.Debug().Int("numPlayers", numPlayers).
			Int("numPayouts", len(c.payouts)).Msg("field too large; estimating")
		return c.estimator.Estimate(allStacks, c.payouts, c.iterations)
	}
	// Fresh memo per query; see solveExact for why it can't be shared.
	memo := make(map[memoKey][]float64)
	initialMask := ^uint64(0) >> (64 - numPlayers)
	return c.solveExact(allStacks, initialMask, 0, memo)
}
