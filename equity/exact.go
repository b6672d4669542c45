package equity

import "math/bits"

// memoKey identifies a subproblem: the set of players still eligible for a
// payout position, and the position being assigned.
type memoKey struct {
	mask      uint64
	payoutIdx int
}

// solveExact computes the expected payout of every player in playerMask,
// assuming payout positions payoutIdx and beyond remain to be assigned. The
// returned vector covers the active players in ascending index order.
//
// The memo is scoped to a single top-level Calculate call: its vectors are
// keyed to the current full stack vector, so it must never outlive the
// query. Returned slices are shared with the memo; callers must not write
// to them.
func (c *Calculator) solveExact(allStacks []float64, playerMask uint64,
	payoutIdx int, memo map[memoKey][]float64) []float64 {
	if cached, ok := memo[memoKey{playerMask, payoutIdx}]; ok {
		return cached
	}

	numActive := bits.OnesCount64(playerMask)
	totalEquities := make([]float64, numActive)
	if payoutIdx >= len(c.payouts) || numActive == 0 {
		return totalEquities
	}

	activeIndices := make([]int, 0, numActive)
	activeSum := 0.0
	for i, stack := range allStacks {
		if playerMask>>uint(i)&1 == 1 {
			activeIndices = append(activeIndices, i)
			activeSum += stack
		}
	}
	// A subset with no chips left wins nothing, and must not distort the
	// probabilities of anyone outside it.
	if activeSum == 0 {
		return totalEquities
	}

	for i, winnerIdx := range activeIndices {
		probWin := allStacks[winnerIdx] / activeSum
		totalEquities[i] += probWin * c.payouts[payoutIdx]

		nextMask := playerMask &^ (1 << uint(winnerIdx))
		if nextMask != 0 && payoutIdx+1 < len(c.payouts) {
			subEquities := c.solveExact(allStacks, nextMask, payoutIdx+1, memo)
			// subEquities covers the remaining players in ascending index
			// order. Distribute it onto everyone but this round's winner,
			// weighted by the chance this branch occurs.
			subIdx := 0
			for j := 0; j < numActive; j++ {
				if j == i {
					continue
				}
				totalEquities[j] += probWin * subEquities[subIdx]
				subIdx++
			}
		}
	}

	memo[memoKey{playerMask, payoutIdx}] = totalEquities
	return totalEquities
}
