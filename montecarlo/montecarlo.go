// Package montecarlo approximates tournament payout equities by simulating
// finishing orders. Each player draws a uniform value raised to a
// stack-dependent exponent; ranking the draws reproduces the same
// stack-proportional elimination model the exact solver enumerates, at a cost
// independent of player and payout count.
package montecarlo

import (
	"io"
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
	"lukechampine.com/frand"

	"github.com/pairofjacks/icm/stats"
)

// WorkerLog summarizes one worker's share of a simulation. It is only
// serialized to the optional log stream, for debug purposes.
type WorkerLog struct {
	Worker     int       `json:"worker" yaml:"worker"`
	Iterations int       `json:"iterations" yaml:"iterations"`
	Means      []float64 `json:"means" yaml:"means,flow"`
}

// Estimator runs the simulation across a fixed pool of workers. Each worker
// owns an independent random source and accumulates its own means; worker
// results combine with equal weights since every worker runs the same number
// of iterations.
type Estimator struct {
	threads   int
	logStream io.Writer

	iterationCount atomic.Uint64
}

func NewEstimator() *Estimator {
	return &Estimator{threads: max(1, runtime.NumCPU())}
}

func (e *Estimator) SetThreads(threads int) {
	e.threads = max(1, threads)
}

func (e *Estimator) Threads() int {
	return e.threads
}

// SetLogStream directs per-worker summaries to l. Not goroutine-safe;
// set it before calling Estimate.
func (e *Estimator) SetLogStream(l io.Writer) {
	e.logStream = l
}

// Iterations returns the total number of simulated finishing orders drawn
// over the estimator's lifetime.
func (e *Estimator) Iterations() int {
	return int(e.iterationCount.Load())
}

type drawValue struct {
	player int
	value  float64
}

// Estimate returns the expected payout for every player, in the same order
// as stacks. iterations scales with the player count: the total number of
// finishing orders drawn is iterations * len(stacks), split evenly across
// the worker pool. It is a blocking call with no internal timeout.
func (e *Estimator) Estimate(stacks []float64, payouts []float64, iterations int) []float64 {
	numPlayers := len(stacks)
	if numPlayers == 0 || len(payouts) == 0 {
		return make([]float64, numPlayers)
	}
	totalChips := floats.Sum(stacks)
	if totalChips == 0 {
		// Nobody can place; see simWorker for the zero-stack policy.
		return make([]float64, numPlayers)
	}
	avgChips := totalChips / float64(numPlayers)
	// Below-average stacks get a larger exponent, biasing their draws
	// toward zero. A zero stack would need an infinite exponent; those
	// players keep a zero exponent here and are pinned to a zero draw in
	// simWorker so that no non-finite value enters the computation.
	exponents := make([]float64, numPlayers)
	for i, stack := range stacks {
		if stack > 0 {
			exponents[i] = avgChips / stack
		}
	}

	threads := e.threads
	totalIters := iterations * numPlayers
	itersPerThread := totalIters/threads + 1

	tstart := time.Now()
	log.Debug().Int("threads", threads).Int("itersPerThread", itersPerThread).
		Int("numPlayers", numPlayers).Int("numPayouts", len(payouts)).
		Msg("starting-estimate")

	var logChan chan []byte
	var done chan bool
	writer := errgroup.Group{}
	if e.logStream != nil {
		logChan = make(chan []byte)
		done = make(chan bool)
		writer.Go(func() error {
			for {
				select {
				case bytes := <-logChan:
					e.logStream.Write(bytes)
				case <-done:
					return nil
				}
			}
		})
	}

	results := make([][]float64, threads)
	g := errgroup.Group{}
	for t := 0; t < threads; t++ {
		t := t
		g.Go(func() error {
			results[t] = e.simWorker(t, stacks, exponents, payouts, itersPerThread, logChan)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Err(err).Msg("estimate-errgroup-error")
	}
	if e.logStream != nil {
		close(done)
		writer.Wait()
	}
	e.iterationCount.Add(uint64(threads * itersPerThread))

	// Every worker ran itersPerThread iterations, so the combination is a
	// plain equal-weight average of the per-worker means.
	equities := make([]float64, numPlayers)
	maxStdErr := 0.0
	for i := 0; i < numPlayers; i++ {
		var st stats.Statistic
		for t := range results {
			st.Push(results[t][i])
		}
		equities[i] = st.Mean()
		maxStdErr = math.Max(maxStdErr, st.StandardError())
	}

	elapsed := time.Since(tstart)
	ips := float64(threads*itersPerThread) / elapsed.Seconds()
	log.Debug().Float64("secs", elapsed.Seconds()).Float64("itersPerSec", ips).
		Float64("ci99", stats.Z99*maxStdErr).Msg("estimate-done")
	return equities
}

func (e *Estimator) simWorker(thread int, stacks, exponents, payouts []float64,
	iters int, logChan chan []byte) []float64 {
	rng := frand.New()
	numPlayers := len(stacks)
	numPayouts := len(payouts)
	paidPlaces := min(numPayouts, numPlayers)
	values := make([]drawValue, numPlayers)
	equities := make([]float64, numPlayers)

	for it := 0; it < iters; it++ {
		for i := range values {
			values[i].player = i
			if stacks[i] == 0 {
				// Busted stacks never place; a zero draw keeps them
				// behind every live player.
				values[i].value = 0
				continue
			}
			values[i].value = math.Pow(rng.Float64(), exponents[i])
		}

		// Only the paid places matter, so when there are fewer payouts
		// than players, select the top finishers first and sort just
		// that prefix.
		if numPayouts < numPlayers {
			selectTop(values, numPayouts)
			sortByValueDesc(values[:numPayouts])
		} else {
			sortByValueDesc(values)
		}

		for place := 0; place < paidPlaces; place++ {
			if stacks[values[place].player] == 0 {
				// Payouts deep enough to reach busted stacks are never
				// distributed, matching the exact solver's dead-mass rule.
				continue
			}
			equities[values[place].player] += payouts[place]
		}
	}
	for i := range equities {
		equities[i] /= float64(iters)
	}

	if logChan != nil {
		out, err := yaml.Marshal([]WorkerLog{{Worker: thread, Iterations: iters, Means: equities}})
		if err != nil {
			log.Err(err).Msg("marshalling worker log")
		} else {
			logChan <- out
		}
	}
	return equities
}

func sortByValueDesc(vals []drawValue) {
	sort.Slice(vals, func(i, j int) bool {
		return vals[i].value > vals[j].value
	})
}

// selectTop partially partitions vals so that the k largest values occupy
// vals[:k], in no particular order (iterative quickselect).
func selectTop(vals []drawValue, k int) {
	left, right := 0, len(vals)-1
	for left < right {
		p := partitionDesc(vals, left, right)
		switch {
		case p == k:
			return
		case p < k:
			left = p + 1
		default:
			right = p - 1
		}
	}
}

func partitionDesc(vals []drawValue, left, right int) int {
	pivot := vals[right].value
	i := left
	for j := left; j < right; j++ {
		if vals[j].value > pivot {
			vals[i], vals[j] = vals[j], vals[i]
			i++
		}
	}
	vals[i], vals[right] = vals[right], vals[i]
	return i
}
