package stats

import (
	"testing"

	"github.com/matryer/is"
)

func TestRunningStat(t *testing.T) {
	is := is.New(t)
	type tc struct {
		samples []int
		mean    float64
		stdev   float64
	}
	cases := []tc{
		{[]int{10, 12, 23, 23, 16, 23, 21, 16}, 18, 5.2372293656638},
		{[]int{14, 35, 71, 124, 10, 24, 55, 33, 87, 19}, 47.2, 36.937785531891},
		{[]int{1}, 1, 0},
		{[]int{}, 0, 0},
		{[]int{1, 1}, 1, 0},
	}
	for _, c := range cases {
		s := &Statistic{}
		for _, sample := range c.samples {
			s.Push(float64(sample))
		}
		is.True(FuzzyEqual(s.Mean(), c.mean))
		is.True(FuzzyEqual(s.Stdev(), c.stdev))
	}
}

func TestMinMax(t *testing.T) {
	is := is.New(t)
	s := &Statistic{}
	for _, v := range []float64{3, -1, 7, 2} {
		s.Push(v)
	}
	is.Equal(s.Min(), -1.0)
	is.Equal(s.Max(), 7.0)
	is.Equal(s.Last(), 2.0)
	is.Equal(s.Iterations(), 4)
}

func TestZVal(t *testing.T) {
	is := is.New(t)
	// Two-tailed 95% z-value.
	is.True(FuzzyEqual(ZVal(95), 1.959964))
}
