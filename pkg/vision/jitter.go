package vision

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Jitterer produces noisy copies of a block, for checking how well
// NearlyEquals tolerates sensor noise.
type Jitterer struct {
	noise distuv.Normal
}

// NewJitterer adds N(0, sigma) noise to each of x, y, width and height. The
// same seed always gives the same sequence.
func NewJitterer(sigma float64, seed uint64) *Jitterer {
	return &Jitterer{
		noise: distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewPCG(seed, seed)},
	}
}

func (j *Jitterer) Jitter(b Block) Block {
	b.X += j.noise.Rand()
	b.Y += j.noise.Rand()
	b.Width += j.noise.Rand()
	b.Height += j.noise.Rand()
	return b
}

func (j *Jitterer) JitterN(b Block, count int) []Block {
	out := make([]Block, count)
	for i := range out {
		out[i] = j.Jitter(b)
	}
	return out
}

// NearEqualityAccuracy returns the proportion of jittered copies of block that
// are still judged nearly equal to it.
func NearEqualityAccuracy(block Block, sigma, threshold float64, replicates int, seed uint64) float64 {
	if replicates <= 0 {
		return 0
	}
	j := NewJitterer(sigma, seed)
	hits := 0
	for _, jittered := range j.JitterN(block, replicates) {
		if block.NearlyEquals(jittered, threshold) {
			hits++
		}
	}
	return float64(hits) / float64(replicates)
}

// PowerCurve evaluates NearEqualityAccuracy at points evenly spaced sigmas
// from 0 to maxSigma inclusive.
func PowerCurve(block Block, maxSigma, threshold float64, points, replicates int, seed uint64) (sigmas, accuracy []float64) {
	if points < 2 {
		points = 2
	}
	sigmas = floats.Span(make([]float64, points), 0, maxSigma)
	accuracy = make([]float64, points)
	for i, sigma := range sigmas {
		accuracy[i] = NearEqualityAccuracy(block, sigma, threshold, replicates, seed)
	}
	return sigmas, accuracy
}
