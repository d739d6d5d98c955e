package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	targetSigma      = 0.01
	targetConfidence = 0.95
	replicates       = 1000
)

func TestNearEqualityPower(t *testing.T) {
	block := Block{Signature: 1, X: 0, Y: 0, Width: 1, Height: 1}
	result := NearEqualityAccuracy(block, targetSigma, DefaultThreshold, replicates, 1)
	assert.Greater(t, result, targetConfidence)
}

func TestNearEqualityAccuracyFallsWithNoise(t *testing.T) {
	block := Block{Signature: 1, X: 0, Y: 0, Width: 1, Height: 1}
	assert.Equal(t, 1.0, NearEqualityAccuracy(block, 0, DefaultThreshold, 100, 1))
	assert.Less(t, NearEqualityAccuracy(block, 0.5, DefaultThreshold, replicates, 1), 0.5)
	assert.Zero(t, NearEqualityAccuracy(block, 0.01, DefaultThreshold, 0, 1))
}

func TestPowerCurve(t *testing.T) {
	block := Block{Signature: 1, Width: 1, Height: 1}
	sigmas, acc := PowerCurve(block, 0.2, DefaultThreshold, 5, 200, 1)
	assert.InDeltaSlice(t, []float64{0, 0.05, 0.1, 0.15, 0.2}, sigmas, 1e-12)
	assert.Len(t, acc, 5)
	assert.Equal(t, 1.0, acc[0])
	assert.Greater(t, acc[0], acc[4])

	sigmas, _ = PowerCurve(block, 1, DefaultThreshold, 0, 1, 1)
	assert.InDeltaSlice(t, []float64{0, 1}, sigmas, 1e-12)
}

func TestJitterIsSeeded(t *testing.T) {
	block := unit(10, 10)
	a := NewJitterer(0.1, 7).JitterN(block, 5)
	b := NewJitterer(0.1, 7).JitterN(block, 5)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, a[0].Signature)
	assert.NotEqual(t, block, a[0])
}

func TestChooseTarget(t *testing.T) {
	near := Block{Signature: 1, X: 150, Y: 90, Width: 20, Height: 20}
	farBig := Block{Signature: 1, X: 0, Y: 0, Width: 30, Height: 30}
	got, ok := ChooseTarget([]Block{farBig, near}, 160, 100)
	assert.True(t, ok)
	assert.Equal(t, near, got)

	_, ok = ChooseTarget(nil, 160, 100)
	assert.False(t, ok)
}
