package servoloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstUpdateOnlyRecordsError(t *testing.T) {
	l := New(300, 500)
	assert.Equal(t, CenterPos, l.Update(100))
	assert.Equal(t, CenterPos, l.Pos())
}

func TestUpdate(t *testing.T) {
	l := New(300, 500)
	l.Update(100)
	// (100*300 + 0*500) >> 10 = 29
	assert.Equal(t, CenterPos+29, l.Update(100))
	// (50*300 + -50*500) >> 10 = -10000>>10 = -10
	assert.Equal(t, CenterPos+19, l.Update(50))
	assert.Equal(t, -19, l.TurnError())
}

func TestClamps(t *testing.T) {
	l := New(1024, 0)
	l.Update(0)
	assert.Equal(t, MaxPos, l.Update(10000))
	assert.Equal(t, MinPos, l.Update(-10000))
}

func TestSetForgetsPreviousError(t *testing.T) {
	l := New(1024, 1024)
	l.Update(10)
	l.Set(200)
	assert.Equal(t, 200, l.Update(500))
	l.Set(5000)
	assert.Equal(t, MaxPos, l.Pos())
}
