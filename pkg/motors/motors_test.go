package motors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/periph/conn/gpio"
)

func TestDutyFor(t *testing.T) {
	assert.Equal(t, gpio.Duty(0), DutyFor(0))
	assert.Equal(t, gpio.DutyMax, DutyFor(480))
	assert.Equal(t, gpio.DutyMax, DutyFor(1000))
	assert.Equal(t, gpio.DutyHalf, DutyFor(240))
	assert.Equal(t, gpio.Duty(0), DutyFor(-5))
}

func TestDummyClamps(t *testing.T) {
	d := NewQuietDummy()
	var _ Interface = d
	assert.NoError(t, d.SetSpeeds(1000, -1000))
	l, r := d.Speeds()
	assert.Equal(t, 480, l)
	assert.Equal(t, -480, r)
	assert.NoError(t, d.Stop())
	l, r = d.Speeds()
	assert.Zero(t, l)
	assert.Zero(t, r)
	assert.Equal(t, 2, d.Calls)
}
