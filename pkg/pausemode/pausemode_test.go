package pausemode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ngotcode/pixybattle/pkg/motors"
)

type weapon struct{ holds int }

func (w *weapon) HoldFire() { w.holds++ }

func TestPauseStopsEverything(t *testing.T) {
	m := motors.NewQuietDummy()
	_ = m.SetSpeeds(200, 200)
	w := &weapon{}

	p := New(m, w)
	p.Start(context.Background())
	p.Stop()

	l, r := m.Speeds()
	assert.Zero(t, l)
	assert.Zero(t, r)
	assert.Equal(t, 1, w.holds)
	assert.Equal(t, "Pause mode", p.Name())
}
