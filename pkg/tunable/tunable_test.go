package tunable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectAndAdjust(t *testing.T) {
	var ts Tunables
	assert.Nil(t, ts.Current())
	ts.SelectNext()

	a := ts.Create("a", 10)
	b := ts.Create("b", 20)
	require.Same(t, a, ts.Current())

	ts.SelectNext()
	assert.Same(t, b, ts.Current())
	ts.SelectNext()
	assert.Same(t, a, ts.Current())
	ts.SelectPrev()
	assert.Same(t, b, ts.Current())

	ts.Current().Add(-5)
	assert.Equal(t, 15, b.Get())
	assert.Equal(t, 10, a.Get())
}
