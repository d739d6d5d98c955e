// Package tunable holds integer settings that can be nudged from the remote
// while the robot runs.
package tunable

import (
	"sync"
	"sync/atomic"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
)

type Tunable struct {
	Name  string
	value atomic.Int64
}

func (t *Tunable) Add(delta int) {
	v := t.value.Add(int64(delta))
	l := botlog.For("tunable")
	l.Info().Str("name", t.Name).Int64("value", v).Msg("Tunable changed")
}

func (t *Tunable) Get() int {
	return int(t.value.Load())
}

// Tunables is a list of tunables with one selected.
type Tunables struct {
	lock     sync.Mutex
	all      []*Tunable
	selected int
}

func (t *Tunables) Create(name string, value int) *Tunable {
	n := &Tunable{Name: name}
	n.value.Store(int64(value))
	t.lock.Lock()
	t.all = append(t.all, n)
	t.lock.Unlock()
	return n
}

func (t *Tunables) SelectNext() {
	t.move(1)
}

func (t *Tunables) SelectPrev() {
	t.move(-1)
}

func (t *Tunables) move(delta int) {
	t.lock.Lock()
	if len(t.all) == 0 {
		t.lock.Unlock()
		return
	}
	t.selected = (t.selected + delta + len(t.all)) % len(t.all)
	cur := t.all[t.selected]
	t.lock.Unlock()
	l := botlog.For("tunable")
	l.Info().Str("name", cur.Name).Int("value", cur.Get()).Msg("Tunable selected")
}

// Current returns the selected tunable, or nil if there are none.
func (t *Tunables) Current() *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.all) == 0 {
		return nil
	}
	return t.all[t.selected]
}
