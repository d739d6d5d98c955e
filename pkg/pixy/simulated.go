package pixy

import (
	"context"
	"sync"
	"time"

	"github.com/Ngotcode/pixybattle/pkg/servoloop"
	"github.com/Ngotcode/pixybattle/pkg/vision"
)

// Simulated is a camera driven by a function of the pan position. Used for
// tests and for running the controller without a camera attached.
type Simulated struct {
	// View returns the blocks visible with the camera panned to pan.
	View func(pan int) []vision.Block
	// FramePeriod is the time between frames; the Pixy runs at 50Hz.
	FramePeriod time.Duration

	lock   sync.Mutex
	pan    int
	pans   []int
	closed bool
}

func NewSimulated(view func(pan int) []vision.Block) *Simulated {
	return &Simulated{View: view, pan: servoloop.CenterPos}
}

// Empty returns a simulated camera that never sees anything.
func Empty() *Simulated {
	return NewSimulated(func(int) []vision.Block { return nil })
}

func (s *Simulated) WaitForFrameAfter(ctx context.Context, t time.Time) (Frame, error) {
	wait := s.FramePeriod
	if d := time.Until(t); d >= wait {
		wait = d + time.Microsecond
	}
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return Frame{}, ErrClosed
	}
	now := time.Now()
	if !now.After(t) {
		now = t.Add(time.Nanosecond)
	}
	blocks := s.View(s.pan)
	if len(blocks) > BlockBufferSize {
		blocks = blocks[:BlockBufferSize]
	}
	return Frame{CaptureTime: now, Blocks: blocks}, nil
}

func (s *Simulated) SetPan(pos int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pan = servoloop.Clamp(pos)
	s.pans = append(s.pans, s.pan)
	return nil
}

func (s *Simulated) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}

func (s *Simulated) Pan() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pan
}

// Pans returns every pan position requested so far.
func (s *Simulated) Pans() []int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]int(nil), s.pans...)
}
