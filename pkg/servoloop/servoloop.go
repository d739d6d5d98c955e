// Package servoloop is the P/D loop that keeps the camera's pan servo
// pointed at a target.
package servoloop

import "github.com/Ngotcode/pixybattle/pkg/drive"

const (
	MinPos    = 0
	MaxPos    = 1000
	CenterPos = (MaxPos - MinPos) / 2
)

// Loop works in the servo's integer units. Gains are scaled by 1/1024.
type Loop struct {
	PGain, DGain int

	pos       int
	prevError int
	havePrev  bool
}

func New(pGain, dGain int) *Loop {
	return &Loop{PGain: pGain, DGain: dGain, pos: CenterPos}
}

// Update feeds in the latest error (target offset from the image centre, in
// pixels) and returns the new servo position. The first update after a reset
// only records the error.
func (l *Loop) Update(err int) int {
	if l.havePrev {
		vel := (err*l.PGain + (err-l.prevError)*l.DGain) >> 10
		l.pos = Clamp(l.pos + vel)
	}
	l.prevError = err
	l.havePrev = true
	return l.pos
}

func (l *Loop) Pos() int {
	return l.pos
}

// Set moves the loop to pos, for example after a scan has panned the camera,
// and forgets the previous error.
func (l *Loop) Set(pos int) {
	l.pos = Clamp(pos)
	l.havePrev = false
}

// TurnError is how far the camera is panned from straight ahead; positive
// means panned to the right.
func (l *Loop) TurnError() int {
	return CenterPos - l.pos
}

// Clamp limits pos to the servo's range.
func Clamp(pos int) int {
	return drive.Clamp(pos, MinPos, MaxPos)
}
