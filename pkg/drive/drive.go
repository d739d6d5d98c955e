// Package drive turns steering decisions into left and right motor speeds
// for the two-wheeled chassis.
package drive

import (
	"math"

	"golang.org/x/exp/constraints"
)

const MaxMotorSpeed = 480

// Mixer mixes forward drive and steering into wheel speeds.
type Mixer struct {
	// MaxSpeed is the largest magnitude the motor driver accepts.
	MaxSpeed int
	// DeadbandPpn is the fraction of MaxSpeed below which a wheel is stopped.
	DeadbandPpn float64
	// TotalDrivePpn is the fraction of MaxSpeed available to the mixer.
	TotalDrivePpn float64
}

func NewMixer() Mixer {
	return Mixer{MaxSpeed: MaxMotorSpeed, DeadbandPpn: 0.05, TotalDrivePpn: 1}
}

// Command is one set of mixer inputs.
type Command struct {
	// Advance is forward (positive) or backward drive, -1..1.
	Advance float64
	// Bias is steering, -1..1; positive turns right.
	Bias float64
	// DiffDrive is the share of the drive given to steering, 0..1.
	DiffDrive float64
	// Throttle is the share of the total drive in use, 0..1.
	Throttle float64
}

// Stop is the command that leaves both wheels still.
var Stop = Command{DiffDrive: 1}

func (m Mixer) Mix(c Command) (left, right int) {
	total := m.TotalDrivePpn * float64(m.MaxSpeed)
	syn := c.Advance * (1 - c.DiffDrive) * c.Throttle * total
	diff := c.Bias * c.DiffDrive * c.Throttle * total
	return m.constrain(syn + diff), m.constrain(syn - diff)
}

// constrain stops the wheel inside the deadband and caps it at MaxSpeed.
func (m Mixer) constrain(speed float64) int {
	deadband := m.DeadbandPpn * float64(m.MaxSpeed)
	if math.Abs(speed) <= deadband {
		return 0
	}
	return Clamp(int(speed), -m.MaxSpeed, m.MaxSpeed)
}

func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
