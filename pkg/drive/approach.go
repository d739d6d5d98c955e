package drive

import "math"

// Approach holds the tuning used to close on a target block.
type Approach struct {
	// PixToDeg converts block width in pixels to visual angle.
	PixToDeg float64
	// RefSize is the real size of the reference target.
	RefSize float64
	// TargetDist is the distance to hold from the target.
	TargetDist float64
	// LogitK and LogitX0 shape the advance curve: far targets get full
	// advance, near ones fall off smoothly.
	LogitK, LogitX0 float64
	Throttle        float64
	// SteerScale and SteerOffset map the pan error onto DiffDrive.
	SteerScale, SteerOffset float64
}

func DefaultApproach() Approach {
	return Approach{
		PixToDeg:    0.117,
		RefSize:     100,
		TargetDist:  1,
		LogitK:      0.025,
		LogitX0:     400,
		Throttle:    0.5,
		SteerScale:  300,
		SteerOffset: 0.4,
	}
}

// ObjectDistance estimates range from the block's apparent width.
func (a Approach) ObjectDistance(width float64) float64 {
	half := math.Tan(width * a.PixToDeg * math.Pi / 180)
	if half <= 0 {
		return math.Inf(1)
	}
	return a.RefSize / (2 * half)
}

func logit(x, k, x0 float64) float64 {
	return 1 / (1 + math.Exp(-k*(x-x0)))
}

// Toward returns the drive command for a target of the given width whose
// centre is panError pixels from the image centre. Bias is left to the
// caller, it comes from where the camera is pointing.
func (a Approach) Toward(width, panError float64) Command {
	dist := a.ObjectDistance(width)
	return Command{
		Advance:   logit(dist-a.TargetDist, a.LogitK, a.LogitX0),
		DiffDrive: Clamp(math.Abs(panError/a.SteerScale+a.SteerOffset), 0, 1),
		Throttle:  a.Throttle,
	}
}

// Heading turns the camera's pan offset into a steering bias, P/D on the
// turn error.
type Heading struct {
	PGain, DGain float64
	Center       float64

	prevError float64
}

// Bias computes the steering for a camera panned turnError servo units from
// straight ahead; dt is the time since the last update in seconds.
func (h *Heading) Bias(turnError, dt float64) float64 {
	if dt <= 0 {
		dt = 1e-5
	}
	magnitude := math.Abs(turnError)
	ud := h.DGain * (magnitude - h.prevError) / dt
	h.prevError = magnitude
	sign := 0.0
	switch {
	case turnError > 0:
		sign = 1
	case turnError < 0:
		sign = -1
	}
	return Clamp(sign*(magnitude+ud)/h.Center*h.PGain, -1, 1)
}
