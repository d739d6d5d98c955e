// Package pixy reads colour-blob detections from a Pixy (CMUcam5) camera and
// drives its pan servo.
package pixy

import (
	"context"
	"errors"
	"time"

	"github.com/Ngotcode/pixybattle/pkg/vision"
)

// Camera image geometry, in pixels.
const (
	MinX    = 0
	MaxX    = 319
	MinY    = 0
	MaxY    = 199
	XCenter = (MaxX - MinX) / 2
	YCenter = (MaxY - MinY) / 2

	// BlockBufferSize is the most blocks kept from one frame.
	BlockBufferSize = 10
)

var ErrClosed = errors.New("camera closed")

type Interface interface {
	// WaitForFrameAfter blocks until a frame captured after t is available.
	WaitForFrameAfter(ctx context.Context, t time.Time) (Frame, error)
	// SetPan moves the pan servo, 0..1000.
	SetPan(pos int) error
	Close() error
}

// Frame is the set of blocks the camera reported for one image.
type Frame struct {
	CaptureTime time.Time
	Blocks      []vision.Block
}

func (f Frame) Scene() vision.Scene {
	return vision.NewScene(f.Blocks...)
}

// fromCentre converts the camera's centre-based report into a Block.
func fromCentre(sig, x, y, w, h uint16) vision.Block {
	return vision.Block{
		Signature: int(sig),
		X:         float64(x) - float64(w)/2,
		Y:         float64(y) - float64(h)/2,
		Width:     float64(w),
		Height:    float64(h),
	}
}
