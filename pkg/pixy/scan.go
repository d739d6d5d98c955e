package pixy

import (
	"context"
	"time"

	"github.com/Ngotcode/pixybattle/pkg/servoloop"
	"github.com/Ngotcode/pixybattle/pkg/vision"
)

// Scan looks for anything at all. It takes a frame at the current pan
// position; if that is empty it pans to the nearer end of the servo's
// travel, then the far end, and finally back to the centre. It returns the
// first non-empty frame and where the camera was pointing, or an empty frame
// and the centre position if nothing was seen. settle is how long the servo
// gets to move before a frame counts.
func Scan(ctx context.Context, cam Interface, pan int, settle time.Duration) (Frame, int, error) {
	f, err := cam.WaitForFrameAfter(ctx, time.Now())
	if err != nil || len(f.Blocks) > 0 {
		return f, pan, err
	}

	near, far := servoloop.MinPos, servoloop.MaxPos
	if pan >= servoloop.CenterPos {
		near, far = far, near
	}
	for _, pos := range []int{near, far} {
		f, err = lookAt(ctx, cam, pos, settle)
		if err != nil || len(f.Blocks) > 0 {
			return f, pos, err
		}
	}

	if err := cam.SetPan(servoloop.CenterPos); err != nil {
		return Frame{}, pan, err
	}
	return f, servoloop.CenterPos, nil
}

func lookAt(ctx context.Context, cam Interface, pos int, settle time.Duration) (Frame, error) {
	if err := cam.SetPan(pos); err != nil {
		return Frame{}, err
	}
	return cam.WaitForFrameAfter(ctx, time.Now().Add(settle))
}

// Snapshot merges n consecutive frames into one scene, so that a block the
// camera misses in one frame still appears and jittery duplicates collapse.
func Snapshot(ctx context.Context, cam Interface, n int, threshold float64) (vision.Scene, error) {
	var scene vision.Scene
	t := time.Now()
	for i := 0; i < n; i++ {
		f, err := cam.WaitForFrameAfter(ctx, t)
		if err != nil {
			return scene, err
		}
		t = f.CaptureTime
		scene = scene.MergeWith(f.Scene(), threshold)
	}
	return scene, nil
}
