package screen

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
)

const S = 128

// Status is what the robot shows on its little screen.
type Status struct {
	Phase    string
	Shots    uint64
	Hits     int
	Targets  int
	Disabled bool
	Pan      int
}

var (
	Lock sync.Mutex

	current = Status{Phase: "STARTING"}
)

func SetStatus(s Status) {
	Lock.Lock()
	current = s
	Lock.Unlock()
}

func CurrentStatus() Status {
	Lock.Lock()
	defer Lock.Unlock()
	return current
}

// LoopUpdatingScreen redraws the status page on the framebuffer at device
// until ctx is cancelled, then blanks it.
func LoopUpdatingScreen(ctx context.Context, device string) {
	log := botlog.For("screen")
	f, err := os.OpenFile(device, os.O_RDWR, 0666)
	if err != nil {
		log.Warn().Err(err).Str("device", device).Msg("Failed to open screen, ignoring")
		return
	}
	defer f.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var buf [S * S * 2]byte
			_, _ = f.Seek(0, 0)
			_, _ = f.Write(buf[:])
			return
		case <-ticker.C:
		}

		buf := ToRGB565(Render(CurrentStatus()))
		if _, err := f.Seek(0, 0); err != nil {
			log.Error().Err(err).Msg("Screen failure")
			return
		}
		for i := 0; i < S; i++ {
			if _, err := f.Write(buf[i*S*2 : (i+1)*S*2]); err != nil {
				log.Error().Err(err).Msg("Screen failure")
				return
			}
			time.Sleep(10 * time.Microsecond)
		}
	}
}

func Render(s Status) image.Image {
	dc := gg.NewContext(S, S)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	if s.Disabled {
		dc.Push()
		dc.Translate(S/2, 24)
		DrawWarning(dc)
		dc.Pop()
	}

	dc.SetRGBA(1, 0.9, 0, 1)
	dc.DrawString(s.Phase, 4, 50)
	dc.DrawString(fmt.Sprintf("SHOTS %d", s.Shots), 4, 70)
	dc.DrawString(fmt.Sprintf("HITS  %d", s.Hits), 4, 85)
	dc.DrawString(fmt.Sprintf("SEEN  %d", s.Targets), 4, 100)
	drawPanBar(dc, s.Pan)
	return dc.Image()
}

// drawPanBar draws a marker along the bottom edge showing where the camera
// is pointing, 0..1000 from left to right.
func drawPanBar(dc *gg.Context, pan int) {
	dc.DrawRectangle(4, 114, S-8, 2)
	dc.Fill()
	x := 4 + float64(pan)/1000*(S-8)
	dc.DrawRectangle(x-2, 108, 4, 14)
	dc.Fill()
}

func DrawWarning(dc *gg.Context) {
	dc.SetRGB(1, 0.2, 0)
	dc.DrawRegularPolygon(3, 0, 0, 14, 0)
	dc.Fill()
	dc.SetRGBA(0, 0, 0, 0.9)
	dc.DrawString("!", -3, 3)
}

// ToRGB565 converts img to the panel's byte layout. The panel is mounted
// rotated so rows of the image become columns of the buffer.
func ToRGB565(img image.Image) []byte {
	buf := make([]byte, S*S*2)
	for y := 0; y < S; y++ {
		for x := 0; x < S; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(S-1-y)*2+x*S*2+1] = (rb << 3) | (gb >> 3)
			buf[(S-1-y)*2+x*S*2] = bb | (gb << 5)
		}
	}
	return buf
}
