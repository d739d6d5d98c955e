// Package scenelog draws scenes the camera saw to PNG files so a battle can
// be reviewed frame by frame.
package scenelog

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"github.com/Ngotcode/pixybattle/pkg/pixy"
	"github.com/Ngotcode/pixybattle/pkg/vision"
)

// Signature colours; anything else is drawn grey.
var palette = map[int][3]float64{
	1: {1, 0.1, 0.1},
	2: {0.1, 1, 0.1},
	3: {0.2, 0.4, 1},
	4: {1, 0.9, 0},
}

func Render(scene vision.Scene) image.Image {
	w, h := pixy.MaxX-pixy.MinX+1, pixy.MaxY-pixy.MinY+1
	dc := gg.NewContext(w, h)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	// Cross hairs at the aim point.
	dc.SetRGBA(1, 1, 1, 0.3)
	dc.DrawLine(pixy.XCenter, 0, pixy.XCenter, float64(h))
	dc.DrawLine(0, pixy.YCenter, float64(w), pixy.YCenter)
	dc.Stroke()

	for _, b := range scene.Blocks() {
		c, ok := palette[b.Signature]
		if !ok {
			c = [3]float64{0.6, 0.6, 0.6}
		}
		dc.SetRGB(c[0], c[1], c[2])
		dc.DrawRectangle(b.X, b.Y, b.Width, b.Height)
		dc.Stroke()
		dc.DrawString(fmt.Sprint(b.Signature), b.X+2, b.Y+12)
	}
	return dc.Image()
}

// Saver writes rendered scenes under Dir. A Saver with an empty Dir does
// nothing.
type Saver struct {
	Dir string
}

func (s Saver) Save(name string, scene vision.Scene) error {
	if s.Dir == "" {
		return nil
	}
	return SaveScene(s.Dir, name, scene)
}

func SaveScene(dir, name string, scene vision.Scene) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create scene dir: %w", err)
	}
	dc := gg.NewContextForImage(Render(scene))
	path := filepath.Join(dir, name+".png")
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save scene %s: %w", name, err)
	}
	return nil
}
