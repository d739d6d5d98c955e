package main

import (
	"flag"
	"fmt"
	"image/color"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Ngotcode/pixybattle/pkg/vision"
)

// Prints and plots how often a block with noisy position and size is still
// judged nearly equal to the original. The curve should pass above and to
// the right of the target sigma / target confidence cross.
func main() {
	targetSigma := flag.Float64("sigma", 0.01, "target noise, as a fraction of the block's side")
	confidence := flag.Float64("confidence", 0.95, "target proportion judged equal")
	threshold := flag.Float64("threshold", vision.DefaultThreshold, "near-equality threshold")
	replicates := flag.Int("replicates", 1000, "jittered copies per sigma")
	points := flag.Int("points", 101, "sigmas to evaluate")
	out := flag.String("out", "nearequality.png", "plot file; empty to skip")
	flag.Parse()

	block := vision.Block{Signature: 1, Width: 1, Height: 1}
	sigmas, accuracy := vision.PowerCurve(block, *targetSigma*2, *threshold, *points, *replicates, 1)
	for i := range sigmas {
		fmt.Printf("%.5f\t%.3f\n", sigmas[i], accuracy[i])
	}

	atTarget := vision.NearEqualityAccuracy(block, *targetSigma, *threshold, *replicates, 1)
	fmt.Printf("At sigma %.3f: %.3f correct (target %.3f)\n", *targetSigma, atTarget, *confidence)

	if *out != "" {
		if err := savePlot(*out, sigmas, accuracy, *targetSigma, *confidence); err != nil {
			fmt.Println("Failed to save plot:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *out)
	}
	if atTarget < *confidence {
		os.Exit(2)
	}
}

func savePlot(path string, sigmas, accuracy []float64, targetSigma, confidence float64) error {
	p := plot.New()
	p.Title.Text = "Near-equality power"
	p.X.Label.Text = "Standard deviation of location, size (sigma)"
	p.Y.Label.Text = "Proportion correct"
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(sigmas))
	for i := range sigmas {
		pts[i] = plotter.XY{X: sigmas[i], Y: accuracy[i]}
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	curve.Color = color.RGBA{B: 255, A: 255}
	curve.Width = vg.Points(1)
	p.Add(curve)
	p.Legend.Add("NearlyEquals performance", curve)

	maxSigma := sigmas[len(sigmas)-1]
	for _, l := range []struct {
		label string
		xys   plotter.XYs
		c     color.Color
	}{
		{fmt.Sprintf("Target sigma, %g%% of side length", targetSigma*100),
			plotter.XYs{{X: targetSigma, Y: 0}, {X: targetSigma, Y: 1}}, color.RGBA{R: 255, A: 255}},
		{fmt.Sprintf("Target confidence, %g%% correct", confidence*100),
			plotter.XYs{{X: 0, Y: confidence}, {X: maxSigma, Y: confidence}}, color.RGBA{G: 160, A: 255}},
	} {
		line, err := plotter.NewLine(l.xys)
		if err != nil {
			return err
		}
		line.Color = l.c
		p.Add(line)
		p.Legend.Add(l.label, line)
	}
	p.Legend.Top = false
	p.Legend.Left = true

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
