// Package vision holds the geometry used to reconcile camera observations:
// blocks, near-equality between noisy blocks, and scenes that can be merged
// and diffed against one another.
package vision

import (
	"cmp"
	"fmt"
	"math"
)

// DefaultThreshold is the intersection proportion above which two blocks of
// the same signature are taken to be the same object.
const DefaultThreshold = 0.9

// Block is one detected object: an axis-aligned rectangle tagged with the
// signature the camera matched it against. X, Y is the minimum corner.
type Block struct {
	Signature int
	X, Y      float64
	Width     float64
	Height    float64
}

func (b Block) String() string {
	return fmt.Sprintf("Block{sig=%d x=%.2f y=%.2f w=%.2f h=%.2f}", b.Signature, b.X, b.Y, b.Width, b.Height)
}

func (b Block) XMax() float64 { return b.X + b.Width }
func (b Block) YMax() float64 { return b.Y + b.Height }

func (b Block) Area() float64 {
	return b.Width * b.Height
}

func (b Block) AspectRatio() float64 {
	return b.Width / b.Height
}

func (b Block) Diagonal() float64 {
	return math.Hypot(b.Width, b.Height)
}

// Centre returns the middle of the rectangle.
func (b Block) Centre() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// XOverlap is the length of the overlap between the two blocks' x ranges.
func (b Block) XOverlap(other Block) float64 {
	return math.Max(0, math.Min(b.XMax(), other.XMax())-math.Max(b.X, other.X))
}

// YOverlap is the length of the overlap between the two blocks' y ranges.
func (b Block) YOverlap(other Block) float64 {
	return math.Max(0, math.Min(b.YMax(), other.YMax())-math.Max(b.Y, other.Y))
}

// IntersectionArea is zero unless the blocks overlap on both axes.
func (b Block) IntersectionArea(other Block) float64 {
	return b.XOverlap(other) * b.YOverlap(other)
}

func (b Block) Intersects(other Block) bool {
	return b.IntersectionArea(other) > 0
}

// IntersectionPpn is the intersection area as a proportion of the larger of
// the two blocks' areas. It is not IoU: a small block entirely inside a much
// larger one scores low, two similar blocks score close to 1.
func (b Block) IntersectionPpn(other Block) float64 {
	larger := math.Max(b.Area(), other.Area())
	if larger <= 0 {
		return 0
	}
	return b.IntersectionArea(other) / larger
}

// NearlyEquals reports whether the two blocks are probably the same object.
// Blocks with different signatures are never nearly equal.
func (b Block) NearlyEquals(other Block, threshold float64) bool {
	return b.Signature == other.Signature && b.IntersectionPpn(other) >= threshold
}

// Compare orders blocks by position, then by the remaining fields so that the
// order is total.
func Compare(a, b Block) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Signature, b.Signature); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Width, b.Width); c != 0 {
		return c
	}
	return cmp.Compare(a.Height, b.Height)
}
