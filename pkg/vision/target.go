package vision

import "math"

// ChooseTarget picks the block with the best ratio of area to distance from
// the aim point (aimX, aimY). Big, well-centred blocks win. The first block
// wins ties; ok is false when blocks is empty.
func ChooseTarget(blocks []Block, aimX, aimY float64) (best Block, ok bool) {
	bestScore := math.Inf(-1)
	for _, b := range blocks {
		cx, cy := b.Centre()
		dist := math.Hypot(cx-aimX, cy-aimY)
		score := math.Inf(1)
		if dist > 0 {
			score = b.Area() / dist
		}
		if !ok || score > bestScore {
			best, bestScore, ok = b, score, true
		}
	}
	return best, ok
}
