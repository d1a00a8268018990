package ui

import (
	"math"
)

const (
	revealStep = 0.08
	glowDecay  = 0.85
)

// AnimState drives the highlight on the active lyric line: characters are
// revealed left to right and a glow fades out after each line change.
type AnimState struct {
	Reveal  float64
	Glow    float64
	Shimmer float64
}

func (a *AnimState) Reset() {
	a.Reveal = 1
	a.Glow = 0
	a.Shimmer = 0
}

func (a *AnimState) Update(tickCount int, newLine bool) {
	if newLine {
		a.Reveal = 0
		a.Glow = 1
	}

	if a.Reveal < 1 {
		a.Reveal = math.Min(1, a.Reveal+revealStep)
	}

	if a.Glow > 0 {
		a.Glow *= glowDecay
		if a.Glow < 0.01 {
			a.Glow = 0
		}
	}

	a.Shimmer = float64(tickCount) * 0.05
}

// Revealed is how many of n characters are visible.
func (a AnimState) Revealed(n int) int {
	return int(math.Ceil(easeOutCubic(a.Reveal) * float64(n)))
}

func easeOutCubic(t float64) float64 {
	if t >= 1 {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return 1 - math.Pow(1-t, 3)
}
