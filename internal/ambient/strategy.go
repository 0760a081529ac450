package ambient

import (
	"fmt"
	"image"

	"github.com/EdlinOrg/prominentcolor"
)

// Strategy picks the dominant color of a region. ok is false when no pixel
// carried enough color, in which case callers fall back to Neutral.
type Strategy interface {
	Name() string
	Dominant(img *image.RGBA) (c RGB, ok bool, err error)
}

// Weighted averages every stride-th pixel weighted by its color score.
type Weighted struct {
	Stride   int
	MinScore float64
}

func (Weighted) Name() string { return "weighted" }

func (w Weighted) Dominant(img *image.RGBA) (RGB, bool, error) {
	stride := w.Stride
	if stride < 1 {
		stride = 1
	}
	b := img.Bounds()
	n := b.Dx() * b.Dy()

	var sumR, sumG, sumB, total float64
	for i := 0; i < n; i += stride {
		x := b.Min.X + i%b.Dx()
		y := b.Min.Y + i/b.Dx()
		off := img.PixOffset(x, y)
		r := float64(img.Pix[off])
		g := float64(img.Pix[off+1])
		bl := float64(img.Pix[off+2])

		s := score(r, g, bl)
		if s < w.MinScore {
			continue
		}
		sumR += r * s
		sumG += g * s
		sumB += bl * s
		total += s
	}
	if total == 0 {
		return Neutral, false, nil
	}
	return RGB{R: sumR / total, G: sumG / total, B: sumB / total}, true, nil
}

// Prominent clusters the region with k-means and keeps the cluster with the
// best color score weighted by its population.
type Prominent struct {
	K        int
	MinScore float64
}

func (Prominent) Name() string { return "prominent" }

func (p Prominent) Dominant(img *image.RGBA) (RGB, bool, error) {
	k := p.K
	if k <= 0 {
		k = 4
	}
	items, err := prominentcolor.KmeansWithAll(k, img, prominentcolor.ArgumentNoCropping, prominentcolor.DefaultSize, nil)
	if err != nil {
		return Neutral, false, fmt.Errorf("kmeans: %w", err)
	}

	best := -1.0
	var pick RGB
	for _, item := range items {
		c := RGB{R: float64(item.Color.R), G: float64(item.Color.G), B: float64(item.Color.B)}
		s := score(c.R, c.G, c.B)
		if s < p.MinScore {
			continue
		}
		if weighted := s * float64(item.Cnt); weighted > best {
			best = weighted
			pick = c
		}
	}
	if best <= 0 {
		return Neutral, false, nil
	}
	return pick, true, nil
}

// StrategyFor maps a configured strategy name onto an implementation.
func StrategyFor(name string, stride int, minScore float64) Strategy {
	if name == "prominent" {
		return Prominent{MinScore: minScore}
	}
	return Weighted{Stride: stride, MinScore: minScore}
}
