package analyzer

// Features describes spectral energy distribution in the 0..1 range.
type Features struct {
	Bass    float64
	Mid     float64
	Treble  float64
	Overall float64
}

// FeaturesFromBins derives band energies from byte frequency bins produced
// at sampleRate with the given transform size.
func FeaturesFromBins(bins []byte, sampleRate float64, fftSize int) Features {
	if len(bins) == 0 || sampleRate <= 0 || fftSize <= 0 {
		return Features{}
	}
	resolution := sampleRate / float64(fftSize)
	f := Features{
		Bass:   bandEnergy(bins, resolution, 20, 250),
		Mid:    bandEnergy(bins, resolution, 250, 2000),
		Treble: bandEnergy(bins, resolution, 2000, 8000),
	}
	f.Overall = (f.Bass + f.Mid + f.Treble) / 3.0
	return f
}

// Loudness is the scalar reactivity metric: the mean of the lower half of
// the bins scaled by sensitivity/50. With the default sensitivity of 50 the
// result stays in 0..255.
func Loudness(bins []byte, sensitivity float64) float64 {
	half := len(bins) / 2
	if half == 0 {
		return 0
	}
	sum := 0
	for _, v := range bins[:half] {
		sum += int(v)
	}
	avg := float64(sum) / float64(half)
	return avg * (sensitivity / 50)
}

// Silent reports whether the mean over count evenly spaced bins stays under
// threshold.
func Silent(bins []byte, count int, threshold float64) bool {
	if len(bins) == 0 || count <= 0 {
		return true
	}
	step := len(bins) / count
	if step < 1 {
		step = 1
	}
	values := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		idx := i * step
		if idx >= len(bins) {
			values = append(values, 0)
			continue
		}
		values = append(values, float64(bins[idx]))
	}
	return average(values) < threshold
}

func bandEnergy(bins []byte, resolution float64, minHz, maxHz float64) float64 {
	if minHz >= maxHz || resolution <= 0 {
		return 0
	}
	lo := int(minHz / resolution)
	hi := int(maxHz/resolution) + 1
	if hi > len(bins) {
		hi = len(bins)
	}
	if lo >= hi {
		return 0
	}
	sum := 0.0
	for _, v := range bins[lo:hi] {
		sum += float64(v)
	}
	return clamp(sum/float64(hi-lo)/255.0, 0, 1)
}
