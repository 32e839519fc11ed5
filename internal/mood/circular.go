package mood

import "math"

// Sample is one raw HSL mood triple. It appears verbatim in stored
// documents and API payloads, hence the wire tags.
type Sample struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Lightness  float64 `json:"lightness"`
}

// CircularMean averages samples with a circular mean over hue and an
// arithmetic mean over saturation and lightness. Hue components are
// projected onto the unit circle and recombined with atan2, so values that
// straddle the 0/360 boundary average correctly. An empty input returns the
// catalog default triple.
func CircularMean(samples []Sample) Sample {
	if len(samples) == 0 {
		return Default().Sample()
	}

	var sumSin, sumCos, sumSat, sumLight float64
	for _, s := range samples {
		rad := s.Hue * math.Pi / 180
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
		sumSat += s.Saturation
		sumLight += s.Lightness
	}

	n := float64(len(samples))
	meanRad := math.Atan2(sumSin/n, sumCos/n)
	return Sample{
		Hue:        normalizeHue(meanRad * 180 / math.Pi),
		Saturation: sumSat / n,
		Lightness:  sumLight / n,
	}
}

// normalizeHue maps a degree value into [0,360).
func normalizeHue(deg float64) float64 {
	return math.Mod(math.Mod(deg, 360)+360, 360)
}
