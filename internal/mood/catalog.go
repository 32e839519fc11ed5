package mood

import "math"

// ReferenceMood is one named entry in the fixed mood catalog.
type ReferenceMood struct {
	Hue        float64
	Saturation float64
	Lightness  float64
	Name       string
	Adjective  string
}

// Sample returns the catalog entry's raw HSL triple.
func (m ReferenceMood) Sample() Sample {
	return Sample{Hue: m.Hue, Saturation: m.Saturation, Lightness: m.Lightness}
}

// catalog is ordered; nearest-match ties resolve to the earliest entry,
// so the order is part of the matching contract.
var catalog = []ReferenceMood{
	{Hue: 50, Saturation: 85, Lightness: 60, Name: "Sunlit", Adjective: "joyful"},
	{Hue: 25, Saturation: 90, Lightness: 55, Name: "Ember", Adjective: "energized"},
	{Hue: 0, Saturation: 80, Lightness: 50, Name: "Scarlet", Adjective: "passionate"},
	{Hue: 330, Saturation: 70, Lightness: 65, Name: "Blossom", Adjective: "affectionate"},
	{Hue: 270, Saturation: 55, Lightness: 50, Name: "Dusk", Adjective: "reflective"},
	{Hue: 220, Saturation: 60, Lightness: 50, Name: "Deepwater", Adjective: "melancholy"},
	{Hue: 195, Saturation: 65, Lightness: 55, Name: "Stillwater", Adjective: "calm"},
	{Hue: 140, Saturation: 55, Lightness: 45, Name: "Fern", Adjective: "hopeful"},
	{Hue: 90, Saturation: 60, Lightness: 50, Name: "Meadow", Adjective: "content"},
}

// Catalog returns the ordered reference moods. The returned slice is a copy;
// the catalog itself is never mutated at runtime.
func Catalog() []ReferenceMood {
	out := make([]ReferenceMood, len(catalog))
	copy(out, catalog)
	return out
}

// Default returns the catalog seed entry. It is the documented fallback for
// every empty-state path: its hue is deliberately non-zero, since hue 0 is a
// meaningful color and not a neutral value.
func Default() ReferenceMood {
	return catalog[0]
}

// Nearest returns the catalog entry with the smallest circular distance to
// hue. Ties resolve to the entry that appears first in the catalog. An empty
// catalog would return the zero entry, but the catalog is a package literal
// and cannot be empty.
func Nearest(hue float64) ReferenceMood {
	var best ReferenceMood
	bestDist := math.MaxFloat64
	for _, entry := range catalog {
		d := circularDistance(hue, entry.Hue)
		if d < bestDist {
			bestDist = d
			best = entry
		}
	}
	return best
}

// circularDistance returns the shortest angular distance between two hues.
func circularDistance(a, b float64) float64 {
	d := math.Abs(normalizeHue(a) - normalizeHue(b))
	return math.Min(d, 360-d)
}
