// Package mood holds the pure domain logic for mood aggregation.
//
// A mood is an HSL triple: hue on the color wheel in degrees [0,360),
// saturation and lightness in percent [0,100]. Hue is an angular value,
// so averages are computed with a circular mean rather than an arithmetic
// one; averaging 350 and 10 degrees must land near 0, not 180.
//
// # Catalog
//
// The reference catalog is a fixed, ordered set of named moods. Matching a
// hue to its nearest catalog entry is deterministic: the first entry with
// the minimal circular distance wins, so the catalog order is part of the
// contract and must not be reordered.
//
// # Streaks
//
// The streak state machine tracks consecutive calendar days with at least
// one contribution. It is a pure function over (current streak, last
// contribution date, today); persistence and clocks belong to the caller.
package mood
