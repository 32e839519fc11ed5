package mood

import (
	"strings"
	"time"

	apperrors "github.com/moodtide/moodtide.app/internal/errors"
)

var (
	// ErrInvalidHue indicates a hue outside [0,360).
	ErrInvalidHue = apperrors.New(apperrors.CodeContributionInvalidHue, "hue must be in [0,360)")
	// ErrInvalidSaturation indicates a saturation outside [0,100].
	ErrInvalidSaturation = apperrors.New(apperrors.CodeContributionInvalidSaturation, "saturation must be in [0,100]")
	// ErrInvalidLightness indicates a lightness outside [0,100].
	ErrInvalidLightness = apperrors.New(apperrors.CodeContributionInvalidLightness, "lightness must be in [0,100]")
	// ErrEmptySubmitter indicates a contribution without an identity.
	ErrEmptySubmitter = apperrors.New(apperrors.CodeContributionEmptySubmitter, "submitter identity is required")
)

// Contribution is one submitted mood. It is ephemeral input: both
// aggregators consume it, neither persists it as its own record.
type Contribution struct {
	Hue         float64
	Saturation  float64
	Lightness   float64
	Adjective   string
	SubmittedBy string
	SubmittedAt time.Time
}

// Sample returns the contribution's raw HSL triple.
func (c Contribution) Sample() Sample {
	return Sample{Hue: c.Hue, Saturation: c.Saturation, Lightness: c.Lightness}
}

// Validate checks the contribution's value ranges and identity.
func (c Contribution) Validate() error {
	if c.Hue < 0 || c.Hue >= 360 {
		return ErrInvalidHue
	}
	if c.Saturation < 0 || c.Saturation > 100 {
		return ErrInvalidSaturation
	}
	if c.Lightness < 0 || c.Lightness > 100 {
		return ErrInvalidLightness
	}
	if strings.TrimSpace(c.SubmittedBy) == "" {
		return ErrEmptySubmitter
	}
	return nil
}
