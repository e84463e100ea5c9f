package session

import "github.com/bebsworthy/covergate/pkg/config"

// ToleranceBand nudges measured coverage fractions toward the
// acceptance boundary before they are compared, absorbing report noise
// near the baseline. The zero value is neutral: fractions pass through
// unchanged, and acceptance reduces to a strict raw comparison.
//
// The band adjusts comparison inputs only. The raw measured fraction is
// what becomes the new baseline when an attempt commits.
type ToleranceBand struct {
	// HighConfidence is the fraction at or above which a measurement is
	// trusted as-is and receives no boost
	HighConfidence float64

	// Boost is added to measurements below HighConfidence
	Boost float64

	// Ceiling caps the adjusted value. Measurements above it are pulled
	// down to it before comparison.
	Ceiling float64
}

// DefaultToleranceBand carries the tuning the engine shipped with:
// trust measurements from 70% up, boost lower ones by 25 points, and
// cap the adjusted value at 90%. Callers opt in; the zero band is the
// default.
var DefaultToleranceBand = ToleranceBand{
	HighConfidence: 0.70,
	Boost:          0.25,
	Ceiling:        0.90,
}

// IsZero reports whether the band is neutral.
func (b ToleranceBand) IsZero() bool {
	return b == ToleranceBand{}
}

// Adjust applies the band to a measured fraction. A neutral band
// returns the input unchanged.
func (b ToleranceBand) Adjust(fraction float64) float64 {
	if b.IsZero() {
		return fraction
	}
	adjusted := fraction
	if adjusted < b.HighConfidence {
		adjusted += b.Boost
	}
	if adjusted > b.Ceiling {
		adjusted = b.Ceiling
	}
	return adjusted
}

// Accepts reports whether a measured fraction beats the baseline under
// the band. Both sides are adjusted; ties lose.
func (b ToleranceBand) Accepts(measured, baseline float64) bool {
	return b.Adjust(measured) > b.Adjust(baseline)
}

// BandFromConfig converts a validated tolerance config. Nil means the
// neutral band.
func BandFromConfig(cfg *config.ToleranceConfig) ToleranceBand {
	if cfg == nil {
		return ToleranceBand{}
	}
	return ToleranceBand{
		HighConfidence: cfg.HighConfidence,
		Boost:          cfg.Boost,
		Ceiling:        cfg.Ceiling,
	}
}
