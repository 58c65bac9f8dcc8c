package classifier

import "fmt"

const (
	// DefaultBlurThreshold is the Laplacian variance below which a
	// background counts as blurred.
	DefaultBlurThreshold = 800.0
	// DefaultMatchThreshold is compared with the winning method's score.
	DefaultMatchThreshold = 0.5
	// DefaultResampleTightenFactor is applied to the match threshold when the
	// source had to be resized to a canonical size.
	DefaultResampleTightenFactor = 1.25
)

// Config holds the tunables for one classification.
type Config struct {
	BlurThreshold  float64
	MatchThreshold float64
	// SizeHintTag names a canonical size class (e.g. "600x900") that the
	// source may be resized to when the template does not fit. An unknown
	// tag only matters when normalization is needed.
	SizeHintTag           string
	ResampleTightenFactor float64
}

// DefaultConfig returns the canonical defaults.
func DefaultConfig() Config {
	return Config{
		BlurThreshold:         DefaultBlurThreshold,
		MatchThreshold:        DefaultMatchThreshold,
		ResampleTightenFactor: DefaultResampleTightenFactor,
	}
}

// Validate rejects configurations that can never produce a meaningful verdict.
func (c Config) Validate() error {
	if c.BlurThreshold < 0 {
		return fmt.Errorf("blur threshold must be >= 0 (got %g)", c.BlurThreshold)
	}
	if c.MatchThreshold < 0 {
		return fmt.Errorf("match threshold must be >= 0 (got %g)", c.MatchThreshold)
	}
	if c.ResampleTightenFactor != 0 && c.ResampleTightenFactor < 1 {
		return fmt.Errorf("resample tighten factor must be >= 1 (got %g)", c.ResampleTightenFactor)
	}
	return nil
}
