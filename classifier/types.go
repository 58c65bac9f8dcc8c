package classifier

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// Dimension is a width/height pair in pixels.
type Dimension struct {
	Width  int
	Height int
}

// DimensionOf returns the size of m.
func DimensionOf(m gocv.Mat) Dimension {
	return Dimension{Width: m.Cols(), Height: m.Rows()}
}

// ParseDimension parses "WIDTHxHEIGHT", e.g. "600x900".
func ParseDimension(s string) (Dimension, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "x", 2)
	if len(parts) != 2 {
		return Dimension{}, fmt.Errorf("invalid dimension %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil || w <= 0 {
		return Dimension{}, fmt.Errorf("invalid width in dimension %q", s)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return Dimension{}, fmt.Errorf("invalid height in dimension %q", s)
	}
	return Dimension{Width: w, Height: h}, nil
}

func (d Dimension) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Contains reports whether other fits inside d on both axes.
func (d Dimension) Contains(other Dimension) bool {
	return other.Width <= d.Width && other.Height <= d.Height
}

// MatchMethod is one of the six template correlation statistics.
// The zero value means no method was chosen.
type MatchMethod int

const (
	MethodNone MatchMethod = iota
	SumSquaredDiff
	SumSquaredDiffNormalized
	CrossCorrelation
	CrossCorrelationNormalized
	CoefficientCorrelation
	CoefficientCorrelationNormalized
)

// AllMatchMethods returns the six methods in canonical order. Ties in
// SelectBest resolve to the method that comes first here.
func AllMatchMethods() []MatchMethod {
	return []MatchMethod{
		SumSquaredDiff,
		SumSquaredDiffNormalized,
		CrossCorrelation,
		CrossCorrelationNormalized,
		CoefficientCorrelation,
		CoefficientCorrelationNormalized,
	}
}

func (m MatchMethod) String() string {
	switch m {
	case SumSquaredDiff:
		return "sqdiff"
	case SumSquaredDiffNormalized:
		return "sqdiff_normed"
	case CrossCorrelation:
		return "ccorr"
	case CrossCorrelationNormalized:
		return "ccorr_normed"
	case CoefficientCorrelation:
		return "ccoeff"
	case CoefficientCorrelationNormalized:
		return "ccoeff_normed"
	default:
		return "none"
	}
}

// ParseMatchMethod is the inverse of MatchMethod.String.
func ParseMatchMethod(s string) (MatchMethod, error) {
	for _, m := range AllMatchMethods() {
		if m.String() == s {
			return m, nil
		}
	}
	if s == "" || s == MethodNone.String() {
		return MethodNone, nil
	}
	return MethodNone, fmt.Errorf("unknown match method %q", s)
}

// LowerIsBetter reports the polarity of the method's score.
func (m MatchMethod) LowerIsBetter() bool {
	return m == SumSquaredDiff || m == SumSquaredDiffNormalized
}

// Passes compares score with threshold in the method's native direction.
func (m MatchMethod) Passes(score, threshold float64) bool {
	if m.LowerIsBetter() {
		return score <= threshold
	}
	return score >= threshold
}

// Tighten makes threshold stricter by factor in the method's native
// direction. A factor of 1 leaves it unchanged.
func (m MatchMethod) Tighten(threshold, factor float64) float64 {
	if factor <= 1 {
		return threshold
	}
	if m.LowerIsBetter() {
		return threshold / factor
	}
	return threshold * factor
}

// confidence maps score onto a higher-is-better scale for cross-method
// comparison.
func (m MatchMethod) confidence(score float64) float64 {
	if m.LowerIsBetter() {
		return -score
	}
	return score
}

func (m MatchMethod) mode() gocv.TemplateMatchMode {
	switch m {
	case SumSquaredDiff:
		return gocv.TmSqdiff
	case SumSquaredDiffNormalized:
		return gocv.TmSqdiffNormed
	case CrossCorrelation:
		return gocv.TmCcorr
	case CrossCorrelationNormalized:
		return gocv.TmCcorrNormed
	case CoefficientCorrelation:
		return gocv.TmCcoeff
	case CoefficientCorrelationNormalized:
		return gocv.TmCcoeffNormed
	default:
		panic(fmt.Sprintf("classifier: no template match mode for %v", m))
	}
}

// MatchResult is the best alignment found by one method.
// Threshold and Passed are only set on the result returned by Match.
type MatchResult struct {
	Method    MatchMethod
	Score     float64
	Location  image.Point
	Threshold float64
	Passed    bool
}

// BlurVerdict is the outcome of background blur analysis.
type BlurVerdict struct {
	IsBlurred                   bool
	BackgroundLaplacianVariance float64
}

// ClassificationVerdict is the combined result for one capsule/header pair.
// IsLikelyAutoGenerated holds only when the background was blurred and the
// chosen match passed its threshold.
type ClassificationVerdict struct {
	IsLikelyAutoGenerated bool
	ChosenMethod          MatchMethod
	MatchScore            float64
	BlurVariance          float64

	// Resampled is set when the source was resized to a canonical size
	// before analysis.
	Resampled bool
	// MatcherRan is false when the blur check short-circuited.
	MatcherRan bool
	Match      MatchResult
}
