package classifier

import (
	"image"
	"math/rand"
	"testing"

	"gocv.io/x/gocv"
)

// noiseMat returns a rows x cols grayscale Mat of uniform noise in [lo, hi].
func noiseMat(t *testing.T, rows, cols int, lo, hi uint8, seed int64) gocv.Mat {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	span := int(hi) - int(lo) + 1
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.SetUCharAt(y, x, uint8(int(lo)+rng.Intn(span)))
		}
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// rampMat returns a horizontal gradient from lo at the left edge to hi at
// the right edge; every row is identical.
func rampMat(t *testing.T, rows, cols int, lo, hi float64) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	for x := 0; x < cols; x++ {
		v := lo
		if cols > 1 {
			v = lo + (hi-lo)*float64(x)/float64(cols-1)
		}
		for y := 0; y < rows; y++ {
			m.SetUCharAt(y, x, uint8(v+0.5))
		}
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func flatMat(t *testing.T, rows, cols int, value float64) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, value), rows, cols, gocv.MatTypeCV8UC1)
	t.Cleanup(func() { m.Close() })
	return m
}

// gaussian returns src smoothed with a Gaussian of the given sigma.
func gaussian(t *testing.T, src gocv.Mat, sigma float64) gocv.Mat {
	t.Helper()
	dst := gocv.NewMat()
	gocv.GaussianBlur(src, &dst, image.Point{}, sigma, sigma, gocv.BorderDefault)
	t.Cleanup(func() { dst.Close() })
	return dst
}

// crop returns an owned copy of the region r of src.
func crop(t *testing.T, src gocv.Mat, r image.Rectangle) gocv.Mat {
	t.Helper()
	region := src.Region(r)
	defer region.Close()
	out := region.Clone()
	t.Cleanup(func() { out.Close() })
	return out
}

type stubAnalyzer struct {
	variance float64
	calls    int
}

func (s *stubAnalyzer) AnalyzeBackground(_ gocv.Mat, blurThreshold float64) (BlurVerdict, error) {
	s.calls++
	return BlurVerdict{IsBlurred: s.variance < blurThreshold, BackgroundLaplacianVariance: s.variance}, nil
}

type spyMatcher struct {
	inner TemplateMatcher
	calls int
}

func (s *spyMatcher) Match(source, template gocv.Mat, threshold float64) (MatchResult, error) {
	s.calls++
	if s.inner == nil {
		return MatchResult{}, nil
	}
	return s.inner.Match(source, template, threshold)
}
