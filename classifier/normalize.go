package classifier

import (
	"image"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"
)

// Canonical artwork sizes the source may be resampled to. Some files named
// for a size are not actually that size.
var canonicalSizes = map[string]Dimension{
	"600x900": {Width: 600, Height: 900}, // portrait library capsule
	"920x430": {Width: 920, Height: 430}, // store header
	"460x215": {Width: 460, Height: 215}, // legacy header
}

// CanonicalSize looks up a size hint tag.
func CanonicalSize(tag string) (Dimension, bool) {
	d, ok := canonicalSizes[strings.ToLower(strings.TrimSpace(tag))]
	return d, ok
}

// CanonicalTags lists the known size hint tags in sorted order.
func CanonicalTags() []string {
	tags := make([]string, 0, len(canonicalSizes))
	for tag := range canonicalSizes {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// HintFromPath returns the first canonical tag that appears in the file name
// of path, or "".
func HintFromPath(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, tag := range CanonicalTags() {
		if strings.Contains(name, tag) {
			return tag
		}
	}
	return ""
}

// NormalizeDimensions returns the dimension the source should be matched at.
// A source that already contains the template is returned unchanged. Otherwise
// a known sizeHintTag yields its canonical size, and anything else is a
// *DimensionMismatchError.
func NormalizeDimensions(source, template Dimension, sizeHintTag string) (Dimension, error) {
	if source.Contains(template) {
		return source, nil
	}
	if canonical, ok := CanonicalSize(sizeHintTag); ok {
		return canonical, nil
	}
	return Dimension{}, &DimensionMismatchError{Source: source, Template: template}
}

// ResizeToCanonical resamples src to dim using area averaging. The caller
// owns the returned Mat.
func ResizeToCanonical(src gocv.Mat, dim Dimension) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Point{X: dim.Width, Y: dim.Height}, 0, 0, gocv.InterpolationArea)
	return dst
}
