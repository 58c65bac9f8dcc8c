package imageprocessor

import (
	"fmt"

	"github.com/corona10/goimagehash"
	"gocv.io/x/gocv"
)

// ComputeDifferenceHash calculates a 64-bit difference hash for the image.
// The result is goimagehash's string form ("d:" followed by 16 hex digits).
func ComputeDifferenceHash(img gocv.Mat) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("cannot compute hash for empty image")
	}

	goImg, err := img.ToImage()
	if err != nil {
		return "", fmt.Errorf("failed to convert image for hashing: %w", err)
	}

	hash, err := goimagehash.DifferenceHash(goImg)
	if err != nil {
		return "", fmt.Errorf("failed to compute difference hash: %w", err)
	}
	return hash.ToString(), nil
}

// HashDistance returns the Hamming distance between two hashes produced by
// ComputeDifferenceHash.
func HashDistance(a, b string) (int, error) {
	ha, err := goimagehash.ImageHashFromString(a)
	if err != nil {
		return 0, fmt.Errorf("invalid hash %q: %w", a, err)
	}
	hb, err := goimagehash.ImageHashFromString(b)
	if err != nil {
		return 0, fmt.Errorf("invalid hash %q: %w", b, err)
	}
	return ha.Distance(hb)
}
