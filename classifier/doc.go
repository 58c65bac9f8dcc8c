// Package classifier decides whether a portrait capsule image is an
// auto-generated derivative of a landscape header image: the header shrunk,
// padded and placed on a blurred copy of itself.
//
// The package is stateless. Every call takes decoded single-channel images
// (gocv.Mat in 8-bit grayscale) plus a Config value and returns fresh values,
// so callers may classify many pairs concurrently without coordination.
// Decoding files, locating artwork on disk and recording results are left to
// the caller; see the imageprocessor and scanner packages.
package classifier
