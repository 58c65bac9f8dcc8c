// Package imageprocessor decodes artwork files into 8-bit grayscale Mats for
// the classifier and computes perceptual hashes used to spot duplicate art.
package imageprocessor
