package imageprocessor

import (
	"image"
	"image/draw"
	"os"

	// Decoders registered for the Go fallback path.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"gocv.io/x/gocv"
)

// Try to load an image using Go's image packages
func tryGoImagePackages(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// Convert a Go image to a single-channel 8-bit Mat
func gocvMatFromGoImage(img image.Image) (gocv.Mat, error) {
	gray, ok := img.(*image.Gray)
	if !ok || gray.Bounds().Min != (image.Point{}) {
		bounds := img.Bounds()
		gray = image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	}
	return gocv.ImageGrayToMatGray(gray)
}
