package imageprocessor

import (
	"capsulecheck/logging"

	"gocv.io/x/gocv"
)

// StandardImageLoader handles common image formats like JPEG, PNG, etc.
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatGIF,
				FormatBMP,
				FormatWEBP,
				FormatTIFF,
			},
		},
	}
}

// LoadImage decodes with OpenCV first. Builds without a codec for the
// format (commonly gif and webp) fall back to the Go decoders.
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	img, err := l.DefaultLoadImage(path)
	if err == nil {
		return img, nil
	}
	img.Close()

	logging.DebugLog("OpenCV could not decode %s, trying Go decoders", path)
	goImg, decodeErr := tryGoImagePackages(path)
	if decodeErr != nil {
		return gocv.NewMat(), newImageLoadError("failed to load image ("+decodeErr.Error()+")", path)
	}
	return gocvMatFromGoImage(goImg)
}
