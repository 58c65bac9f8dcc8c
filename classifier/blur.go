package classifier

import (
	"errors"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

const (
	// Pixels at or below this intensity are foreground candidates.
	foregroundCut = 127
	// Elliptical closing kernel, radius 2.
	closingKernelSize = 5
)

// BlurAnalyzer measures how sharp the background of an image is.
type BlurAnalyzer interface {
	AnalyzeBackground(gray gocv.Mat, blurThreshold float64) (BlurVerdict, error)
}

// BackgroundBlurAnalyzer separates dark foreground shapes from the lighter
// background and scores the background by the variance of its Laplacian.
type BackgroundBlurAnalyzer struct{}

// AnalyzeBackground reports the background Laplacian variance of gray and
// whether it falls below blurThreshold.
func (BackgroundBlurAnalyzer) AnalyzeBackground(gray gocv.Mat, blurThreshold float64) (BlurVerdict, error) {
	if err := checkGrayscale(gray, "source"); err != nil {
		return BlurVerdict{}, err
	}

	mask := backgroundMask(gray)
	defer mask.Close()

	background := gocv.NewMat()
	defer background.Close()
	gocv.BitwiseAndWithMask(gray, gray, &background, mask)

	variance := LaplacianVariance(background)
	return BlurVerdict{
		IsBlurred:                   variance < blurThreshold,
		BackgroundLaplacianVariance: variance,
	}, nil
}

// backgroundMask returns a mask that is 255 on the background and 0 inside
// every outer foreground contour. The caller owns the returned Mat.
func backgroundMask(gray gocv.Mat) gocv.Mat {
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, foregroundCut, 255, gocv.ThresholdBinaryInv)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: closingKernelSize, Y: closingKernelSize})
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(binary, &closed, gocv.MorphClose, kernel)

	contours := gocv.FindContours(closed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 255), gray.Rows(), gray.Cols(), gocv.MatTypeCV8UC1)
	if contours.Size() > 0 {
		gocv.DrawContours(&mask, contours, -1, color.RGBA{}, -1)
	}
	return mask
}

// LaplacianVariance returns the population variance of the Laplacian of
// img over all pixels.
func LaplacianVariance(img gocv.Mat) float64 {
	laplacian := gocv.NewMat()
	defer laplacian.Close()
	gocv.Laplacian(img, &laplacian, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	stdDev := gocv.NewMat()
	defer mean.Close()
	defer stdDev.Close()
	gocv.MeanStdDev(laplacian, &mean, &stdDev)

	if stdDev.Empty() {
		return 0
	}
	sd := stdDev.GetDoubleAt(0, 0)
	return sd * sd
}

func checkGrayscale(m gocv.Mat, label string) error {
	if m.Empty() || m.Rows() == 0 || m.Cols() == 0 {
		return NewImageDecodeError(label, errors.New("empty image"))
	}
	if m.Channels() != 1 {
		return NewImageDecodeError(label, errors.New("image is not single-channel grayscale"))
	}
	return nil
}
