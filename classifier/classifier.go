package classifier

import (
	"capsulecheck/logging"

	"gocv.io/x/gocv"
)

// ImageStore decodes an image file into an 8-bit grayscale Mat. The caller
// closes the returned Mat.
type ImageStore interface {
	LoadImage(path string) (gocv.Mat, error)
}

// Classifier composes blur analysis, size normalization and template matching.
// The zero value uses BackgroundBlurAnalyzer and CorrelationMatcher.
type Classifier struct {
	Analyzer  BlurAnalyzer
	Matcher   TemplateMatcher
	DebugMode bool
}

// New returns a Classifier with the default analyzer and matcher.
func New(debugMode bool) *Classifier {
	return &Classifier{
		Analyzer:  BackgroundBlurAnalyzer{},
		Matcher:   CorrelationMatcher{},
		DebugMode: debugMode,
	}
}

// Classify runs a default Classifier.
func Classify(source, template gocv.Mat, cfg Config) (ClassificationVerdict, error) {
	return New(false).Classify(source, template, cfg)
}

func (c *Classifier) analyzer() BlurAnalyzer {
	if c.Analyzer == nil {
		return BackgroundBlurAnalyzer{}
	}
	return c.Analyzer
}

func (c *Classifier) matcher() TemplateMatcher {
	if c.Matcher == nil {
		return CorrelationMatcher{}
	}
	return c.Matcher
}

// Classify decides whether source (the capsule) is template (the header)
// shrunk onto a blurred background. Neither input is modified.
func (c *Classifier) Classify(source, template gocv.Mat, cfg Config) (ClassificationVerdict, error) {
	if err := cfg.Validate(); err != nil {
		return ClassificationVerdict{}, err
	}
	if err := checkGrayscale(source, "source"); err != nil {
		return ClassificationVerdict{}, err
	}
	if err := checkGrayscale(template, "template"); err != nil {
		return ClassificationVerdict{}, err
	}

	srcDim, tmplDim := DimensionOf(source), DimensionOf(template)
	target, err := NormalizeDimensions(srcDim, tmplDim, cfg.SizeHintTag)
	if err != nil {
		return ClassificationVerdict{}, err
	}

	// A hint naming the source's own size leaves it unchanged, so the
	// template can still be too large here.
	if !target.Contains(tmplDim) {
		return ClassificationVerdict{}, &DimensionMismatchError{Source: target, Template: tmplDim}
	}

	working := source
	resampled := target != srcDim
	if resampled {
		resized := ResizeToCanonical(source, target)
		defer resized.Close()
		working = resized
		if c.DebugMode {
			logging.DebugLog("Resampled source from %s to %s (hint %q)", srcDim, target, cfg.SizeHintTag)
		}
	}

	blur, err := c.analyzer().AnalyzeBackground(working, cfg.BlurThreshold)
	if err != nil {
		return ClassificationVerdict{}, err
	}
	verdict := ClassificationVerdict{
		BlurVariance: blur.BackgroundLaplacianVariance,
		Resampled:    resampled,
	}
	if !blur.IsBlurred {
		if c.DebugMode {
			logging.DebugLog("Background not blurred (variance %.2f >= %.2f), skipping template match",
				blur.BackgroundLaplacianVariance, cfg.BlurThreshold)
		}
		return verdict, nil
	}

	match, err := c.matcher().Match(working, template, cfg.MatchThreshold)
	if err != nil {
		return ClassificationVerdict{}, err
	}
	if resampled {
		match.Threshold = match.Method.Tighten(cfg.MatchThreshold, cfg.ResampleTightenFactor)
		match.Passed = match.Method.Passes(match.Score, match.Threshold)
	}

	verdict.MatcherRan = true
	verdict.Match = match
	verdict.ChosenMethod = match.Method
	verdict.MatchScore = match.Score
	verdict.IsLikelyAutoGenerated = blur.IsBlurred && match.Passed

	if c.DebugMode {
		logging.DebugLog("Best method %s: score %.4f at (%d,%d), threshold %.4f, passed %v; blur variance %.2f",
			match.Method, match.Score, match.Location.X, match.Location.Y, match.Threshold, match.Passed,
			blur.BackgroundLaplacianVariance)
	}
	return verdict, nil
}

// LoadPair decodes the source and template through store. Any failure,
// including an empty or multi-channel result, is returned as an
// *ImageDecodeError; on error no Mat needs closing.
func LoadPair(store ImageStore, sourcePath, templatePath string) (source, template gocv.Mat, err error) {
	source, err = loadGrayscale(store, sourcePath)
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, err
	}
	template, err = loadGrayscale(store, templatePath)
	if err != nil {
		source.Close()
		return gocv.Mat{}, gocv.Mat{}, err
	}
	return source, template, nil
}

func loadGrayscale(store ImageStore, path string) (gocv.Mat, error) {
	img, err := store.LoadImage(path)
	if err != nil {
		img.Close()
		return gocv.Mat{}, NewImageDecodeError(path, err)
	}
	if err := checkGrayscale(img, path); err != nil {
		img.Close()
		return gocv.Mat{}, err
	}
	return img, nil
}

// ClassifyFiles decodes both images through store and classifies them.
func (c *Classifier) ClassifyFiles(store ImageStore, sourcePath, templatePath string, cfg Config) (ClassificationVerdict, error) {
	source, template, err := LoadPair(store, sourcePath, templatePath)
	if err != nil {
		return ClassificationVerdict{}, err
	}
	defer source.Close()
	defer template.Close()

	if c.DebugMode {
		logging.DebugLog("Classifying %s (%s) against %s (%s)",
			sourcePath, DimensionOf(source), templatePath, DimensionOf(template))
	}
	return c.Classify(source, template, cfg)
}
