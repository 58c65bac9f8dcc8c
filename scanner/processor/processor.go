package processor

import (
	"fmt"
	"runtime/debug"

	"capsulecheck/classifier"
	"capsulecheck/imageprocessor"
	"capsulecheck/logging"
	"capsulecheck/types"
)

// PairProcessor is an adapter that ties the scanner to image decoding,
// hashing and classification
type PairProcessor struct {
	DebugMode  bool
	store      classifier.ImageStore
	classifier *classifier.Classifier
}

// Outcome is what processing a pair produced. CapsuleHash is set whenever
// the capsule decoded, even if classification then failed.
type Outcome struct {
	Verdict     classifier.ClassificationVerdict
	Threshold   float64
	CapsuleHash string
}

// NewPairProcessor creates a PairProcessor backed by the default loader registry
func NewPairProcessor(debugMode bool) *PairProcessor {
	return NewPairProcessorWithStore(imageprocessor.NewImageLoaderRegistry(), classifier.New(debugMode), debugMode)
}

// NewPairProcessorWithStore creates a PairProcessor with explicit collaborators
func NewPairProcessorWithStore(store classifier.ImageStore, c *classifier.Classifier, debugMode bool) *PairProcessor {
	if c == nil {
		c = classifier.New(debugMode)
	}
	return &PairProcessor{
		DebugMode:  debugMode,
		store:      store,
		classifier: c,
	}
}

// ProcessPair decodes and classifies one pair. The pair's size hint is used
// when cfg carries none. A panic inside the native image code is returned
// as an error rather than taking down the scan.
func (p *PairProcessor) ProcessPair(pair types.ArtworkPair, cfg classifier.Config) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := debug.Stack()
			err = fmt.Errorf("panic during classification: %v", r)
			logging.LogError("Panic during classification of %s: %v\nStack trace: %s", pair.SourcePath, r, string(stackTrace))
		}
	}()

	if cfg.SizeHintTag == "" {
		cfg.SizeHintTag = pair.SizeHint
	}
	outcome.Threshold = cfg.MatchThreshold

	source, template, err := classifier.LoadPair(p.store, pair.SourcePath, pair.TemplatePath)
	if err != nil {
		return outcome, err
	}
	defer source.Close()
	defer template.Close()

	hash, hashErr := imageprocessor.ComputeDifferenceHash(source)
	if hashErr != nil {
		logging.LogWarning("Cannot hash capsule %s: %v", pair.SourcePath, hashErr)
	}
	outcome.CapsuleHash = hash

	verdict, err := p.classifier.Classify(source, template, cfg)
	if err != nil {
		return outcome, err
	}
	outcome.Verdict = verdict
	if verdict.MatcherRan {
		outcome.Threshold = verdict.Match.Threshold
	}

	if p.DebugMode {
		logging.DebugLog("Classified app %s: auto-generated=%v method=%s score=%g blur=%g",
			pair.AppID, verdict.IsLikelyAutoGenerated, verdict.ChosenMethod, verdict.MatchScore, verdict.BlurVariance)
	}
	return outcome, nil
}
