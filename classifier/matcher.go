package classifier

import (
	"math"

	"gocv.io/x/gocv"
)

// TemplateMatcher locates template inside source and picks a winning method.
type TemplateMatcher interface {
	Match(source, template gocv.Mat, threshold float64) (MatchResult, error)
}

// CorrelationMatcher runs all six correlation statistics and keeps the one
// reporting the strongest confidence.
type CorrelationMatcher struct{}

// Match returns the winning method's result with Passed set by comparing its
// raw score with threshold in that method's native direction.
func (CorrelationMatcher) Match(source, template gocv.Mat, threshold float64) (MatchResult, error) {
	results, err := MatchAll(source, template)
	if err != nil {
		return MatchResult{}, err
	}
	best := SelectBest(results)
	best.Threshold = threshold
	best.Passed = best.Method.Passes(best.Score, threshold)
	return best, nil
}

// MatchAll slides template over source once per method and returns each
// method's optimal score and location, in AllMatchMethods order.
func MatchAll(source, template gocv.Mat) ([]MatchResult, error) {
	if err := checkGrayscale(source, "source"); err != nil {
		return nil, err
	}
	if err := checkGrayscale(template, "template"); err != nil {
		return nil, err
	}
	srcDim, tmplDim := DimensionOf(source), DimensionOf(template)
	if !srcDim.Contains(tmplDim) {
		return nil, &DimensionMismatchError{Source: srcDim, Template: tmplDim}
	}

	response := gocv.NewMat()
	defer response.Close()
	noMask := gocv.NewMat()
	defer noMask.Close()

	methods := AllMatchMethods()
	results := make([]MatchResult, 0, len(methods))
	for _, method := range methods {
		gocv.MatchTemplate(source, template, &response, method.mode(), noMask)
		minVal, maxVal, minLoc, maxLoc := gocv.MinMaxLoc(response)

		result := MatchResult{Method: method, Score: float64(maxVal), Location: maxLoc}
		if method.LowerIsBetter() {
			result.Score = float64(minVal)
			result.Location = minLoc
		}
		results = append(results, result)
	}
	return results, nil
}

// SelectBest negates lower-is-better scores and returns the result with the
// largest value. Ties go to the method earliest in AllMatchMethods order, so
// the choice does not depend on the order of results. NaN scores never win.
func SelectBest(results []MatchResult) MatchResult {
	var best MatchResult
	bestConfidence := math.Inf(-1)
	found := false
	for _, r := range results {
		c := r.Method.confidence(r.Score)
		if math.IsNaN(c) {
			continue
		}
		if !found || c > bestConfidence || (c == bestConfidence && r.Method < best.Method) {
			best, bestConfidence, found = r, c, true
		}
	}
	return best
}
