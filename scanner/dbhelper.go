package scanner

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"capsulecheck/classifier"
	"capsulecheck/database"
	"capsulecheck/logging"
	"capsulecheck/scanner/processor"
	"capsulecheck/types"
)

// modTimeLayout keeps sub-second precision so an untouched file compares equal
const modTimeLayout = time.RFC3339Nano

func formatModTime(info os.FileInfo) string {
	if info == nil {
		return ""
	}
	return info.ModTime().UTC().Format(modTimeLayout)
}

// modifiedSince reports whether info is newer than the stored timestamp. An
// unparseable timestamp counts as modified.
func modifiedSince(info os.FileInfo, stored string) bool {
	storedTime, err := time.Parse(modTimeLayout, stored)
	if err != nil {
		return true
	}
	return info.ModTime().After(storedTime)
}

// settledStatuses are outcomes that repeat for unchanged files. Anything else,
// such as a recovered panic or a failed store, is retried on the next scan.
var settledStatuses = map[string]bool{
	types.StatusClassified:        true,
	types.StatusDecodeError:       true,
	types.StatusDimensionMismatch: true,
}

// checkAndSkipIfUnchanged checks if a pair can be skipped because neither
// file changed since it was last classified
func checkAndSkipIfUnchanged(db *sql.DB, pair types.ArtworkPair, options ScanOptions) *ProcessPairResult {
	exists, state, err := database.CheckResultExists(db, pair.SourcePath, pair.TemplatePath)
	if err != nil {
		return &ProcessPairResult{
			Pair:   pair,
			Status: types.StatusError,
			Error:  err,
		}
	}
	if !exists || !settledStatuses[state.Status] {
		return nil
	}

	sourceInfo, err := os.Stat(pair.SourcePath)
	if err != nil {
		return nil
	}
	templateInfo, err := os.Stat(pair.TemplatePath)
	if err != nil {
		return nil
	}

	if modifiedSince(sourceInfo, state.SourceModifiedAt) || modifiedSince(templateInfo, state.TemplateModifiedAt) {
		return nil
	}

	if options.DebugMode {
		logging.DebugLog("Skipping unchanged pair: %s", pair.SourcePath)
	}
	return &ProcessPairResult{
		Pair:    pair,
		Skipped: true,
	}
}

// statusFor maps a classification error onto the status stored for the pair
func statusFor(err error) string {
	switch {
	case err == nil:
		return types.StatusClassified
	case errors.Is(err, classifier.ErrImageDecode):
		return types.StatusDecodeError
	case errors.Is(err, classifier.ErrDimensionMismatch):
		return types.StatusDimensionMismatch
	default:
		return types.StatusError
	}
}

// buildRecord turns a processing outcome into the row stored for the pair
func buildRecord(pair types.ArtworkPair, sourceInfo, templateInfo os.FileInfo, outcome processor.Outcome, err error) types.ClassificationRecord {
	record := types.ClassificationRecord{
		AppID:              pair.AppID,
		SourcePath:         pair.SourcePath,
		TemplatePath:       pair.TemplatePath,
		Status:             statusFor(err),
		CapsuleHash:        outcome.CapsuleHash,
		MatchThreshold:     outcome.Threshold,
		SourceModifiedAt:   formatModTime(sourceInfo),
		TemplateModifiedAt: formatModTime(templateInfo),
	}
	if err != nil {
		record.ErrorMessage = err.Error()
		return record
	}

	verdict := outcome.Verdict
	record.IsLikelyAutoGenerated = verdict.IsLikelyAutoGenerated
	record.BlurVariance = verdict.BlurVariance
	record.Resampled = verdict.Resampled
	record.MatcherRan = verdict.MatcherRan
	if verdict.MatcherRan {
		record.ChosenMethod = verdict.ChosenMethod
		record.MatchScore = verdict.MatchScore
	}
	return record
}

// storeOutcome writes the record and folds a storage failure into result
func storeOutcome(db *sql.DB, record types.ClassificationRecord, result *ProcessPairResult) {
	if err := database.StoreResult(db, record); err != nil {
		result.Status = types.StatusError
		result.Error = fmt.Errorf("cannot store result for %s: %w", record.SourcePath, err)
	}
}
