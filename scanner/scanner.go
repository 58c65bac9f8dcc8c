package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"capsulecheck/classifier"
	"capsulecheck/logging"
	"capsulecheck/scanner/processor"
	"capsulecheck/signalhandler"
	"capsulecheck/types"
)

// ScanAndClassify discovers capsule/header pairs under options.FolderPath,
// classifies them on a bounded worker pool and stores one record per pair.
// Cancelling ctx stops new pairs from starting; pairs already running finish
// and are stored. The returned summary is valid even when err is non-nil.
func ScanAndClassify(ctx context.Context, db *sql.DB, options ScanOptions) (ScanSummary, error) {
	if err := options.Config.Validate(); err != nil {
		return ScanSummary{}, err
	}
	if options.DebugMode {
		logging.DebugLog("Starting artwork scan on folder: %s", options.FolderPath)
	}

	pairs, err := DiscoverPairs(options.FolderPath)
	if err != nil {
		return ScanSummary{}, err
	}

	PrintStartupInfo(len(pairs), options)

	workers := options.MaxWorkers
	if workers <= 0 {
		workers = signalhandler.GetOptimalProcs()
	}

	var wg sync.WaitGroup
	resultsChan := make(chan ProcessPairResult, 100)
	semaphore := make(chan struct{}, workers)
	tracker := NewProgressTracker(len(pairs), resultsChan)
	proc := processor.NewPairProcessor(options.DebugMode)

	startTime := time.Now()
	cancelled := dispatchPairs(ctx, pairs, semaphore, &wg, func(pair types.ArtworkPair) {
		resultsChan <- processAndStorePair(db, proc, pair, options)
	})

	wg.Wait()
	close(resultsChan)
	tracker.Stop()

	summary := tracker.Summary()
	PrintCompletionStats(summary, startTime, options)

	if cancelled {
		logging.LogWarning("Scan interrupted after %d of %d pairs", summary.Processed+summary.Skipped, len(pairs))
		return summary, ctx.Err()
	}
	logging.LogInfo("Scanned %s: %d pairs, %d classified, %d skipped, %d flagged",
		options.FolderPath, summary.TotalPairs, summary.Processed, summary.Skipped, summary.Flagged)
	return summary, nil
}

// dispatchPairs runs work for each pair, at most cap(semaphore) at a time.
// It reports whether ctx was cancelled before every pair was started.
func dispatchPairs(ctx context.Context, pairs []types.ArtworkPair, semaphore chan struct{}, wg *sync.WaitGroup, work func(types.ArtworkPair)) bool {
	for _, pair := range pairs {
		if ctx.Err() != nil {
			return true
		}
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			return true
		}

		wg.Add(1)
		go func(p types.ArtworkPair) {
			defer wg.Done()
			defer func() { <-semaphore }()
			work(p)
		}(pair)
	}
	return false
}

// processAndStorePair classifies a single pair and stores its record
func processAndStorePair(db *sql.DB, proc *processor.PairProcessor, pair types.ArtworkPair, options ScanOptions) ProcessPairResult {
	result := ProcessPairResult{Pair: pair}

	if !options.ForceRewrite {
		if skipResult := checkAndSkipIfUnchanged(db, pair, options); skipResult != nil {
			return *skipResult
		}
	}

	sourceInfo, _ := os.Stat(pair.SourcePath)
	templateInfo, _ := os.Stat(pair.TemplatePath)

	outcome, err := proc.ProcessPair(pair, options.Config)
	if err != nil {
		result.Error = fmt.Errorf("cannot classify %s: %w", pair.SourcePath, err)
	}

	record := buildRecord(pair, sourceInfo, templateInfo, outcome, err)
	result.Status = record.Status
	result.Flagged = record.IsLikelyAutoGenerated
	storeOutcome(db, record, &result)

	return result
}

// ClassifyPair runs one pair through the same path as a scan without storing
// the result
func ClassifyPair(pair types.ArtworkPair, cfg classifier.Config, debugMode bool) (classifier.ClassificationVerdict, error) {
	outcome, err := processor.NewPairProcessor(debugMode).ProcessPair(pair, cfg)
	return outcome.Verdict, err
}
