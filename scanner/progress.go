package scanner

import (
	"fmt"
	"time"

	"capsulecheck/logging"
	"capsulecheck/types"
)

// NewProgressTracker initializes the progress tracker
func NewProgressTracker(totalPairs int, resultsChan chan ProcessPairResult) *ProgressTracker {
	tracker := &ProgressTracker{
		summary:  ScanSummary{TotalPairs: totalPairs},
		ticker:   time.NewTicker(500 * time.Millisecond),
		done:     make(chan bool),
		finished: make(chan struct{}),
	}

	go tracker.displayProgress()
	go tracker.processResults(resultsChan)

	return tracker
}

// displayProgress shows the progress periodically
func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			s := p.summary
			p.mu.Unlock()
			fmt.Printf("\rProgress: %d/%d (Flagged: %d, Skipped: %d, Errors: %d)",
				s.Processed+s.Skipped, s.TotalPairs, s.Flagged, s.Skipped,
				s.DecodeErrors+s.DimensionMismatches+s.Errors)
		}
	}
}

// processResults updates the tracker state based on processing results
func (p *ProgressTracker) processResults(resultsChan chan ProcessPairResult) {
	defer close(p.finished)

	for result := range resultsChan {
		p.mu.Lock()
		if result.Skipped {
			p.summary.Skipped++
			p.mu.Unlock()
			continue
		}

		p.summary.Processed++
		switch result.Status {
		case types.StatusDecodeError:
			p.summary.DecodeErrors++
		case types.StatusDimensionMismatch:
			p.summary.DimensionMismatches++
		case types.StatusError:
			p.summary.Errors++
		}
		if result.Flagged {
			p.summary.Flagged++
		}
		p.mu.Unlock()

		if result.Error != nil {
			logging.LogImageProcessed(result.Pair.SourcePath, false, result.Error.Error())
		} else {
			logging.LogImageProcessed(result.Pair.SourcePath, true, "")
		}
	}
}

// Stop ends the progress display once every result has been counted. The
// results channel must be closed first.
func (p *ProgressTracker) Stop() {
	<-p.finished
	p.ticker.Stop()
	p.done <- true
}

// Summary returns the counts gathered so far
func (p *ProgressTracker) Summary() ScanSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

// PrintStartupInfo displays information about the scan before starting
func PrintStartupInfo(totalPairs int, options ScanOptions) {
	fmt.Printf("Starting artwork classification...\nPairs to process: %d\n", totalPairs)
	fmt.Printf("Force rewrite mode: %v\n", options.ForceRewrite)
	fmt.Printf("Blur threshold: %g, match threshold: %g\n",
		options.Config.BlurThreshold, options.Config.MatchThreshold)

	if options.Config.SizeHintTag != "" {
		fmt.Printf("Size hint: %s\n", options.Config.SizeHintTag)
	}

	if options.DebugMode {
		fmt.Printf("Debug mode: enabled\n")
		logging.DebugLog("Found %d capsule/header pairs under %s", totalPairs, options.FolderPath)
	}
}

// PrintCompletionStats displays statistics after scan completion
func PrintCompletionStats(summary ScanSummary, startTime time.Time, options ScanOptions) {
	elapsed := time.Since(startTime)

	if options.DebugMode {
		logging.DebugLog("Scan completed in %v. Processed: %d, Flagged: %d, Skipped: %d, Decode errors: %d, Dimension mismatches: %d, Errors: %d",
			elapsed, summary.Processed, summary.Flagged, summary.Skipped,
			summary.DecodeErrors, summary.DimensionMismatches, summary.Errors)
	}

	fmt.Println("\nClassification complete.")
	fmt.Printf("Processed %d pairs in %v (%d unchanged pairs skipped).\n",
		summary.Processed, elapsed.Round(time.Second), summary.Skipped)
	fmt.Printf("Likely auto-generated capsules: %d\n", summary.Flagged)

	if summary.DecodeErrors > 0 {
		fmt.Printf("Pairs with unreadable images: %d\n", summary.DecodeErrors)
	}
	if summary.DimensionMismatches > 0 {
		fmt.Printf("Pairs with a header larger than the capsule: %d\n", summary.DimensionMismatches)
	}
	if summary.Errors > 0 {
		fmt.Printf("Encountered %d other errors.\n", summary.Errors)
		fmt.Println("Check the log file for details.")
	}
}
