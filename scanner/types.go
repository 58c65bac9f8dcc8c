package scanner

import (
	"sync"
	"time"

	"capsulecheck/classifier"
	"capsulecheck/types"
)

// ScanOptions defines the options for scanning
type ScanOptions struct {
	FolderPath   string
	Config       classifier.Config
	ForceRewrite bool
	DebugMode    bool
	DbPath       string
	LogPath      string
	MaxWorkers   int // Optional worker limit
}

// ProcessPairResult holds the result of processing a pair
type ProcessPairResult struct {
	Pair    types.ArtworkPair
	Status  string
	Flagged bool
	Skipped bool
	Error   error
}

// ScanSummary counts what a scan did
type ScanSummary struct {
	TotalPairs          int
	Processed           int
	Flagged             int
	Skipped             int
	DecodeErrors        int
	DimensionMismatches int
	Errors              int
}

// ProgressTracker tracks progress of the scan operation
type ProgressTracker struct {
	summary  ScanSummary
	ticker   *time.Ticker
	done     chan bool
	finished chan struct{}
	mu       sync.Mutex
}
