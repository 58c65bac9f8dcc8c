package types

import "capsulecheck/classifier"

// Status values recorded for every classified pair
const (
	StatusClassified        = "classified"
	StatusDecodeError       = "decode_error"
	StatusDimensionMismatch = "dimension_mismatch"
	StatusError             = "error"
)

// ArtworkPair is a capsule image and the header image it may have been
// generated from
type ArtworkPair struct {
	AppID        string `json:"app_id"`
	SourcePath   string `json:"source_path"`
	TemplatePath string `json:"template_path"`
	SizeHint     string `json:"size_hint"`
}

// ClassificationRecord holds the stored outcome for one pair
type ClassificationRecord struct {
	ID                    int64   `json:"id"`
	AppID                 string  `json:"app_id"`
	SourcePath            string  `json:"source_path"`
	TemplatePath          string  `json:"template_path"`
	Status                string  `json:"status"`
	IsLikelyAutoGenerated bool    `json:"is_likely_auto_generated"`
	// ChosenMethod is MethodNone when the matcher did not run
	ChosenMethod       classifier.MatchMethod `json:"chosen_method"`
	MatchScore         float64                `json:"match_score"`
	MatchThreshold     float64                `json:"match_threshold"`
	BlurVariance       float64                `json:"blur_variance"`
	Resampled          bool                   `json:"resampled"`
	MatcherRan         bool                   `json:"matcher_ran"`
	CapsuleHash        string                 `json:"capsule_hash"`
	ErrorMessage       string                 `json:"error_message"`
	SourceModifiedAt   string                 `json:"source_modified_at"`
	TemplateModifiedAt string                 `json:"template_modified_at"`
	ClassifiedAt       string                 `json:"classified_at"`
}

// DuplicateGroup lists capsules whose difference hashes are within the
// requested Hamming distance of Hash, the group's first member
type DuplicateGroup struct {
	Hash  string
	Paths []string
}
