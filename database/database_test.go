package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	"capsulecheck/classifier"
	"capsulecheck/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDatabase(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func classified(appID, source string, flagged bool, variance, score float64, hash string) types.ClassificationRecord {
	return types.ClassificationRecord{
		AppID:                 appID,
		SourcePath:            source,
		TemplatePath:          source + ".header.jpg",
		Status:                types.StatusClassified,
		IsLikelyAutoGenerated: flagged,
		ChosenMethod:          classifier.CoefficientCorrelationNormalized,
		MatchScore:            score,
		MatchThreshold:        0.5,
		BlurVariance:          variance,
		MatcherRan:            flagged,
		CapsuleHash:           hash,
		SourceModifiedAt:      "2024-01-02T03:04:05Z",
		TemplateModifiedAt:    "2024-01-02T03:04:06Z",
	}
}

func TestInitDatabase_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	db, err := InitDatabase(path)
	require.NoError(t, err)
	require.NoError(t, StoreResult(db, classified("1", "/lib/a.jpg", true, 10, 0.9, "d:1")))
	require.NoError(t, db.Close())

	db, err = InitDatabase(path)
	require.NoError(t, err)
	defer db.Close()

	records, err := QueryResults(db, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInitDatabase_AddsHashColumnToOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	old, err := OpenDatabase(path)
	require.NoError(t, err)
	_, err = old.Exec(`CREATE TABLE classifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		app_id TEXT, source_path TEXT NOT NULL, template_path TEXT NOT NULL,
		status TEXT NOT NULL, is_likely_auto_generated INTEGER NOT NULL DEFAULT 0,
		chosen_method TEXT, match_score REAL, match_threshold REAL, blur_variance REAL,
		resampled INTEGER NOT NULL DEFAULT 0, matcher_ran INTEGER NOT NULL DEFAULT 0,
		error_message TEXT, source_modified_at TEXT, template_modified_at TEXT, classified_at TEXT,
		UNIQUE(source_path, template_path))`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	db, err := InitDatabase(path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, StoreResult(db, classified("1", "/lib/a.jpg", false, 10, 0, "d:abc")))
	records, err := QueryResults(db, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "d:abc", records[0].CapsuleHash)
}

func TestStoreResult_UpsertsAndCheckResultExists(t *testing.T) {
	db := newTestDB(t)

	exists, _, err := CheckResultExists(db, "/lib/a.jpg", "/lib/a.jpg.header.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	rec := classified("7", "/lib/a.jpg", false, 2000, 0, "d:1")
	require.NoError(t, StoreResult(db, rec))

	exists, state, err := CheckResultExists(db, rec.SourcePath, rec.TemplatePath)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, StoredState{
		Status:             types.StatusClassified,
		SourceModifiedAt:   rec.SourceModifiedAt,
		TemplateModifiedAt: rec.TemplateModifiedAt,
	}, state)

	rec.IsLikelyAutoGenerated = true
	rec.MatchScore = 0.97
	rec.SourceModifiedAt = "2025-01-01T00:00:00Z"
	require.NoError(t, StoreResult(db, rec))

	records, err := QueryResults(db, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsLikelyAutoGenerated)
	assert.Equal(t, 0.97, records[0].MatchScore)
	assert.Equal(t, "2025-01-01T00:00:00Z", records[0].SourceModifiedAt)
	assert.NotEmpty(t, records[0].ClassifiedAt)
}

func TestQueryFlagged_FiltersStatusAndPrefix(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, StoreResult(db, classified("2", "/steam/b.jpg", true, 20, 0.8, "d:2")))
	require.NoError(t, StoreResult(db, classified("1", "/steam/a.jpg", true, 30, 0.9, "d:1")))
	require.NoError(t, StoreResult(db, classified("3", "/steam/c.jpg", false, 3000, 0, "d:3")))
	require.NoError(t, StoreResult(db, classified("4", "/other/d.jpg", true, 10, 0.7, "d:4")))
	require.NoError(t, StoreResult(db, types.ClassificationRecord{
		AppID:        "5",
		SourcePath:   "/steam/e.jpg",
		TemplatePath: "/steam/e_header.jpg",
		Status:       types.StatusDecodeError,
		ErrorMessage: "cannot decode",
	}))

	flagged, err := QueryFlagged(db, "/steam/")
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	assert.Equal(t, "1", flagged[0].AppID)
	assert.Equal(t, "2", flagged[1].AppID)

	all, err := QueryFlagged(db, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetScanStats(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, StoreResult(db, classified("1", "/s/a.jpg", true, 10, 0.9, "d:1")))
	require.NoError(t, StoreResult(db, classified("2", "/s/b.jpg", true, 30, 0.7, "d:1")))
	require.NoError(t, StoreResult(db, classified("3", "/s/c.jpg", false, 2000, 0, "d:2")))
	require.NoError(t, StoreResult(db, types.ClassificationRecord{
		SourcePath: "/s/d.jpg", TemplatePath: "/s/d_h.jpg", Status: types.StatusDimensionMismatch,
	}))
	require.NoError(t, StoreResult(db, types.ClassificationRecord{
		SourcePath: "/s/e.jpg", TemplatePath: "/s/e_h.jpg", Status: types.StatusDecodeError,
	}))

	stats, err := GetScanStats(db, "")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalPairs)
	assert.Equal(t, 2, stats.Flagged)
	assert.Equal(t, 1, stats.DecodeErrors)
	assert.Equal(t, 1, stats.DimensionMismatches)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 2, stats.MatcherRuns)
	assert.Equal(t, 2, stats.UniqueCapsuleHashes)
	assert.InDelta(t, 680, stats.BlurVarianceMean, 1e-9)
	assert.InDelta(t, 30, stats.BlurVarianceMedian, 1e-9)
	assert.Greater(t, stats.BlurVarianceStdDev, 0.0)
	assert.InDelta(t, 0.8, stats.FlaggedScoreMean, 1e-9)

	empty, err := GetScanStats(db, "/nowhere/")
	require.NoError(t, err)
	assert.Equal(t, ScanStats{}, *empty)
}

func TestFindDuplicateCapsules(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, StoreResult(db, classified("1", "/s/b.jpg", true, 10, 0.9, "d:aa")))
	require.NoError(t, StoreResult(db, classified("2", "/s/a.jpg", true, 10, 0.9, "d:aa")))
	require.NoError(t, StoreResult(db, classified("3", "/s/c.jpg", false, 10, 0.9, "d:bb")))
	require.NoError(t, StoreResult(db, classified("4", "/t/d.jpg", false, 10, 0.9, "d:bb")))

	groups, err := FindDuplicateCapsules(db, "", 0)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, types.DuplicateGroup{Hash: "d:aa", Paths: []string{"/s/a.jpg", "/s/b.jpg"}}, groups[0])
	assert.Equal(t, "d:bb", groups[1].Hash)

	scoped, err := FindDuplicateCapsules(db, "/s/", 0)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "d:aa", scoped[0].Hash)
}

func TestFindDuplicateCapsules_WithinDistance(t *testing.T) {
	db := newTestDB(t)

	// 0xf0 and 0xf1 differ by one bit, 0x0f is eight bits from both.
	require.NoError(t, StoreResult(db, classified("1", "/s/a.jpg", true, 10, 0.9, "d:f0")))
	require.NoError(t, StoreResult(db, classified("2", "/s/b.jpg", true, 10, 0.9, "d:f1")))
	require.NoError(t, StoreResult(db, classified("3", "/s/c.jpg", false, 10, 0.9, "d:0f")))
	require.NoError(t, StoreResult(db, classified("4", "/s/d.jpg", false, 10, 0.9, "not-a-hash")))

	exact, err := FindDuplicateCapsules(db, "", 0)
	require.NoError(t, err)
	assert.Empty(t, exact)

	near, err := FindDuplicateCapsules(db, "", 1)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, types.DuplicateGroup{Hash: "d:f0", Paths: []string{"/s/a.jpg", "/s/b.jpg"}}, near[0])

	loose, err := FindDuplicateCapsules(db, "", 8)
	require.NoError(t, err)
	require.Len(t, loose, 1)
	assert.Equal(t, "d:0f", loose[0].Hash)
	assert.Equal(t, []string{"/s/a.jpg", "/s/b.jpg", "/s/c.jpg"}, loose[0].Paths)
}

func TestQueryResults_ChosenMethodRoundTrip(t *testing.T) {
	db := newTestDB(t)

	rec := classified("1", "/s/a.jpg", false, 2000, 0, "d:1")
	rec.ChosenMethod = classifier.MethodNone
	require.NoError(t, StoreResult(db, rec))

	var stored sql.NullString
	require.NoError(t, db.QueryRow("SELECT chosen_method FROM classifications").Scan(&stored))
	assert.False(t, stored.Valid, "no method is stored as NULL")

	records, err := QueryResults(db, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, classifier.MethodNone, records[0].ChosenMethod)

	_, err = db.Exec("UPDATE classifications SET chosen_method = 'bogus'")
	require.NoError(t, err)
	_, err = QueryResults(db, "")
	assert.ErrorContains(t, err, "chosen_method")
}
