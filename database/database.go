package database

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"capsulecheck/classifier"
	"capsulecheck/imageprocessor"
	"capsulecheck/logging"
	"capsulecheck/types"

	_ "github.com/mattn/go-sqlite3"
	"gonum.org/v1/gonum/stat"
)

// InitDatabase initializes and returns a database connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; scan workers share this handle
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS classifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		app_id TEXT,
		source_path TEXT NOT NULL,
		template_path TEXT NOT NULL,
		status TEXT NOT NULL,
		is_likely_auto_generated INTEGER NOT NULL DEFAULT 0,
		chosen_method TEXT,
		match_score REAL,
		match_threshold REAL,
		blur_variance REAL,
		resampled INTEGER NOT NULL DEFAULT 0,
		matcher_ran INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		source_modified_at TEXT,
		template_modified_at TEXT,
		classified_at TEXT,
		UNIQUE(source_path, template_path)
	);
	CREATE INDEX IF NOT EXISTS idx_source_path ON classifications(source_path);
	CREATE INDEX IF NOT EXISTS idx_status ON classifications(status);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, err
	}

	// Databases written before hashing was added lack capsule_hash
	var hasHashColumn bool
	err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('classifications') WHERE name='capsule_hash'").Scan(&hasHashColumn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error checking for capsule_hash column: %w", err)
	}

	if !hasHashColumn {
		if _, err = db.Exec("ALTER TABLE classifications ADD COLUMN capsule_hash TEXT;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("error adding capsule_hash column: %w", err)
		}
		logging.DebugLog("Added 'capsule_hash' column to existing database schema")
	}

	if _, err = db.Exec("CREATE INDEX IF NOT EXISTS idx_capsule_hash ON classifications(capsule_hash);"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating capsule_hash index: %w", err)
	}

	return db, nil
}

// OpenDatabase opens an existing database connection
func OpenDatabase(dbPath string) (*sql.DB, error) {
	return sql.Open("sqlite3", dbPath)
}

// StoredState is what a previous classification recorded for a pair
type StoredState struct {
	Status             string
	SourceModifiedAt   string
	TemplateModifiedAt string
}

// CheckResultExists reports whether a pair has been classified before and
// returns the status and modification times recorded for it
func CheckResultExists(db *sql.DB, sourcePath, templatePath string) (bool, StoredState, error) {
	var status, sourceMod, templateMod sql.NullString
	err := db.QueryRow(
		"SELECT status, source_modified_at, template_modified_at FROM classifications WHERE source_path = ? AND template_path = ?",
		sourcePath, templatePath,
	).Scan(&status, &sourceMod, &templateMod)
	if err == sql.ErrNoRows {
		return false, StoredState{}, nil
	}
	if err != nil {
		return false, StoredState{}, fmt.Errorf("database error for %s: %w", sourcePath, err)
	}
	return true, StoredState{
		Status:             status.String,
		SourceModifiedAt:   sourceMod.String,
		TemplateModifiedAt: templateMod.String,
	}, nil
}

// StoreResult inserts or replaces the record for a pair
func StoreResult(db *sql.DB, record types.ClassificationRecord) error {
	if record.ClassifiedAt == "" {
		record.ClassifiedAt = time.Now().Format(time.RFC3339)
	}

	stmt, err := db.Prepare(`
		INSERT INTO classifications (
			app_id, source_path, template_path, status, is_likely_auto_generated,
			chosen_method, match_score, match_threshold, blur_variance, resampled,
			matcher_ran, capsule_hash, error_message, source_modified_at,
			template_modified_at, classified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_path, template_path) DO UPDATE SET
			app_id = excluded.app_id,
			status = excluded.status,
			is_likely_auto_generated = excluded.is_likely_auto_generated,
			chosen_method = excluded.chosen_method,
			match_score = excluded.match_score,
			match_threshold = excluded.match_threshold,
			blur_variance = excluded.blur_variance,
			resampled = excluded.resampled,
			matcher_ran = excluded.matcher_ran,
			capsule_hash = excluded.capsule_hash,
			error_message = excluded.error_message,
			source_modified_at = excluded.source_modified_at,
			template_modified_at = excluded.template_modified_at,
			classified_at = excluded.classified_at
	`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement for %s: %w", record.SourcePath, err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		record.AppID,
		record.SourcePath,
		record.TemplatePath,
		record.Status,
		record.IsLikelyAutoGenerated,
		methodColumn(record.ChosenMethod),
		record.MatchScore,
		record.MatchThreshold,
		record.BlurVariance,
		record.Resampled,
		record.MatcherRan,
		record.CapsuleHash,
		record.ErrorMessage,
		record.SourceModifiedAt,
		record.TemplateModifiedAt,
		record.ClassifiedAt,
	)
	if err != nil {
		return fmt.Errorf("cannot insert data for %s: %w", record.SourcePath, err)
	}
	return nil
}

// methodColumn stores MethodNone as NULL
func methodColumn(m classifier.MatchMethod) sql.NullString {
	if m == classifier.MethodNone {
		return sql.NullString{}
	}
	return sql.NullString{String: m.String(), Valid: true}
}

const recordColumns = `id, app_id, source_path, template_path, status, is_likely_auto_generated,
	chosen_method, match_score, match_threshold, blur_variance, resampled, matcher_ran,
	capsule_hash, error_message, source_modified_at, template_modified_at, classified_at`

// prefixFilter limits rows to source paths under folderPrefix
func prefixFilter(folderPrefix string) (string, []interface{}) {
	if folderPrefix == "" {
		return "1 = 1", nil
	}
	return "substr(source_path, 1, length(?)) = ?", []interface{}{folderPrefix, folderPrefix}
}

// QueryFlagged returns pairs classified as likely auto-generated
func QueryFlagged(db *sql.DB, folderPrefix string) ([]types.ClassificationRecord, error) {
	where, args := prefixFilter(folderPrefix)
	query := "SELECT " + recordColumns + " FROM classifications WHERE status = ? AND is_likely_auto_generated = 1 AND " +
		where + " ORDER BY app_id, source_path"
	return queryRecords(db, query, append([]interface{}{types.StatusClassified}, args...)...)
}

// QueryResults returns every stored record, optionally limited to a folder
func QueryResults(db *sql.DB, folderPrefix string) ([]types.ClassificationRecord, error) {
	where, args := prefixFilter(folderPrefix)
	query := "SELECT " + recordColumns + " FROM classifications WHERE " + where + " ORDER BY app_id, source_path"
	return queryRecords(db, query, args...)
}

func queryRecords(db *sql.DB, query string, args ...interface{}) ([]types.ClassificationRecord, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer rows.Close()

	var records []types.ClassificationRecord
	for rows.Next() {
		var r types.ClassificationRecord
		var appID, method, hash, errMsg, sourceMod, templateMod, classifiedAt sql.NullString
		var score, threshold, variance sql.NullFloat64
		if err := rows.Scan(&r.ID, &appID, &r.SourcePath, &r.TemplatePath, &r.Status, &r.IsLikelyAutoGenerated,
			&method, &score, &threshold, &variance, &r.Resampled, &r.MatcherRan,
			&hash, &errMsg, &sourceMod, &templateMod, &classifiedAt); err != nil {
			return nil, fmt.Errorf("failed to read classification row: %w", err)
		}
		r.AppID = appID.String
		if r.ChosenMethod, err = classifier.ParseMatchMethod(method.String); err != nil {
			return nil, fmt.Errorf("bad chosen_method in row %d: %w", r.ID, err)
		}
		r.MatchScore = score.Float64
		r.MatchThreshold = threshold.Float64
		r.BlurVariance = variance.Float64
		r.CapsuleHash = hash.String
		r.ErrorMessage = errMsg.String
		r.SourceModifiedAt = sourceMod.String
		r.TemplateModifiedAt = templateMod.String
		r.ClassifiedAt = classifiedAt.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// ScanStats contains statistics over stored classifications
type ScanStats struct {
	TotalPairs          int
	Flagged             int
	DecodeErrors        int
	DimensionMismatches int
	Errors              int
	MatcherRuns         int
	UniqueCapsuleHashes int

	BlurVarianceMean   float64
	BlurVarianceStdDev float64
	BlurVarianceMedian float64
	FlaggedScoreMean   float64
}

// GetScanStats summarizes stored classifications under folderPrefix
func GetScanStats(db *sql.DB, folderPrefix string) (*ScanStats, error) {
	records, err := QueryResults(db, folderPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan stats: %w", err)
	}

	var stats ScanStats
	var variances, flaggedScores []float64
	hashes := make(map[string]struct{})

	for _, r := range records {
		stats.TotalPairs++
		switch r.Status {
		case types.StatusDecodeError:
			stats.DecodeErrors++
			continue
		case types.StatusDimensionMismatch:
			stats.DimensionMismatches++
			continue
		case types.StatusError:
			stats.Errors++
			continue
		}

		variances = append(variances, r.BlurVariance)
		if r.MatcherRan {
			stats.MatcherRuns++
		}
		if r.IsLikelyAutoGenerated {
			stats.Flagged++
			flaggedScores = append(flaggedScores, r.MatchScore)
		}
		if r.CapsuleHash != "" {
			hashes[r.CapsuleHash] = struct{}{}
		}
	}
	stats.UniqueCapsuleHashes = len(hashes)

	if len(variances) > 0 {
		stats.BlurVarianceMean = stat.Mean(variances, nil)
		sort.Float64s(variances)
		stats.BlurVarianceMedian = stat.Quantile(0.5, stat.Empirical, variances, nil)
	}
	if len(variances) > 1 {
		stats.BlurVarianceStdDev = stat.StdDev(variances, nil)
	}
	if len(flaggedScores) > 0 {
		stats.FlaggedScoreMean = stat.Mean(flaggedScores, nil)
	}

	return &stats, nil
}

// DefaultDuplicateDistance is the largest Hamming distance between two
// capsule hashes that still counts as the same artwork
const DefaultDuplicateDistance = 4

// FindDuplicateCapsules groups classified capsules whose difference hashes
// are at most maxDistance apart. Each capsule joins the first group whose
// leading hash is close enough, so groups are ordered by their leading hash
// and paths within a group are sorted. Only groups of two or more capsules
// are returned. A maxDistance of 0 groups identical hashes.
func FindDuplicateCapsules(db *sql.DB, folderPrefix string, maxDistance int) ([]types.DuplicateGroup, error) {
	where, args := prefixFilter(folderPrefix)
	query := `SELECT DISTINCT capsule_hash, source_path FROM classifications
		WHERE capsule_hash IS NOT NULL AND capsule_hash != '' AND ` + where + `
		ORDER BY capsule_hash, source_path`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query capsule hashes: %w", err)
	}
	defer rows.Close()

	var groups []types.DuplicateGroup
	seen := make(map[string]bool)
	for rows.Next() {
		var hash, path string
		if err := rows.Scan(&hash, &path); err != nil {
			return nil, fmt.Errorf("failed to read capsule hash row: %w", err)
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		if _, err := imageprocessor.HashDistance(hash, hash); err != nil {
			logging.LogWarning("Skipping capsule %s: %v", path, err)
			continue
		}

		joined := false
		for i := range groups {
			distance, err := imageprocessor.HashDistance(groups[i].Hash, hash)
			if err != nil {
				return nil, err
			}
			if distance <= maxDistance {
				groups[i].Paths = append(groups[i].Paths, path)
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, types.DuplicateGroup{Hash: hash, Paths: []string{path}})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	duplicates := make([]types.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		if len(g.Paths) > 1 {
			sort.Strings(g.Paths)
			duplicates = append(duplicates, g)
		}
	}
	return duplicates, nil
}
