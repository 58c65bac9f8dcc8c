package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"
	"time"

	"capsulecheck/classifier"
	"capsulecheck/database"
	"capsulecheck/logging"
	"capsulecheck/scanner"
	"capsulecheck/signalhandler"
	"capsulecheck/steam"
	"capsulecheck/types"
	"capsulecheck/utils"
)

func main() {
	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	args := utils.ParseArguments()
	command, hasCommand := args["command"]
	if err := utils.MergeConfigFile(args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	dbPath := utils.GetDefaultDatabasePath()
	if customDB, ok := args["database"]; ok && customDB != "" {
		dbPath = customDB
	} else if customDB, ok := args["db"]; ok && customDB != "" {
		// Allow --db as an alias for --database
		dbPath = customDB
	}

	debugMode := utils.IsFlagSet(args, "debug")
	_, levelFromEnv := os.LookupEnv(logging.LevelEnvVar)
	if debugMode || levelFromEnv {
		level := logging.LevelFromEnv()
		if debugMode {
			level = slog.LevelDebug
		}
		logPath := "capsulecheck.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath, level); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else if debugMode {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
	}

	showUsage := !hasCommand
	switch command {
	case "classify":
		showUsage = args["source"] == "" || args["template"] == ""
	case "scan":
		showUsage = args["folder"] == "" && !utils.IsFlagSet(args, "steam") && args["steam-user"] == ""
	}
	if showUsage {
		utils.PrintUsage()
		os.Exit(1)
	}

	var exitCode int
	switch command {
	case "classify":
		exitCode = handleClassifyCommand(args, debugMode)
	case "scan":
		exitCode = handleScanCommand(args, dbPath, debugMode)
	case "report":
		exitCode = handleReportCommand(args, dbPath)
	}

	logging.CloseLogger()
	os.Exit(exitCode)
}

func handleClassifyCommand(args map[string]string, debugMode bool) int {
	cfg, err := utils.BuildConfig(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	pair := types.ArtworkPair{
		SourcePath:   args["source"],
		TemplatePath: args["template"],
		SizeHint:     classifier.HintFromPath(args["source"]),
	}

	verdict, err := scanner.ClassifyPair(pair, cfg, debugMode)
	var mismatch *classifier.DimensionMismatchError
	switch {
	case errors.As(err, &mismatch):
		fmt.Printf("Cannot compare: %v\n", mismatch)
		fmt.Println("Pass --size-hint to resample the capsule to a canonical size.")
		return 2
	case err != nil:
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	fmt.Printf("Capsule:               %s\n", pair.SourcePath)
	fmt.Printf("Header:                %s\n", pair.TemplatePath)
	fmt.Printf("Background variance:   %.2f (blurred below %g)\n", verdict.BlurVariance, cfg.BlurThreshold)
	if verdict.Resampled {
		fmt.Printf("Resampled:             yes\n")
	}
	if verdict.MatcherRan {
		fmt.Printf("Best match method:     %s\n", verdict.ChosenMethod)
		fmt.Printf("Match score:           %g (threshold %g)\n", verdict.MatchScore, verdict.Match.Threshold)
		fmt.Printf("Match location:        %v\n", verdict.Match.Location)
	} else {
		fmt.Printf("Template match:        skipped, background is sharp\n")
	}
	fmt.Printf("Likely auto-generated: %v\n", verdict.IsLikelyAutoGenerated)
	return 0
}

// scanFolders returns the folders a scan should cover
func scanFolders(args map[string]string) ([]string, error) {
	if folder := args["folder"]; folder != "" {
		info, err := os.Stat(folder)
		if err != nil {
			return nil, fmt.Errorf("cannot access folder path %s: %w", folder, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", folder)
		}
		return []string{folder}, nil
	}

	root, err := steam.FindInstallation()
	if err != nil {
		return nil, err
	}
	folders := []string{steam.LibraryCacheDir(root)}

	var users []string
	if name := args["steam-user"]; name != "" {
		user, err := steam.SelectUser(root, name)
		if err != nil {
			return nil, err
		}
		logging.LogInfo("Using Steam user %s (account %s)", name, user)
		users = []string{user}
	} else if users, err = steam.ListUsers(root); err != nil {
		logging.LogWarning("No Steam users found: %v", err)
		return folders, nil
	}
	for _, user := range users {
		grid := steam.GridDir(root, user)
		if info, err := os.Stat(grid); err == nil && info.IsDir() {
			folders = append(folders, grid)
		}
	}
	return folders, nil
}

func handleScanCommand(args map[string]string, dbPath string, debugMode bool) int {
	ctx, stop := signalhandler.SetupHandler()
	defer stop()

	cfg, err := utils.BuildConfig(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	workers := signalhandler.GetOptimalProcs()
	if value, ok := args["workers"]; ok {
		if workers, err = utils.ParseWorkers(value); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
	}

	folders, err := scanFolders(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	startTime := time.Now()

	// Initialize database with retry logic
	var db *sql.DB
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		db, err = database.InitDatabase(dbPath)
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			log.Printf("Error initializing database (attempt %d/%d): %v - retrying...", i+1, maxRetries, err)
			time.Sleep(time.Second * time.Duration(i+1))
		} else {
			fmt.Printf("Error initializing database after %d attempts: %v\n", maxRetries, err)
			return 1
		}
	}
	defer db.Close()

	for _, folder := range folders {
		fmt.Printf("\nScanning %s\n", folder)
		options := scanner.ScanOptions{
			FolderPath:   folder,
			Config:       cfg,
			ForceRewrite: utils.IsFlagSet(args, "force"),
			DebugMode:    debugMode,
			DbPath:       dbPath,
			LogPath:      args["logfile"],
			MaxWorkers:   workers,
		}
		if _, err := scanner.ScanAndClassify(ctx, db, options); err != nil {
			fmt.Printf("Error scanning %s: %v\n", folder, err)
			return 1
		}
	}

	fmt.Printf("\nScan completed successfully!\n")
	fmt.Printf("Total execution time: %v\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("Database: %s\n", dbPath)
	return 0
}

func handleReportCommand(args map[string]string, dbPath string) int {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Printf("Database does not exist: %s. Run scan command first.\n", dbPath)
		return 1
	}

	db, err := database.OpenDatabase(dbPath)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		return 1
	}
	defer db.Close()

	folder := args["folder"]
	flagged, err := database.QueryFlagged(db, folder)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	// --only-flagged prints bare paths for use in scripts
	if utils.IsFlagSet(args, "only-flagged") {
		for _, r := range flagged {
			fmt.Println(r.SourcePath)
		}
		return 0
	}

	stats, err := database.GetScanStats(db, folder)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	fmt.Printf("Summary:\n")
	fmt.Printf("- Pairs classified:          %d\n", stats.TotalPairs)
	fmt.Printf("- Likely auto-generated:     %d\n", stats.Flagged)
	fmt.Printf("- Template match runs:       %d\n", stats.MatcherRuns)
	fmt.Printf("- Unreadable images:         %d\n", stats.DecodeErrors)
	fmt.Printf("- Header larger than capsule: %d\n", stats.DimensionMismatches)
	fmt.Printf("- Other errors:              %d\n", stats.Errors)
	fmt.Printf("- Unique capsule hashes:     %d\n", stats.UniqueCapsuleHashes)
	fmt.Printf("- Background variance:       mean %.1f, median %.1f, stddev %.1f\n",
		stats.BlurVarianceMean, stats.BlurVarianceMedian, stats.BlurVarianceStdDev)
	if stats.Flagged > 0 {
		fmt.Printf("- Mean score of flagged:     %g\n", stats.FlaggedScoreMean)
	}

	fmt.Println("\nLikely auto-generated capsules:")
	if len(flagged) == 0 {
		fmt.Println("None found.")
	}
	games := installedGameNames()
	for i, r := range flagged {
		fmt.Printf("%d. %s: %s\n", i+1, appLabel(r.AppID, games), r.SourcePath)
		fmt.Printf("   %s score %g (threshold %g), background variance %.1f\n",
			r.ChosenMethod, r.MatchScore, r.MatchThreshold, r.BlurVariance)
	}

	distance := database.DefaultDuplicateDistance
	if value, ok := args["duplicate-distance"]; ok {
		if distance, err = utils.ParseDistance(value); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
	}
	duplicates, err := database.FindDuplicateCapsules(db, folder, distance)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	if len(duplicates) > 0 {
		fmt.Printf("\nNear-identical capsules (hash distance <= %d):\n", distance)
		for _, group := range duplicates {
			fmt.Printf("- %s\n", group.Hash)
			for _, path := range group.Paths {
				fmt.Printf("    %s\n", path)
			}
		}
	}
	return 0
}

// installedGameNames maps app IDs to names when a Steam installation is
// available, and returns an empty map otherwise
func installedGameNames() map[string]string {
	root, err := steam.FindInstallation()
	if err != nil {
		logging.DebugLog("Game names unavailable: %v", err)
		return map[string]string{}
	}
	games, err := steam.InstalledGames(root)
	if err != nil {
		logging.LogWarning("Cannot read installed games: %v", err)
		return map[string]string{}
	}
	return games
}

func appLabel(appID string, games map[string]string) string {
	if name, ok := games[appID]; ok {
		return fmt.Sprintf("App %s (%s)", appID, name)
	}
	return "App " + appID
}
