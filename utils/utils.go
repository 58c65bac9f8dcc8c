package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"capsulecheck/classifier"
	"capsulecheck/logging"
)

// Commands understood by the CLI
var commands = map[string]bool{
	"classify": true,
	"scan":     true,
	"report":   true,
}

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	return ParseArgumentList(os.Args[1:])
}

// ParseArgumentList converts an argument list into a map of flags and values.
// The first bare command word is stored under "command".
func ParseArgumentList(argv []string) map[string]string {
	args := make(map[string]string)

	for i := 0; i < len(argv); i++ {
		arg := argv[i]

		if !strings.HasPrefix(arg, "--") {
			if _, seen := args["command"]; !seen && commands[arg] {
				args["command"] = arg
			}
			continue
		}

		// Handle flags with equals sign (--key=value)
		if strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			args[strings.TrimPrefix(parts[0], "--")] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		flagName := strings.TrimPrefix(arg, "--")
		if i+1 >= len(argv) || strings.HasPrefix(argv[i+1], "--") || commands[argv[i+1]] {
			args[flagName] = "true"
		} else {
			args[flagName] = argv[i+1]
			i++
		}
	}

	return args
}

// IsFlagSet reports whether a boolean flag was given and not set to false
func IsFlagSet(args map[string]string, name string) bool {
	value, ok := args[name]
	if !ok {
		return false
	}
	enabled, err := strconv.ParseBool(value)
	return err != nil || enabled
}

// GetDefaultDatabasePath returns the default path for the database file
func GetDefaultDatabasePath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "capsulecheck.db"
	}
	return filepath.Join(filepath.Dir(exePath), "capsulecheck.db")
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	defaults := classifier.DefaultConfig()

	fmt.Printf("Usage:\n")
	fmt.Printf("  %s classify --source=PATH --template=PATH [threshold flags] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s scan (--folder=PATH | --steam [--steam-user=NAME]) [--database=PATH] [threshold flags] [--workers=N] [--force] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s report [--database=PATH] [--folder=PATH] [--only-flagged] [--duplicate-distance=N]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --source          : Capsule image to test\n")
	fmt.Printf("  --template        : Header image the capsule may have been built from\n")
	fmt.Printf("  --folder          : Folder containing Steam artwork (librarycache or grid)\n")
	fmt.Printf("  --steam           : Scan the local Steam librarycache ($STEAM overrides discovery)\n")
	fmt.Printf("  --steam-user      : Only scan this user's grid (account ID, SteamID64, login or persona name)\n")
	fmt.Printf("  --database        : Path to database file (default: %s)\n", GetDefaultDatabasePath())
	fmt.Printf("  --blur-threshold  : Background Laplacian variance below which it counts as blurred (default: %g)\n", defaults.BlurThreshold)
	fmt.Printf("  --match-threshold : Template match threshold (default: %g)\n", defaults.MatchThreshold)
	fmt.Printf("  --size-hint       : Canonical size to resample to when the header is larger (%s)\n",
		strings.Join(classifier.CanonicalTags(), ", "))
	fmt.Printf("  --resample-factor : Threshold tightening applied after resampling (default: %g)\n", defaults.ResampleTightenFactor)
	fmt.Printf("  --workers         : Number of parallel classifications (default: CPU based)\n")
	fmt.Printf("  --force           : Re-classify pairs that have not changed\n")
	fmt.Printf("  --only-flagged    : Report only capsules flagged as auto-generated\n")
	fmt.Printf("  --duplicate-distance : Capsule hash distance still reported as a duplicate (default: 4)\n")
	fmt.Printf("  --config          : YAML file supplying defaults for the flags above\n")
	fmt.Printf("  --debug           : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile         : Specify custom log file path (default: capsulecheck.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s classify --source=570_library_600x900.jpg --template=570_header.jpg\n", os.Args[0])
	fmt.Printf("  %s scan --steam --debug\n", os.Args[0])
	fmt.Printf("  %s report --only-flagged\n", os.Args[0])
}

// ParseThreshold parses a non-negative threshold value
func ParseThreshold(thresholdStr string) (float64, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(thresholdStr), 64)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid threshold value '%s'", thresholdStr)
	}
	return parsed, nil
}

// ParseDistance parses a non-negative Hamming distance
func ParseDistance(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid hash distance '%s'", s)
	}
	return n, nil
}

// ParseWorkers parses a positive worker count
func ParseWorkers(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid worker count '%s'", s)
	}
	return n, nil
}

// BuildConfig starts from the classifier defaults and applies any threshold
// flags present in args
func BuildConfig(args map[string]string) (classifier.Config, error) {
	cfg := classifier.DefaultConfig()

	floatFlags := []struct {
		name   string
		target *float64
	}{
		{"blur-threshold", &cfg.BlurThreshold},
		{"match-threshold", &cfg.MatchThreshold},
		{"resample-factor", &cfg.ResampleTightenFactor},
	}
	for _, f := range floatFlags {
		value, ok := args[f.name]
		if !ok {
			continue
		}
		parsed, err := ParseThreshold(value)
		if err != nil {
			return cfg, fmt.Errorf("--%s: %w", f.name, err)
		}
		*f.target = parsed
	}

	if hint, ok := args["size-hint"]; ok {
		dim, err := classifier.ParseDimension(hint)
		if err != nil {
			return cfg, fmt.Errorf("--size-hint: %w", err)
		}
		cfg.SizeHintTag = dim.String()
		if _, known := classifier.CanonicalSize(cfg.SizeHintTag); !known {
			logging.LogWarning("Size hint %s is not one of %s and will never resample",
				cfg.SizeHintTag, strings.Join(classifier.CanonicalTags(), ", "))
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
