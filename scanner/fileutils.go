package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"capsulecheck/classifier"
	"capsulecheck/imageprocessor"
	"capsulecheck/logging"
	"capsulecheck/types"
)

// Artwork naming used by the Steam client. The librarycache keeps
// "<appid>_library_600x900" capsules next to "<appid>_header" banners,
// newer clients nest "library_600x900" and "header" in a per-app folder,
// and user grids use "<appid>p" for the capsule and "<appid>" for the banner.
var (
	libraryCapsulePattern = regexp.MustCompile(`^(\d+)_library_600x900$`)
	libraryHeaderPattern  = regexp.MustCompile(`^(\d+)_header$`)
	gridCapsulePattern    = regexp.MustCompile(`^(\d+)p$`)
	gridHeaderPattern     = regexp.MustCompile(`^(\d+)$`)
	appDirPattern         = regexp.MustCompile(`^\d+$`)
)

const portraitCapsuleTag = "600x900"

type pairKey struct {
	dir   string
	appID string
	grid  bool
}

type pairParts struct {
	capsule string
	header  string
}

// artworkRole classifies one file name. It returns the app id, whether the
// file is a capsule (otherwise a header) and whether it uses grid naming.
func artworkRole(path string) (appID string, capsule, grid, ok bool) {
	base := strings.ToLower(filepath.Base(path))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if m := libraryCapsulePattern.FindStringSubmatch(stem); m != nil {
		return m[1], true, false, true
	}
	if m := libraryHeaderPattern.FindStringSubmatch(stem); m != nil {
		return m[1], false, false, true
	}
	if m := gridCapsulePattern.FindStringSubmatch(stem); m != nil {
		return m[1], true, true, true
	}
	if m := gridHeaderPattern.FindStringSubmatch(stem); m != nil {
		return m[1], false, true, true
	}

	parent := filepath.Base(filepath.Dir(path))
	if appDirPattern.MatchString(parent) {
		switch stem {
		case "library_600x900":
			return parent, true, false, true
		case "header":
			return parent, false, false, true
		}
	}
	return "", false, false, false
}

// DiscoverPairs walks folder and returns every capsule that has a matching
// header, ordered by app id and path
func DiscoverPairs(folder string) ([]types.ArtworkPair, error) {
	registry := imageprocessor.NewImageLoaderRegistry()
	parts := make(map[pairKey]*pairParts)

	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == folder {
				return err
			}
			logging.LogWarning("Error accessing path %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !registry.CanLoadFile(path) {
			return nil
		}

		appID, capsule, grid, ok := artworkRole(path)
		if !ok {
			return nil
		}

		key := pairKey{dir: filepath.Dir(path), appID: appID, grid: grid}
		p := parts[key]
		if p == nil {
			p = &pairParts{}
			parts[key] = p
		}
		// WalkDir is lexical, so the first extension seen wins
		if capsule && p.capsule == "" {
			p.capsule = path
		} else if !capsule && p.header == "" {
			p.header = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", folder, err)
	}

	pairs := make([]types.ArtworkPair, 0, len(parts))
	for key, p := range parts {
		if p.capsule == "" || p.header == "" {
			if p.capsule != "" {
				logging.DebugLog("No header found for capsule %s", p.capsule)
			}
			continue
		}

		hint := classifier.HintFromPath(p.capsule)
		if hint == "" && key.grid {
			hint = portraitCapsuleTag
		}
		pairs = append(pairs, types.ArtworkPair{
			AppID:        key.appID,
			SourcePath:   p.capsule,
			TemplatePath: p.header,
			SizeHint:     hint,
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].AppID != pairs[j].AppID {
			return pairs[i].AppID < pairs[j].AppID
		}
		return pairs[i].SourcePath < pairs[j].SourcePath
	})
	return pairs, nil
}
