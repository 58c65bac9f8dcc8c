package steam

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"capsulecheck/logging"

	"github.com/andygrunwald/vdf"
)

// steamID64Base is the SteamID64 of account 0 in the public universe.
// userdata directories are named by the offset from it.
const steamID64Base = 76561197960265728

// ErrUserNotFound is returned when a requested Steam user has no account on
// this machine
var ErrUserNotFound = errors.New("steam user not found")

// Account is a login remembered by the Steam client
type Account struct {
	Username    string
	SteamID     string
	AccountID   string
	PersonaName string
}

func readVDF(path string) (map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := vdf.NewParser(f).Parse()
	if err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return data, nil
}

// lookup finds key ignoring case; clients disagree on "Steam" vs "steam"
func lookup(node map[string]interface{}, key string) interface{} {
	if v, ok := node[key]; ok {
		return v
	}
	for k, v := range node {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

// section descends through nested blocks, returning nil if any is missing
func section(node map[string]interface{}, keys ...string) map[string]interface{} {
	for _, key := range keys {
		next, ok := lookup(node, key).(map[string]interface{})
		if !ok {
			return nil
		}
		node = next
	}
	return node
}

func stringValue(node map[string]interface{}, key string) string {
	s, _ := lookup(node, key).(string)
	return s
}

func accountIDFromSteamID(steamID string) (string, bool) {
	id, err := strconv.ParseUint(steamID, 10, 64)
	if err != nil || id <= steamID64Base {
		return "", false
	}
	return strconv.FormatUint(id-steamID64Base, 10), true
}

// ListAccounts reads the logins stored in config/config.vdf, sorted by
// username. PersonaName is filled in when the account's localconfig.vdf
// has one.
func ListAccounts(root string) ([]Account, error) {
	data, err := readVDF(filepath.Join(root, "config", "config.vdf"))
	if err != nil {
		return nil, fmt.Errorf("cannot read Steam accounts: %w", err)
	}

	entries := section(data, "InstallConfigStore", "Software", "Valve", "Steam", "Accounts")
	accounts := make([]Account, 0, len(entries))
	for username, value := range entries {
		fields, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		account := Account{Username: username, SteamID: stringValue(fields, "SteamID")}
		if id, ok := accountIDFromSteamID(account.SteamID); ok {
			account.AccountID = id
			if name, err := PersonaName(root, id); err == nil {
				account.PersonaName = name
			}
		}
		accounts = append(accounts, account)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Username < accounts[j].Username
	})
	return accounts, nil
}

// PersonaName returns the display name stored in a user's localconfig.vdf
func PersonaName(root, accountID string) (string, error) {
	path := filepath.Join(root, "userdata", accountID, "config", "localconfig.vdf")
	data, err := readVDF(path)
	if err != nil {
		return "", err
	}

	name := stringValue(section(data, "UserLocalConfigStore", "friends"), "PersonaName")
	if name == "" {
		return "", fmt.Errorf("no persona name in %s", path)
	}
	return name, nil
}

// SelectUser resolves name to a userdata account ID. name may be an account
// ID, a SteamID64, a login name or a persona name.
func SelectUser(root, name string) (string, error) {
	name = strings.TrimSpace(name)

	users, err := ListUsers(root)
	if err != nil {
		return "", err
	}
	for _, id := range users {
		if id == name {
			return id, nil
		}
	}

	accounts, err := ListAccounts(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s (%v)", ErrUserNotFound, name, err)
	}
	for _, account := range accounts {
		if account.AccountID == "" {
			continue
		}
		if account.SteamID == name ||
			strings.EqualFold(account.Username, name) ||
			strings.EqualFold(account.PersonaName, name) {
			return account.AccountID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUserNotFound, name)
}

// LibraryFolders returns every steamapps directory: the one under root
// followed by those listed in steamapps/libraryfolders.vdf, without repeats.
// A missing libraryfolders.vdf leaves just the first.
func LibraryFolders(root string) ([]string, error) {
	folders := []string{filepath.Join(root, "steamapps")}

	data, err := readVDF(filepath.Join(root, "steamapps", "libraryfolders.vdf"))
	if errors.Is(err, os.ErrNotExist) {
		return folders, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read Steam library folders: %w", err)
	}

	entries := section(data, "libraryfolders")
	var indexes []int
	for key := range entries {
		if i, err := strconv.Atoi(key); err == nil {
			indexes = append(indexes, i)
		}
	}
	sort.Ints(indexes)

	seen := map[string]bool{folders[0]: true}
	for _, i := range indexes {
		var path string
		switch v := entries[strconv.Itoa(i)].(type) {
		case map[string]interface{}:
			path = stringValue(v, "path")
		case string:
			// Older clients store the path directly
			path = v
		}
		if path == "" {
			continue
		}
		dir := filepath.Join(path, "steamapps")
		if !seen[dir] {
			seen[dir] = true
			folders = append(folders, dir)
		}
	}
	return folders, nil
}

// InstalledGames maps app IDs to names from the appmanifest_*.acf files in
// every library folder. Unreadable manifests are skipped.
func InstalledGames(root string) (map[string]string, error) {
	folders, err := LibraryFolders(root)
	if err != nil {
		return nil, err
	}

	games := make(map[string]string)
	for _, folder := range folders {
		manifests, err := filepath.Glob(filepath.Join(folder, "appmanifest_*.acf"))
		if err != nil {
			return nil, err
		}
		for _, manifest := range manifests {
			data, err := readVDF(manifest)
			if err != nil {
				logging.LogWarning("Skipping app manifest %s: %v", manifest, err)
				continue
			}
			state := section(data, "AppState")
			appID, name := stringValue(state, "appid"), stringValue(state, "name")
			if appID != "" && name != "" {
				games[appID] = name
			}
		}
	}
	return games, nil
}
