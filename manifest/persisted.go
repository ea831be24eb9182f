package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// PersistedFileName is the name of the installer's own manifest, written at
// the output root after every successful install.
const PersistedFileName = "curseforge.json"

// PersistedManifest records everything a previous install wrote, so a later
// run can decide whether to skip work and what to clean up.
//
// This plays the role the teacher's LockFile played (config/lockfile.go),
// generalized from a boolean "loader/pack installed" flag pair into a full
// accounting of slug, pack identity and every file on disk.
type PersistedManifest struct {
	Slug             string   `json:"slug"`
	ModpackName      string   `json:"modpackName"`
	ModpackVersion   string   `json:"modpackVersion"`
	FileName         string   `json:"fileName"`
	ModID            int      `json:"modId"`
	FileID           int      `json:"fileId"`
	MinecraftVersion string   `json:"minecraftVersion"`
	ModLoaderID      string   `json:"modLoaderId"`
	LevelName        *string  `json:"levelName"`
	Files            []string `json:"files"`
}

// Load reads the persisted manifest at <root>/curseforge.json. A missing
// file is not an error: it simply means there is no prior install.
func Load(root string) (*PersistedManifest, error) {
	path := filepath.Join(root, PersistedFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var m PersistedManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	StripEmbeddedWorld(&m)

	return &m, nil
}

// StripEmbeddedWorld adapts a manifest loaded from an older install: any
// entry whose filename is level.dat identifies an embedded world directory,
// and every entry beginning with that directory's path is dropped. This is
// a one-way, idempotent upgrade step so that world data is never
// double-tracked once a manifest predates the world-preservation rules.
func StripEmbeddedWorld(m *PersistedManifest) {
	if m == nil {
		return
	}

	var prefix string
	for _, entry := range m.Files {
		if filepath.Base(entry) == "level.dat" {
			prefix = filepath.Dir(entry)
			break
		}
	}
	if prefix == "" {
		return
	}

	log.Debugf("found old manifest files with a world prefix=%s", prefix)

	var kept []string
	for _, entry := range m.Files {
		if entry == prefix || strings.HasPrefix(entry, prefix+"/") {
			continue
		}
		kept = append(kept, entry)
	}
	m.Files = kept
}

// Save atomically writes the manifest to <root>/curseforge.json by writing
// to a temp file in the same directory and renaming over it.
func Save(root string, m *PersistedManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(root, PersistedFileName)
	tmp, err := os.CreateTemp(root, ".curseforge-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// AllFilesPresent reports whether every file the manifest lists still
// exists on disk under root.
func AllFilesPresent(root string, m *PersistedManifest) bool {
	if m == nil {
		return false
	}
	for _, rel := range m.Files {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			return false
		}
	}
	return true
}

// RelativizeAll converts paths that lie under root (joined onto root, so
// absolute exactly when root is) into sorted, forward-slash-normalized
// paths relative to root.
func RelativizeAll(root string, paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, err
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out, nil
}

// Cleanup deletes every file present in prior.Files but absent from
// newManifest.Files, pruning any directory left empty as a result.
func Cleanup(root string, prior *PersistedManifest, newManifest *PersistedManifest) error {
	if prior == nil {
		return nil
	}

	keep := make(map[string]bool, len(newManifest.Files))
	for _, f := range newManifest.Files {
		keep[f] = true
	}

	dirs := make(map[string]bool)
	for _, f := range prior.Files {
		if keep[f] {
			continue
		}

		full := filepath.Join(root, filepath.FromSlash(f))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			log.Warnf("failed to remove stale file %s: %v", full, err)
			continue
		}
		log.Infof("removed stale file %s left over from prior install", f)
		dirs[filepath.Dir(full)] = true
	}

	for dir := range dirs {
		pruneEmptyDirs(root, dir)
	}

	return nil
}

// pruneEmptyDirs removes dir and any now-empty ancestor, stopping at root.
func pruneEmptyDirs(root, dir string) {
	for {
		if dir == root || dir == "." || dir == string(filepath.Separator) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
