// Package overrides streams a pack archive's overrides/ subtree onto disk,
// under the rule that existing world data is never overwritten.
package overrides

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const levelDatSuffix = "/level.dat"

// Options configures one overrides application.
type Options struct {
	ArchivePath     string
	OverridesDir    string // e.g. "overrides"
	OutputRoot      string
	SkipExisting    bool
	LevelFromPolicy LevelFromPolicy
}

// LevelFromPolicy mirrors classify.LevelFrom but kept independent so this
// package has no dependency on classify.
type LevelFromPolicy int

const (
	LevelFromPolicyUnset LevelFromPolicy = iota
	LevelFromPolicyOverrides
	LevelFromPolicyWorldFile
)

// Result is the set of paths written (or left alone, per overridesSkipExisting)
// and, when levelFromPolicy is Overrides, the detected embedded world's
// level name.
type Result struct {
	Paths     []string
	LevelName string
}

// Apply streams every file under opts.OverridesDir in the archive onto
// opts.OutputRoot.
func Apply(opts Options) (Result, error) {
	levelEntryName, err := findLevelEntry(opts.ArchivePath, opts.OverridesDir)
	if err != nil {
		return Result{}, err
	}

	var levelEntryPrefix string
	worldOutputDirExists := false
	if levelEntryName != "" {
		levelEntryPrefix = levelEntryName + "/"
		if _, err := os.Stat(filepath.Join(opts.OutputRoot, levelEntryName)); err == nil {
			worldOutputDirExists = true
		}
	}

	log.Debugf("applying overrides: level entry=%q worldOutputDirExists=%v", levelEntryName, worldOutputDirExists)

	zr, err := zip.OpenReader(opts.ArchivePath)
	if err != nil {
		return Result{}, fmt.Errorf("opening modpack archive: %w", err)
	}
	defer zr.Close()

	overridesPrefix := opts.OverridesDir + "/"

	var paths []string
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if !strings.HasPrefix(entry.Name, overridesPrefix) {
			continue
		}

		subpath := strings.TrimPrefix(entry.Name, overridesPrefix)
		outPath := filepath.Join(opts.OutputRoot, filepath.FromSlash(subpath))

		isInWorldDirectory := levelEntryPrefix != "" && strings.HasPrefix(subpath, levelEntryPrefix)

		if worldOutputDirExists && isInWorldDirectory {
			continue
		}

		if !(opts.SkipExisting && fileExists(outPath)) {
			if err := writeEntry(entry, outPath); err != nil {
				return Result{}, err
			}
			log.Debugf("applied override %s", subpath)
		} else {
			log.Debugf("skipping override=%s since the file already existed", subpath)
		}

		if levelEntryName == "" || !isInWorldDirectory {
			paths = append(paths, outPath)
		}
	}

	levelName := ""
	if opts.LevelFromPolicy == LevelFromPolicyOverrides {
		levelName = levelEntryName
	}

	return Result{Paths: paths, LevelName: levelName}, nil
}

// findLevelEntry pre-scans the archive for the first non-directory entry
// under overridesDir ending in /level.dat, returning the relative subpath
// between overridesDir and that suffix (the embedded world directory name).
func findLevelEntry(archivePath, overridesDir string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening modpack archive: %w", err)
	}
	defer zr.Close()

	prefix := overridesDir + "/"
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := entry.Name
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, levelDatSuffix) {
			return name[len(prefix) : len(name)-len(levelDatSuffix)], nil
		}
	}
	return "", nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeEntry(entry *zip.File, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
