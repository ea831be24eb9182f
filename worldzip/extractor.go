// Package worldzip extracts a bundled world archive into saves/<slug>/,
// flattening the archive's single top-level directory.
package worldzip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// ErrFirstEntryNotDirectory is returned when a world archive's first entry
// is not a directory, which the format requires so the top-level name can
// be flattened away.
var ErrFirstEntryNotDirectory = fmt.Errorf("expected top-level directory in world zip")

// Options configures one extraction.
type Options struct {
	ZipPath      string
	OutputRoot   string
	WorldsDir    string
	Slug         string
	ShouldExpand bool // true iff levelFrom == WORLD_FILE
}

// Result carries the resolved level name, if the world was selected as the
// level (ShouldExpand was set).
type Result struct {
	LevelName string
}

// Extract extracts the archive at opts.ZipPath into
// <WorldsDir>/<Slug>/ the first time it is seen; on a later run, if the
// target directory already exists, it is left untouched. When
// opts.ShouldExpand is false the archive is left zipped and no level name
// is produced, per §4.6.
func Extract(opts Options) (Result, error) {
	if !opts.ShouldExpand {
		return Result{}, nil
	}

	worldDir := filepath.Join(opts.WorldsDir, opts.Slug)
	levelName := filepath.Join(opts.WorldsDir, opts.Slug)
	if opts.OutputRoot != "" {
		if rel, err := filepath.Rel(opts.OutputRoot, worldDir); err == nil {
			levelName = rel
		}
	}
	levelName = filepath.ToSlash(levelName)

	if _, err := os.Stat(worldDir); err == nil {
		log.Debugf("extracted world directory '%s' already exists for %s", worldDir, opts.Slug)
		return Result{LevelName: levelName}, nil
	}

	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating world directory: %w", err)
	}

	if err := extractFlattened(opts.ZipPath, worldDir); err != nil {
		return Result{}, err
	}

	return Result{LevelName: levelName}, nil
}

// extractFlattened streams the zip at zipPath into destDir, stripping the
// archive's first (directory) entry's name as a prefix from every
// subsequent entry.
func extractFlattened(zipPath, destDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("opening world zip: %w", err)
	}
	defer zr.Close()

	if len(zr.File) == 0 {
		return ErrFirstEntryNotDirectory
	}

	first := zr.File[0]
	if !first.FileInfo().IsDir() {
		return ErrFirstEntryNotDirectory
	}
	prefixLength := len(first.Name)

	for _, entry := range zr.File[1:] {
		if len(entry.Name) < prefixLength {
			continue
		}
		rel := entry.Name[prefixLength:]
		if rel == "" {
			continue
		}
		destPath := filepath.Join(destDir, filepath.FromSlash(rel))

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		if err := copyZipEntry(entry, destPath); err != nil {
			return err
		}
	}

	return nil
}

func copyZipEntry(entry *zip.File, destPath string) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
