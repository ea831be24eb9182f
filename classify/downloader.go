// Package classify implements the File Classifier & Downloader: for each
// referenced project+file, it determines the destination subtree, applies
// the client/server filter, downloads through the Registry client and
// post-processes bundled worlds, running the per-reference pipeline
// concurrently across the pack's file list.
package classify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/remeh/sizedwaitgroup"
	log "github.com/sirupsen/logrus"

	"github.com/mcservers/cfinstaller/curseforge"
	"github.com/mcservers/cfinstaller/manifest"
	"github.com/mcservers/cfinstaller/worldzip"
)

// CompileIgnoreGlobs compiles the operator's ignoreGlobs config entries,
// the teacher's IgnoreFiles mechanism kept as a convenience layered over
// the exclude/include ID sets. A pattern that fails to compile is reported
// with the offending pattern named.
func CompileIgnoreGlobs(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling ignoreGlobs pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

func matchesAnyGlob(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// DefaultConcurrency mirrors the teacher's downloadMods fan-out width.
const DefaultConcurrency = 5

// OutputPaths are the three directories a pack's files are sorted into.
type OutputPaths struct {
	ModsDir    string
	PluginsDir string
	WorldsDir  string
}

// PathWithInfo is a written file path plus, for an extracted bundled world
// selected as the level, the level name.
type PathWithInfo struct {
	Path      string
	LevelName string
}

// ErrUnsupportedCategory is returned when a file's resolved category slug is
// none of the three recognized subtrees.
type ErrUnsupportedCategory struct {
	Slug string
	Mod  string
}

func (e *ErrUnsupportedCategory) Error() string {
	return fmt.Sprintf("unsupported category type=%s from mod=%s", e.Slug, e.Mod)
}

// LevelFrom selects which source determines the "LEVEL" result, mirroring
// §6 Configuration's levelFrom.
type LevelFrom int

const (
	LevelFromUnset LevelFrom = iota
	LevelFromOverrides
	LevelFromWorldFile
)

// Options configures one run of the download pipeline.
type Options struct {
	Client        curseforge.Client
	CategoryInfo  curseforge.CategoryInfo
	OutputRoot    string
	Excludes      map[int]bool
	ForceIncludes map[int]bool
	IgnoreGlobs   []glob.Glob
	Concurrency   int
	LevelFrom     LevelFrom
}

// DownloadAll runs the per-reference pipeline over every required,
// non-excluded file in the pack manifest, concurrently, and returns the
// completed results gathered into a single slice before returning (§5: no
// suspension point is visible past this call; overrides must not start
// until this returns).
func DownloadAll(ctx context.Context, refs []manifest.FileRef, paths OutputPaths, opts Options) ([]PathWithInfo, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	swg := sizedwaitgroup.New(concurrency)

	var (
		mu      sync.Mutex
		results []PathWithInfo
		firstErr error
	)

	for _, ref := range refs {
		if !ref.Required {
			continue
		}
		if opts.Excludes[ref.ProjectID] {
			log.Debugf("skipping project=%d: excluded", ref.ProjectID)
			continue
		}

		swg.Add()
		go func(ref manifest.FileRef) {
			defer swg.Done()

			result, skip, err := downloadOne(ctx, ref, paths, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if !skip {
				results = append(results, result)
			}
		}(ref)
	}

	swg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// downloadOne runs the pipeline for a single FileRef. skip=true means the
// reference was legitimately dropped (unknown category, client-only mod,
// author-disallowed distribution) and is not an error.
func downloadOne(ctx context.Context, ref manifest.FileRef, paths OutputPaths, opts Options) (PathWithInfo, bool, error) {
	modInfo, err := opts.Client.GetModInfo(ctx, ref.ProjectID)
	if err != nil {
		return PathWithInfo{}, false, err
	}

	category, ok := opts.CategoryInfo.ContentClassIDs[modInfo.ClassID]
	if !ok {
		log.Debugf("skipping project=%d slug=%s file=%d since it is not an applicable classId=%d",
			ref.ProjectID, modInfo.Slug, ref.FileID, modInfo.ClassID)
		return PathWithInfo{}, true, nil
	}

	baseDir, isWorld, ok := destinationFor(category, paths)
	if !ok {
		return PathWithInfo{}, false, &ErrUnsupportedCategory{Slug: category.Slug, Mod: modInfo.Slug}
	}

	fileInfo, err := opts.Client.GetModFileInfo(ctx, ref.ProjectID, ref.FileID)
	if err != nil {
		return PathWithInfo{}, false, err
	}

	if matchesAnyGlob(opts.IgnoreGlobs, fileInfo.FileName) {
		log.Debugf("skipping %s: matches an ignoreGlobs pattern", fileInfo.FileName)
		return PathWithInfo{}, true, nil
	}

	if !opts.ForceIncludes[ref.ProjectID] && !isServerMod(fileInfo) {
		log.Debugf("skipping %s since it is a client mod", fileInfo.FileName)
		return PathWithInfo{}, true, nil
	}

	if fileInfo.DownloadURL == "" {
		log.Warnf("the authors of '%s' have disallowed project distribution; manually download '%s' from %s and supply it separately",
			modInfo.Name, displayName(fileInfo), websiteOrFallback(modInfo))
		return PathWithInfo{}, true, nil
	}

	path, err := opts.Client.Download(ctx, fileInfo, baseDir, func(status curseforge.DownloadStatus, url, p string) {
		switch status {
		case curseforge.StatusSkipFileExists:
			log.Infof("mod file %s already exists", p)
		case curseforge.StatusDownloaded:
			log.Infof("downloaded mod file %s", p)
		}
	})
	if err != nil {
		return PathWithInfo{}, false, err
	}

	if !isWorld {
		return PathWithInfo{Path: path}, false, nil
	}

	extracted, err := worldzip.Extract(worldzip.Options{
		ZipPath:      path,
		OutputRoot:   opts.OutputRoot,
		WorldsDir:    paths.WorldsDir,
		Slug:         modInfo.Slug,
		ShouldExpand: opts.LevelFrom == LevelFromWorldFile,
	})
	if err != nil {
		return PathWithInfo{}, false, err
	}
	return PathWithInfo{Path: path, LevelName: extracted.LevelName}, false, nil
}

func destinationFor(category curseforge.Category, paths OutputPaths) (baseDir string, isWorld bool, ok bool) {
	switch {
	case strings.HasSuffix(category.Slug, "-mods"):
		return paths.ModsDir, false, true
	case strings.HasSuffix(category.Slug, "-plugins"):
		return paths.PluginsDir, false, true
	case category.Slug == "worlds":
		return paths.WorldsDir, true, true
	default:
		return "", false, false
	}
}

// isServerMod implements §4.4's server-mod predicate: marked server always
// wins; marked client-only loses unless force-included; unmarked (a
// library) is accepted.
func isServerMod(f curseforge.File) bool {
	client := false
	for _, v := range f.GameVersions {
		lower := strings.ToLower(v)
		if lower == "server" {
			return true
		}
		if lower == "client" {
			client = true
		}
	}
	return !client
}

func displayName(f curseforge.File) string {
	if f.FileName != "" {
		return f.FileName
	}
	return f.DisplayName
}

func websiteOrFallback(m curseforge.Mod) string {
	if m.Links.WebsiteURL != "" {
		return m.Links.WebsiteURL
	}
	return "their CurseForge page"
}
