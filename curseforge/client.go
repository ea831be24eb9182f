// Package curseforge implements the Registry client contract consumed by
// the installer: project/file metadata lookups, slug resolution and
// downloads against a CurseForge-compatible v1 REST API.
package curseforge

import (
	"context"
	"fmt"
)

// DownloadStatus distinguishes, purely for logging, whether a download was
// actually performed or the destination file was already present.
type DownloadStatus int

const (
	// StatusDownloaded means bytes were fetched from the Registry.
	StatusDownloaded DownloadStatus = iota
	// StatusSkipFileExists means the destination already existed.
	StatusSkipFileExists
)

// StatusCallback is invoked by download/downloadTemp with the outcome.
type StatusCallback func(status DownloadStatus, url, path string)

// Category is a single content-classification entry (e.g. "mc-mods").
type Category struct {
	ID   int
	Slug string
}

// CategoryInfo indexes categories under the applicable class IDs.
type CategoryInfo struct {
	ContentClassIDs map[int]Category
}

// Links carries a project's public-facing URLs.
type Links struct {
	WebsiteURL string
}

// Mod is Registry project metadata.
type Mod struct {
	ID      int
	Name    string
	Slug    string
	ClassID int
	Links   Links
}

// File is Registry file metadata for one project file.
type File struct {
	ID           int
	ModID        int
	FileName     string
	DisplayName  string
	DownloadURL  string
	GameVersions []string
}

// HTTPError carries a Registry HTTP failure's status code so the orchestrator
// can recognize 403 and rewrite it into a configuration error.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("curseforge: request failed with status %d: %s", e.StatusCode, e.Message)
}

// ErrMissing is returned when a lookup legitimately found nothing (the
// empty-failure case distinguished from a transport error).
var ErrMissing = fmt.Errorf("curseforge: unable to resolve requested resource")

// Client is the Registry client interface consumed by the installer. The
// concrete implementation lives in client_impl.go; tests substitute a
// fake satisfying this interface.
type Client interface {
	SearchMod(ctx context.Context, slug string, categoryInfo CategoryInfo) (Mod, error)
	LoadCategoryInfo(ctx context.Context, classSlugs []string, packCategorySlug string) (CategoryInfo, error)
	ResolveModpackFile(ctx context.Context, mod Mod, fileMatcher string) (File, error)
	GetModFileInfo(ctx context.Context, modID, fileID int) (File, error)
	GetModInfo(ctx context.Context, projectID int) (Mod, error)
	SlugToID(ctx context.Context, categoryInfo CategoryInfo, slug string) (int, error)
	Download(ctx context.Context, file File, baseDir string, cb StatusCallback) (string, error)
	DownloadTemp(ctx context.Context, file File, ext string, cb StatusCallback) (string, error)
	Close() error
}
