// Package curseforgetest provides test doubles for curseforge.Client used
// across the installer's test suites, including the rejecting client that
// backs invariant 2 ("prior-install short-circuit issues no network calls").
package curseforgetest

import (
	"context"
	"strconv"
	"testing"

	"github.com/mcservers/cfinstaller/curseforge"
)

// FakeClient is an in-memory curseforge.Client double. Zero value is usable;
// populate the maps/slices the test needs before use.
type FakeClient struct {
	Mods          map[int]curseforge.Mod
	Files         map[string]curseforge.File // key: fmt.Sprintf("%d:%d", modID, fileID)
	SlugIDs       map[string]int
	SearchResult  curseforge.Mod
	ModpackFile   curseforge.File
	DownloadDir   map[int]string // projectID -> path returned by Download
	DownloadCalls int
	Closed        bool
}

// NewFakeClient returns a FakeClient with all maps initialized.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Mods:        make(map[int]curseforge.Mod),
		Files:       make(map[string]curseforge.File),
		SlugIDs:     make(map[string]int),
		DownloadDir: make(map[int]string),
	}
}

func fileKey(modID, fileID int) string {
	return strconv.Itoa(modID) + ":" + strconv.Itoa(fileID)
}

func (f *FakeClient) SearchMod(ctx context.Context, slug string, categoryInfo curseforge.CategoryInfo) (curseforge.Mod, error) {
	return f.SearchResult, nil
}

func (f *FakeClient) LoadCategoryInfo(ctx context.Context, classSlugs []string, packCategorySlug string) (curseforge.CategoryInfo, error) {
	return curseforge.CategoryInfo{ContentClassIDs: map[int]curseforge.Category{}}, nil
}

func (f *FakeClient) ResolveModpackFile(ctx context.Context, mod curseforge.Mod, fileMatcher string) (curseforge.File, error) {
	return f.ModpackFile, nil
}

func (f *FakeClient) GetModFileInfo(ctx context.Context, modID, fileID int) (curseforge.File, error) {
	if file, ok := f.Files[fileKey(modID, fileID)]; ok {
		return file, nil
	}
	return curseforge.File{}, curseforge.ErrMissing
}

func (f *FakeClient) GetModInfo(ctx context.Context, projectID int) (curseforge.Mod, error) {
	if mod, ok := f.Mods[projectID]; ok {
		return mod, nil
	}
	return curseforge.Mod{}, curseforge.ErrMissing
}

func (f *FakeClient) SlugToID(ctx context.Context, categoryInfo curseforge.CategoryInfo, slug string) (int, error) {
	if id, ok := f.SlugIDs[slug]; ok {
		return id, nil
	}
	return 0, curseforge.ErrMissing
}

func (f *FakeClient) Download(ctx context.Context, file curseforge.File, baseDir string, cb curseforge.StatusCallback) (string, error) {
	f.DownloadCalls++
	path := baseDir + "/" + file.FileName
	if p, ok := f.DownloadDir[file.ModID]; ok {
		path = p
	}
	if cb != nil {
		cb(curseforge.StatusDownloaded, file.DownloadURL, path)
	}
	return path, nil
}

func (f *FakeClient) DownloadTemp(ctx context.Context, file curseforge.File, ext string, cb curseforge.StatusCallback) (string, error) {
	f.DownloadCalls++
	return "/tmp/fake." + ext, nil
}

func (f *FakeClient) Close() error {
	f.Closed = true
	return nil
}

// RejectingClient fails the test immediately if any method is called. It
// backs invariant 2: the prior-install short-circuit must issue no Registry
// calls at all.
type RejectingClient struct {
	t *testing.T
}

// NewRejectingClient returns a Client that fails t if any method is invoked.
func NewRejectingClient(t *testing.T) *RejectingClient {
	return &RejectingClient{t: t}
}

func (r *RejectingClient) fail(method string) {
	r.t.Helper()
	r.t.Fatalf("unexpected Registry call: %s (prior install should have short-circuited)", method)
}

func (r *RejectingClient) SearchMod(ctx context.Context, slug string, categoryInfo curseforge.CategoryInfo) (curseforge.Mod, error) {
	r.fail("SearchMod")
	return curseforge.Mod{}, nil
}

func (r *RejectingClient) LoadCategoryInfo(ctx context.Context, classSlugs []string, packCategorySlug string) (curseforge.CategoryInfo, error) {
	r.fail("LoadCategoryInfo")
	return curseforge.CategoryInfo{}, nil
}

func (r *RejectingClient) ResolveModpackFile(ctx context.Context, mod curseforge.Mod, fileMatcher string) (curseforge.File, error) {
	r.fail("ResolveModpackFile")
	return curseforge.File{}, nil
}

func (r *RejectingClient) GetModFileInfo(ctx context.Context, modID, fileID int) (curseforge.File, error) {
	r.fail("GetModFileInfo")
	return curseforge.File{}, nil
}

func (r *RejectingClient) GetModInfo(ctx context.Context, projectID int) (curseforge.Mod, error) {
	r.fail("GetModInfo")
	return curseforge.Mod{}, nil
}

func (r *RejectingClient) SlugToID(ctx context.Context, categoryInfo curseforge.CategoryInfo, slug string) (int, error) {
	r.fail("SlugToID")
	return 0, nil
}

func (r *RejectingClient) Download(ctx context.Context, file curseforge.File, baseDir string, cb curseforge.StatusCallback) (string, error) {
	r.fail("Download")
	return "", nil
}

func (r *RejectingClient) DownloadTemp(ctx context.Context, file curseforge.File, ext string, cb curseforge.StatusCallback) (string, error) {
	r.fail("DownloadTemp")
	return "", nil
}

func (r *RejectingClient) Close() error {
	return nil
}
