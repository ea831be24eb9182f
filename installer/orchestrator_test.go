package installer

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcservers/cfinstaller/curseforge"
	"github.com/mcservers/cfinstaller/curseforgetest"
	"github.com/mcservers/cfinstaller/manifest"
)

type recordingLoader struct {
	called        bool
	mcVersion     string
	loaderVersion string
}

func (r *recordingLoader) Install(mcVersion, loaderVersion, outputRoot, resultsFile string) error {
	r.called = true
	r.mcVersion = mcVersion
	r.loaderVersion = loaderVersion
	return nil
}

const testManifestJSON = `{
  "name": "Test Pack",
  "version": "1.0.0",
  "manifestType": "minecraftModpack",
  "overrides": "overrides",
  "minecraft": {
    "version": "1.20.1",
    "modLoaders": [{"id": "forge-47.1.0", "primary": true}]
  },
  "files": []
}`

func writeTestArchive(t *testing.T, dir string, extra map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "pack.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("manifest.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(testManifestJSON))
	require.NoError(t, err)

	for name, content := range extra {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return path
}

func newTestOrchestrator(outputRoot string, forge, fabric *recordingLoader, client curseforge.Client) *Orchestrator {
	return New(outputRoot, filepath.Join(outputRoot, "results.txt"), Options{
		APIKey:         "test-key",
		ForgeOverride:  forge,
		FabricOverride: fabric,
		NewClient:      func(curseforge.Options) curseforge.Client { return client },
	})
}

func TestInstallFromArchive_FreshInstall(t *testing.T) {
	root := t.TempDir()
	archive := writeTestArchive(t, t.TempDir(), nil)

	forge, fabric := &recordingLoader{}, &recordingLoader{}
	client := curseforgetest.NewFakeClient()
	o := newTestOrchestrator(root, forge, fabric, client)

	err := o.InstallFromArchive(context.Background(), archive, "test-pack")
	require.NoError(t, err)

	assert.True(t, forge.called)
	assert.Equal(t, "1.20.1", forge.mcVersion)
	assert.Equal(t, "47.1.0", forge.loaderVersion)

	persisted, err := manifest.Load(root)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "Test Pack", persisted.ModpackName)
	assert.Equal(t, "forge-47.1.0", persisted.ModLoaderID)

	results, err := os.ReadFile(filepath.Join(root, "results.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(results), "VERSION=1.20.1")
}

func TestInstallFromArchive_IdempotentWhenAllFilesPresent(t *testing.T) {
	root := t.TempDir()
	archive := writeTestArchive(t, t.TempDir(), nil)

	forge, fabric := &recordingLoader{}, &recordingLoader{}
	client := curseforgetest.NewFakeClient()
	o := newTestOrchestrator(root, forge, fabric, client)

	require.NoError(t, o.InstallFromArchive(context.Background(), archive, "test-pack"))
	require.True(t, forge.called)

	// Second install against the same output root and same pack: the
	// manifest already matches and every tracked file is present, so this
	// short-circuits into finalize-existing, which still double-checks the
	// mod loader. Only LoadCategoryInfo reaches the client before the
	// short-circuit; no file lookup or download follows (see the no-API-key
	// test below for a run with no client at all).
	forge2, fabric2 := &recordingLoader{}, &recordingLoader{}
	o2 := newTestOrchestrator(root, forge2, fabric2, client)
	require.NoError(t, o2.InstallFromArchive(context.Background(), archive, "test-pack"))

	assert.True(t, forge2.called, "finalize-existing re-checks the mod loader")

	results, err := os.ReadFile(filepath.Join(root, "results.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(results), "VERSION=1.20.1")
}

func TestInstallFromArchive_ForceSynchronizeReinstalls(t *testing.T) {
	root := t.TempDir()
	archive := writeTestArchive(t, t.TempDir(), nil)

	forge, fabric := &recordingLoader{}, &recordingLoader{}
	client := curseforgetest.NewFakeClient()
	o := newTestOrchestrator(root, forge, fabric, client)
	require.NoError(t, o.InstallFromArchive(context.Background(), archive, "test-pack"))

	forge2, fabric2 := &recordingLoader{}, &recordingLoader{}
	o2 := New(root, filepath.Join(root, "results.txt"), Options{
		APIKey:           "test-key",
		ForgeOverride:    forge2,
		FabricOverride:   fabric2,
		ForceSynchronize: true,
		NewClient:        func(curseforge.Options) curseforge.Client { return client },
	})
	require.NoError(t, o2.InstallFromArchive(context.Background(), archive, "test-pack"))
	assert.True(t, forge2.called, "forceSynchronize must re-run the full install even when the manifest matches")
}

func TestInstall_NoAPIKeyWithPriorInstallShortCircuits(t *testing.T) {
	root := t.TempDir()
	archive := writeTestArchive(t, t.TempDir(), nil)

	forge, fabric := &recordingLoader{}, &recordingLoader{}
	client := curseforgetest.NewFakeClient()
	o := newTestOrchestrator(root, forge, fabric, client)
	require.NoError(t, o.InstallFromArchive(context.Background(), archive, "test-pack"))

	// No API key and no injected NewClient factory: the missing key sends
	// the orchestrator to finalize-existing before any client is built.
	// Forge/FabricOverride stand in for the real Maven-talking installers
	// so this test stays network-free.
	forge2, fabric2 := &recordingLoader{}, &recordingLoader{}
	o2 := New(root, filepath.Join(root, "results.txt"), Options{
		ForgeOverride:  forge2,
		FabricOverride: fabric2,
	})

	err := o2.InstallFromArchive(context.Background(), archive, "test-pack")
	require.NoError(t, err)
	assert.True(t, forge2.called)

	results, err := os.ReadFile(filepath.Join(root, "results.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(results), "VERSION=1.20.1")
}

func TestInstall_NoAPIKeyNoPriorInstallIsConfigurationError(t *testing.T) {
	root := t.TempDir()
	archive := writeTestArchive(t, t.TempDir(), nil)

	o := New(root, filepath.Join(root, "results.txt"), Options{})

	err := o.InstallFromArchive(context.Background(), archive, "test-pack")
	require.Error(t, err)
	var cfgErr *ErrConfiguration
	assert.ErrorAs(t, err, &cfgErr)
}

func TestInstall_ForbiddenIsRewrittenToConfigurationError(t *testing.T) {
	root := t.TempDir()
	archive := writeTestArchive(t, t.TempDir(), nil)

	o := New(root, filepath.Join(root, "results.txt"), Options{
		APIKey: "bad-key",
		NewClient: func(curseforge.Options) curseforge.Client {
			return &forbiddenClient{}
		},
	})

	err := o.InstallFromArchive(context.Background(), archive, "test-pack")
	require.Error(t, err)
	var cfgErr *ErrConfiguration
	assert.ErrorAs(t, err, &cfgErr)
}

func TestInstallFromSlug_NoDownloadURLIsAccessDenied(t *testing.T) {
	root := t.TempDir()

	client := curseforgetest.NewFakeClient()
	client.SearchResult = curseforge.Mod{ID: 99, Slug: "test-pack"}
	client.ModpackFile = curseforge.File{ID: 500, ModID: 99, FileName: "pack.zip", DownloadURL: ""}

	forge, fabric := &recordingLoader{}, &recordingLoader{}
	o := newTestOrchestrator(root, forge, fabric, client)

	err := o.InstallFromSlug(context.Background(), "test-pack", "", nil)
	require.Error(t, err)
	var accessErr *ErrAccessDenied
	assert.ErrorAs(t, err, &accessErr)
}

// forbiddenClient fails LoadCategoryInfo with a 403, the earliest point the
// orchestrator calls the Registry after constructing the client.
type forbiddenClient struct{}

func (c *forbiddenClient) SearchMod(ctx context.Context, slug string, categoryInfo curseforge.CategoryInfo) (curseforge.Mod, error) {
	return curseforge.Mod{}, nil
}
func (c *forbiddenClient) LoadCategoryInfo(ctx context.Context, classSlugs []string, packCategorySlug string) (curseforge.CategoryInfo, error) {
	return curseforge.CategoryInfo{}, &curseforge.HTTPError{StatusCode: 403, Message: "forbidden"}
}
func (c *forbiddenClient) ResolveModpackFile(ctx context.Context, mod curseforge.Mod, fileMatcher string) (curseforge.File, error) {
	return curseforge.File{}, nil
}
func (c *forbiddenClient) GetModFileInfo(ctx context.Context, modID, fileID int) (curseforge.File, error) {
	return curseforge.File{}, nil
}
func (c *forbiddenClient) GetModInfo(ctx context.Context, projectID int) (curseforge.Mod, error) {
	return curseforge.Mod{}, nil
}
func (c *forbiddenClient) SlugToID(ctx context.Context, categoryInfo curseforge.CategoryInfo, slug string) (int, error) {
	return 0, nil
}
func (c *forbiddenClient) Download(ctx context.Context, file curseforge.File, baseDir string, cb curseforge.StatusCallback) (string, error) {
	return "", nil
}
func (c *forbiddenClient) DownloadTemp(ctx context.Context, file curseforge.File, ext string, cb curseforge.StatusCallback) (string, error) {
	return "", nil
}
func (c *forbiddenClient) Close() error { return nil }
