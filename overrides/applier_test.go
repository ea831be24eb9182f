package overrides

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestApply_WritesOverridesVerbatim(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pack.zip")
	outRoot := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outRoot, 0o755))

	writeArchive(t, archivePath, map[string]string{
		"manifest.json":          "{}",
		"overrides/config/a.cfg": "hello",
	})

	result, err := Apply(Options{ArchivePath: archivePath, OverridesDir: "overrides", OutputRoot: outRoot})

	require.NoError(t, err)
	assert.Len(t, result.Paths, 1)
	data, err := os.ReadFile(filepath.Join(outRoot, "config", "a.cfg"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestApply_WorldDataNeverOverwritten(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pack.zip")
	outRoot := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(filepath.Join(outRoot, "world"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outRoot, "world", "level.dat"), []byte("existing"), 0o644))

	writeArchive(t, archivePath, map[string]string{
		"overrides/world/level.dat":        "frompack",
		"overrides/world/region/r.0.0.mca": "regiondata",
		"overrides/config/a.cfg":           "cfgdata",
	})

	result, err := Apply(Options{
		ArchivePath:     archivePath,
		OverridesDir:    "overrides",
		OutputRoot:      outRoot,
		LevelFromPolicy: LevelFromPolicyOverrides,
	})

	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outRoot, "world", "level.dat"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data), "world data must never be overwritten")

	_, err = os.Stat(filepath.Join(outRoot, "world", "region", "r.0.0.mca"))
	assert.True(t, os.IsNotExist(err), "new world file must not be written either")

	for _, p := range result.Paths {
		assert.NotContains(t, p, filepath.Join(outRoot, "world"), "world paths must never be tracked")
	}

	assert.Equal(t, "world", result.LevelName)
}

func TestApply_OverridesSkipExistingLeavesFileButStillTracks(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pack.zip")
	outRoot := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outRoot, "a.cfg"), []byte("operatorEdited"), 0o644))

	writeArchive(t, archivePath, map[string]string{"overrides/a.cfg": "fromPack"})

	result, err := Apply(Options{ArchivePath: archivePath, OverridesDir: "overrides", OutputRoot: outRoot, SkipExisting: true})

	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(outRoot, "a.cfg"))
	require.NoError(t, err)
	assert.Equal(t, "operatorEdited", string(data))
	assert.Contains(t, result.Paths, filepath.Join(outRoot, "a.cfg"))
}

func TestApply_LevelNameOnlyWhenPolicyIsOverrides(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pack.zip")
	outRoot := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outRoot, 0o755))

	writeArchive(t, archivePath, map[string]string{"overrides/world/level.dat": "x"})

	result, err := Apply(Options{ArchivePath: archivePath, OverridesDir: "overrides", OutputRoot: outRoot, LevelFromPolicy: LevelFromPolicyWorldFile})

	require.NoError(t, err)
	assert.Empty(t, result.LevelName)
}

func TestApply_ExactLevelDatEntryGovernedBySameSkipRule(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pack.zip")
	outRoot := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(filepath.Join(outRoot, "world"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outRoot, "world", "level.dat"), []byte("existing"), 0o644))

	writeArchive(t, archivePath, map[string]string{"overrides/world/level.dat": "fromPack"})

	result, err := Apply(Options{ArchivePath: archivePath, OverridesDir: "overrides", OutputRoot: outRoot, LevelFromPolicy: LevelFromPolicyOverrides})

	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(outRoot, "world", "level.dat"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))
	assert.Empty(t, result.Paths)
}
