package manifest

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
  "name": "All the Mods 9",
  "version": "1.0.5",
  "manifestType": "minecraftModpack",
  "overrides": "overrides",
  "minecraft": {
    "version": "1.20.1",
    "modLoaders": [{"id": "forge-47.1.0", "primary": true}]
  },
  "files": [
    {"projectID": 1001, "fileID": 2001, "required": true}
  ]
}`

func TestParseStandalone(t *testing.T) {
	m, err := ParseStandalone(strings.NewReader(sampleManifest))

	require.NoError(t, err)
	assert.Equal(t, "All the Mods 9", m.Name)
	assert.Equal(t, "1.20.1", m.Minecraft.Version)
	require.Len(t, m.Files, 1)
	assert.Equal(t, 1001, m.Files[0].ProjectID)
}

func TestPrimaryModLoader_Found(t *testing.T) {
	m, err := ParseStandalone(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	loader, err := m.PrimaryModLoader()

	require.NoError(t, err)
	assert.Equal(t, "forge-47.1.0", loader.ID)
}

func TestPrimaryModLoader_Missing(t *testing.T) {
	m := &PackManifest{Minecraft: MinecraftSection{ModLoaders: []ModLoader{{ID: "forge-47.1.0", Primary: false}}}}

	_, err := m.PrimaryModLoader()

	assert.ErrorIs(t, err, ErrNoPrimaryLoader)
}

func TestValidate_RejectsWrongManifestType(t *testing.T) {
	m := &PackManifest{ManifestType: "somethingElse"}

	err := m.Validate()

	assert.ErrorIs(t, err, ErrNotAModpack)
}

func TestExtractFromArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pack.zip")
	writeZip(t, archivePath, map[string]string{
		"manifest.json":          sampleManifest,
		"overrides/config/a.cfg": "hello",
	})

	m, err := ExtractFromArchive(archivePath)

	require.NoError(t, err)
	assert.Equal(t, "All the Mods 9", m.Name)
}

func TestExtractFromArchive_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pack.zip")
	writeZip(t, archivePath, map[string]string{"overrides/config/a.cfg": "hello"})

	_, err := ExtractFromArchive(archivePath)

	assert.True(t, errors.Is(err, ErrNoManifest))
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}
