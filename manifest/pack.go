// Package manifest parses a modpack's manifest.json and persists the
// installer's own record of what it wrote (curseforge.json).
package manifest

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
)

// ManifestTypeModpack is the only manifestType value this installer accepts.
const ManifestTypeModpack = "minecraftModpack"

// ErrNotAModpack is returned when a pack manifest's manifestType field does
// not identify a Minecraft modpack.
var ErrNotAModpack = fmt.Errorf("the zip file provided does not seem to be a Minecraft modpack")

// ErrNoManifest is returned when a pack archive has no manifest.json entry.
var ErrNoManifest = fmt.Errorf("modpack file is missing a manifest.json; make sure to reference a client modpack file")

// ErrNoPrimaryLoader is returned when a pack manifest names no primary mod loader.
var ErrNoPrimaryLoader = fmt.Errorf("unable to find primary mod loader in modpack")

// FileRef references a single project+file pair declared by a pack manifest.
type FileRef struct {
	ProjectID int  `json:"projectID"`
	FileID    int  `json:"fileID"`
	Required  bool `json:"required"`
}

// ModLoader is one entry of PackManifest.Minecraft.ModLoaders.
type ModLoader struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

// MinecraftSection describes the target Minecraft version and loader.
type MinecraftSection struct {
	Version    string      `json:"version"`
	ModLoaders []ModLoader `json:"modLoaders"`
}

// PackManifest is the parsed form of a pack's manifest.json.
type PackManifest struct {
	Name         string           `json:"name"`
	Version      string           `json:"version"`
	ManifestType string           `json:"manifestType"`
	Overrides    string           `json:"overrides"`
	Minecraft    MinecraftSection `json:"minecraft"`
	Files        []FileRef        `json:"files"`
}

// PrimaryModLoader returns the single mod loader entry marked primary.
func (p *PackManifest) PrimaryModLoader() (ModLoader, error) {
	for _, l := range p.Minecraft.ModLoaders {
		if l.Primary {
			return l, nil
		}
	}
	return ModLoader{}, ErrNoPrimaryLoader
}

// Validate checks the manifestType and presence of a primary mod loader.
func (p *PackManifest) Validate() error {
	if p.ManifestType != ManifestTypeModpack {
		return ErrNotAModpack
	}
	if _, err := p.PrimaryModLoader(); err != nil {
		return err
	}
	return nil
}

// ParseStandalone parses a standalone manifest.json file's bytes, as used by
// installFromManifestFile.
func ParseStandalone(r io.Reader) (*PackManifest, error) {
	var m PackManifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding pack manifest: %w", err)
	}
	return &m, nil
}

// ExtractFromArchive finds and parses the manifest.json entry embedded in a
// pack archive (a zip file).
func ExtractFromArchive(archivePath string) (*PackManifest, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening modpack archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == "manifest.json" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("opening manifest.json in archive: %w", err)
			}
			defer rc.Close()
			return ParseStandalone(rc)
		}
	}
	return nil, ErrNoManifest
}
