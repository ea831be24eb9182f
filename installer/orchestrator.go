// Package installer implements the top-level state machine described in
// §4.1: it loads any prior install record, decides whether it still
// applies, and otherwise drives the pack-reference parser, exclude/include
// resolver, file classifier & downloader, overrides applier, world-zip
// extractor and mod-loader dispatcher to produce a fresh persisted
// manifest.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	log "github.com/sirupsen/logrus"

	"github.com/mcservers/cfinstaller/classify"
	"github.com/mcservers/cfinstaller/curseforge"
	"github.com/mcservers/cfinstaller/excludeinclude"
	"github.com/mcservers/cfinstaller/manifest"
	"github.com/mcservers/cfinstaller/modloader"
	"github.com/mcservers/cfinstaller/overrides"
	"github.com/mcservers/cfinstaller/resultsfile"
)

// APIKeyEnvVar names the environment variable operators are told to set.
const APIKeyEnvVar = "CF_API_KEY"

// ModpackZipEnvVar names the environment variable operators are told to use
// to manually supply a pack archive the Registry won't let us download.
const ModpackZipEnvVar = "CF_MODPACK_ZIP"

const developerConsoleURL = "https://console.curseforge.com/"
const categorySlugModpacks = "modpacks"

var applicableClassSlugs = []string{"mc-mods", "bukkit-plugins", "worlds"}

// ClientFactory constructs a Registry client for one install. Tests inject
// a factory that returns a fake; production wires curseforge.NewClient.
type ClientFactory func(opts curseforge.Options) curseforge.Client

// Options configures an Orchestrator for the lifetime of the process (it
// may run multiple installs sequentially against different output roots,
// per §5).
type Options struct {
	APIBaseURL                   string
	APIKey                       string
	ForceSynchronize             bool
	ExcludeIncludes              *excludeinclude.Content
	LevelFrom                    classify.LevelFrom
	OverridesSkipExisting        bool
	ResponseTimeout              time.Duration
	TLSHandshakeTimeout          time.Duration
	ConnectionPoolMaxIdleTimeout time.Duration
	Concurrency                  int

	// IgnoreGlobs is an operator convenience layered over ExcludeIncludes:
	// any resolved mod file whose name matches one of these glob patterns
	// is skipped, the same way the teacher's IgnoreFiles worked.
	IgnoreGlobs []string

	JavaPath           string
	ForgeInstallerArgs []string

	NewClient ClientFactory

	// ForgeOverride/FabricOverride let tests substitute a recording double
	// for the real Forge/Fabric installers, which otherwise are built
	// fresh each install and fetch their jars from Maven directly.
	ForgeOverride  modloader.Installer
	FabricOverride modloader.Installer
}

// forgeInstaller and fabricInstaller build fresh mod-loader installers that
// talk to Maven directly (see modloader.ForgeInstaller/FabricInstaller) —
// not through the Registry client — so they can run from finalize-existing
// even when no Registry client exists (no API key configured).
func (o *Orchestrator) forgeInstaller() modloader.Installer {
	if o.opts.ForgeOverride != nil {
		return o.opts.ForgeOverride
	}
	return &modloader.ForgeInstaller{JavaPath: o.opts.JavaPath, InstallerArguments: o.opts.ForgeInstallerArgs}
}

func (o *Orchestrator) fabricInstaller() modloader.Installer {
	if o.opts.FabricOverride != nil {
		return o.opts.FabricOverride
	}
	return &modloader.FabricInstaller{JavaPath: o.opts.JavaPath}
}

// Orchestrator is the Installer Orchestrator (§4.1).
type Orchestrator struct {
	outputRoot  string
	resultsFile string
	opts        Options
	ignoreGlobs []glob.Glob
}

// New constructs an Orchestrator writing under outputRoot and appending
// results to resultsFile. A malformed ignoreGlobs pattern is fatal at
// construction rather than surfacing mid-install.
func New(outputRoot, resultsFile string, opts Options) *Orchestrator {
	if opts.NewClient == nil {
		opts.NewClient = func(o curseforge.Options) curseforge.Client { return curseforge.NewClient(o) }
	}
	compiled, err := classify.CompileIgnoreGlobs(opts.IgnoreGlobs)
	if err != nil {
		log.Fatalf("invalid installer configuration: %v", err)
	}
	return &Orchestrator{outputRoot: outputRoot, resultsFile: resultsFile, opts: opts, ignoreGlobs: compiled}
}

// installContext is the per-install value described in §3: the slug, the
// Registry client, the resolved category taxonomy and any prior manifest.
type installContext struct {
	slug          string
	client        curseforge.Client
	categoryInfo  curseforge.CategoryInfo
	priorManifest *manifest.PersistedManifest
}

// entryPoint is one of the three top-level ways an install can begin.
type entryPoint func(ctx context.Context, ic *installContext) error

// InstallFromArchive parses archivePath's embedded manifest.json and
// installs it under slug.
func (o *Orchestrator) InstallFromArchive(ctx context.Context, archivePath, slug string) error {
	return o.install(ctx, slug, func(ctx context.Context, ic *installContext) error {
		packManifest, err := manifest.ExtractFromArchive(archivePath)
		if err != nil {
			return err
		}
		return o.processModpackManifest(ctx, ic, packManifest, func() (overrides.Result, error) {
			return o.applyOverrides(archivePath, packManifest.Overrides)
		})
	})
}

// InstallFromManifestFile parses a standalone manifest.json file; the
// overrides step is a no-op since there is no archive to stream them from.
func (o *Orchestrator) InstallFromManifestFile(ctx context.Context, manifestPath, slug string) error {
	return o.install(ctx, slug, func(ctx context.Context, ic *installContext) error {
		f, err := os.Open(manifestPath)
		if err != nil {
			return err
		}
		defer f.Close()

		packManifest, err := manifest.ParseStandalone(f)
		if err != nil {
			return err
		}
		return o.processModpackManifest(ctx, ic, packManifest, func() (overrides.Result, error) {
			return overrides.Result{}, nil
		})
	})
}

// InstallFromSlug searches the Registry for slug, resolves one pack file
// (by explicit fileID if given, else by fileMatcher), downloads it to a
// temp path, and proceeds as InstallFromArchive.
func (o *Orchestrator) InstallFromSlug(ctx context.Context, slug, fileMatcher string, fileID *int) error {
	return o.install(ctx, slug, func(ctx context.Context, ic *installContext) error {
		mod, err := ic.client.SearchMod(ctx, ic.slug, ic.categoryInfo)
		if err != nil {
			return err
		}
		return o.resolveModpackFileAndProcess(ctx, ic, mod, fileMatcher, fileID)
	})
}

// install is the common shell around all three entry points: load the
// prior manifest, gate on API-key presence, construct the Registry client,
// and dispatch.
func (o *Orchestrator) install(ctx context.Context, slug string, entry entryPoint) error {
	prior, err := manifest.Load(o.outputRoot)
	if err != nil {
		return err
	}

	apiKey := o.opts.APIKey
	if apiKey == "" {
		if prior != nil {
			name := prior.Slug
			if name == "" {
				name = fmt.Sprintf("project ID %d", prior.ModID)
			}
			log.Warnf("API key is not set, so will re-use previous modpack installation of %s", name)
			log.Warnf("obtain an API key from %s and set %s to restore full functionality", developerConsoleURL, APIKeyEnvVar)
			return o.finalizeExisting(prior)
		}
		return configError("API key is not set. Obtain an API key from %s and set the environment variable %s", developerConsoleURL, APIKeyEnvVar)
	}

	client := o.opts.NewClient(curseforge.Options{
		APIBaseURL:                   o.opts.APIBaseURL,
		APIKey:                       apiKey,
		GameID:                       "432",
		ResponseTimeout:              o.opts.ResponseTimeout,
		TLSHandshakeTimeout:          o.opts.TLSHandshakeTimeout,
		ConnectionPoolMaxIdleTimeout: o.opts.ConnectionPoolMaxIdleTimeout,
	})
	defer client.Close()

	categoryInfo, err := client.LoadCategoryInfo(ctx, applicableClassSlugs, categorySlugModpacks)
	if err != nil {
		return rewriteForbidden(err)
	}

	ic := &installContext{slug: slug, client: client, categoryInfo: categoryInfo, priorManifest: prior}

	if err := entry(ctx, ic); err != nil {
		return rewriteForbidden(err)
	}
	return nil
}

func rewriteForbidden(err error) error {
	if err == nil {
		return nil
	}
	if httpErr, ok := err.(*curseforge.HTTPError); ok && httpErr.StatusCode == 403 {
		return configError("access is forbidden; make sure to set %s to a valid API key from %s", APIKeyEnvVar, developerConsoleURL)
	}
	return err
}

// matchesPreviousInstall implements §4.1's idempotence match test.
func matchesPreviousInstall(ic *installContext, modID, fileID int) bool {
	p := ic.priorManifest
	if p == nil {
		return false
	}
	return (p.ModID == modID || p.Slug == ic.slug) && p.FileID == fileID
}

func (o *Orchestrator) resolveModpackFileAndProcess(ctx context.Context, ic *installContext, mod curseforge.Mod, fileMatcher string, fileID *int) error {
	var file curseforge.File
	var err error
	if fileID != nil {
		file, err = ic.client.GetModFileInfo(ctx, mod.ID, *fileID)
	} else {
		file, err = ic.client.ResolveModpackFile(ctx, mod, fileMatcher)
	}
	if err != nil {
		return err
	}

	if matchesPreviousInstall(ic, file.ModID, file.ID) {
		if o.opts.ForceSynchronize {
			log.Infof("requested force synchronize of %s", displayName(file))
		} else if manifest.AllFilesPresent(o.outputRoot, ic.priorManifest) {
			log.Infof("requested CurseForge modpack %s is already installed for %s", displayName(file), mod.Slug)
			return o.finalizeExisting(ic.priorManifest)
		} else {
			log.Warnf("some files from modpack file %s were missing; proceeding with a re-install", file.FileName)
		}
	}

	if file.DownloadURL == "" {
		return accessDeniedError(
			"the modpack authors have indicated this file is not allowed for project distribution; please download the client zip file from %s and pass it via the %s environment variable",
			websiteOrFallback(mod), ModpackZipEnvVar,
		)
	}

	log.Infof("processing modpack '%s' (%s) @ %d:%d", displayName(file), mod.Slug, file.ModID, file.ID)

	modpackZip, err := ic.client.DownloadTemp(ctx, file, "zip", func(status curseforge.DownloadStatus, url, path string) {
		log.Debugf("modpack file retrieval: url=%s file=%s", url, path)
	})
	if err != nil {
		return err
	}
	defer os.Remove(modpackZip)

	packManifest, err := manifest.ExtractFromArchive(modpackZip)
	if err != nil {
		return err
	}

	results, err := o.processModpack(ctx, ic, packManifest, func() (overrides.Result, error) {
		return o.applyOverrides(modpackZip, packManifest.Overrides)
	})
	if err != nil {
		return err
	}

	return o.finalizeResults(ic, results, file.ModID, file.ID, displayName(file))
}

func (o *Orchestrator) processModpackManifest(ctx context.Context, ic *installContext, packManifest *manifest.PackManifest, applyOverrides func() (overrides.Result, error)) error {
	modID := pseudoModID(packManifest.Name)
	fileID := pseudoFileID(packManifest.Files)

	if matchesPreviousInstall(ic, modID, fileID) {
		if o.opts.ForceSynchronize {
			log.Infof("requested force synchronize of %s", packManifest.Name)
		} else if manifest.AllFilesPresent(o.outputRoot, ic.priorManifest) {
			log.Infof("requested CurseForge modpack %s is already installed", packManifest.Name)
			return o.finalizeExisting(ic.priorManifest)
		} else {
			log.Warnf("some files from modpack file %s were missing; proceeding with a re-install", packManifest.Name)
		}
	}

	log.Infof("installing modpack '%s' version %s from provided modpack zip", packManifest.Name, packManifest.Version)

	results, err := o.processModpack(ctx, ic, packManifest, applyOverrides)
	if err != nil {
		return err
	}

	return o.finalizeResults(ic, results, modID, fileID, results.name)
}

// packResults is the pre-persistence accumulation of one full install.
type packResults struct {
	name             string
	version          string
	files            []string
	levelName        string
	minecraftVersion string
	modLoaderID      string
}

func (o *Orchestrator) processModpack(ctx context.Context, ic *installContext, packManifest *manifest.PackManifest, applyOverrides func() (overrides.Result, error)) (*packResults, error) {
	if err := packManifest.Validate(); err != nil {
		return nil, err
	}
	primary, err := packManifest.PrimaryModLoader()
	if err != nil {
		return nil, err
	}

	paths := classify.OutputPaths{
		ModsDir:    filepath.Join(o.outputRoot, "mods"),
		PluginsDir: filepath.Join(o.outputRoot, "plugins"),
		WorldsDir:  filepath.Join(o.outputRoot, "saves"),
	}
	for _, dir := range []string{paths.ModsDir, paths.PluginsDir, paths.WorldsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	ids, err := excludeinclude.Resolve(ctx, ic.client, ic.categoryInfo, ic.slug, o.opts.ExcludeIncludes)
	if err != nil {
		return nil, err
	}
	log.Debugf("using excludes=%v forceIncludes=%v", ids.Excludes, ids.ForceIncludes)

	modFiles, err := classify.DownloadAll(ctx, packManifest.Files, paths, classify.Options{
		Client:        ic.client,
		CategoryInfo:  ic.categoryInfo,
		OutputRoot:    o.outputRoot,
		Excludes:      ids.Excludes,
		ForceIncludes: ids.ForceIncludes,
		IgnoreGlobs:   o.ignoreGlobs,
		Concurrency:   o.opts.Concurrency,
		LevelFrom:     o.opts.LevelFrom,
	})
	if err != nil {
		return nil, err
	}

	overridesResult, err := applyOverrides()
	if err != nil {
		return nil, err
	}

	if err := modloader.Dispatch(primary.ID, packManifest.Minecraft.Version, o.outputRoot, o.resultsFile, o.forgeInstaller(), o.fabricInstaller()); err != nil {
		return nil, err
	}

	allFiles := make([]string, 0, len(modFiles)+len(overridesResult.Paths))
	for _, mf := range modFiles {
		allFiles = append(allFiles, mf.Path)
	}
	allFiles = append(allFiles, overridesResult.Paths...)

	return &packResults{
		name:             packManifest.Name,
		version:          packManifest.Version,
		files:            allFiles,
		levelName:        resolveLevelName(o.opts.LevelFrom, modFiles, overridesResult),
		minecraftVersion: packManifest.Minecraft.Version,
		modLoaderID:      primary.ID,
	}, nil
}

func resolveLevelName(levelFrom classify.LevelFrom, modFiles []classify.PathWithInfo, overridesResult overrides.Result) string {
	switch levelFrom {
	case classify.LevelFromOverrides:
		return overridesResult.LevelName
	case classify.LevelFromWorldFile:
		for _, mf := range modFiles {
			if mf.LevelName != "" {
				return mf.LevelName
			}
		}
		return ""
	default:
		return ""
	}
}

func (o *Orchestrator) applyOverrides(archivePath, overridesDir string) (overrides.Result, error) {
	var policy overrides.LevelFromPolicy
	switch o.opts.LevelFrom {
	case classify.LevelFromOverrides:
		policy = overrides.LevelFromPolicyOverrides
	case classify.LevelFromWorldFile:
		policy = overrides.LevelFromPolicyWorldFile
	}

	return overrides.Apply(overrides.Options{
		ArchivePath:     archivePath,
		OverridesDir:    overridesDir,
		OutputRoot:      o.outputRoot,
		SkipExisting:    o.opts.OverridesSkipExisting,
		LevelFromPolicy: policy,
	})
}

// finalizeExisting re-uses a satisfied prior install: it double-checks the
// mod loader is still present by re-running its installer (which talks to
// Maven directly, not the Registry, so this issues zero Registry client
// calls — the property invariant 2 pins down) and rewrites the results
// file from the persisted manifest.
func (o *Orchestrator) finalizeExisting(prior *manifest.PersistedManifest) error {
	if prior == nil {
		return nil
	}

	if prior.ModLoaderID != "" && prior.MinecraftVersion != "" {
		if err := modloader.Dispatch(prior.ModLoaderID, prior.MinecraftVersion, o.outputRoot, o.resultsFile, o.forgeInstaller(), o.fabricInstaller()); err != nil {
			return err
		}
	}

	return o.writeResults(levelNameOf(prior), prior.MinecraftVersion)
}

func (o *Orchestrator) finalizeResults(ic *installContext, results *packResults, modID, fileID int, fileName string) error {
	newFiles, err := manifest.RelativizeAll(o.outputRoot, results.files)
	if err != nil {
		return err
	}

	var levelNamePtr *string
	if results.levelName != "" {
		levelNamePtr = &results.levelName
	}

	newManifest := &manifest.PersistedManifest{
		Slug:             ic.slug,
		ModpackName:      results.name,
		ModpackVersion:   results.version,
		FileName:         fileName,
		ModID:            modID,
		FileID:           fileID,
		MinecraftVersion: results.minecraftVersion,
		ModLoaderID:      results.modLoaderID,
		LevelName:        levelNamePtr,
		Files:            newFiles,
	}

	if err := manifest.Cleanup(o.outputRoot, ic.priorManifest, newManifest); err != nil {
		return err
	}
	if err := manifest.Save(o.outputRoot, newManifest); err != nil {
		return err
	}

	return o.writeResults(results.levelName, results.minecraftVersion)
}

func (o *Orchestrator) writeResults(level, version string) error {
	if o.resultsFile == "" {
		return nil
	}
	w, err := resultsfile.NewWriter(o.resultsFile, true)
	if err != nil {
		return err
	}
	defer w.Close()

	if level != "" {
		if err := w.Write("LEVEL", level); err != nil {
			return err
		}
	}
	return w.Write("VERSION", version)
}

func levelNameOf(m *manifest.PersistedManifest) string {
	if m == nil || m.LevelName == nil {
		return ""
	}
	return *m.LevelName
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
