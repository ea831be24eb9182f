package main

import (
	"context"
	"flag"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/mcservers/cfinstaller/classify"
	"github.com/mcservers/cfinstaller/config"
	"github.com/mcservers/cfinstaller/installer"
)

// greeting prints the same banner shape the teacher printed at startup.
func greeting(slug string) {
	log.Info(":::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::")
	log.Info("   CurseForge modpack installer in Go")
	log.Info(":::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::")
	log.Info("   Resolves a CurseForge modpack manifest, downloads its mods,")
	log.Info("   applies overrides and installs the mod loader for a server.")
	log.Info()
	log.Infof("Installing modpack: %s", slug)
	log.Info(":::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::")
}

// checkConnection mirrors the teacher's offline-mode guard.
func checkConnection() bool {
	_, err := http.Get("http://clients3.google.com/generate_204")
	return err == nil
}

func levelFromFor(c *config.Config) classify.LevelFrom {
	switch c.LevelFrom {
	case config.LevelFromOverrides:
		return classify.LevelFromOverrides
	case config.LevelFromWorldFile:
		return classify.LevelFromWorldFile
	default:
		return classify.LevelFromUnset
	}
}

func main() {
	configFileFlag := flag.String("c", "cfinstaller-config.yaml", "path to the installer's config yaml file")
	archiveFlag := flag.String("archive", "", "path to a modpack client zip to install directly, skipping Registry resolution")
	manifestFlag := flag.String("manifest", "", "path to a standalone manifest.json to install directly")
	offlineFlag := flag.Bool("allow-offline", false, "proceed even if the Internet connectivity check fails")
	flag.Parse()

	cfg := config.Read(*configFileFlag)

	if cfg.SpecVer < config.CurrentSpec {
		log.Fatal("config file targets an older version of this installer's config schema")
	}

	greeting(cfg.Slug)

	if !*offlineFlag && !checkConnection() {
		log.Fatal("no Internet connectivity detected; pass -allow-offline to proceed with a prior install")
	}

	opts := installer.Options{
		APIBaseURL:                   cfg.APIBaseURL,
		APIKey:                       cfg.ResolveAPIKey(),
		ForceSynchronize:             cfg.ForceSynchronize,
		ExcludeIncludes:              cfg.ExcludeIncludes,
		LevelFrom:                    levelFromFor(cfg),
		OverridesSkipExisting:        cfg.OverridesSkipExisting,
		ResponseTimeout:              cfg.HTTP.ResponseTimeout,
		TLSHandshakeTimeout:          cfg.HTTP.TLSHandshakeTimeout,
		ConnectionPoolMaxIdleTimeout: cfg.HTTP.ConnectionPoolMaxIdleTimeout,
		IgnoreGlobs:                  cfg.IgnoreGlobs,
	}

	orch := installer.New(cfg.OutputRoot, cfg.ResultsFile, opts)

	ctx := context.Background()

	var err error
	switch {
	case *archiveFlag != "":
		err = orch.InstallFromArchive(ctx, *archiveFlag, cfg.Slug)
	case *manifestFlag != "":
		err = orch.InstallFromManifestFile(ctx, *manifestFlag, cfg.Slug)
	case config.ResolveModpackZip() != "":
		err = orch.InstallFromArchive(ctx, config.ResolveModpackZip(), cfg.Slug)
	default:
		err = orch.InstallFromSlug(ctx, cfg.Slug, "", nil)
	}

	if err != nil {
		log.Fatalf("installing modpack %s: %v", cfg.Slug, err)
	}

	log.Info("modpack install complete")
}
