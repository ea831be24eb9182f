package modloader

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// fabricInstallerURL is the well-known stable download location for the
// Fabric server installer jar; unlike Forge, one jar handles every
// Minecraft/loader version combination via CLI flags.
const fabricInstallerURL = "https://maven.fabricmc.net/net/fabricmc/fabric-installer/1.0.1/fabric-installer-1.0.1.jar"

// FabricInstaller downloads the Fabric installer jar once and invokes it
// with -mcversion/-loader flags for the requested versions. Like
// ForgeInstaller it talks to Maven directly instead of through the
// Registry client.
type FabricInstaller struct {
	JavaPath string
}

// Install downloads (if needed) the Fabric installer and runs it for
// mcVersion/loaderVersion, then records VERSION in the results file.
func (f *FabricInstaller) Install(mcVersion, loaderVersion, outputRoot, resultsFile string) error {
	installerPath := filepath.Join(outputRoot, "fabric-installer.jar")

	if _, err := os.Stat(installerPath); os.IsNotExist(err) {
		log.Infof("downloading fabric installer from %s", fabricInstallerURL)
		if err := downloadPlainURL(context.Background(), fabricInstallerURL, installerPath); err != nil {
			return fmt.Errorf("downloading fabric installer: %w", err)
		}
	}

	java := f.JavaPath
	if java == "" {
		java = "java"
	}

	args := []string{
		"-jar", installerPath,
		"server",
		"-mcversion", mcVersion,
		"-loader", loaderVersion,
		"-dir", outputRoot,
		"-downloadMinecraft",
	}
	cmd := exec.Command(java, args...)
	cmd.Dir = outputRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Info("running fabric installer")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running fabric installer: %w", err)
	}

	return writeResults(resultsFile, "", mcVersion)
}
