package modloader

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cavaliergopher/grab/v3"
	log "github.com/sirupsen/logrus"

	"github.com/mcservers/cfinstaller/resultsfile"
)

// forgeInstallerURLTemplate mirrors loaderManager.go's installLoader URL,
// generalized with the Registry-resolved Minecraft/loader versions instead
// of static config fields.
const forgeInstallerURLTemplate = "https://maven.minecraftforge.net/net/minecraftforge/forge/%s-%s/forge-%s-%s-installer.jar"

// ForgeInstaller downloads and runs the Forge universal installer jar,
// the same "download jar, shell out to java -jar" shape as the teacher's
// loaderManager.installLoader. It talks to Maven directly via grab rather
// than through the Registry client: Forge's installer jar isn't gated by
// the Registry at all, so finalize-existing can re-run this with no
// Registry client in scope (no API key configured, see installer.ErrConfiguration).
type ForgeInstaller struct {
	JavaPath           string
	InstallerArguments []string
}

// Install downloads the Forge installer for mcVersion/forgeVersion into
// outputRoot, runs it, and records VERSION in the results file.
func (f *ForgeInstaller) Install(mcVersion, forgeVersion, outputRoot, resultsFile string) error {
	url := fmt.Sprintf(forgeInstallerURLTemplate, mcVersion, forgeVersion, mcVersion, forgeVersion)
	installerPath := filepath.Join(outputRoot, "forge-installer.jar")

	log.Infof("downloading forge installer from %s", url)
	if err := downloadPlainURL(context.Background(), url, installerPath); err != nil {
		return fmt.Errorf("downloading forge installer: %w", err)
	}
	defer os.Remove(installerPath)

	java := f.JavaPath
	if java == "" {
		java = "java"
	}

	args := append([]string{"-jar", installerPath, "--installServer"}, f.InstallerArguments...)
	cmd := exec.Command(java, args...)
	cmd.Dir = outputRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Info("running forge installer")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running forge installer: %w", err)
	}

	return writeResults(resultsFile, "", mcVersion)
}

// downloadPlainURL fetches url to destPath via grab, overwriting whatever
// was there. Mirrors client_impl.go's grabDownload since both concerns are
// "fetch a URL to a path," just against different hosts.
func downloadPlainURL(ctx context.Context, url, destPath string) error {
	req, err := grab.NewRequest(destPath, url)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	client := grab.NewClient()
	resp := client.Do(req)
	if err := resp.Err(); err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	return nil
}

func writeResults(resultsFile, level, version string) error {
	if resultsFile == "" {
		return nil
	}
	w, err := resultsfile.NewWriter(resultsFile, true)
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
