// Package modloader dispatches to the Forge or Fabric installer based on a
// parsed "<family>-<version>" mod loader identifier, the way the teacher's
// loaderManager dispatched to a single hardcoded Forge download.
package modloader

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrMalformedID is returned when a modLoaderId has no "-" separator.
var ErrMalformedID = fmt.Errorf("unknown mod loader id: missing '-' separator")

// Installer installs one mod loader family into an output root and writes
// loader-specific entries (e.g. VERSION) to the results file.
type Installer interface {
	Install(mcVersion, loaderVersion, outputRoot, resultsFile string) error
}

// Dispatch parses modLoaderID on its first '-' into (family, version) and
// delegates to the matching installer. A family that parses but is not
// recognized is a silent no-op by design (see §4.7 / §9 open question); a
// missing separator is a hard error.
func Dispatch(modLoaderID, mcVersion, outputRoot, resultsFile string, forge, fabric Installer) error {
	parts := strings.SplitN(modLoaderID, "-", 2)
	if len(parts) != 2 {
		return fmt.Errorf("%w: %q", ErrMalformedID, modLoaderID)
	}

	family, version := parts[0], parts[1]

	switch family {
	case "forge":
		return forge.Install(mcVersion, version, outputRoot, resultsFile)
	case "fabric":
		return fabric.Install(mcVersion, version, outputRoot, resultsFile)
	default:
		log.Warnf("unrecognized mod loader family %q in id %q; leaving loader untouched", family, modLoaderID)
		return nil
	}
}
