// Package config reads the installer's install-time configuration, in the
// same "read a YAML file into a struct" shape as the teacher's
// config.Read, generalized from a static-URL downloader's settings to the
// Registry-driven installer's settings (§6 Configuration).
package config

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/mcservers/cfinstaller/excludeinclude"
)

// CurrentSpec is bumped whenever a breaking change is made to this file's
// shape, the same guard the teacher's CURRENT_SPEC provided for
// server-setup-config.yaml.
const CurrentSpec = 1

// EnvAPIKey is the environment variable naming the Registry API key,
// consulted when apiKey is absent from the config file.
const EnvAPIKey = "CF_API_KEY"

// EnvModpackZip is the environment variable naming a manually-supplied
// modpack zip, used when the Registry denies distribution of a pack file.
const EnvModpackZip = "CF_MODPACK_ZIP"

// LevelFrom selects which source determines the "LEVEL" result line.
type LevelFrom string

const (
	LevelFromUnset     LevelFrom = ""
	LevelFromOverrides LevelFrom = "OVERRIDES"
	LevelFromWorldFile LevelFrom = "WORLD_FILE"
)

// HTTPConfig carries the Registry client's transport timeouts.
type HTTPConfig struct {
	ResponseTimeout              time.Duration `yaml:"responseTimeout"`
	TLSHandshakeTimeout          time.Duration `yaml:"tlsHandshakeTimeout"`
	ConnectionPoolMaxIdleTimeout time.Duration `yaml:"connectionPoolMaxIdleTimeout"`
}

// Config is the installer's install-time configuration surface.
type Config struct {
	SpecVer int64 `yaml:"_specver"`

	OutputRoot  string `yaml:"outputRoot"`
	Slug        string `yaml:"slug"`
	ResultsFile string `yaml:"resultsFile"`

	APIKey     string `yaml:"apiKey"`
	APIBaseURL string `yaml:"apiBaseUrl"`

	ForceSynchronize      bool      `yaml:"forceSynchronize"`
	LevelFrom             LevelFrom `yaml:"levelFrom"`
	OverridesSkipExisting bool      `yaml:"overridesSkipExisting"`

	ExcludeIncludes *excludeinclude.Content `yaml:"excludeIncludes"`

	// IgnoreGlobs is an operator convenience layered on top of
	// ExcludeIncludes, kept from the teacher's IgnoreFiles glob list
	// (config/config.go's InstallConfig.IgnoreFiles).
	IgnoreGlobs []string `yaml:"ignoreGlobs"`

	HTTP HTTPConfig `yaml:"http"`
}

// Read loads a YAML config file, the same shape as the teacher's
// config.Read. Fatal on any read/parse failure since there is no
// sensible partial-config fallback at process start.
func Read(path string) *Config {
	c := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("reading config file %s: %v", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		log.Fatalf("parsing config file %s: %v", path, err)
	}

	return c
}

// ResolveAPIKey returns the configured API key, falling back to CF_API_KEY.
func (c *Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(EnvAPIKey)
}

// ResolveModpackZip returns CF_MODPACK_ZIP, used as a manual override when
// the Registry denies distribution of a pack's file.
func ResolveModpackZip() string {
	return os.Getenv(EnvModpackZip)
}
