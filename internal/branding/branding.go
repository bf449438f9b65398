// Package branding provides compile-time identity values for the CLI.
//
// branding.yaml is embedded with //go:embed, so a fork can rename the tool
// or point it at a different download host without touching Go code.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName         string `yaml:"cli_name"`
	DisplayName     string `yaml:"display_name"`
	Description     string `yaml:"description"`
	HomeDir         string `yaml:"home_dir"`
	EnvPrefix       string `yaml:"env_prefix"`
	GoModule        string `yaml:"go_module"`
	DownloadBaseURL string `yaml:"download_base_url"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing or empty.
		defaults = brand{
			CLIName:         "edkit",
			DisplayName:     "edkit",
			Description:     "Download, install and tune a code editor",
			HomeDir:         ".edkit",
			EnvPrefix:       "EDKIT",
			GoModule:        "github.com/edkit-dev/edkit",
			DownloadBaseURL: "https://update.code.visualstudio.com/latest",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "edkit").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".edkit").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "EDKIT").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// DownloadBaseURL returns the root of the editor download service.
func DownloadBaseURL() string { load(); return defaults.DownloadBaseURL }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("CACHE") → "EDKIT_CACHE".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
