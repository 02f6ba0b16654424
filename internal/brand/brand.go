// Package brand provides centralized naming constants for dynwall.
//
// The identity is loaded from brand.json at compile time via go:embed.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name            string `json:"name"`
	LowerName       string `json:"lowerName"`
	Description     string `json:"description"`
	Repository      string `json:"repository"`
	ConfigEnvPrefix string `json:"configEnvPrefix"`
	BinaryName      string `json:"binaryName"`
	ConfigFileName  string `json:"configFileName"`
	APIBaseURL      string `json:"apiBaseURL"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	Repository = b.Repository
	ConfigEnvPrefix = b.ConfigEnvPrefix
	BinaryName = b.BinaryName
	ConfigFileName = b.ConfigFileName
	APIBaseURL = b.APIBaseURL
}

var (
	Name            string
	LowerName       string
	Description     string
	Repository      string
	ConfigEnvPrefix string
	BinaryName      string
	ConfigFileName  string
	APIBaseURL      string

	// Version is set at build time via -ldflags
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// UserAgent returns a User-Agent string for HTTP requests
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return Name + "/" + version
}

// GetConfigDir returns the directory holding the config file.
// Priority: CONFIG_PATH > DYNWALL_CONFIG_DIR > working directory
func GetConfigDir() string {
	if dir := os.Getenv("CONFIG_PATH"); dir != "" {
		return dir
	}
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// GetConfigFile returns an explicitly requested config file, if any.
// DYNWALL_CONFIG wins; otherwise the empty string is returned and the
// loader searches GetConfigDir.
func GetConfigFile() string {
	if f := os.Getenv(ConfigEnvPrefix + "_CONFIG"); f != "" {
		return filepath.Clean(f)
	}
	return ""
}
