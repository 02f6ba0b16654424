package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"grimm.is/dynwall/internal/brand"
)

// ErrNotFound is returned by Locate when no config file exists.
var ErrNotFound = errors.New("no config file found")

// Candidates lists the file names Locate tries, in order.
var Candidates = []string{"config.json", "config.hcl", "config.yaml", "config.yml"}

// LoadResult contains the loaded config and metadata about the load
type LoadResult struct {
	Config   *Config
	Path     string
	Format   string
	Warnings []string
}

// Load finds and loads the config file using the environment:
// DYNWALL_CONFIG names a file directly, otherwise CONFIG_PATH (or the
// working directory) is searched.
func Load() (*LoadResult, error) {
	path := brand.GetConfigFile()
	if path == "" {
		var err error
		path, err = Locate(brand.GetConfigDir())
		if err != nil {
			return nil, err
		}
	}
	return LoadFile(path)
}

// Locate returns the first candidate config file present in dir.
func Locate(dir string) (string, error) {
	for _, name := range Candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (tried %s)", ErrNotFound, dir, strings.Join(Candidates, ", "))
}

// LoadFile loads a config file (JSON, HCL or YAML) chosen by extension.
func LoadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var result *LoadResult
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		result, err = LoadJSON(data)
	case ".hcl":
		result, err = LoadHCL(data, path)
	case ".yaml", ".yml":
		result, err = LoadYAML(data)
	default:
		// Unknown extension: try JSON first, fall back to HCL
		result, err = LoadJSON(data)
		if err != nil {
			result, err = LoadHCL(data, path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	result.Path = path
	return result, nil
}

type jsonDocument struct {
	A             any      `json:"a"`
	AAAA          any      `json:"aaaa"`
	Delay         any      `json:"delay"`
	Cloudflare    []Target `json:"cloudflare"`
	Detection     string   `json:"detection"`
	GeoIPDB       string   `json:"geoip_db"`
	MetricsListen string   `json:"metrics_listen"`
	LogLevel      string   `json:"log_level"`
	LogJSON       bool     `json:"log_json"`
}

// LoadJSON loads config from JSON bytes.
func LoadJSON(data []byte) (*LoadResult, error) {
	var raw jsonDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return finish("json", document(raw))
}

type yamlDocument struct {
	A             interface{} `yaml:"a"`
	AAAA          interface{} `yaml:"aaaa"`
	Delay         interface{} `yaml:"delay"`
	Cloudflare    []Target    `yaml:"cloudflare"`
	Detection     string      `yaml:"detection"`
	GeoIPDB       string      `yaml:"geoip_db"`
	MetricsListen string      `yaml:"metrics_listen"`
	LogLevel      string      `yaml:"log_level"`
	LogJSON       bool        `yaml:"log_json"`
}

// LoadYAML loads config from YAML bytes.
func LoadYAML(data []byte) (*LoadResult, error) {
	var raw yamlDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	return finish("yaml", document(raw))
}

func finish(format string, doc document) (*LoadResult, error) {
	cfg, warnings, err := doc.normalize()
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Format: format, Warnings: warnings}, nil
}
