package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Extract Extract `yaml:"extract"`
	Kappa   Kappa   `yaml:"kappa"`
	Batch   Batch   `yaml:"batch"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Extract struct {
	Field     string `yaml:"field"`
	Matcher   string `yaml:"matcher"`
	Normalize bool   `yaml:"normalize"`
}

type Kappa struct {
	Kind       string  `yaml:"kind"`
	Confidence float64 `yaml:"confidence"`
	Parallel   int     `yaml:"parallel"`
}

type Batch struct {
	Size      int    `yaml:"size"`
	Random    bool   `yaml:"random"`
	Seed      uint64 `yaml:"seed"`
	OutputDir string `yaml:"output_dir"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for kappacheck.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "kappacheck")
}

// DataDir returns the XDG data directory for kappacheck.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "kappacheck")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/kappacheck/config.yaml > ./config.yaml.
// It returns "" without error when no file exists, in which case the
// built-in defaults apply.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// Load reads and parses a config YAML file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Extract: Extract{
			Field:     "notes",
			Matcher:   "substring",
			Normalize: true,
		},
		Kappa: Kappa{
			Kind:       "free",
			Confidence: 0.95,
			Parallel:   4,
		},
		Batch: Batch{
			Size:      50,
			Seed:      1111,
			OutputDir: "batches",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Extract.Field == "" {
		return fmt.Errorf("extract.field must not be empty")
	}
	if c.Kappa.Confidence <= 0 || c.Kappa.Confidence >= 1 {
		return fmt.Errorf("kappa.confidence must be between 0 and 1, got %v", c.Kappa.Confidence)
	}
	if c.Kappa.Parallel < 1 {
		c.Kappa.Parallel = 1
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
