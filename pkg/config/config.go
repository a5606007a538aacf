/*
Package config manages TOML config for massfind.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bastiangx/massfind/internal/utils"
	"github.com/bastiangx/massfind/pkg/corpus"
	"github.com/bastiangx/massfind/pkg/mods"
	"github.com/bastiangx/massfind/pkg/residue"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	LogLevel string        `toml:"log_level"`
	Index    IndexConfig   `toml:"index"`
	Search   SearchConfig  `toml:"search"`
	Residues ResidueConfig `toml:"residues"`
	Mods     []ModConfig   `toml:"mods"`
	Server   ServerConfig  `toml:"server"`
}

// IndexConfig describes how the corpus is framed and digested.
type IndexConfig struct {
	Sentinel string `toml:"sentinel"`
	Cleave   string `toml:"cleave"`
	Block    string `toml:"block"`
	Dir      string `toml:"dir"`
	Name     string `toml:"name"`
}

// SearchConfig holds the default query options.
type SearchConfig struct {
	Tolerance    float64 `toml:"tolerance"`
	MaxMods      int     `toml:"max_mods"`
	MaxSteps     int     `toml:"max_steps"`
	MaxHitsShown int     `toml:"max_hits_shown"`
}

// ResidueConfig overrides residue masses. File is a TOML residue table
// applied first; Masses are applied on top of it.
type ResidueConfig struct {
	File   string             `toml:"file"`
	Masses map[string]float64 `toml:"masses"`
}

// ModConfig is one variable modification.
type ModConfig struct {
	Residue string  `toml:"residue"`
	Delta   float64 `toml:"delta"`
	Name    string  `toml:"name"`
}

// ServerConfig has IPC server limits.
type ServerConfig struct {
	MaxHits   int `toml:"max_hits"`
	MaxMasses int `toml:"max_masses"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return utils.GetExecutableDir()
	}
	primaryPath := filepath.Join(homeDir, ".config", "massfind")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "massfind")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/massfind/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "warn",
		Index: IndexConfig{
			Sentinel: string(corpus.DefaultSentinel),
			Cleave:   "KR",
			Block:    "P",
			Name:     "massfind",
		},
		Search: SearchConfig{
			Tolerance:    0.02,
			MaxMods:      2,
			MaxSteps:     0,
			MaxHitsShown: 20,
		},
		Mods: []ModConfig{
			{Residue: "M", Delta: 15.994915, Name: "Oxidation"},
		},
		Server: ServerConfig{
			MaxHits:   64,
			MaxMasses: 4096,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse picks up the sections that still parse from a broken file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if val, ok := utils.ExtractString(tempConfig, "log_level"); ok {
		config.LogLevel = val
	}
	if section, ok := utils.ExtractSection(tempConfig, "index"); ok {
		extractIndexConfig(section, &config.Index)
	}
	if section, ok := utils.ExtractSection(tempConfig, "search"); ok {
		extractSearchConfig(section, &config.Search)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "residues"); ok {
		if val, ok := utils.ExtractString(section, "file"); ok {
			config.Residues.File = val
		}
		if masses, ok := utils.ExtractSection(section, "masses"); ok {
			config.Residues.Masses = make(map[string]float64, len(masses))
			for k := range masses {
				if m, ok := utils.ExtractFloat(masses, k); ok {
					config.Residues.Masses[k] = m
				}
			}
		}
	}
	if list, ok := tempConfig["mods"].([]map[string]any); ok {
		config.Mods = config.Mods[:0]
		for _, m := range list {
			var mc ModConfig
			mc.Residue, _ = utils.ExtractString(m, "residue")
			mc.Delta, _ = utils.ExtractFloat(m, "delta")
			mc.Name, _ = utils.ExtractString(m, "name")
			config.Mods = append(config.Mods, mc)
		}
	}
	return config, nil
}

// extractIndexConfig extracts index configuration from a map
func extractIndexConfig(data map[string]any, ix *IndexConfig) {
	if val, ok := utils.ExtractString(data, "sentinel"); ok {
		ix.Sentinel = val
	}
	if val, ok := utils.ExtractString(data, "cleave"); ok {
		ix.Cleave = val
	}
	if val, ok := utils.ExtractString(data, "block"); ok {
		ix.Block = val
	}
	if val, ok := utils.ExtractString(data, "dir"); ok {
		ix.Dir = val
	}
	if val, ok := utils.ExtractString(data, "name"); ok {
		ix.Name = val
	}
}

// extractSearchConfig extracts search configuration from a map
func extractSearchConfig(data map[string]any, s *SearchConfig) {
	if val, ok := utils.ExtractFloat(data, "tolerance"); ok {
		s.Tolerance = val
	}
	if val, ok := utils.ExtractInt64(data, "max_mods"); ok {
		s.MaxMods = val
	}
	if val, ok := utils.ExtractInt64(data, "max_steps"); ok {
		s.MaxSteps = val
	}
	if val, ok := utils.ExtractInt64(data, "max_hits_shown"); ok {
		s.MaxHitsShown = val
	}
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_hits"); ok {
		server.MaxHits = val
	}
	if val, ok := utils.ExtractInt64(data, "max_masses"); ok {
		server.MaxMasses = val
	}
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes the search defaults and saves to file
func (c *Config) Update(configPath string, tolerance *float64, maxMods, maxSteps *int) error {
	if tolerance != nil {
		c.Search.Tolerance = *tolerance
	}
	if maxMods != nil {
		c.Search.MaxMods = *maxMods
	}
	if maxSteps != nil {
		c.Search.MaxSteps = *maxSteps
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return SaveConfig(c, configPath)
}

// Validate checks values that would otherwise fail deep inside a build or search.
func (c *Config) Validate() error {
	if len(c.Index.Sentinel) != 1 {
		return fmt.Errorf("index.sentinel must be one character, got %q", c.Index.Sentinel)
	}
	if c.Search.Tolerance < 0 {
		return fmt.Errorf("search.tolerance must not be negative, got %v", c.Search.Tolerance)
	}
	if c.Search.MaxMods < 0 || c.Search.MaxSteps < 0 {
		return fmt.Errorf("search.max_mods and search.max_steps must not be negative")
	}
	for _, m := range c.Mods {
		if len(m.Residue) != 1 {
			return fmt.Errorf("modification %q: residue must be one character, got %q", m.Name, m.Residue)
		}
	}
	return nil
}

// Sentinel returns the record separator byte.
func (c *Config) Sentinel() byte {
	if len(c.Index.Sentinel) != 1 {
		return corpus.DefaultSentinel
	}
	return c.Index.Sentinel[0]
}

// Rule returns the digestion rule described by the index section.
func (c *Config) Rule() corpus.Rule {
	return corpus.NewRule(c.Index.Cleave, c.Index.Block)
}

// ResidueTable returns the default masses with the configured overrides applied.
func (c *Config) ResidueTable() (*residue.Table, error) {
	base := residue.Default()
	if c.Residues.File != "" {
		t, err := residue.LoadFile(c.Residues.File)
		if err != nil {
			return nil, err
		}
		base = t
	}
	if len(c.Residues.Masses) == 0 {
		return base, nil
	}
	return residue.FromMap(base, c.Residues.Masses)
}

// Modifications returns the configured variable modifications.
func (c *Config) Modifications() []mods.Modification {
	out := make([]mods.Modification, 0, len(c.Mods))
	for _, m := range c.Mods {
		if len(m.Residue) != 1 {
			log.Warnf("Skipping modification %q with residue %q", m.Name, m.Residue)
			continue
		}
		out = append(out, mods.Modification{Residue: m.Residue[0], Delta: m.Delta, Name: m.Name})
	}
	return out
}
