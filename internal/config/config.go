package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"mptreasury/internal/match"
)

// Config contains the program configuration
type Config struct {
	LibraryDir        string   `yaml:"library_dir" toml:"library_dir"`
	CacheDir          string   `yaml:"cache_dir" toml:"cache_dir"`
	DBFile            string   `yaml:"db_file" toml:"db_file"`
	Catalogs          []string `yaml:"catalogs" toml:"catalogs"`
	DiscogsToken      string   `yaml:"discogs_token" toml:"discogs_token"`
	MinimumMatchScore float64  `yaml:"minimum_match_score" toml:"minimum_match_score"`
	MaxGuessAttempts  int      `yaml:"max_guess_attempts" toml:"max_guess_attempts"`
	SearchTimeout     int      `yaml:"search_timeout" toml:"search_timeout"`
	SplitTimeout      int      `yaml:"split_timeout" toml:"split_timeout"`
	SplitCommand      string   `yaml:"split_command" toml:"split_command"`
	MoveFiles         bool     `yaml:"move_files" toml:"move_files"`
	RemoteDir         string   `yaml:"remote_dir" toml:"remote_dir"`
	Verbose           bool     `yaml:"verbose" toml:"verbose"`
}

// Known catalog names, in the default search order.
const (
	CatalogDiscogs     = "discogs"
	CatalogMusicBrainz = "musicbrainz"
	CatalogDeezer      = "deezer"
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	data := filepath.Join(homeDir(), ".local", "share", "mptreasury")
	return Config{
		LibraryDir:        filepath.Join(homeDir(), "Music", "mptreasury"),
		CacheDir:          filepath.Join(homeDir(), ".cache", "mptreasury"),
		DBFile:            filepath.Join(data, "library.db"),
		Catalogs:          []string{CatalogDiscogs, CatalogMusicBrainz},
		MinimumMatchScore: match.DefaultMinimumScore,
		MaxGuessAttempts:  3,
		SearchTimeout:     30,
		SplitTimeout:      600,
		SplitCommand:      "shnsplit",
	}
}

// LoadConfigFile loads configuration from a YAML or TOML file, chosen by
// extension. If path is empty, searches standard locations. Returns defaults
// if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if isTOML(path) {
		err = toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// ApplyEnv overrides file settings with environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("MPTREASURY_LIBRARY_DIR"); v != "" {
		c.LibraryDir = v
	}
	if v := os.Getenv("MPTREASURY_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("MPTREASURY_DB_FILE"); v != "" {
		c.DBFile = v
	}
	if v := os.Getenv("MPTREASURY_REMOTE_DIR"); v != "" {
		c.RemoteDir = v
	}
	if v := os.Getenv("DISCOGS_TOKEN"); v != "" {
		c.DiscogsToken = v
	}
	if v := os.Getenv("MPTREASURY_MINIMUM_MATCH_SCORE"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MPTREASURY_MINIMUM_MATCH_SCORE: %w", err)
		}
		c.MinimumMatchScore = score
	}
	c.expandPaths()
	return nil
}

func (c *Config) expandPaths() {
	c.LibraryDir = ExpandHome(c.LibraryDir)
	c.CacheDir = ExpandHome(c.CacheDir)
	c.DBFile = ExpandHome(c.DBFile)
	c.RemoteDir = ExpandHome(c.RemoteDir)
}

// SearchTimeoutDuration returns search_timeout as a duration.
func (c *Config) SearchTimeoutDuration() time.Duration {
	return time.Duration(c.SearchTimeout) * time.Second
}

// SplitTimeoutDuration returns split_timeout as a duration.
func (c *Config) SplitTimeoutDuration() time.Duration {
	return time.Duration(c.SplitTimeout) * time.Second
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./mptreasury.yaml",
		"./mptreasury.yml",
		"./mptreasury.toml",
		filepath.Join(home, ".config", "mptreasury", "config.yaml"),
		filepath.Join(home, ".config", "mptreasury", "config.yml"),
		filepath.Join(home, ".config", "mptreasury", "config.toml"),
		filepath.Join(home, ".mptreasury.yaml"),
		filepath.Join(home, ".mptreasury.toml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the configuration, as TOML when path ends in .toml
// and as YAML otherwise.
func SaveConfigFile(cfg Config, path string) error {
	var data []byte
	var err error
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "mptreasury", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "mptreasury", "logs")
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.LibraryDir == "" {
		return fmt.Errorf("library_dir cannot be empty")
	}
	if c.DBFile == "" {
		return fmt.Errorf("db_file cannot be empty")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir cannot be empty")
	}

	if c.MinimumMatchScore < 0 || c.MinimumMatchScore > 100 {
		return fmt.Errorf("minimum_match_score must be between 0 and 100, got %.1f", c.MinimumMatchScore)
	}
	if c.MaxGuessAttempts < 1 {
		return fmt.Errorf("max_guess_attempts must be at least 1, got %d", c.MaxGuessAttempts)
	}
	if c.SearchTimeout < 1 {
		return fmt.Errorf("search_timeout must be at least 1 second, got %d", c.SearchTimeout)
	}
	if c.SplitTimeout < 1 {
		return fmt.Errorf("split_timeout must be at least 1 second, got %d", c.SplitTimeout)
	}
	if c.SplitCommand == "" {
		return fmt.Errorf("split_command cannot be empty")
	}

	if len(c.Catalogs) == 0 {
		return fmt.Errorf("at least one catalog is required, valid catalogs: discogs, musicbrainz, deezer")
	}
	validCatalogs := map[string]bool{CatalogDiscogs: true, CatalogMusicBrainz: true, CatalogDeezer: true}
	for _, name := range c.Catalogs {
		if !validCatalogs[name] {
			return fmt.Errorf("unknown catalog %q, valid catalogs: discogs, musicbrainz, deezer", name)
		}
	}

	if c.hasCatalog(CatalogDiscogs) && c.DiscogsToken == "" {
		return fmt.Errorf("discogs_token is required when discogs is in catalogs")
	}

	return nil
}

func (c *Config) hasCatalog(name string) bool {
	for _, n := range c.Catalogs {
		if n == name {
			return true
		}
	}
	return false
}
