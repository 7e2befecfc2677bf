package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.LibraryDir = "/tmp/library"
		cfg.DBFile = "/tmp/library.db"
		cfg.DiscogsToken = "token"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:   "minimum score 0",
			modify: func(c *Config) { c.MinimumMatchScore = 0 },
		},
		{
			name:   "minimum score 100",
			modify: func(c *Config) { c.MinimumMatchScore = 100 },
		},
		{
			name:    "minimum score negative",
			modify:  func(c *Config) { c.MinimumMatchScore = -1 },
			wantErr: true,
		},
		{
			name:    "minimum score above 100",
			modify:  func(c *Config) { c.MinimumMatchScore = 100.5 },
			wantErr: true,
		},
		{
			name:    "max guess attempts 0",
			modify:  func(c *Config) { c.MaxGuessAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "empty library dir",
			modify:  func(c *Config) { c.LibraryDir = "" },
			wantErr: true,
		},
		{
			name:    "empty db file",
			modify:  func(c *Config) { c.DBFile = "" },
			wantErr: true,
		},
		{
			name:    "zero search timeout",
			modify:  func(c *Config) { c.SearchTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "zero split timeout",
			modify:  func(c *Config) { c.SplitTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "empty split command",
			modify:  func(c *Config) { c.SplitCommand = "" },
			wantErr: true,
		},
		{
			name:    "missing discogs token with discogs catalog",
			modify:  func(c *Config) { c.DiscogsToken = "" },
			wantErr: true,
		},
		{
			name: "no token needed without discogs",
			modify: func(c *Config) {
				c.Catalogs = []string{"musicbrainz"}
				c.DiscogsToken = ""
			},
		},
		{
			name: "deezer needs no token",
			modify: func(c *Config) {
				c.Catalogs = []string{"deezer"}
				c.DiscogsToken = ""
			},
		},
		{
			name:    "no catalogs",
			modify:  func(c *Config) { c.Catalogs = nil },
			wantErr: true,
		},
		{
			name:    "unknown catalog",
			modify:  func(c *Config) { c.Catalogs = []string{"spotify"} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `library_dir: /tmp/test-library
catalogs: [musicbrainz]
minimum_match_score: 72.5
max_guess_attempts: 5
search_timeout: 10
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}

	if cfg.LibraryDir != "/tmp/test-library" {
		t.Errorf("LibraryDir = %q, want %q", cfg.LibraryDir, "/tmp/test-library")
	}
	if !reflect.DeepEqual(cfg.Catalogs, []string{"musicbrainz"}) {
		t.Errorf("Catalogs = %v, want [musicbrainz]", cfg.Catalogs)
	}
	if cfg.MinimumMatchScore != 72.5 {
		t.Errorf("MinimumMatchScore = %f, want 72.5", cfg.MinimumMatchScore)
	}
	if cfg.MaxGuessAttempts != 5 {
		t.Errorf("MaxGuessAttempts = %d, want 5", cfg.MaxGuessAttempts)
	}
	if cfg.SearchTimeoutDuration() != 10*time.Second {
		t.Errorf("SearchTimeoutDuration() = %v, want 10s", cfg.SearchTimeoutDuration())
	}
	// Untouched keys keep their defaults.
	if cfg.SplitCommand != "shnsplit" {
		t.Errorf("SplitCommand = %q, want shnsplit", cfg.SplitCommand)
	}
}

func TestLoadConfigFileTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `library_dir = "~/Music/lib"
discogs_token = "abc"
split_timeout = 120
move_files = true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}
	if want := filepath.Join(homeDir(), "Music", "lib"); cfg.LibraryDir != want {
		t.Errorf("LibraryDir = %q, want %q", cfg.LibraryDir, want)
	}
	if cfg.DiscogsToken != "abc" {
		t.Errorf("DiscogsToken = %q, want abc", cfg.DiscogsToken)
	}
	if cfg.SplitTimeoutDuration() != 2*time.Minute {
		t.Errorf("SplitTimeoutDuration() = %v, want 2m", cfg.SplitTimeoutDuration())
	}
	if !cfg.MoveFiles {
		t.Error("MoveFiles = false, want true")
	}
}

func TestLoadConfigFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("catalogs: [unclosed\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	cfg, err := LoadConfigFile("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfigFile() should return defaults for missing file, got error: %v", err)
	}
	if cfg.MinimumMatchScore != 80 {
		t.Errorf("expected default MinimumMatchScore=80, got %f", cfg.MinimumMatchScore)
	}
	if cfg.MaxGuessAttempts != 3 {
		t.Errorf("expected default MaxGuessAttempts=3, got %d", cfg.MaxGuessAttempts)
	}
}

func TestSaveConfigFileRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.LibraryDir = "/srv/music"
			cfg.Catalogs = []string{"musicbrainz"}

			if err := SaveConfigFile(cfg, path); err != nil {
				t.Fatalf("SaveConfigFile() error: %v", err)
			}
			got, err := LoadConfigFile(path)
			if err != nil {
				t.Fatalf("LoadConfigFile() error: %v", err)
			}
			if !reflect.DeepEqual(got, cfg) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MPTREASURY_LIBRARY_DIR", "/env/library")
	t.Setenv("MPTREASURY_DB_FILE", "/env/db.sqlite")
	t.Setenv("DISCOGS_TOKEN", "env-token")
	t.Setenv("MPTREASURY_MINIMUM_MATCH_SCORE", "65")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	if cfg.LibraryDir != "/env/library" {
		t.Errorf("LibraryDir = %q", cfg.LibraryDir)
	}
	if cfg.DBFile != "/env/db.sqlite" {
		t.Errorf("DBFile = %q", cfg.DBFile)
	}
	if cfg.DiscogsToken != "env-token" {
		t.Errorf("DiscogsToken = %q", cfg.DiscogsToken)
	}
	if cfg.MinimumMatchScore != 65 {
		t.Errorf("MinimumMatchScore = %f", cfg.MinimumMatchScore)
	}

	t.Setenv("MPTREASURY_MINIMUM_MATCH_SCORE", "high")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric score")
	}
}

func TestExpandHome(t *testing.T) {
	home := homeDir()
	tests := []struct {
		input string
		want  string
	}{
		{"~/Music", filepath.Join(home, "Music")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~notslash", "~notslash"},
	}

	for _, tt := range tests {
		got := ExpandHome(tt.input)
		if got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
