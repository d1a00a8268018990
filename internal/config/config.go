package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

const (
	AppName      = "lyreplay"
	PollInterval = 100 * time.Millisecond
)

//go:embed config.example.toml
var exampleConf []byte

type Config struct {
	API    APIConfig    `toml:"api"`
	Player PlayerConfig `toml:"player"`
	UI     UIConfig     `toml:"ui"`
	Log    LogConfig    `toml:"log"`
	MPRIS  MPRISConfig  `toml:"mpris"`
}

type APIConfig struct {
	BaseURL           string  `toml:"base_url"`
	FallbackURL       string  `toml:"fallback_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	CacheSize         int     `toml:"cache_size"`
	CacheTTLMinutes   int     `toml:"cache_ttl_minutes"`
}

func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func (a APIConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLMinutes) * time.Minute
}

type PlayerConfig struct {
	Playlist        string  `toml:"playlist"`
	Volume          float64 `toml:"volume"`
	SyncOffsetMs    int64   `toml:"sync_offset_ms"`
	SeekStepSeconds int     `toml:"seek_step_seconds"`
	VolumeStep      float64 `toml:"volume_step"`
}

func (p PlayerConfig) SeekStep() time.Duration {
	return time.Duration(p.SeekStepSeconds) * time.Second
}

type UIConfig struct {
	HideHeader  bool `toml:"hide_header"`
	ShowArtwork bool `toml:"show_artwork"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type MPRISConfig struct {
	Enabled  bool   `toml:"enabled"`
	Identity string `toml:"identity"`
}

// DefaultConfig returns the settings from the embedded example config.
func DefaultConfig() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// DefaultPath is config.toml under the user config dir ($XDG_CONFIG_HOME on
// Linux).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, AppName, "config.toml"), nil
}

// Load layers defaults, the TOML file and the environment. An empty path
// means DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. SYNC_OFFSET is in
// seconds and may be fractional.
func (c *Config) ApplyEnv() {
	c.API.BaseURL = getEnvOrDefault("LYREPLAY_API_URL", c.API.BaseURL)
	c.Player.Playlist = getEnvOrDefault("LYREPLAY_PLAYLIST", c.Player.Playlist)
	c.Log.Level = getEnvOrDefault("LYREPLAY_LOG_LEVEL", c.Log.Level)

	if raw := os.Getenv("SYNC_OFFSET"); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil {
			c.Player.SyncOffsetMs = int64(math.Round(secs * 1000))
		}
	}

	if raw := os.Getenv("HIDE_HEADER"); raw != "" {
		c.UI.HideHeader = parseBool(raw)
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url must not be empty")
	}
	if !strings.Contains(c.API.FallbackURL, "%s") && c.API.FallbackURL != "" {
		return fmt.Errorf("api.fallback_url %q must contain %%s for the track id", c.API.FallbackURL)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	c.Player.Volume = math.Max(0, math.Min(1, c.Player.Volume))
	if c.Player.SeekStepSeconds <= 0 {
		c.Player.SeekStepSeconds = 5
	}
	if c.Player.VolumeStep <= 0 || c.Player.VolumeStep > 1 {
		c.Player.VolumeStep = 0.05
	}
	if c.MPRIS.Identity == "" {
		c.MPRIS.Identity = AppName
	}
	return nil
}

// LogLevel is the parsed log level, info when unset.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Encode writes the effective configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// CreateConfigFile writes the example config to path, creating parent
// directories. It refuses to overwrite an existing file.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func ExampleConfig() []byte {
	return exampleConf
}

func getEnvOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
