package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds Cubby runtime configuration loaded from TOML.
type Config struct {
	ConfigVersion int             `toml:"config_version"`
	Librespot     LibrespotConfig `toml:"librespot"`
	Catalog       CatalogConfig   `toml:"catalog"`
	Timing        TimingConfig    `toml:"timing"`
	Volume        VolumeConfig    `toml:"volume"`
	UI            UIConfig        `toml:"ui"`
}

// LibrespotConfig points at the remote player daemon.
type LibrespotConfig struct {
	BaseURL   string `toml:"base_url"`
	EventsURL string `toml:"events_url"`
}

// CatalogConfig holds catalog storage settings.
type CatalogConfig struct {
	DBPath string `toml:"db_path"`
}

// TimingConfig holds the coordinator's policy windows. These are tuned
// values with working defaults; none are correctness requirements.
type TimingConfig struct {
	PollIntervalMS       int `toml:"poll_interval_ms"`
	FastPollIntervalMS   int `toml:"fast_poll_interval_ms"`
	GraceThreshold       int `toml:"grace_threshold"`
	StartupAttempts      int `toml:"startup_attempts"`
	PlayTimerDelayMS     int `toml:"play_timer_delay_ms"`
	SyncCooldownMS       int `toml:"sync_cooldown_ms"`
	EchoWindowMS         int `toml:"echo_window_ms"`
	SettleDelayMS        int `toml:"settle_delay_ms"`
	SeekDelayMS          int `toml:"seek_delay_ms"`
	RecentPlayWindowMS   int `toml:"recent_play_window_ms"`
	AutoPauseMinutes     int `toml:"auto_pause_minutes"`
	AutoPauseFadeSeconds int `toml:"auto_pause_fade_seconds"`
	ProgressSaveSeconds  int `toml:"progress_save_seconds"`
}

// VolumeConfig holds the local volume ladder and ownership policy.
type VolumeConfig struct {
	Levels            []int  `toml:"levels"`
	TakeoverThreshold int    `toml:"takeover_threshold"`
	MixerControl      string `toml:"mixer_control"`
}

type UIConfig struct {
	Theme   string `toml:"theme"`
	NoEmoji bool   `toml:"no_emoji"`
}

// Load reads configuration from disk. If path is empty, a default
// OS-specific location is used; a missing file at the default location
// yields the built-in defaults rather than an error.
func Load(path string) (*Config, string, error) {
	cfgPath := path
	explicit := path != ""
	if cfgPath == "" {
		var err error
		cfgPath, err = defaultPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve config path: %w", err)
		}
	}

	var cfg Config
	data, err := os.ReadFile(cfgPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, cfgPath, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// First run without a config file: run on defaults.
	default:
		return nil, cfgPath, fmt.Errorf("read config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

func defaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	base := filepath.Join(dir, "cubby")
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(base, "config.toml"), nil
}

func applyDefaults(cfg *Config) {
	if cfg.Librespot.BaseURL == "" {
		cfg.Librespot.BaseURL = "http://localhost:3678"
	}
	if cfg.Librespot.EventsURL == "" {
		cfg.Librespot.EventsURL = "ws://localhost:3678/events"
	}
	if cfg.Timing.PollIntervalMS == 0 {
		cfg.Timing.PollIntervalMS = 1000
	}
	if cfg.Timing.FastPollIntervalMS == 0 {
		cfg.Timing.FastPollIntervalMS = 500
	}
	if cfg.Timing.GraceThreshold == 0 {
		cfg.Timing.GraceThreshold = 3
	}
	if cfg.Timing.StartupAttempts == 0 {
		cfg.Timing.StartupAttempts = 10
	}
	if cfg.Timing.PlayTimerDelayMS == 0 {
		cfg.Timing.PlayTimerDelayMS = 1000
	}
	if cfg.Timing.SyncCooldownMS == 0 {
		cfg.Timing.SyncCooldownMS = 3000
	}
	if cfg.Timing.EchoWindowMS == 0 {
		cfg.Timing.EchoWindowMS = 2000
	}
	if cfg.Timing.SettleDelayMS == 0 {
		cfg.Timing.SettleDelayMS = 500
	}
	if cfg.Timing.SeekDelayMS == 0 {
		cfg.Timing.SeekDelayMS = 500
	}
	if cfg.Timing.RecentPlayWindowMS == 0 {
		cfg.Timing.RecentPlayWindowMS = 5000
	}
	if cfg.Timing.AutoPauseMinutes == 0 {
		cfg.Timing.AutoPauseMinutes = 30
	}
	if cfg.Timing.AutoPauseFadeSeconds == 0 {
		cfg.Timing.AutoPauseFadeSeconds = 5
	}
	if cfg.Timing.ProgressSaveSeconds == 0 {
		cfg.Timing.ProgressSaveSeconds = 10
	}
	if len(cfg.Volume.Levels) == 0 {
		cfg.Volume.Levels = []int{60, 70, 80}
	}
	if cfg.Volume.TakeoverThreshold == 0 {
		cfg.Volume.TakeoverThreshold = 95
	}
	if cfg.Volume.MixerControl == "" {
		cfg.Volume.MixerControl = "PCM"
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = "berry"
	}
}

// Validate performs semantic validation of the config.
func Validate(cfg Config) error {
	if cfg.Librespot.BaseURL == "" {
		return errors.New("librespot.base_url is required")
	}
	if cfg.Timing.GraceThreshold < 1 {
		return errors.New("timing.grace_threshold must be >= 1")
	}
	if cfg.Timing.PollIntervalMS < 100 {
		return errors.New("timing.poll_interval_ms must be >= 100")
	}
	if cfg.Timing.FastPollIntervalMS < 100 {
		return errors.New("timing.fast_poll_interval_ms must be >= 100")
	}
	for _, lvl := range cfg.Volume.Levels {
		if lvl < 0 || lvl > 100 {
			return fmt.Errorf("volume.levels entry %d out of range 0-100", lvl)
		}
	}
	if cfg.Volume.TakeoverThreshold < 1 || cfg.Volume.TakeoverThreshold > 100 {
		return errors.New("volume.takeover_threshold must be 1-100")
	}
	return nil
}

func (t TimingConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMS) * time.Millisecond
}

func (t TimingConfig) FastPollInterval() time.Duration {
	return time.Duration(t.FastPollIntervalMS) * time.Millisecond
}

func (t TimingConfig) PlayTimerDelay() time.Duration {
	return time.Duration(t.PlayTimerDelayMS) * time.Millisecond
}

func (t TimingConfig) SyncCooldown() time.Duration {
	return time.Duration(t.SyncCooldownMS) * time.Millisecond
}

func (t TimingConfig) EchoWindow() time.Duration {
	return time.Duration(t.EchoWindowMS) * time.Millisecond
}

func (t TimingConfig) SettleDelay() time.Duration {
	return time.Duration(t.SettleDelayMS) * time.Millisecond
}

func (t TimingConfig) SeekDelay() time.Duration {
	return time.Duration(t.SeekDelayMS) * time.Millisecond
}

func (t TimingConfig) RecentPlayWindow() time.Duration {
	return time.Duration(t.RecentPlayWindowMS) * time.Millisecond
}

func (t TimingConfig) AutoPauseTimeout() time.Duration {
	return time.Duration(t.AutoPauseMinutes) * time.Minute
}

func (t TimingConfig) AutoPauseFade() time.Duration {
	return time.Duration(t.AutoPauseFadeSeconds) * time.Second
}

func (t TimingConfig) ProgressSaveInterval() time.Duration {
	return time.Duration(t.ProgressSaveSeconds) * time.Second
}
