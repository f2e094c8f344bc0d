package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/pelletier/go-toml/v2"
)

const (
	appDirName     = "lumine"
	configFileName = "config.toml"
	logFileName    = "lumine.log"
	recordingsDir  = "recordings"

	DefaultWhisperURL      = "http://127.0.0.1:9090"
	defaultLanguage        = "auto"
	defaultMaxRetries      = 3
	defaultSilenceLimitSec = 2
	defaultSilenceNoiseDB  = 40
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Whisper struct {
		UseLocal     bool   `toml:"use_local"`
		URL          string `toml:"url"`
		ModelPath    string `toml:"model_path"`
		VADModelPath string `toml:"vad_model_path"`
		Language     string `toml:"language"` // "auto" or ISO 639-1 code
		MaxRetries   int    `toml:"max_retries"`
	} `toml:"whisper"`

	Recorder struct {
		RecordingsDirectory  string `toml:"recordings_directory"`
		SilenceLimit         int    `toml:"silence_limit"`        // seconds
		SilenceDetectNoise   int    `toml:"silence_detect_noise"` // dB below full scale
		PreferredInputDevice string `toml:"preferred_audio_input_device"`
		MaxRecordingDuration int    `toml:"max_recording_duration"` // seconds, 0 = unlimited
		ExtraFFmpegArgs      string `toml:"extra_ffmpeg_args"`
	} `toml:"recorder"`

	General struct {
		RemoveAfterTranscript bool `toml:"remove_after_transcript"`
		Verbose               bool `toml:"verbose"`
	} `toml:"general"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		File   string `toml:"file"`   // empty = <state dir>/lumine.log
	} `toml:"logging"`

	// ConfigPath records where the config was read from.
	ConfigPath string `toml:"-"`
}

// Default returns Config populated with defaults.
func Default() *Config {
	cfg := &Config{}

	cfg.Whisper.UseLocal = true
	cfg.Whisper.URL = DefaultWhisperURL
	cfg.Whisper.Language = defaultLanguage
	cfg.Whisper.MaxRetries = defaultMaxRetries

	cfg.Recorder.SilenceLimit = defaultSilenceLimitSec
	cfg.Recorder.SilenceDetectNoise = defaultSilenceNoiseDB

	cfg.General.RemoveAfterTranscript = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// Load loads config from file, applying defaults. A missing file is not an
// error: the defaults are used as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfg.ConfigPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Reset overwrites the config file at path (or the default path when empty)
// with default values and returns the path written.
func Reset(path string) (string, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return "", err
		}
	}
	if err := Save(Default(), path); err != nil {
		return "", err
	}
	return path, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/lumine/config.toml, falling back to
// ~/.config/lumine/config.toml.
func DefaultPath() (string, error) {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appDirName, configFileName), nil
}

// DataDir returns $XDG_DATA_HOME/lumine, falling back to
// ~/.local/share/lumine.
func DataDir() (string, error) {
	base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, appDirName), nil
}

// StateDir returns $XDG_STATE_HOME/lumine, falling back to
// ~/.local/state/lumine. Logs live here.
func StateDir() (string, error) {
	base := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, appDirName), nil
}

// RecordingsDir resolves the directory recordings are written to. An empty
// recorder.recordings_directory selects <data dir>/recordings.
func (c *Config) RecordingsDir() (string, error) {
	if dir := expandPath(c.Recorder.RecordingsDirectory); dir != "" {
		return dir, nil
	}
	data, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(data, recordingsDir), nil
}

// LogFile resolves the log destination. An empty logging.file selects
// <state dir>/lumine.log.
func (c *Config) LogFile() (string, error) {
	if f := expandPath(c.Logging.File); f != "" {
		return f, nil
	}
	state, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, logFileName), nil
}

// ModelPath resolves whisper.model_path, empty when unset.
func (c *Config) ModelPath() string {
	return expandPath(c.Whisper.ModelPath)
}

// VADModelPath resolves whisper.vad_model_path, empty when unset.
func (c *Config) VADModelPath() string {
	return expandPath(c.Whisper.VADModelPath)
}

// Path values may reference environment variables ($HOME and friends).
// Every consumer resolves through here so the doctor checks the same file
// the backend will open.
func expandPath(p string) string {
	return os.ExpandEnv(strings.TrimSpace(p))
}

// SilenceLimit returns the silence window after which recording stops.
func (c *Config) SilenceLimit() time.Duration {
	return time.Duration(c.Recorder.SilenceLimit) * time.Second
}

// MaxRecordingDuration returns the recording cap, 0 meaning unlimited.
func (c *Config) MaxRecordingDuration() time.Duration {
	if c.Recorder.MaxRecordingDuration <= 0 {
		return 0
	}
	return time.Duration(c.Recorder.MaxRecordingDuration) * time.Second
}

// ExtraFFmpegArgs parses recorder.extra_ffmpeg_args into argv form using
// shell-style quoting.
func (c *Config) ExtraFFmpegArgs() ([]string, error) {
	raw := strings.TrimSpace(c.Recorder.ExtraFFmpegArgs)
	if raw == "" {
		return nil, nil
	}
	args, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("recorder.extra_ffmpeg_args: %w", err)
	}
	return args, nil
}

// Validate checks recorder settings for values the pipeline cannot work
// with. Backend selection is validated where the backend is constructed.
func (c *Config) Validate() error {
	if c.Recorder.SilenceLimit <= 0 {
		return fmt.Errorf("recorder.silence_limit must be positive, got %d", c.Recorder.SilenceLimit)
	}
	if c.Recorder.SilenceDetectNoise <= 0 {
		return fmt.Errorf("recorder.silence_detect_noise must be positive, got %d", c.Recorder.SilenceDetectNoise)
	}
	if c.Recorder.MaxRecordingDuration < 0 {
		return fmt.Errorf("recorder.max_recording_duration must not be negative, got %d", c.Recorder.MaxRecordingDuration)
	}
	if c.Whisper.MaxRetries < 0 {
		return fmt.Errorf("whisper.max_retries must not be negative, got %d", c.Whisper.MaxRetries)
	}
	if _, err := c.ExtraFFmpegArgs(); err != nil {
		return err
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMINE_USE_LOCAL"); v != "" {
		cfg.Whisper.UseLocal = v != "0" && strings.ToLower(v) != "false"
	}
	if v := os.Getenv("LUMINE_WHISPER_URL"); v != "" {
		cfg.Whisper.URL = v
	}
	if v := os.Getenv("LUMINE_MODEL_PATH"); v != "" {
		cfg.Whisper.ModelPath = v
	}
	if v := os.Getenv("LUMINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LUMINE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
