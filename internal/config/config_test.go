package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if !cfg.Whisper.UseLocal {
		t.Fatalf("expected local backend by default")
	}
	if cfg.Whisper.URL != DefaultWhisperURL {
		t.Fatalf("unexpected default url: %q", cfg.Whisper.URL)
	}
	if cfg.Whisper.Language != "auto" {
		t.Fatalf("unexpected default language: %q", cfg.Whisper.Language)
	}
	if cfg.Whisper.MaxRetries != 3 {
		t.Fatalf("unexpected default max_retries: %d", cfg.Whisper.MaxRetries)
	}
	if cfg.Recorder.SilenceLimit != 2 || cfg.Recorder.SilenceDetectNoise != 40 {
		t.Fatalf("unexpected recorder defaults: %+v", cfg.Recorder)
	}
	if cfg.Recorder.MaxRecordingDuration != 0 {
		t.Fatalf("recording duration should be unlimited by default")
	}
	if !cfg.General.RemoveAfterTranscript {
		t.Fatalf("expected remove_after_transcript by default")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("LUMINE_USE_LOCAL", "0")
	t.Setenv("LUMINE_WHISPER_URL", "http://10.0.0.5:8080")
	t.Setenv("LUMINE_LOG_LEVEL", "debug")
	t.Setenv("LUMINE_LOG_FORMAT", "json")

	applyEnvOverrides(cfg)

	if cfg.Whisper.UseLocal {
		t.Fatalf("local backend should be disabled via env")
	}
	if cfg.Whisper.URL != "http://10.0.0.5:8080" {
		t.Fatalf("url override failed: %q", cfg.Whisper.URL)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Whisper.ModelPath = "/models/ggml-base.bin"
	cfg.Recorder.PreferredInputDevice = "USB Microphone"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Whisper.ModelPath != "/models/ggml-base.bin" {
		t.Fatalf("expected model path to persist, got %q", loaded.Whisper.ModelPath)
	}
	if loaded.Recorder.PreferredInputDevice != "USB Microphone" {
		t.Fatalf("expected device name to persist, got %q", loaded.Recorder.PreferredInputDevice)
	}
	if loaded.ConfigPath != path {
		t.Fatalf("config path not recorded: %q", loaded.ConfigPath)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Whisper.UseLocal || cfg.Recorder.SilenceLimit != 2 {
		t.Fatalf("expected defaults for missing file: %+v", cfg)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("load must not create the config file")
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[recorder]\nsilence_limit = 5\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Recorder.SilenceLimit != 5 {
		t.Fatalf("file value not applied: %d", cfg.Recorder.SilenceLimit)
	}
	if cfg.Whisper.URL != DefaultWhisperURL {
		t.Fatalf("unset keys should keep defaults, got %q", cfg.Whisper.URL)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("recorder = not toml ["), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestResetOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[recorder]\nsilence_limit = 9\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	written, err := Reset(path)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if written != path {
		t.Fatalf("reset path mismatch: %q", written)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Recorder.SilenceLimit != 2 {
		t.Fatalf("reset should restore defaults, got %d", cfg.Recorder.SilenceLimit)
	}
}

func TestExtraFFmpegArgs(t *testing.T) {
	cfg := Default()

	args, err := cfg.ExtraFFmpegArgs()
	if err != nil || args != nil {
		t.Fatalf("empty setting should yield no args: %v %v", args, err)
	}

	cfg.Recorder.ExtraFFmpegArgs = `-af "highpass=f=200" -threads 2`
	args, err = cfg.ExtraFFmpegArgs()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"-af", "highpass=f=200", "-threads", "2"}
	if len(args) != len(want) {
		t.Fatalf("unexpected args: %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: got %q want %q", i, args[i], want[i])
		}
	}

	cfg.Recorder.ExtraFFmpegArgs = `-af "unterminated`
	if _, err := cfg.ExtraFFmpegArgs(); err == nil {
		t.Fatalf("expected quoting error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.Recorder.SilenceLimit = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero silence_limit should be rejected")
	}

	cfg = Default()
	cfg.Recorder.MaxRecordingDuration = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative max_recording_duration should be rejected")
	}

	cfg = Default()
	cfg.Whisper.MaxRetries = -2
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative max_retries should be rejected")
	}
}

func TestXDGPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if path != filepath.Join("/tmp/xdg-config", "lumine", "config.toml") {
		t.Fatalf("unexpected config path: %q", path)
	}

	cfg := Default()
	dir, err := cfg.RecordingsDir()
	if err != nil {
		t.Fatalf("recordings dir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-data", "lumine", "recordings") {
		t.Fatalf("unexpected recordings dir: %q", dir)
	}

	cfg.Recorder.RecordingsDirectory = "/var/tmp/captures"
	dir, err = cfg.RecordingsDir()
	if err != nil || dir != "/var/tmp/captures" {
		t.Fatalf("explicit recordings dir not honored: %q %v", dir, err)
	}

	logFile, err := cfg.LogFile()
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if logFile != filepath.Join("/tmp/xdg-state", "lumine", "lumine.log") {
		t.Fatalf("unexpected log file: %q", logFile)
	}
}

func TestPathValuesExpandEnv(t *testing.T) {
	t.Setenv("LUMINE_TEST_ROOT", "/srv/lumine")

	cfg := Default()
	cfg.Whisper.ModelPath = "$LUMINE_TEST_ROOT/models/ggml-base.bin"
	cfg.Whisper.VADModelPath = "${LUMINE_TEST_ROOT}/models/silero.bin"
	cfg.Recorder.RecordingsDirectory = "$LUMINE_TEST_ROOT/recordings"
	cfg.Logging.File = "$LUMINE_TEST_ROOT/lumine.log"

	if got := cfg.ModelPath(); got != "/srv/lumine/models/ggml-base.bin" {
		t.Fatalf("model path not expanded: %q", got)
	}
	if got := cfg.VADModelPath(); got != "/srv/lumine/models/silero.bin" {
		t.Fatalf("vad model path not expanded: %q", got)
	}
	dir, err := cfg.RecordingsDir()
	if err != nil || dir != "/srv/lumine/recordings" {
		t.Fatalf("recordings dir not expanded: %q %v", dir, err)
	}
	logFile, err := cfg.LogFile()
	if err != nil || logFile != "/srv/lumine/lumine.log" {
		t.Fatalf("log file not expanded: %q %v", logFile, err)
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	if cfg.SilenceLimit() != 2*time.Second {
		t.Fatalf("unexpected silence limit: %v", cfg.SilenceLimit())
	}
	if cfg.MaxRecordingDuration() != 0 {
		t.Fatalf("unlimited cap should map to zero duration")
	}
	cfg.Recorder.MaxRecordingDuration = 90
	if cfg.MaxRecordingDuration() != 90*time.Second {
		t.Fatalf("unexpected cap: %v", cfg.MaxRecordingDuration())
	}
}
