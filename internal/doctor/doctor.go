// Package doctor checks that the environment can actually record and
// transcribe: ffmpeg on PATH, a sane config, writable storage, and a
// usable transcription backend.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MahanRahmati/lumine/internal/config"
	"github.com/MahanRahmati/lumine/internal/ffmpeg"
)

// probeTimeout bounds the reachability probe of a remote whisper service.
const probeTimeout = 3 * time.Second

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(ctx context.Context, cfg *config.Config) []Result {
	results := []Result{
		checkFFmpeg(ctx),
		checkConfig(cfg),
		checkRecordingsDir(cfg),
	}
	results = append(results, checkBackend(ctx, cfg)...)
	results = append(results, checkDevices(ctx))
	return results
}

// Healthy reports whether every check passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func checkFFmpeg(ctx context.Context) Result {
	version, err := ffmpeg.Version(ctx)
	if err != nil {
		return Result{Name: "ffmpeg", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "ffmpeg", Pass: true, Detail: version}
}

func checkConfig(cfg *config.Config) Result {
	if err := cfg.Validate(); err != nil {
		return Result{Name: "config", Pass: false, Detail: err.Error()}
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return Result{Name: "config", Pass: true, Detail: "not present (defaults in use)"}
		}
	}
	return Result{Name: "config", Pass: true, Detail: cfg.ConfigPath}
}

func checkRecordingsDir(cfg *config.Config) Result {
	dir, err := cfg.RecordingsDir()
	if err != nil {
		return Result{Name: "recordings", Pass: false, Detail: err.Error()}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: "recordings", Pass: false, Detail: err.Error()}
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Result{Name: "recordings", Pass: false, Detail: fmt.Sprintf("not writable: %v", err)}
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return Result{Name: "recordings", Pass: true, Detail: dir}
}

// The file checks stat the same resolved paths the local backend opens,
// so a doctor pass here means backend construction will find the files.
func checkBackend(ctx context.Context, cfg *config.Config) []Result {
	if cfg.Whisper.UseLocal {
		results := []Result{checkFile("model file", cfg.ModelPath())}
		if vad := cfg.VADModelPath(); vad != "" {
			results = append(results, checkFile("vad model", vad))
		}
		return results
	}
	return []Result{checkService(ctx, cfg.Whisper.URL)}
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(path); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

// checkService counts any HTTP response as reachable; only a transport
// failure fails the check.
func checkService(ctx context.Context, rawURL string) Result {
	name := "whisper url"
	if strings.TrimSpace(rawURL) == "" {
		return Result{Name: name, Pass: false, Detail: "not set"}
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{Name: name, Pass: false, Detail: fmt.Sprintf("%q is not an http(s) URL", rawURL)}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{Name: name, Pass: false, Detail: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Pass: false, Detail: fmt.Sprintf("unreachable: %v", err)}
	}
	defer resp.Body.Close()
	return Result{Name: name, Pass: true, Detail: fmt.Sprintf("reachable (HTTP %d)", resp.StatusCode)}
}

func checkDevices(ctx context.Context) Result {
	devices, err := ffmpeg.ListInputDevices(ctx)
	if err != nil {
		return Result{Name: "devices", Pass: false, Detail: err.Error()}
	}
	if len(devices) == 0 {
		return Result{Name: "devices", Pass: false, Detail: "no audio input devices found"}
	}
	return Result{Name: "devices", Pass: true, Detail: fmt.Sprintf("%d input device(s)", len(devices))}
}
