package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// Device identifies one audio input. ID is what the platform demuxer wants:
// an avfoundation index on macOS, a pulse source name on Linux.
type Device struct {
	ID   string
	Name string
}

// DefaultDevice selects the system default input.
func DefaultDevice() Device { return Device{ID: "default", Name: "default"} }

// ErrDeviceNotFound means a preferred device name matched nothing.
var ErrDeviceNotFound = errors.New("audio input device not found")

var (
	avfDeviceRe   = regexp.MustCompile(`\[(\d+)\]\s+(.*)`)
	pulseSourceRe = regexp.MustCompile(`^\s*(?:\*\s)?(\S+)\s+\[([^\]]+)\]`)
)

// ListInputDevices enumerates capture devices by asking ffmpeg. The
// listings land on stderr on both platforms.
func ListInputDevices(ctx context.Context) ([]Device, error) {
	switch runtime.GOOS {
	case "darwin":
		// The list invocation always exits non-zero once listing is done.
		_, stderr, err := run(ctx, "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return parseAVFoundationDevices(stderr), nil
	case "linux":
		_, stderr, err := run(ctx, "-hide_banner", "-sources", "pulse")
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		devices := parsePulseSources(stderr)
		if len(devices) == 0 && err != nil {
			return nil, fmt.Errorf("list pulse sources: %w", err)
		}
		return devices, nil
	}
	return nil, fmt.Errorf("device listing is not supported on %s", runtime.GOOS)
}

// SelectInputDevice resolves the configured device name against the
// enumerated inputs. An empty preference picks the platform default; a
// preference that matches nothing is an error, not a silent fallback.
func SelectInputDevice(devices []Device, preferred string) (Device, error) {
	preferred = strings.TrimSpace(preferred)
	if preferred == "" {
		return DefaultDevice(), nil
	}
	for _, d := range devices {
		if strings.Contains(d.Name, preferred) {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, preferred)
}

func parseAVFoundationDevices(out string) []Device {
	var devices []Device
	inAudio := false
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "AVFoundation audio devices") {
			inAudio = true
			continue
		}
		if !inAudio {
			continue
		}
		if m := avfDeviceRe.FindStringSubmatch(line); m != nil {
			devices = append(devices, Device{ID: m[1], Name: strings.TrimSpace(m[2])})
		}
	}
	return devices
}

// Pulse monitor sources mirror outputs; only *_input sources are real
// microphones.
func parsePulseSources(out string) []Device {
	var devices []Device
	inSources := false
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Auto-detected sources for pulse") {
			inSources = true
			continue
		}
		if !inSources || !strings.Contains(line, "_input") {
			continue
		}
		if m := pulseSourceRe.FindStringSubmatch(line); m != nil {
			devices = append(devices, Device{ID: m[1], Name: m[2]})
		}
	}
	return devices
}
