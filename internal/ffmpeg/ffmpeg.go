package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

const binary = "ffmpeg"

// ErrNotFound means the ffmpeg binary is not installed or not on PATH.
var ErrNotFound = errors.New("ffmpeg not found in PATH")

// Version reports the installed ffmpeg banner line.
func Version(ctx context.Context) (string, error) {
	stdout, _, err := run(ctx, "-version")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, "ffmpeg version") {
			return strings.TrimSpace(line), nil
		}
	}
	return "", errors.New("unrecognized ffmpeg -version output")
}

// Convert transcodes src into a 16kHz mono 16-bit WAV at dst, the input
// format whisper models expect.
func Convert(ctx context.Context, src, dst string) error {
	args := []string{
		"-hide_banner", "-nostats",
		"-i", src,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y", dst,
	}
	_, stderr, err := run(ctx, args...)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("convert %s: %w: %s", filepath.Base(src), err, lastLine(stderr))
	}
	return nil
}

func run(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	if errors.Is(err, exec.ErrNotFound) {
		return "", "", ErrNotFound
	}
	return outBuf.String(), errBuf.String(), err
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
