package ffmpeg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is a silencedetect state change parsed from capture output.
type Event struct {
	Silence bool      // true at silence_start, false at silence_end
	TS      float64   // position in the captured stream, seconds
	At      time.Time // wall clock when the line was observed
}

// CaptureConfig describes one ffmpeg capture run.
type CaptureConfig struct {
	Device     Device
	OutputPath string
	NoiseDB    int // silencedetect threshold, dB below full scale
	ExtraArgs  []string
}

// detectWindow is the continuous-quiet span silencedetect needs before it
// reports silence_start. Kept well under any configurable silence limit so
// the report always arrives before a stop decision is due.
const detectWindow = "0.5"

// ErrStopTimeout means the capture process ignored the graceful stop and
// had to be killed.
var ErrStopTimeout = errors.New("capture process did not stop in time")

// CaptureSession is one running ffmpeg capture. Silence events stream on
// Events until the process exits, after which the channel closes.
type CaptureSession struct {
	cmd    *exec.Cmd
	output string
	logger *logrus.Logger

	events  chan Event
	done    chan struct{}
	waitErr error
	startAt time.Time
}

// StartCapture launches ffmpeg recording from the device into
// cfg.OutputPath as 16kHz mono 16-bit WAV, with silencedetect feeding the
// event stream.
func StartCapture(cfg CaptureConfig, logger *logrus.Logger) (*CaptureSession, error) {
	args, err := captureArgs(cfg)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(binary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("start capture: %w", err)
	}

	s := &CaptureSession{
		cmd:     cmd,
		output:  cfg.OutputPath,
		logger:  logger,
		events:  make(chan Event, 32),
		done:    make(chan struct{}),
		startAt: time.Now(),
	}
	logger.WithFields(logrus.Fields{"pid": cmd.Process.Pid, "output": cfg.OutputPath}).Debug("capture started")
	go s.drain(stderr)
	return s, nil
}

func captureArgs(cfg CaptureConfig) ([]string, error) {
	in, err := inputArgs(cfg.Device)
	if err != nil {
		return nil, err
	}
	filters, extra, err := splitAudioFilters(cfg.ExtraArgs)
	if err != nil {
		return nil, err
	}
	chain := fmt.Sprintf("silencedetect=n=-%ddB:d=%s", cfg.NoiseDB, detectWindow)
	if len(filters) > 0 {
		chain = strings.Join(filters, ",") + "," + chain
	}
	args := append([]string{"-hide_banner", "-nostats"}, in...)
	args = append(args,
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-af", chain,
	)
	args = append(args, extra...)
	args = append(args, "-y", cfg.OutputPath)
	return args, nil
}

// ffmpeg honors only the last -af per output stream, so user filters must
// not ride alongside the silencedetect option. They are pulled out of the
// extra arguments and folded into one chain, user filters first, detection
// running on the filtered signal.
func splitAudioFilters(args []string) (filters, rest []string, err error) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-af", "-filter:a":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("extra_ffmpeg_args: %s needs a filter argument", args[i])
			}
			filters = append(filters, args[i+1])
			i++
		default:
			rest = append(rest, args[i])
		}
	}
	return filters, rest, nil
}

func inputArgs(dev Device) ([]string, error) {
	id := dev.ID
	if id == "" {
		id = "default"
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{"-f", "avfoundation", "-i", ":" + id}, nil
	case "linux":
		return []string{"-f", "pulse", "-i", id}, nil
	}
	return nil, fmt.Errorf("audio capture is not supported on %s", runtime.GOOS)
}

// Events streams parsed silencedetect changes. Closed once the process has
// exited and been reaped.
func (s *CaptureSession) Events() <-chan Event { return s.events }

// Output returns the path ffmpeg is writing to.
func (s *CaptureSession) Output() string { return s.output }

// StartedAt is the wall clock at process launch, the zero point for event
// stream timestamps.
func (s *CaptureSession) StartedAt() time.Time { return s.startAt }

// Done is closed when the process has exited and been reaped.
func (s *CaptureSession) Done() <-chan struct{} { return s.done }

// Err reports the normalized exit state. Valid only after Done is closed;
// nil for a clean or interrupted exit.
func (s *CaptureSession) Err() error {
	select {
	case <-s.done:
		return s.exitErr()
	default:
		return nil
	}
}

// Stop interrupts ffmpeg so it can flush and close the WAV, waits up to
// grace for a clean exit, then kills. A kill is reported as ErrStopTimeout
// so the caller can decide whether the partial file is still usable.
func (s *CaptureSession) Stop(grace time.Duration) error {
	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case <-s.done:
		return s.exitErr()
	case <-time.After(grace):
	}

	s.logger.Warn("capture process ignored interrupt, killing")
	_ = s.cmd.Process.Kill()
	select {
	case <-s.done:
		return ErrStopTimeout
	case <-time.After(grace):
		return fmt.Errorf("%w: unreaped after kill", ErrStopTimeout)
	}
}

// Kill force-terminates the process and waits for the reap.
func (s *CaptureSession) Kill() {
	_ = s.cmd.Process.Kill()
	<-s.done
}

func (s *CaptureSession) drain(stderr io.ReadCloser) {
	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		ev, ok := parseSilenceEvent(sc.Text(), time.Now())
		if !ok {
			continue
		}
		s.logger.WithFields(logrus.Fields{"silence": ev.Silence, "ts": ev.TS}).Debug("silencedetect")
		select {
		case s.events <- ev:
		default: // consumer gone; session is already shutting down
		}
	}
	s.waitErr = s.cmd.Wait()
	close(s.done)
	close(s.events)
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[0-9.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[0-9.]+)`)
)

// parseSilenceEvent extracts a silencedetect state change from one line of
// ffmpeg output. ok is false for unrelated lines.
func parseSilenceEvent(line string, now time.Time) (Event, bool) {
	if m := silenceStartRe.FindStringSubmatch(line); m != nil {
		ts, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Event{}, false
		}
		return Event{Silence: true, TS: ts, At: now}, true
	}
	if m := silenceEndRe.FindStringSubmatch(line); m != nil {
		ts, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Event{}, false
		}
		return Event{Silence: false, TS: ts, At: now}, true
	}
	return Event{}, false
}

// ffmpeg exits 255 when interrupted and reports the signal when killed.
// Both mean the recording was stopped, not that capture itself failed.
func (s *CaptureSession) exitErr() error {
	err := s.waitErr
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ee.ExitCode() == 255 {
			return nil
		}
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			switch ws.Signal() {
			case syscall.SIGINT, syscall.SIGTERM, syscall.SIGKILL:
				return nil
			}
		}
	}
	return fmt.Errorf("capture process failed: %w", err)
}
