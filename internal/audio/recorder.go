package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MahanRahmati/lumine/internal/ffmpeg"

	"github.com/sirupsen/logrus"
)

var (
	// ErrStorageUnavailable means the recordings directory could not be
	// created or written.
	ErrStorageUnavailable = errors.New("recordings directory unavailable")
	// ErrCaptureProcessFailed means ffmpeg died unexpectedly or left an
	// unusable file.
	ErrCaptureProcessFailed = errors.New("capture process failed")
	// ErrCancelled is returned when the session was aborted by the caller.
	ErrCancelled = errors.New("recording cancelled")
)

// stopGrace bounds how long a stopped capture process may take to flush
// and exit before it is killed.
const stopGrace = 5 * time.Second

// monitorTick drives time-based stop checks between silence events.
const monitorTick = 100 * time.Millisecond

// captureSession is the slice of ffmpeg.CaptureSession the recorder needs;
// tests substitute a scripted implementation.
type captureSession interface {
	Events() <-chan ffmpeg.Event
	Done() <-chan struct{}
	Err() error
	Stop(grace time.Duration) error
	Kill()
	StartedAt() time.Time
}

// RecorderConfig carries the resolved recorder settings for one session.
type RecorderConfig struct {
	Directory       string
	PreferredDevice string
	NoiseDB         int
	SilenceLimit    time.Duration
	MaxDuration     time.Duration // 0 = unlimited
	ExtraArgs       []string
}

// Recorder owns the lifecycle of a single recording session: it launches
// the capture process, watches its silence events through a Monitor, stops
// capture when the monitor says so, and guarantees the process is reaped
// and no partial file survives a failed or cancelled session. One Recorder
// serves one Record call.
type Recorder struct {
	cfg    RecorderConfig
	logger *logrus.Logger

	cancelCh   chan struct{}
	cancelOnce sync.Once
}

func NewRecorder(cfg RecorderConfig, logger *logrus.Logger) *Recorder {
	return &Recorder{
		cfg:      cfg,
		logger:   logger,
		cancelCh: make(chan struct{}),
	}
}

// Cancel aborts an in-flight Record from another goroutine, typically a
// signal handler. It is safe to call at any time and is a no-op once the
// session has ended.
func (r *Recorder) Cancel() {
	r.cancelOnce.Do(func() { close(r.cancelCh) })
}

// Record captures one session and returns the finalized WAV path. The file
// is only returned once it fully decodes; on cancellation or failure any
// partial artifact is removed.
func (r *Recorder) Record(ctx context.Context) (string, error) {
	if _, err := ffmpeg.Version(ctx); err != nil {
		return "", err
	}

	dev, err := r.resolveDevice(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.cfg.Directory, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	out := filepath.Join(r.cfg.Directory,
		fmt.Sprintf("audiocapture_%s.wav", time.Now().Format("2006-01-02_15-04-05")))

	sess, err := ffmpeg.StartCapture(ffmpeg.CaptureConfig{
		Device:     dev,
		OutputPath: out,
		NoiseDB:    r.cfg.NoiseDB,
		ExtraArgs:  r.cfg.ExtraArgs,
	}, r.logger)
	if err != nil {
		if errors.Is(err, ffmpeg.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrCaptureProcessFailed, err)
	}

	r.logger.WithFields(logrus.Fields{
		"device": dev.Name,
		"output": out,
	}).Info("recording")

	return r.supervise(ctx, sess, out)
}

// An empty preference skips enumeration entirely and lets the platform
// default pick. A named device must exist; there is no fallback.
func (r *Recorder) resolveDevice(ctx context.Context) (ffmpeg.Device, error) {
	if r.cfg.PreferredDevice == "" {
		return ffmpeg.DefaultDevice(), nil
	}
	devices, err := ffmpeg.ListInputDevices(ctx)
	if err != nil {
		return ffmpeg.Device{}, err
	}
	return ffmpeg.SelectInputDevice(devices, r.cfg.PreferredDevice)
}

func (r *Recorder) supervise(ctx context.Context, sess captureSession, out string) (string, error) {
	// Last line of defense: whatever path unwinds this frame, the capture
	// process must not be left running.
	defer func() {
		select {
		case <-sess.Done():
		default:
			sess.Kill()
			_ = os.Remove(out)
		}
	}()

	mon := NewMonitor(MonitorConfig{
		NoiseThresholdDB: float64(r.cfg.NoiseDB),
		SilenceLimit:     r.cfg.SilenceLimit,
		MaxDuration:      r.cfg.MaxDuration,
		StartedAt:        sess.StartedAt(),
	})

	ticker := time.NewTicker(monitorTick)
	defer ticker.Stop()

	var sig Signal
loop:
	for {
		select {
		case <-ctx.Done():
			return "", r.abort(sess, out)
		case <-r.cancelCh:
			return "", r.abort(sess, out)
		case ev, ok := <-sess.Events():
			if !ok {
				break loop // capture process ended on its own
			}
			sig = mon.Observe(sampleFromEvent(ev, sess.StartedAt(), float64(r.cfg.NoiseDB)))
		case now := <-ticker.C:
			sig = mon.Tick(now)
		}
		if sig != Continue {
			r.logger.WithField("reason", sig.String()).Info("stopping recording")
			break loop
		}
	}

	var stopErr error
	select {
	case <-sess.Done():
		stopErr = sess.Err()
	default:
		stopErr = sess.Stop(stopGrace)
	}

	switch {
	case stopErr == nil:
	case errors.Is(stopErr, ffmpeg.ErrStopTimeout):
		select {
		case <-sess.Done():
		default:
			// unreapable process still owns the file
			_ = os.Remove(out)
			return "", stopErr
		}
		if vErr := ValidateWAV(out); vErr != nil {
			_ = os.Remove(out)
			return "", fmt.Errorf("%w: killed capture left no usable file: %v", ErrCaptureProcessFailed, vErr)
		}
		r.logger.Warn("capture had to be killed; salvaged a playable file")
	default:
		_ = os.Remove(out)
		return "", fmt.Errorf("%w: %v", ErrCaptureProcessFailed, stopErr)
	}

	if err := ValidateWAV(out); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("%w: %v", ErrCaptureProcessFailed, err)
	}

	r.logger.WithField("output", out).Info("recording saved")
	return out, nil
}

// Cancellation finalizes the capture the same way a monitor stop does,
// then removes the artifact; partial files never survive a cancel.
func (r *Recorder) abort(sess captureSession, out string) error {
	_ = sess.Stop(stopGrace)
	_ = os.Remove(out)
	r.logger.Info("recording cancelled")
	return ErrCancelled
}

// silencedetect reports threshold crossings, not level readings. Each
// crossing maps to a synthetic reading just past the threshold, backdated
// to the stream position so the silence window starts when the audio
// actually went quiet.
func sampleFromEvent(ev ffmpeg.Event, startedAt time.Time, thresholdDB float64) Sample {
	at := ev.At
	if ev.TS >= 0 {
		at = startedAt.Add(time.Duration(ev.TS * float64(time.Second)))
	}
	level := thresholdDB + 1
	if ev.Silence {
		level = thresholdDB - 1
	}
	return Sample{LevelDB: level, At: at}
}
