// Package app wires recording, conversion and transcription into the
// pipeline behind every CLI command.
package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/MahanRahmati/lumine/internal/audio"
	"github.com/MahanRahmati/lumine/internal/config"
	"github.com/MahanRahmati/lumine/internal/ffmpeg"
	"github.com/MahanRahmati/lumine/internal/files"
	"github.com/MahanRahmati/lumine/internal/fsm"
	"github.com/MahanRahmati/lumine/internal/whisper"

	"github.com/sirupsen/logrus"
)

// convertedSuffix names the whisper-ready rewrite placed next to its source.
const convertedSuffix = "_whisper.wav"

// retryBaseDelay is the first backoff step when the whisper service is
// unreachable; it doubles per retry. Tests shrink it.
var retryBaseDelay = 500 * time.Millisecond

// recorder is what the pipeline needs from audio.Recorder; tests script it.
type recorder interface {
	Record(ctx context.Context) (string, error)
}

// App runs one pipeline invocation: a single recording and/or a single
// transcription. It is not safe for concurrent use; each CLI run builds
// its own App.
type App struct {
	cfg     *config.Config
	logger  *logrus.Logger
	backend whisper.Backend

	state fsm.State

	newRecorder func() (recorder, error)
}

// New builds the pipeline. backend may be nil for record-only use.
func New(cfg *config.Config, logger *logrus.Logger, backend whisper.Backend) *App {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		state:   fsm.StateIdle,
	}
	a.newRecorder = func() (recorder, error) {
		dir, err := cfg.RecordingsDir()
		if err != nil {
			return nil, err
		}
		extra, err := cfg.ExtraFFmpegArgs()
		if err != nil {
			return nil, err
		}
		return audio.NewRecorder(audio.RecorderConfig{
			Directory:       dir,
			PreferredDevice: cfg.Recorder.PreferredInputDevice,
			NoiseDB:         cfg.Recorder.SilenceDetectNoise,
			SilenceLimit:    cfg.SilenceLimit(),
			MaxDuration:     cfg.MaxRecordingDuration(),
			ExtraArgs:       extra,
		}, logger), nil
	}
	return a
}

// State reports where the pipeline ended up.
func (a *App) State() fsm.State {
	return a.state
}

func (a *App) apply(event fsm.Event) {
	next, err := fsm.Transition(a.state, event)
	if err != nil {
		// Transitions are driven by the pipeline itself; this is a bug,
		// not a user condition.
		a.logger.WithError(err).Error("pipeline state error")
		return
	}
	a.logger.WithFields(logrus.Fields{"from": a.state, "to": next}).Debug("pipeline state")
	a.state = next
}

func (a *App) fail(err error) error {
	a.apply(fsm.EventFail)
	return err
}

// RecordAndTranscribe captures one take and returns its transcript. The
// recorded file and any converted intermediate are removed after success
// when general.remove_after_transcript is set; every failure removes them
// regardless.
func (a *App) RecordAndTranscribe(ctx context.Context) (string, error) {
	if a.backend == nil {
		return "", a.fail(errors.New("no transcription backend configured"))
	}

	rec, err := a.newRecorder()
	if err != nil {
		return "", a.fail(err)
	}
	a.apply(fsm.EventStart)

	captured, err := rec.Record(ctx)
	if err != nil {
		return "", a.fail(err)
	}
	capturedTmp := files.NewTemp(captured)
	defer a.cleanup(capturedTmp)

	a.apply(fsm.EventCaptured)

	ready, readyTmp, err := a.ensureWhisperReady(ctx, captured)
	if err != nil {
		return "", a.fail(err)
	}
	if readyTmp != nil {
		defer a.cleanup(readyTmp)
	}

	text, err := a.transcribe(ctx, ready)
	if err != nil {
		return "", a.fail(err)
	}
	a.apply(fsm.EventTranscribed)

	if !a.cfg.General.RemoveAfterTranscript {
		capturedTmp.Keep()
		if readyTmp != nil {
			readyTmp.Keep()
		}
	}
	return text, nil
}

// TranscribeFile transcribes an existing audio file. The given file is
// never touched on failure; after success it is removed only when
// general.remove_after_transcript is set.
func (a *App) TranscribeFile(ctx context.Context, path string) (string, error) {
	if a.backend == nil {
		return "", a.fail(errors.New("no transcription backend configured"))
	}
	if err := files.ValidateExists(path); err != nil {
		return "", a.fail(err)
	}
	a.apply(fsm.EventSubmit)

	ready, readyTmp, err := a.ensureWhisperReady(ctx, path)
	if err != nil {
		return "", a.fail(err)
	}
	if readyTmp != nil {
		defer a.cleanup(readyTmp)
	}

	text, err := a.transcribe(ctx, ready)
	if err != nil {
		return "", a.fail(err)
	}
	a.apply(fsm.EventTranscribed)

	if a.cfg.General.RemoveAfterTranscript {
		if err := files.Remove(path); err != nil {
			a.logger.WithError(err).Warn("could not remove source file")
		}
	} else if readyTmp != nil {
		readyTmp.Keep()
	}
	return text, nil
}

// RecordOnly captures one take and returns the path of the whisper-ready
// artifact, which is always kept. When conversion produced a second file,
// the raw capture follows general.remove_after_transcript.
func (a *App) RecordOnly(ctx context.Context) (string, error) {
	rec, err := a.newRecorder()
	if err != nil {
		return "", a.fail(err)
	}
	a.apply(fsm.EventStart)

	captured, err := rec.Record(ctx)
	if err != nil {
		return "", a.fail(err)
	}
	capturedTmp := files.NewTemp(captured)
	defer a.cleanup(capturedTmp)

	ready, readyTmp, err := a.ensureWhisperReady(ctx, captured)
	if err != nil {
		return "", a.fail(err)
	}
	a.apply(fsm.EventSaved)

	if readyTmp == nil {
		// The capture is the artifact; record-only never destroys its
		// own product.
		capturedTmp.Keep()
		return captured, nil
	}
	readyTmp.Keep()
	if !a.cfg.General.RemoveAfterTranscript {
		capturedTmp.Keep()
	}
	return ready, nil
}

// ensureWhisperReady hands back a 16 kHz mono WAV for the given input,
// converting through ffmpeg when needed. A non-nil Temp means a new file
// was produced and the caller decides its fate.
func (a *App) ensureWhisperReady(ctx context.Context, path string) (string, *files.Temp, error) {
	rate, channels, err := audio.ProbeWAV(path)
	if err == nil && rate == audio.SampleRate && channels == 1 {
		return path, nil, nil
	}

	out := convertedPath(path)
	a.logger.WithFields(logrus.Fields{
		"input":  path,
		"output": out,
	}).Debug("converting audio for whisper")
	if err := ffmpeg.Convert(ctx, path, out); err != nil {
		return "", nil, err
	}
	return out, files.NewTemp(out), nil
}

func convertedPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + convertedSuffix
}

// transcribe calls the backend, retrying only when the service is
// unreachable: whisper.max_retries extra attempts with doubling delay.
func (a *App) transcribe(ctx context.Context, path string) (string, error) {
	retries := a.cfg.Whisper.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delay := retryBaseDelay
	for attempt := 0; ; attempt++ {
		text, err := a.backend.Transcribe(ctx, path)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, whisper.ErrUnreachable) || attempt >= retries {
			return "", err
		}
		a.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"of":      retries,
			"delay":   delay,
		}).Warn("whisper service unreachable; retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (a *App) cleanup(t *files.Temp) {
	if err := t.Cleanup(); err != nil {
		a.logger.WithError(err).Warn("cleanup failed")
	}
}
