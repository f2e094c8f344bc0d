package whisper

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MahanRahmati/lumine/internal/audio"
	"github.com/MahanRahmati/lumine/internal/config"

	"github.com/sirupsen/logrus"
)

// localBackend runs whisper.cpp in-process. The engine itself lives behind
// the whisper build tag; without it run reports ErrEngineUnavailable.
type localBackend struct {
	vadPath  string
	language string
	logger   *logrus.Logger
	eng      *engine
}

func newLocal(cfg *config.Config, logger *logrus.Logger) (*localBackend, error) {
	modelPath := cfg.ModelPath()
	if modelPath == "" {
		return nil, fmt.Errorf("%w: whisper.model_path is not set", ErrModelLoad)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	vadPath := cfg.VADModelPath()
	if vadPath != "" {
		if _, err := os.Stat(vadPath); err != nil {
			return nil, fmt.Errorf("%w: vad model: %v", ErrModelLoad, err)
		}
	}

	eng, err := newEngine(modelPath)
	if err != nil {
		return nil, err
	}

	return &localBackend{
		vadPath:  vadPath,
		language: strings.TrimSpace(cfg.Whisper.Language),
		logger:   logger,
		eng:      eng,
	}, nil
}

// Transcribe decodes the WAV, brings it to the rate the model expects and
// hands it to the engine. Empty audio short-circuits to an empty
// transcript without running the engine.
func (b *localBackend) Transcribe(ctx context.Context, path string) (string, error) {
	samples, rate, err := audio.ReadWAVMono(path)
	if err != nil {
		return "", err
	}
	if rate != audio.SampleRate {
		b.logger.WithFields(logrus.Fields{
			"from": rate,
			"to":   audio.SampleRate,
		}).Debug("resampling for whisper")
		samples = audio.ResampleLinear(samples, rate, audio.SampleRate)
	}
	if len(samples) == 0 {
		return "", nil
	}

	text, err := b.run(ctx, samples)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
