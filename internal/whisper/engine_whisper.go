//go:build whisper

package whisper

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/MahanRahmati/lumine/internal/audio"

	whispercpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	webrtcvad "github.com/maxhawkins/go-webrtcvad"
	"github.com/sirupsen/logrus"
)

// engine holds the whisper.cpp model for the life of the process. The
// load happens when the backend is built, so a missing or corrupt model
// file fails the run before any audio is captured.
type engine struct {
	model whispercpp.Model
}

func newEngine(modelPath string) (*engine, error) {
	model, err := whispercpp.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	return &engine{model: model}, nil
}

func (b *localBackend) run(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if b.vadPath != "" {
		trimmed, err := trimNonSpeech(samples)
		switch {
		case err != nil:
			b.logger.WithError(err).Warn("voice activity filter failed; transcribing unfiltered audio")
		case len(trimmed) == 0:
			b.logger.Debug("no speech detected")
			return "", nil
		default:
			b.logger.WithFields(logrus.Fields{
				"in":  len(samples),
				"out": len(trimmed),
			}).Debug("voice activity filter")
			samples = trimmed
		}
	}

	wctx, err := b.eng.model.NewContext()
	if err != nil {
		return "", err
	}
	if lang := b.language; lang != "" {
		_ = wctx.SetLanguage(lang)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", err
	}

	var sb strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			break
		}
		sb.WriteString(seg.Text)
		if !strings.HasSuffix(seg.Text, " ") {
			sb.WriteByte(' ')
		}
	}
	return sb.String(), nil
}

const (
	vadFrameMS = 30 // largest window webrtcvad accepts
	vadMode    = 2
	// Frames kept on each side of detected speech so word onsets and
	// trailing consonants survive the trim.
	vadPadFrames = 10
)

// trimNonSpeech drops the silent stretches of a 16 kHz mono take before it
// reaches the model. Everything within vadPadFrames of a voiced frame is
// kept; a take with no voiced frames at all trims to nothing.
func trimNonSpeech(samples []float32) ([]float32, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, fmt.Errorf("vad mode: %w", err)
	}

	frame := audio.SampleRate * vadFrameMS / 1000
	if !webrtcvad.ValidRateAndFrameLength(audio.SampleRate, frame) {
		return nil, fmt.Errorf("vad rejects %d-sample frames at %d Hz", frame, audio.SampleRate)
	}

	n := len(samples) / frame
	if n == 0 {
		return nil, nil
	}

	voiced := make([]bool, n)
	buf := make([]byte, frame*2)
	any := false
	for i := 0; i < n; i++ {
		for j := 0; j < frame; j++ {
			s := samples[i*frame+j]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			binary.LittleEndian.PutUint16(buf[j*2:], uint16(int16(s*32767)))
		}
		active, err := v.Process(audio.SampleRate, buf)
		if err != nil {
			return nil, fmt.Errorf("vad process: %w", err)
		}
		if active {
			voiced[i] = true
			any = true
		}
	}
	if !any {
		return nil, nil
	}

	out := make([]float32, 0, len(samples))
	for i := 0; i < n; i++ {
		if !nearVoiced(voiced, i, vadPadFrames) {
			continue
		}
		out = append(out, samples[i*frame:(i+1)*frame]...)
	}
	// The sub-frame remainder rides along with the kept audio.
	out = append(out, samples[n*frame:]...)
	return out, nil
}

func nearVoiced(voiced []bool, i, pad int) bool {
	lo := i - pad
	if lo < 0 {
		lo = 0
	}
	hi := i + pad
	if hi > len(voiced)-1 {
		hi = len(voiced) - 1
	}
	for j := lo; j <= hi; j++ {
		if voiced[j] {
			return true
		}
	}
	return false
}
