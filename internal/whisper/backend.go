// Package whisper turns recorded audio into text, either by running a
// local whisper.cpp model or by calling a whisper.cpp server over HTTP.
package whisper

import (
	"context"
	"errors"
	"fmt"

	"github.com/MahanRahmati/lumine/internal/config"

	"github.com/sirupsen/logrus"
)

// Backend transcribes a single audio file to text.
type Backend interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

var (
	// ErrModelLoad means the configured model (or VAD model) is missing
	// or could not be loaded.
	ErrModelLoad = errors.New("whisper model unavailable")
	// ErrUnreachable means the whisper service could not be contacted at
	// all. This is the only error worth retrying.
	ErrUnreachable = errors.New("whisper service unreachable")
	// ErrEngineUnavailable is returned by binaries built without the
	// whisper engine when local transcription is requested.
	ErrEngineUnavailable = errors.New("local transcription requires a build with -tags whisper")
)

// ServiceError is a non-success HTTP response from the whisper service.
// The service answered, so retrying the same request will not help.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("whisper service returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("whisper service returned HTTP %d: %s", e.Status, e.Body)
}

// New builds the backend selected by whisper.use_local. Construction
// validates the selected backend's settings so a misconfiguration
// surfaces before any audio is recorded.
func New(cfg *config.Config, logger *logrus.Logger) (Backend, error) {
	if cfg.Whisper.UseLocal {
		return newLocal(cfg, logger)
	}
	return newRemote(cfg, logger)
}
