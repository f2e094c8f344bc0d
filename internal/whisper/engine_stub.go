//go:build !whisper

package whisper

import "context"

// engine is empty without the whisper tag; there is no model to load.
type engine struct{}

func newEngine(string) (*engine, error) {
	return &engine{}, nil
}

func (b *localBackend) run(context.Context, []float32) (string, error) {
	return "", ErrEngineUnavailable
}
