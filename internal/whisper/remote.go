package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MahanRahmati/lumine/internal/config"

	"github.com/sirupsen/logrus"
)

// remoteBackend posts recordings to a whisper.cpp server and reads the
// transcript back.
type remoteBackend struct {
	base   string
	client *http.Client
	logger *logrus.Logger
}

// requestTimeout caps one inference round trip. Large models on slow
// hardware can legitimately take minutes on a long take.
const requestTimeout = 5 * time.Minute

// responseLimit bounds how much of a reply is read; transcripts are tiny,
// anything bigger is a misbehaving server.
const responseLimit = 10 << 20

func newRemote(cfg *config.Config, logger *logrus.Logger) (*remoteBackend, error) {
	raw := strings.TrimSpace(cfg.Whisper.URL)
	if raw == "" {
		return nil, fmt.Errorf("whisper.url is not set and whisper.use_local is false")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("whisper.url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("whisper.url %q: expected an http(s) URL", raw)
	}
	return &remoteBackend{
		base:   strings.TrimRight(raw, "/"),
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
	}, nil
}

// Transcribe uploads the file to the server's /inference endpoint. A
// network-level failure maps to ErrUnreachable; an HTTP error status maps
// to a ServiceError carrying the server's reply.
func (b *remoteBackend) Transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+"/inference", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
	if err != nil {
		return "", fmt.Errorf("read whisper service response: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"took":   time.Since(start).Round(time.Millisecond),
	}).Debug("whisper service responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ServiceError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		// A 2xx answer that is not the expected JSON is still the
		// service misbehaving, not a transport problem.
		return "", &ServiceError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return strings.TrimSpace(out.Text), nil
}
