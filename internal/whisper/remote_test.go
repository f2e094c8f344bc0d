package whisper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/MahanRahmati/lumine/internal/config"
)

func remoteFor(t *testing.T, url string) Backend {
	t.Helper()
	cfg := config.Default()
	cfg.Whisper.UseLocal = false
	cfg.Whisper.URL = url

	b, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func fixtureWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	frames := make([]int, 1600)
	for i := range frames {
		frames[i] = (i%64 - 32) * 100
	}
	writeTestWAV(t, path, frames)
	return path
}

func TestRemoteTranscribe(t *testing.T) {
	var (
		gotPath   string
		gotFormat string
		gotFile   string
		gotBytes  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotFormat = r.FormValue("response_format")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotFile = hdr.Filename
		buf := make([]byte, 1<<20)
		n, _ := f.Read(buf)
		gotBytes = n

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"  turn the lights off \n"}`)
	}))
	defer srv.Close()

	b := remoteFor(t, srv.URL)
	text, err := b.Transcribe(context.Background(), fixtureWAV(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "turn the lights off" {
		t.Fatalf("Transcribe = %q, want trimmed transcript", text)
	}
	if gotPath != "/inference" {
		t.Fatalf("request path = %q, want /inference", gotPath)
	}
	if gotFormat != "json" {
		t.Fatalf("response_format = %q, want json", gotFormat)
	}
	if gotFile != "take.wav" {
		t.Fatalf("uploaded filename = %q, want take.wav", gotFile)
	}
	if gotBytes == 0 {
		t.Fatal("uploaded file was empty")
	}
}

func TestRemoteTrimsTrailingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	b := remoteFor(t, srv.URL+"/")
	if _, err := b.Transcribe(context.Background(), fixtureWAV(t)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotPath != "/inference" {
		t.Fatalf("request path = %q, want /inference", gotPath)
	}
}

func TestRemoteServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "failed to load model", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := remoteFor(t, srv.URL)
	_, err := b.Transcribe(context.Background(), fixtureWAV(t))

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Transcribe = %v, want *ServiceError", err)
	}
	if svcErr.Status != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500", svcErr.Status)
	}
	if svcErr.Body != "failed to load model" {
		t.Fatalf("Body = %q, want the server's reply", svcErr.Body)
	}
	if errors.Is(err, ErrUnreachable) {
		t.Fatal("an answered request must not be ErrUnreachable")
	}
}

func TestRemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing is listening anymore

	b := remoteFor(t, url)
	if _, err := b.Transcribe(context.Background(), fixtureWAV(t)); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("Transcribe = %v, want ErrUnreachable", err)
	}
}

func TestRemoteCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := remoteFor(t, srv.URL)
	_, err := b.Transcribe(ctx, fixtureWAV(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Transcribe = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrUnreachable) {
		t.Fatal("a cancelled request must not count as unreachable")
	}
}

func TestRemoteMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>definitely not json</html>")
	}))
	defer srv.Close()

	b := remoteFor(t, srv.URL)
	_, err := b.Transcribe(context.Background(), fixtureWAV(t))

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Transcribe = %v, want *ServiceError for a non-JSON reply", err)
	}
	if svcErr.Status != http.StatusOK {
		t.Fatalf("Status = %d, want the 200 the server sent", svcErr.Status)
	}
	if errors.Is(err, ErrUnreachable) {
		t.Fatal("a garbled answer must not count as unreachable")
	}
}
