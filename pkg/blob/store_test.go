package blob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher() *Fetcher {
	cfg := DefaultFetcherConfig()
	cfg.MaxElapsed = 2 * time.Second
	return NewFetcher(cfg, logging.NewNopLogger())
}

func TestFetch_LocalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meeting.wav")
	require.NoError(t, os.WriteFile(path, []byte("audio-bytes"), 0o644))

	f := testFetcher()

	data, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)

	// file:// prefix resolves to the same file.
	data, err = f.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)
}

func TestFetch_LocalMissing(t *testing.T) {
	f := testFetcher()
	_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "absent.wav"))
	assert.True(t, mderrors.IsNotFound(err))
}

func TestFetch_EmptyLocator(t *testing.T) {
	f := testFetcher()
	_, err := f.Fetch(context.Background(), "")
	assert.True(t, mderrors.IsValidation(err))
}

func TestFetch_RemoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote-audio"))
	}))
	defer srv.Close()

	f := testFetcher()
	data, err := f.Fetch(context.Background(), srv.URL+"/recording.webm")
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-audio"), data)
}

func TestFetch_RemoteNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := testFetcher()
	_, err := f.Fetch(context.Background(), srv.URL+"/gone.wav")
	assert.True(t, mderrors.IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load(), "404 must not be retried")
}

func TestFetch_RemoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	f := testFetcher()
	data, err := f.Fetch(context.Background(), srv.URL+"/flaky.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("eventually"), data)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestFetch_SizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	cfg := DefaultFetcherConfig()
	cfg.MaxElapsed = 2 * time.Second
	cfg.MaxBytes = 1024
	f := NewFetcher(cfg, logging.NewNopLogger())

	_, err := f.Fetch(context.Background(), srv.URL+"/huge.wav")
	assert.Error(t, err)
}
