package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModeCORS, ModeFor("https://example.org/data.json"))
	assert.Equal(t, ModeCORS, ModeFor("http://localhost:8080/x"))
	assert.Equal(t, ModeSameOrigin, ModeFor("/data/points.json"))
	assert.Equal(t, ModeSameOrigin, ModeFor("data/points.json"))
}

func TestFetch_Success(t *testing.T) {
	var gotMode, gotOrigin string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMode = r.Header.Get("Sec-Fetch-Mode")
		gotOrigin = r.Header.Get("Origin")
		_, _ = w.Write([]byte(`{"DataList":[]}`))
	}))
	defer server.Close()

	c := New(Options{Origin: "https://dash.example.org"})
	body, err := c.Fetch(context.Background(), server.URL+"/data", ModeCORS)
	require.NoError(t, err)
	assert.JSONEq(t, `{"DataList":[]}`, string(body))
	assert.Equal(t, "cors", gotMode)
	assert.Equal(t, "https://dash.example.org", gotOrigin)
}

func TestFetch_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(Options{}).Fetch(context.Background(), server.URL, ModeCORS)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadGateway, fe.Status)
}

func TestFetch_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	_, err := New(Options{}).Fetch(context.Background(), server.URL, ModeCORS)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, ErrMalformedJSON)
}

func TestFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(Options{}).Fetch(context.Background(), url, ModeCORS)

	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestFetch_EmptyURL(t *testing.T) {
	_, err := New(Options{}).Fetch(context.Background(), "", ModeSameOrigin)
	assert.ErrorIs(t, err, ErrEmptyURL)
}

func TestFetch_RelativeAgainstBaseURL(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL + "/static/"})
	_, err := c.Fetch(context.Background(), "data/points.json", ModeSameOrigin)
	require.NoError(t, err)
	assert.Equal(t, "/static/data/points.json", gotPath)
}

func TestFetch_RelativeFromPublicDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "points.json"), []byte(`[{"lat":1,"lon":2}]`), 0o644))

	c := New(Options{PublicDir: dir})

	body, err := c.Fetch(context.Background(), "/data/points.json?v=2", ModeSameOrigin)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"lat":1,"lon":2}]`, string(body))

	_, err = c.Fetch(context.Background(), "data/missing.json", ModeSameOrigin)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)

	_, err = c.Fetch(context.Background(), "../../etc/passwd", ModeSameOrigin)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadRequest, fe.Status)
}

func TestFetch_RelativeWithoutOrigin(t *testing.T) {
	_, err := New(Options{}).Fetch(context.Background(), "data/points.json", ModeSameOrigin)
	assert.ErrorIs(t, err, ErrNoOrigin)
}

func TestFetch_DoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(Options{}).Fetch(context.Background(), server.URL, ModeCORS)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Options{BreakerFailures: 2})
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), server.URL, ModeCORS)
		require.Error(t, err)
	}

	_, err := c.Fetch(context.Background(), server.URL, ModeCORS)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}
