package network

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_UploadSingle(t *testing.T) {
	var gotRequest *http.Request
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Location", "/1.1/ton/bucket/bkt/obj")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, NewAppAuthSigner("token123", log.NewLogger()), log.NewLogger())

	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	location, err := client.UploadSingle(context.Background(), "bkt", "application/octet-stream", []byte("hello"), expires)
	require.NoError(t, err)
	assert.Equal(t, "/1.1/ton/bucket/bkt/obj", location)

	require.NotNil(t, gotRequest)
	assert.Equal(t, http.MethodPost, gotRequest.Method)
	assert.Equal(t, "/1.1/ton/bucket/bkt", gotRequest.URL.Path)
	assert.Equal(t, "Bearer token123", gotRequest.Header.Get("Authorization"))
	assert.Equal(t, "application/octet-stream", gotRequest.Header.Get("Content-Type"))
	assert.Equal(t, int64(5), gotRequest.ContentLength)
	assert.Equal(t, "Fri, 02 Jan 2026 03:04:05 GMT", gotRequest.Header.Get("X-TON-Expires"))
	assert.Equal(t, []byte("hello"), gotBody)
}

func TestClient_UploadSingle_NoLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, NewAppAuthSigner("t", log.NewLogger()), log.NewLogger())

	_, err := client.UploadSingle(context.Background(), "bkt", "text/plain", []byte("x"), time.Now())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestClient_InitiateResumable(t *testing.T) {
	var gotRequest *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r
		w.Header().Set("Location", "/1.1/ton/bucket/bkt/session_9")
		w.Header().Set("X-TON-Min-Chunk-Size", "65536")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, NewAppAuthSigner("t", log.NewLogger()), log.NewLogger())

	session, err := client.InitiateResumable(context.Background(), "bkt", "video/mp4", 123456)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/1.1/ton/bucket/bkt/session_9", session.URL)
	assert.Equal(t, int64(65536), session.ChunkSize)

	require.NotNil(t, gotRequest)
	assert.Equal(t, "resumable=true", gotRequest.URL.RawQuery)
	assert.Equal(t, "video/mp4", gotRequest.Header.Get("X-TON-Content-Type"))
	assert.Equal(t, "123456", gotRequest.Header.Get("X-TON-Content-Length"))
	assert.Equal(t, int64(0), gotRequest.ContentLength, "initiation declares a zero-length body")
}

func TestClient_InitiateResumable_InvalidChunkSize(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize string
	}{
		{name: "missing header", chunkSize: ""},
		{name: "not a number", chunkSize: "lots"},
		{name: "zero", chunkSize: "0"},
		{name: "negative", chunkSize: "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", "/session")
				if tt.chunkSize != "" {
					w.Header().Set("X-TON-Min-Chunk-Size", tt.chunkSize)
				}
				w.WriteHeader(http.StatusCreated)
			}))
			defer server.Close()

			client := NewClient(server.URL, NewAppAuthSigner("t", log.NewLogger()), log.NewLogger())

			_, err := client.InitiateResumable(context.Background(), "bkt", "text/plain", 100)
			var transportErr *TransportError
			require.ErrorAs(t, err, &transportErr)
		})
	}
}

func TestClient_UploadChunk(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		location     string
		wantLocation string
		wantFinished bool
		wantErr      bool
	}{
		{name: "308 means continue", status: 308, wantFinished: false},
		{name: "308 with a location header is still a continuation", status: 308, location: "/elsewhere", wantFinished: false},
		{name: "200 with location is final", status: 200, location: "/obj", wantLocation: "/obj", wantFinished: true},
		{name: "403 is fatal", status: 403, wantErr: true},
		{name: "500 is fatal", status: 500, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotRange string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotRange = r.Header.Get("Content-Range")
				if tt.location != "" {
					w.Header().Set("Location", tt.location)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, NewAppAuthSigner("t", log.NewLogger()), log.NewLogger())
			session := &UploadSession{URL: server.URL + "/session", ChunkSize: 4}

			location, finished, err := client.UploadChunk(context.Background(), session, "text/plain", []byte("data"), 8, 100)
			if tt.wantErr {
				var transportErr *TransportError
				require.ErrorAs(t, err, &transportErr)
				assert.Equal(t, tt.status, transportErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFinished, finished)
			assert.Equal(t, tt.wantLocation, location)
			assert.Equal(t, "bytes 8-11/100", gotRange)
		})
	}
}

func TestClient_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, NewAppAuthSigner("t", log.NewLogger()), log.NewLogger())

	_, err := client.UploadSingle(context.Background(), "bkt", "text/plain", []byte("x"), time.Now())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 0, transportErr.Status)
	assert.Error(t, transportErr.Unwrap())
}

func TestTransportError_TruncatesLongBodies(t *testing.T) {
	err := &TransportError{Op: "upload", Status: 500, Body: strings.Repeat("x", 5000)}
	assert.Less(t, len(err.Error()), 600)
}
