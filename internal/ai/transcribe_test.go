package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriber_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))

		f, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer f.Close()
			assert.Equal(t, "voice.oga", header.Filename)
			data, _ := io.ReadAll(f)
			assert.Equal(t, "OggS-audio", string(data))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","language":"english","duration":12.5,"text":" What is the weather like? "}`))
	}))
	defer srv.Close()

	tr := NewTranscriber("sk-test", srv.URL, srv.Client())
	got, err := tr.Transcribe(context.Background(), "voice.oga", strings.NewReader("OggS-audio"))
	require.NoError(t, err)

	assert.Equal(t, "What is the weather like?", got.Text)
	assert.InDelta(t, 12.5, got.Seconds, 1e-9)
}

func TestTranscriber_Silence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","duration":3,"text":"  "}`))
	}))
	defer srv.Close()

	_, err := NewTranscriber("sk-test", srv.URL, srv.Client()).
		Transcribe(context.Background(), "voice.oga", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestTranscriber_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewTranscriber("sk-test", srv.URL, srv.Client()).
		Transcribe(context.Background(), "clip.xyz", strings.NewReader("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyTranscript)
}
