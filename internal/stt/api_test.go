package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type capturedUpload struct {
	path     string
	model    string
	language string
	format   string
	fileName string
	body     []byte
}

func newTranscriptionServer(t *testing.T, status int, payload string) (*httptest.Server, *capturedUpload) {
	t.Helper()

	captured := &capturedUpload{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		captured.model = r.FormValue("model")
		captured.language = r.FormValue("language")
		captured.format = r.FormValue("response_format")

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		captured.fileName = header.Filename
		captured.body, err = io.ReadAll(file)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)

	return srv, captured
}

func TestAPIServiceParsesVerboseJSON(t *testing.T) {
	t.Parallel()

	srv, captured := newTranscriptionServer(t, http.StatusOK, `{
		"task": "transcribe",
		"language": "vietnamese",
		"duration": 12.5,
		"text": " Xin chào các bạn.",
		"segments": [
			{"id": 0, "start": 0, "end": 6, "text": " Xin chào", "avg_logprob": -0.1},
			{"id": 1, "start": 6, "end": 12.5, "text": " các bạn.", "avg_logprob": -0.3}
		]
	}`)

	service, err := NewAPIService(APIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	audioPath := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("fake-mp3"), 0o644))

	resp, err := service.Transcribe(context.Background(), Request{Path: audioPath, Language: "vi"})
	require.NoError(t, err)
	require.Equal(t, " Xin chào các bạn.", resp.Text)
	require.Len(t, resp.Segments, 2)
	require.Equal(t, -0.3, resp.Segments[1].AvgLogprob)
	require.NotNil(t, resp.Duration)
	require.Equal(t, 12.5, *resp.Duration)

	require.Equal(t, "/v1/audio/transcriptions", captured.path)
	require.Equal(t, DefaultAPIModel, captured.model)
	require.Equal(t, "vi", captured.language)
	require.Equal(t, "verbose_json", captured.format)
	require.Equal(t, []byte("fake-mp3"), captured.body)
}

func TestAPIServiceUploadsInMemoryData(t *testing.T) {
	t.Parallel()

	srv, captured := newTranscriptionServer(t, http.StatusOK, `{"text": "", "segments": []}`)
	service, err := NewAPIService(APIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "whisper-large"})
	require.NoError(t, err)

	resp, err := service.Transcribe(context.Background(), Request{Data: []byte("RIFFdata"), FileName: "audio.wav", Language: "auto"})
	require.NoError(t, err)
	require.Empty(t, resp.Text)
	require.Nil(t, resp.Duration)
	require.Equal(t, "audio.wav", captured.fileName)
	require.Equal(t, []byte("RIFFdata"), captured.body)
	require.Equal(t, "whisper-large", captured.model)
	require.Empty(t, captured.language)
}

func TestAPIServiceSurfacesHTTPErrors(t *testing.T) {
	t.Parallel()

	srv, _ := newTranscriptionServer(t, http.StatusTooManyRequests, `{"error": {"message": "quota exceeded", "type": "rate_limit"}}`)
	service, err := NewAPIService(APIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = service.Transcribe(context.Background(), Request{Data: []byte("x"), FileName: "a.wav"})
	require.ErrorContains(t, err, "quota exceeded")
}

func TestNewAPIServiceRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewAPIService(APIConfig{})
	require.ErrorContains(t, err, "API key is required")
}

func TestAPIServiceRejectsAmbiguousRequests(t *testing.T) {
	t.Parallel()

	service, err := NewAPIService(APIConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = service.Transcribe(context.Background(), Request{Path: "a.wav", Data: []byte("x")})
	require.Error(t, err)
	_, err = service.Transcribe(context.Background(), Request{})
	require.Error(t, err)
}
