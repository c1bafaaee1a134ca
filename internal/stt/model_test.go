package stt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocateModelDefaultsToSmall(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	loc, err := LocateModel("", modelDir)
	require.NoError(t, err)
	require.Equal(t, DefaultLocalModel, loc.Model.Name)
	require.Equal(t, filepath.Join(modelDir, "ggml-small.bin"), loc.Path)
	require.True(t, loc.NeedsDownload)
	require.False(t, loc.Custom)
	require.Equal(t, "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin", loc.Model.URL())
}

func TestLocateModelFindsDownloadedModel(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	path := filepath.Join(modelDir, "ggml-tiny.bin")
	require.NoError(t, os.WriteFile(path, []byte("ok"), 0o644))

	loc, err := LocateModel("tiny", modelDir)
	require.NoError(t, err)
	require.Equal(t, path, loc.Path)
	require.False(t, loc.NeedsDownload)
}

func TestLocateModelCustomPath(t *testing.T) {
	t.Parallel()

	custom := filepath.Join(t.TempDir(), "custom.bin")
	require.NoError(t, os.WriteFile(custom, []byte("x"), 0o644))

	loc, err := LocateModel(custom, "")
	require.NoError(t, err)
	require.True(t, loc.Custom)
	require.Equal(t, custom, loc.Path)

	_, err = LocateModel(filepath.Join(t.TempDir(), "gone.bin"), "")
	require.ErrorContains(t, err, "does not exist")
}

func TestLocateModelRejectsUnknownName(t *testing.T) {
	t.Parallel()

	_, err := LocateModel("super-huge", t.TempDir())
	require.ErrorContains(t, err, "known models: base, large-v3, medium, small, tiny")
}

func TestLocalModelsHavePinnedChecksums(t *testing.T) {
	t.Parallel()

	for _, name := range LocalModelNames() {
		model, ok := LookupLocalModel(name)
		require.True(t, ok)
		require.Lenf(t, model.SHA256, 64, "model %s should have pinned sha256", name)
	}
}
