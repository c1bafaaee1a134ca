package stt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const DefaultLocalModel = "small"

const ggmlBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// LocalModel is a pinned ggml whisper model that setup can download.
type LocalModel struct {
	Name   string
	SHA256 string
}

func (m LocalModel) FileName() string {
	return "ggml-" + m.Name + ".bin"
}

func (m LocalModel) URL() string {
	return ggmlBaseURL + m.FileName()
}

var localModels = []LocalModel{
	{Name: "tiny", SHA256: "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21"},
	{Name: "base", SHA256: "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe"},
	{Name: "small", SHA256: "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b"},
	{Name: "medium", SHA256: "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208"},
	{Name: "large-v3", SHA256: "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2"},
}

func LocalModelNames() []string {
	names := make([]string, 0, len(localModels))
	for _, m := range localModels {
		names = append(names, m.Name)
	}
	slices.Sort(names)
	return names
}

func LookupLocalModel(name string) (LocalModel, bool) {
	idx := slices.IndexFunc(localModels, func(m LocalModel) bool { return m.Name == name })
	if idx < 0 {
		return LocalModel{}, false
	}
	return localModels[idx], true
}

// ModelLocation says where a model lives and whether it still has to be fetched.
type ModelLocation struct {
	Model         LocalModel
	Path          string
	NeedsDownload bool
	Custom        bool
}

// LocateModel resolves ref either as a registry name stored under modelDir or
// as a path to a custom ggml file.
func LocateModel(ref, modelDir string) (ModelLocation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = DefaultLocalModel
	}

	if model, ok := LookupLocalModel(ref); ok {
		if strings.TrimSpace(modelDir) == "" {
			return ModelLocation{}, errors.New("model directory must not be empty for named model")
		}

		path := filepath.Join(modelDir, model.FileName())
		_, err := os.Stat(path)
		switch {
		case err == nil:
			return ModelLocation{Model: model, Path: path}, nil
		case errors.Is(err, os.ErrNotExist):
			return ModelLocation{Model: model, Path: path, NeedsDownload: true}, nil
		default:
			return ModelLocation{}, fmt.Errorf("stat model path: %w", err)
		}
	}

	if !strings.ContainsRune(ref, os.PathSeparator) && !strings.HasSuffix(strings.ToLower(ref), ".bin") {
		return ModelLocation{}, fmt.Errorf("unknown model %q (known models: %s)", ref, strings.Join(LocalModelNames(), ", "))
	}

	path := filepath.Clean(ref)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ModelLocation{}, fmt.Errorf("custom model path does not exist: %s", path)
		}
		return ModelLocation{}, fmt.Errorf("stat custom model path: %w", err)
	}

	return ModelLocation{Path: path, Custom: true}, nil
}
