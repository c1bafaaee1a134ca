package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BundledService runs a local whisper-cli build against a ggml model and
// parses its full JSON output.
type BundledService struct {
	Executable string
	ModelPath  string
	Logger     *zap.Logger
}

func NewBundledService(modelPath string, logger *zap.Logger) (*BundledService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is required")
	}

	if override := strings.TrimSpace(os.Getenv("VOXLATE_WHISPER_PATH")); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("VOXLATE_WHISPER_PATH is not executable: %w", err)
		}
		return &BundledService{Executable: override, ModelPath: modelPath, Logger: logger}, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve voxlate executable path: %w", err)
	}

	whisperExe, err := ResolveEnginePath(self)
	if err != nil {
		return nil, err
	}

	return &BundledService{Executable: whisperExe, ModelPath: modelPath, Logger: logger}, nil
}

func ResolveEnginePath(selfExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	if found, err := exec.LookPath(engineBinaryName()); err == nil {
		return found, nil
	}

	return "", fmt.Errorf("whisper engine not found near %s or on PATH; install whisper-cli or set VOXLATE_WHISPER_PATH", selfExecutable)
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, engineName),
	}
}

func (b *BundledService) Name() string {
	return "local:" + filepath.Base(b.ModelPath)
}

func (b *BundledService) Transcribe(ctx context.Context, req Request) (Response, error) {
	if err := req.validate(); err != nil {
		return Response{}, err
	}
	if err := ensureExecutable(b.Executable); err != nil {
		return Response{}, fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	outBase := filepath.Join(os.TempDir(), "voxlate-"+uuid.NewString())
	jsonOut := outBase + ".json"
	defer os.Remove(jsonOut)

	audioPath := req.Path
	if audioPath == "" {
		audioPath = outBase + ".wav"
		if err := os.WriteFile(audioPath, req.Data, 0o600); err != nil {
			return Response{}, fmt.Errorf("stage audio for whisper: %w", err)
		}
		defer os.Remove(audioPath)
	}

	args := []string{"-m", b.ModelPath, "-f", audioPath, "-np", "-oj", "-ojf", "-of", outBase}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		args = append(args, "-l", lang)
	}
	if !req.FP16 {
		args = append(args, "-ng")
	}

	cmd := exec.CommandContext(ctx, b.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	b.log().Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return Response{}, fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", b.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return Response{}, errors.New("whisper engine crashed with an illegal CPU instruction; " +
				"set VOXLATE_WHISPER_PATH to a whisper-cli binary built for your CPU")
		}
		return Response{}, fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
	}

	content, err := os.ReadFile(jsonOut)
	if err != nil {
		return Response{}, fmt.Errorf("read whisper output: %w", err)
	}

	return parseWhisperJSON(content)
}

func (b *BundledService) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []whisperSegment `json:"transcription"`
}

type whisperSegment struct {
	Offsets struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	} `json:"offsets"`
	Text   string         `json:"text"`
	Tokens []whisperToken `json:"tokens"`
}

type whisperToken struct {
	Text string   `json:"text"`
	P    *float64 `json:"p"`
}

// parseWhisperJSON turns whisper-cli -ojf output into a Response. Segment
// log-probabilities are the mean of ln(p) over its text tokens; special
// tokens such as [_BEG_] are ignored. whisper-cli does not report the input
// duration, so Duration stays nil.
func parseWhisperJSON(content []byte) (Response, error) {
	var out whisperOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	resp := Response{Language: out.Result.Language}
	texts := make([]string, 0, len(out.Transcription))
	for _, segment := range out.Transcription {
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			texts = append(texts, text)
		}

		var sum float64
		var n int
		for _, token := range segment.Tokens {
			if token.P == nil || strings.HasPrefix(token.Text, "[_") {
				continue
			}
			if *token.P <= 0 || *token.P > 1 {
				return Response{}, fmt.Errorf("%w: token probability %v", ErrMalformedResponse, *token.P)
			}
			sum += math.Log(*token.P)
			n++
		}
		if n == 0 {
			continue
		}

		resp.Segments = append(resp.Segments, ResponseSegment{
			Text:       text,
			Start:      float64(segment.Offsets.From) / 1000,
			End:        float64(segment.Offsets.To) / 1000,
			AvgLogprob: sum / float64(n),
		})
	}

	resp.Text = strings.Join(texts, " ")
	return resp, nil
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	for _, pattern := range []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	} {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
