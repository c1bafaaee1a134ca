package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fmueller/voxlate/internal/store"
	"github.com/fmueller/voxlate/internal/stt"
	"github.com/fmueller/voxlate/internal/translate"
	"github.com/fmueller/voxlate/internal/workflow"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runApp(t, newTestApp(), args...)
}

func newTestApp() *appState {
	app := newAppState()
	app.getenv = func(string) (string, bool) { return "", false }
	app.now = func() time.Time { return fixedNow }
	return app
}

// runApp executes the command tree against app with an isolated config file.
func runApp(t *testing.T, app *appState, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.ini"), "--no-progress"}, args...))

	err := cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

type fakeAssets struct {
	result stt.Result
	err    error
	paths  []string
}

func (f *fakeAssets) TranscribeAsset(_ context.Context, path string) (stt.Result, error) {
	f.paths = append(f.paths, path)
	return f.result, f.err
}

type fakeEngine struct {
	results []stt.Result
	calls   int
}

func (f *fakeEngine) Transcribe(context.Context, stt.Source, string) (stt.Result, error) {
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return r, nil
}

type translateFunc func(ctx context.Context, req translate.Request) (string, error)

func (f translateFunc) Translate(ctx context.Context, req translate.Request) (string, error) {
	return f(ctx, req)
}

func dictionary(entries map[string]string) translate.Service {
	return translateFunc(func(_ context.Context, req translate.Request) (string, error) {
		for src, dst := range entries {
			if bytes.Contains([]byte(req.User), []byte(src)) {
				return dst, nil
			}
		}
		return "?", nil
	})
}

// withWorkflow wires a workflow built from fakes into app and returns the
// store it persists into.
func withWorkflow(app *appState, assets workflow.AssetTranscriber, engine workflow.SourceTranscriber, service translate.Service) *store.MemoryStore {
	gateway := store.NewMemoryStore()
	app.workflowFn = func(context.Context, func(done, total int)) (*workflow.Workflow, error) {
		return &workflow.Workflow{
			Assets:         assets,
			Engine:         engine,
			Translator:     translate.NewEngine(service, nil),
			Gateway:        gateway,
			SourceLanguage: app.cfg.SourceLanguage,
			TargetLanguage: app.cfg.TargetLanguage,
			Now:            app.now,
		}, nil
	}
	app.gatewayFn = func(context.Context) (store.Gateway, error) { return gateway, nil }
	return gateway
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}
