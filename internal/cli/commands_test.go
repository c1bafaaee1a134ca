package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fmueller/voxlate/internal/audio"
	"github.com/fmueller/voxlate/internal/pipeline"
	"github.com/fmueller/voxlate/internal/store"
	"github.com/fmueller/voxlate/internal/stt"
	"github.com/fmueller/voxlate/internal/translate"
	"github.com/fmueller/voxlate/internal/workflow"
	"github.com/stretchr/testify/require"
)

func TestTranslatePrintsBothLanguagesAndStoresRecord(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	assets := &fakeAssets{result: stt.Result{Text: " xin chào ", Language: "vi", Confidence: 0.8, Duration: 2.5}}
	gateway := withWorkflow(app, assets, nil, dictionary(map[string]string{"xin chào": "hello"}))
	path := writeTempFile(t, "clip.mp3", []byte("not really mp3"))

	stdout, stderr, err := runApp(t, app, "translate", path)
	require.NoError(t, err)
	require.Equal(t, "[vi] xin chào\n[en] hello\nsaved as #1\n", stdout)
	require.Empty(t, stderr)
	require.Equal(t, []string{path}, assets.paths)

	record, ok, err := gateway.ByID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.StatusCompleted, record.Status)
	require.Equal(t, fixedNow, record.CreatedAt)
	require.InDelta(t, 2.5, record.DurationSeconds, 1e-9)
}

func TestTranslateWarnsWhenTranslationDegrades(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	assets := &fakeAssets{result: stt.Result{Text: "xin chào", Duration: 1}}
	failing := translateFunc(func(context.Context, translate.Request) (string, error) {
		return "", errors.New("429 rate limited")
	})
	gateway := withWorkflow(app, assets, nil, failing)
	path := writeTempFile(t, "clip.mp3", []byte("x"))

	stdout, stderr, err := runApp(t, app, "translate", path)
	require.NoError(t, err)
	require.Contains(t, stderr, "warning: translation failed")
	require.Contains(t, stderr, "429 rate limited")
	require.Equal(t, "[vi] xin chào\n[en] xin chào\nsaved as #1\n", stdout)

	record, ok, err := gateway.ByID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.StatusDegraded, record.Status)
}

func TestTranslateJSONOutput(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withWorkflow(app, &fakeAssets{result: stt.Result{Text: "cảm ơn", Confidence: 0.5}}, nil, dictionary(map[string]string{"cảm ơn": "thank you"}))
	path := writeTempFile(t, "clip.ogg", []byte("x"))

	stdout, _, err := runApp(t, app, "--output", "json", "translate", path)
	require.NoError(t, err)

	var view recordView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	require.Equal(t, int64(1), view.ID)
	require.Equal(t, "vi", view.SourceLanguage)
	require.Equal(t, "en", view.TargetLanguage)
	require.Equal(t, "cảm ơn", view.SourceText)
	require.Equal(t, "thank you", view.TranslatedText)
	require.Equal(t, "completed", view.Status)
}

func TestTranslateSkipsSilentWAVWithoutBuildingWorkflow(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	app.workflowFn = func(context.Context, func(done, total int)) (*workflow.Workflow, error) {
		t.Fatal("workflow must not be built for silent audio")
		return nil, nil
	}
	path := writeTempFile(t, "silent.wav", makePCM16WAVForTest(make([]int16, 16000), 16000, 1))

	stdout, _, err := runApp(t, app, "translate", path)
	require.NoError(t, err)
	require.Empty(t, stdout)
}

func TestTranslateSilenceGateCanBeDisabled(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	assets := &fakeAssets{result: stt.Result{Text: ""}}
	withWorkflow(app, assets, nil, dictionary(nil))
	path := writeTempFile(t, "silent.wav", makePCM16WAVForTest(make([]int16, 16000), 16000, 1))

	stdout, _, err := runApp(t, app, "translate", "--silence-gate=false", path)
	require.NoError(t, err)
	require.Empty(t, stdout)
	require.Len(t, assets.paths, 1)
}

func TestTranslateReportsTranscriptionFailure(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withWorkflow(app, &fakeAssets{err: stt.ErrTranscription}, nil, dictionary(nil))
	path := writeTempFile(t, "clip.mp3", []byte("x"))

	stdout, _, err := runApp(t, app, "translate", path)
	require.ErrorIs(t, err, stt.ErrTranscription)
	require.Empty(t, stdout)
}

func TestTextCommandJoinsArguments(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	var seen []string
	service := translateFunc(func(_ context.Context, req translate.Request) (string, error) {
		seen = append(seen, req.User)
		return "good morning", nil
	})
	withWorkflow(app, nil, nil, service)

	stdout, _, err := runApp(t, app, "text", "chào", "buổi", "sáng")
	require.NoError(t, err)
	require.Equal(t, "[vi] chào buổi sáng\n[en] good morning\nsaved as #1\n", stdout)
	require.Len(t, seen, 1)
	require.True(t, strings.HasSuffix(seen[0], "chào buổi sáng"))
}

func TestTextCommandHonorsLanguageFlags(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withWorkflow(app, nil, nil, dictionary(map[string]string{"hello": "hallo"}))

	stdout, _, err := runApp(t, app, "--source", "EN", "--target", "de", "text", "hello")
	require.NoError(t, err)
	require.Equal(t, "[en] hello\n[de] hallo\nsaved as #1\n", stdout)
}

func TestTextCommandRejectsBlankText(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withWorkflow(app, nil, nil, dictionary(nil))

	_, _, err := runApp(t, app, "text", "   ")
	require.ErrorIs(t, err, workflow.ErrEmptyText)
}

func seededGateway(t *testing.T) *store.MemoryStore {
	t.Helper()

	gateway := store.NewMemoryStore()
	ctx := context.Background()
	for i, rec := range []store.Record{
		store.NewRecord(fixedNow, "vi", "en", "một", "one", 1, 0.9, ""),
		store.NewRecord(fixedNow.Add(time.Minute), "de", "en", "zwei", "two", 2, 0.8, ""),
		store.NewRecord(fixedNow.Add(2*time.Minute), "vi", "en", "ba", "three", 3, 0.7, store.StatusDegraded),
	} {
		_, err := gateway.Insert(ctx, rec)
		require.NoError(t, err, "record %d", i)
	}
	return gateway
}

func withGateway(app *appState, gateway store.Gateway) {
	app.gatewayFn = func(context.Context) (store.Gateway, error) { return gateway, nil }
}

func TestHistoryListsNewestFirst(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withGateway(app, seededGateway(t))

	stdout, _, err := runApp(t, app, "history")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "ID"))
	require.True(t, strings.HasPrefix(lines[1], "3 "))
	require.Contains(t, lines[1], "degraded")
	require.True(t, strings.HasPrefix(lines[3], "1 "))
}

func TestHistoryFiltersByLanguagePairAndLimit(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withGateway(app, seededGateway(t))

	stdout, _, err := runApp(t, app, "--output", "json", "--source", "vi", "history", "--limit", "1")
	require.NoError(t, err)

	var views []recordView
	require.NoError(t, json.Unmarshal([]byte(stdout), &views))
	require.Len(t, views, 1)
	require.Equal(t, int64(3), views[0].ID)
	require.Equal(t, "ba", views[0].SourceText)
}

func TestHistoryOnEmptyStore(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withGateway(app, store.NewMemoryStore())

	stdout, _, err := runApp(t, app, "history")
	require.NoError(t, err)
	require.Equal(t, "no translations yet\n", stdout)
}

func TestShowPrintsOneRecord(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withGateway(app, seededGateway(t))

	stdout, _, err := runApp(t, app, "show", "2")
	require.NoError(t, err)
	require.Contains(t, stdout, "ID:          2\n")
	require.Contains(t, stdout, "Languages:   de -> en\n")
	require.Contains(t, stdout, "\nzwei\n\ntwo\n")
}

func TestShowMissingRecord(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withGateway(app, seededGateway(t))

	_, _, err := runApp(t, app, "show", "42")
	require.EqualError(t, err, "translation #42 not found")
}

func TestLiveOnceTranslatesOneClip(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	engine := &fakeEngine{results: []stt.Result{{Text: "xin chào", Duration: 3}}}
	withWorkflow(app, nil, engine, dictionary(map[string]string{"xin chào": "hello"}))

	var captured []captureOptions
	app.captureFn = func(_ context.Context, opts captureOptions) (audio.Asset, error) {
		captured = append(captured, opts)
		return audio.Asset{Samples: make([]float32, 16000), SampleRate: 16000}, nil
	}

	stdout, _, err := runApp(t, app, "live", "--once", "--duration", "3s", "--backend", "arecord")
	require.NoError(t, err)
	require.Equal(t, "[vi] xin chào\n[en] hello\nsaved as #1\n", stdout)
	require.Equal(t, []captureOptions{{duration: 3 * time.Second, backend: "arecord"}}, captured)
	require.Equal(t, 1, engine.calls)
}

func TestLiveSkipsSilentClipsAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	engine := &fakeEngine{results: []stt.Result{{Text: ""}, {Text: "một"}}}
	withWorkflow(app, nil, engine, dictionary(map[string]string{"một": "one"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clips := 0
	app.captureFn = func(ctx context.Context, opts captureOptions) (audio.Asset, error) {
		clips++
		if clips > 2 {
			cancel()
			return audio.Asset{}, ctx.Err()
		}
		require.Equal(t, app.cfg.ChunkDuration, opts.duration)
		return audio.Asset{Samples: make([]float32, 1600), SampleRate: 16000}, nil
	}

	cmd := newRootCmd(app)
	out := new(strings.Builder)
	cmd.SetOut(out)
	cmd.SetErr(new(strings.Builder))
	cmd.SetArgs([]string{"--config", t.TempDir() + "/absent.ini", "--no-progress", "live"})

	require.NoError(t, cmd.ExecuteContext(ctx))
	require.Equal(t, "[vi] một\n[en] one\nsaved as #1\n", out.String())
	require.Equal(t, 2, engine.calls)
}

func TestLiveCaptureFailureIsReturned(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withWorkflow(app, nil, &fakeEngine{results: []stt.Result{{}}}, dictionary(nil))
	app.captureFn = func(context.Context, captureOptions) (audio.Asset, error) {
		return audio.Asset{}, errors.New("no capture backend available")
	}

	_, _, err := runApp(t, app, "live", "--once")
	require.ErrorContains(t, err, "no capture backend available")
}

func TestTranscribePrintsTextOnly(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	app.transcribeFn = func(_ context.Context, path string) (stt.Result, error) {
		return stt.Result{Text: "xin chào", Language: "vi", Confidence: 0.75, Duration: 1.5}, nil
	}
	path := writeTempFile(t, "clip.mp3", []byte("x"))

	stdout, _, err := runApp(t, app, "transcribe", path)
	require.NoError(t, err)
	require.Equal(t, "xin chào\n", stdout)

	stdout, _, err = runApp(t, app, "--output", "json", "transcribe", path)
	require.NoError(t, err)

	var view transcriptView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	require.Equal(t, transcriptView{Text: "xin chào", Language: "vi", Confidence: 0.75, DurationSeconds: 1.5}, view)
}

func TestTranscribeTreatsNoSpeechAsSuccess(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	app.transcribeFn = func(context.Context, string) (stt.Result, error) {
		return stt.Result{}, pipeline.ErrNoSpeech
	}
	path := writeTempFile(t, "clip.mp3", []byte("x"))

	stdout, _, err := runApp(t, app, "transcribe", path)
	require.NoError(t, err)
	require.Empty(t, stdout)
}

func TestCopyFlagSendsTranslationToClipboard(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	withWorkflow(app, nil, nil, dictionary(map[string]string{"cảm ơn": "thanks"}))
	var copied []string
	app.copyFn = func(_ context.Context, text string) error {
		copied = append(copied, text)
		return errors.New("no clipboard command available")
	}

	stdout, _, err := runApp(t, app, "--copy", "text", "cảm ơn")
	require.NoError(t, err)
	require.Contains(t, stdout, "[en] thanks\n")
	require.Equal(t, []string{"thanks"}, copied)
}

func TestCopyFlagSkipsDegradedTranslations(t *testing.T) {
	t.Parallel()

	app := newTestApp()
	failing := translateFunc(func(context.Context, translate.Request) (string, error) {
		return "", errors.New("offline")
	})
	withWorkflow(app, nil, nil, failing)
	app.copyFn = func(context.Context, string) error {
		t.Fatal("degraded translation must not be copied")
		return nil
	}

	_, stderr, err := runApp(t, app, "--copy", "text", "cảm ơn")
	require.NoError(t, err)
	require.Contains(t, stderr, "warning: translation failed")
}
