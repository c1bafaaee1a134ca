package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fmueller/voxlate/internal/audio"
	"github.com/fmueller/voxlate/internal/clipboard"
	"github.com/fmueller/voxlate/internal/config"
	"github.com/fmueller/voxlate/internal/logging"
	"github.com/fmueller/voxlate/internal/platform"
	"github.com/fmueller/voxlate/internal/store"
	"github.com/fmueller/voxlate/internal/stt"
	"github.com/fmueller/voxlate/internal/version"
	"github.com/fmueller/voxlate/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	configPath  string
	verbose     bool
	jsonLogs    bool
	noProgress  bool
	output      string
	engine      string
	model       string
	modelDir    string
	sttModel    string
	source      string
	target      string
	databaseURL string
	concurrency int
	silenceGate bool
	silenceDBFS float64
	copyResult  bool

	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time
	out    io.Writer
	getenv func(string) (string, bool)

	workflowFn   func(ctx context.Context, onSegment func(done, total int)) (*workflow.Workflow, error)
	transcribeFn func(ctx context.Context, audioPath string) (stt.Result, error)
	gatewayFn    func(ctx context.Context) (store.Gateway, error)
	captureFn    func(ctx context.Context, opts captureOptions) (audio.Asset, error)
	copyFn       func(ctx context.Context, text string) error
}

func newAppState() *appState {
	defaults := config.Default()
	app := &appState{
		output:      outputText,
		engine:      defaults.Engine,
		model:       defaults.Model,
		sttModel:    defaults.STTModel,
		source:      defaults.SourceLanguage,
		target:      defaults.TargetLanguage,
		concurrency: defaults.Concurrency,
		silenceGate: true,
		silenceDBFS: -65,
		cfg:         defaults,
		now:         time.Now,
		out:         os.Stdout,
		getenv:      os.LookupEnv,
	}
	app.workflowFn = app.buildWorkflow
	app.transcribeFn = app.transcribeAudio
	app.gatewayFn = app.openGateway
	app.captureFn = app.captureClip
	app.copyFn = clipboard.CopyText
	return app
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voxlate",
		Short:         "Transcribe spoken audio and translate it between languages",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			app.out = cmd.OutOrStdout()
			return app.resolveConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindGlobalFlags(cmd, app)
	bindEngineFlags(cmd, app)
	bindLanguageFlags(cmd, app)
	bindStorageFlags(cmd, app)

	cmd.AddCommand(newTranslateCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newTextCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newLiveCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd(app))

	return cmd
}

func bindGlobalFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", app.configPath, "Path to the ini config file")
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	flags.StringVar(&app.output, "output", app.output, "Result format: text|json")
	flags.BoolVar(&app.copyResult, "copy", app.copyResult, "Copy each translation to the clipboard")
}

func bindEngineFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.engine, "engine", app.engine, "Speech-to-text engine: api|local")
	flags.StringVar(&app.sttModel, "stt-model", app.sttModel, "Model name sent to the transcription API")
	flags.StringVar(&app.model, "model", app.model, "Local whisper model name or model file path")
	flags.StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where local models are stored")
	flags.IntVar(&app.concurrency, "concurrency", app.concurrency, "Segments transcribed in parallel; 1 keeps strict order")
}

func bindLanguageFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.source, "source", app.source, "Source language code")
	flags.StringVar(&app.target, "target", app.target, "Target language code")
}

func bindStorageFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.databaseURL, "database-url", app.databaseURL, "PostgreSQL URL for translation history; empty keeps results in memory")
}

// resolveConfig layers defaults, the config file, the environment and the
// flags the user actually set, in that order.
func (a *appState) resolveConfig(cmd *cobra.Command) error {
	path, err := platform.ResolveConfigFile(a.configPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(a.getenv); err != nil {
		return err
	}

	flags := cmd.Flags()
	overrides := []struct {
		name  string
		apply func()
	}{
		{"engine", func() { cfg.Engine = a.engine }},
		{"stt-model", func() { cfg.STTModel = a.sttModel }},
		{"model", func() { cfg.Model = a.model }},
		{"model-dir", func() { cfg.ModelDir = a.modelDir }},
		{"concurrency", func() { cfg.Concurrency = a.concurrency }},
		{"source", func() { cfg.SourceLanguage = sanitizeLanguage(a.source) }},
		{"target", func() { cfg.TargetLanguage = sanitizeLanguage(a.target) }},
		{"database-url", func() { cfg.DatabaseURL = a.databaseURL }},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			o.apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if a.output != outputText && a.output != outputJSON {
		return fmt.Errorf("unknown output format %q (text|json)", a.output)
	}

	a.cfg = cfg
	a.log().Debug("configuration resolved",
		zap.String("config_file", path),
		zap.String("engine", cfg.Engine),
		zap.String("source", cfg.SourceLanguage),
		zap.String("target", cfg.TargetLanguage),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Bool("persistent_history", cfg.DatabaseURL != ""),
	)
	return nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}
