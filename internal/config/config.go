package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

const (
	EngineAPI   = "api"
	EngineLocal = "local"
)

// Config is resolved once per command run. Components copy the fields they
// need when they are constructed.
type Config struct {
	SourceLanguage   string
	TargetLanguage   string
	SampleRate       int
	ChunkDuration    time.Duration
	Engine           string
	STTModel         string
	Model            string
	ModelDir         string
	TranslationModel string
	APIBaseURL       string
	APIKey           string
	MaxRequestBytes  int64
	TargetChunkBytes int64
	TextChunkChars   int
	Temperature      float64
	Concurrency      int
	SegmentRetries   int
	FP16             bool
	DatabaseURL      string
	ScratchDir       string
}

func Default() Config {
	return Config{
		SourceLanguage:   "vi",
		TargetLanguage:   "en",
		SampleRate:       16000,
		ChunkDuration:    10 * time.Second,
		Engine:           EngineAPI,
		STTModel:         "whisper-1",
		Model:            "small",
		TranslationModel: "gpt-4o-mini",
		MaxRequestBytes:  25 << 20,
		TargetChunkBytes: 20 << 20,
		TextChunkChars:   2000,
		Temperature:      0.3,
		Concurrency:      1,
	}
}

// Load reads the ini file at path on top of the defaults. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.apply(file.Section("")); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) apply(section *ini.Section) error {
	strs := map[string]*string{
		"source_language":   &c.SourceLanguage,
		"target_language":   &c.TargetLanguage,
		"engine":            &c.Engine,
		"stt_model":         &c.STTModel,
		"model":             &c.Model,
		"model_dir":         &c.ModelDir,
		"translation_model": &c.TranslationModel,
		"api_base_url":      &c.APIBaseURL,
		"api_key":           &c.APIKey,
		"database_url":      &c.DatabaseURL,
		"scratch_dir":       &c.ScratchDir,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(section.Key(key).String()); len(v) > 0 {
			*dst = v
		}
	}

	ints := map[string]*int{
		"sample_rate":      &c.SampleRate,
		"text_chunk_chars": &c.TextChunkChars,
		"concurrency":      &c.Concurrency,
		"segment_retries":  &c.SegmentRetries,
	}
	for key, dst := range ints {
		if !section.HasKey(key) {
			continue
		}
		v, err := section.Key(key).Int()
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = v
	}

	sizes := map[string]*int64{
		"max_request_bytes":  &c.MaxRequestBytes,
		"target_chunk_bytes": &c.TargetChunkBytes,
	}
	for key, dst := range sizes {
		if !section.HasKey(key) {
			continue
		}
		v, err := section.Key(key).Int64()
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = v
	}

	if section.HasKey("chunk_duration") {
		v, err := section.Key("chunk_duration").Duration()
		if err != nil {
			return fmt.Errorf("chunk_duration: %w", err)
		}
		c.ChunkDuration = v
	}
	if section.HasKey("temperature") {
		v, err := section.Key("temperature").Float64()
		if err != nil {
			return fmt.Errorf("temperature: %w", err)
		}
		c.Temperature = v
	}
	if section.HasKey("fp16") {
		v, err := section.Key("fp16").Bool()
		if err != nil {
			return fmt.Errorf("fp16: %w", err)
		}
		c.FP16 = v
	}
	return nil
}

// ApplyEnv overlays environment variables. lookup is os.LookupEnv outside of
// tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup("OPENAI_API_KEY"); ok && strings.TrimSpace(v) != "" {
		c.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup("OPENAI_BASE_URL"); ok && strings.TrimSpace(v) != "" {
		c.APIBaseURL = strings.TrimSpace(v)
	}

	strs := map[string]*string{
		"VOXLATE_API_KEY":           &c.APIKey,
		"VOXLATE_SOURCE_LANGUAGE":   &c.SourceLanguage,
		"VOXLATE_TARGET_LANGUAGE":   &c.TargetLanguage,
		"VOXLATE_ENGINE":            &c.Engine,
		"VOXLATE_MODEL":             &c.Model,
		"VOXLATE_MODEL_DIR":         &c.ModelDir,
		"VOXLATE_STT_MODEL":         &c.STTModel,
		"VOXLATE_TRANSLATION_MODEL": &c.TranslationModel,
		"VOXLATE_DATABASE_URL":      &c.DatabaseURL,
		"VOXLATE_SCRATCH_DIR":       &c.ScratchDir,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("VOXLATE_CONCURRENCY"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("VOXLATE_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.SourceLanguage) == "" {
		errs = append(errs, errors.New("source language must not be empty"))
	}
	if strings.TrimSpace(c.TargetLanguage) == "" {
		errs = append(errs, errors.New("target language must not be empty"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.ChunkDuration <= 0 {
		errs = append(errs, fmt.Errorf("chunk duration must be positive, got %s", c.ChunkDuration))
	}
	if c.Engine != EngineAPI && c.Engine != EngineLocal {
		errs = append(errs, fmt.Errorf("engine must be %q or %q, got %q", EngineAPI, EngineLocal, c.Engine))
	}
	if c.MaxRequestBytes <= 0 || c.TargetChunkBytes <= 0 {
		errs = append(errs, errors.New("request and chunk byte sizes must be positive"))
	} else if c.TargetChunkBytes >= c.MaxRequestBytes {
		errs = append(errs, fmt.Errorf("target chunk bytes %d must be smaller than max request bytes %d", c.TargetChunkBytes, c.MaxRequestBytes))
	}
	if c.TextChunkChars <= 0 {
		errs = append(errs, fmt.Errorf("text chunk chars must be positive, got %d", c.TextChunkChars))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2], got %v", c.Temperature))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.SegmentRetries < 0 {
		errs = append(errs, fmt.Errorf("segment retries must not be negative, got %d", c.SegmentRetries))
	}

	return errors.Join(errs...)
}
