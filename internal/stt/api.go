package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultAPIModel = openai.Whisper1

type APIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// APIService talks to an OpenAI-compatible /audio/transcriptions endpoint and
// asks for verbose JSON so segment log-probabilities and duration come back.
type APIService struct {
	client *openai.Client
	model  string
}

func NewAPIService(cfg APIConfig) (*APIService, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("speech-to-text API key is required (set OPENAI_API_KEY or api_key)")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAPIModel
	}

	return &APIService{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

func (s *APIService) Name() string {
	return "api:" + s.model
}

func (s *APIService) Transcribe(ctx context.Context, req Request) (Response, error) {
	if err := req.validate(); err != nil {
		return Response{}, err
	}

	areq := openai.AudioRequest{
		Model:    s.model,
		FilePath: req.Path,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if lang := strings.TrimSpace(req.Language); lang != "" && lang != "auto" {
		areq.Language = lang
	}
	if len(req.Data) > 0 {
		areq.Reader = bytes.NewReader(req.Data)
		areq.FilePath = req.FileName
	}

	resp, err := s.client.CreateTranscription(ctx, areq)
	if err != nil {
		return Response{}, fmt.Errorf("create transcription: %w", err)
	}

	out := Response{Text: resp.Text, Language: resp.Language}
	for _, segment := range resp.Segments {
		out.Segments = append(out.Segments, ResponseSegment{
			Text:       segment.Text,
			Start:      segment.Start,
			End:        segment.End,
			AvgLogprob: segment.AvgLogprob,
		})
	}
	// verbose_json always carries the field; zero means the provider left it out.
	if resp.Duration > 0 {
		d := resp.Duration
		out.Duration = &d
	}

	return out, nil
}
