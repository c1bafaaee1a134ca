package stt

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTranscription wraps every failure of the speech-to-text service.
	ErrTranscription = errors.New("transcription failed")
	// ErrMalformedResponse marks service payloads that fail schema validation.
	ErrMalformedResponse = errors.New("malformed transcription response")
)

// Request carries exactly one of Path or Data. FileName names Data for
// providers that need an upload name.
type Request struct {
	Path     string
	Data     []byte
	FileName string
	Language string
	FP16     bool
}

type ResponseSegment struct {
	Text       string
	Start      float64
	End        float64
	AvgLogprob float64
}

// Response is the typed payload every Service returns. A nil Duration means
// the provider did not report one.
type Response struct {
	Text     string
	Language string
	Segments []ResponseSegment
	Duration *float64
}

func (r Response) Validate() error {
	for i, segment := range r.Segments {
		if math.IsNaN(segment.AvgLogprob) || math.IsInf(segment.AvgLogprob, 1) {
			return fmt.Errorf("%w: segment %d has avg_logprob %v", ErrMalformedResponse, i, segment.AvgLogprob)
		}
	}
	if r.Duration != nil {
		d := *r.Duration
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return fmt.Errorf("%w: duration %v", ErrMalformedResponse, d)
		}
	}
	return nil
}

type Service interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (Response, error)
}

// Result is one transcription outcome. Confidence is in [0, 1] and Duration
// is in seconds.
type Result struct {
	Text       string
	Language   string
	Confidence float64
	Duration   float64
}

func (r Request) validate() error {
	hasPath := r.Path != ""
	hasData := len(r.Data) > 0
	switch {
	case hasPath && hasData:
		return errors.New("request must carry either a path or data, not both")
	case !hasPath && !hasData:
		return errors.New("request carries no audio")
	}
	return nil
}
