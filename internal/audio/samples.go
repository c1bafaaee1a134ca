package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

// Asset is either a file on disk or an in-memory mono sample buffer.
type Asset struct {
	Path       string
	Samples    []float32
	SampleRate int
}

func (a Asset) InMemory() bool {
	return a.Path == ""
}

// Duration is only meaningful for in-memory assets; file durations come from
// a Prober.
func (a Asset) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(a.Samples)) / float64(a.SampleRate) * float64(time.Second))
}

// EncodeWAV renders mono float samples in [-1, 1] as a 16-bit PCM RIFF file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * 32767))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	out := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	riff, err := io.ReadAll(out.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return riff, nil
}

// ReadWAVSamples decodes the first channel of a PCM WAV file into floats in
// [-1, 1].
func ReadWAVSamples(path string) ([]float32, int, error) {
	buf, err := decodePCM(path)
	if err != nil {
		return nil, 0, err
	}
	if buf == nil {
		return nil, 0, nil
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	samples := make([]float32, 0, len(buf.Data)/channels)
	for i := 0; i < len(buf.Data); i += channels {
		samples = append(samples, float32(normalizeSample(buf.Data[i], buf.SourceBitDepth)))
	}
	return samples, buf.Format.SampleRate, nil
}

func decodePCM(path string) (*goaudio.IntBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if decoder.WavAudioFormat != 1 {
		return nil, ErrUnsupportedWAV
	}
	switch decoder.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, ErrUnsupportedWAV
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read wav data: %w", err)
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = int(decoder.BitDepth)
	}
	if buf.Format == nil {
		buf.Format = decoder.Format()
	}
	return buf, nil
}

func normalizeSample(v int, bitDepth int) float64 {
	switch bitDepth {
	case 8:
		return (float64(v) - 128.0) / 128.0
	case 24:
		return float64(v) / 8388608.0
	case 32:
		return float64(v) / 2147483648.0
	default:
		return float64(v) / 32768.0
	}
}
