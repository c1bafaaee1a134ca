package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// ErrDecode marks inputs whose size, duration or container cannot be determined.
// Callers must not forward such inputs to transcription.
var ErrDecode = errors.New("audio decode failed")

var ErrUnsupportedFormat = errors.New("unsupported audio format")

type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatOGG     Format = "ogg"
	FormatM4A     Format = "m4a"
)

var extensionFormats = map[string]Format{
	".wav":  FormatWAV,
	".mp3":  FormatMP3,
	".flac": FormatFLAC,
	".ogg":  FormatOGG,
	".oga":  FormatOGG,
	".m4a":  FormatM4A,
	".mp4":  FormatM4A,
}

// DetectFormat sniffs the container of path. RIFF/WAVE headers are checked
// first, then tag metadata, then the file extension.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: open %s: %v", ErrDecode, path, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("%w: read header: %v", ErrDecode, err)
	}
	if n == 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WAVE" {
		return FormatWAV, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, fmt.Errorf("%w: seek: %v", ErrDecode, err)
	}
	if _, fileType, err := tag.Identify(f); err == nil {
		if format := formatFromFileType(fileType); format != FormatUnknown {
			return format, nil
		}
	}

	if format, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return format, nil
	}

	return FormatUnknown, fmt.Errorf("%w: %w: %s", ErrDecode, ErrUnsupportedFormat, filepath.Base(path))
}

func IsSupportedExtension(path string) bool {
	_, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]
	return ok
}

func formatFromFileType(fileType tag.FileType) Format {
	switch fileType {
	case tag.MP3:
		return FormatMP3
	case tag.FLAC:
		return FormatFLAC
	case tag.OGG:
		return FormatOGG
	case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
		return FormatM4A
	default:
		return FormatUnknown
	}
}
