// Package transcribe converts raw audio bytes into plain text behind one
// Provider interface with interchangeable backing services.
package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
)

// MinPayloadBytes is the smallest audio payload accepted. Anything under this
// is treated as corrupt or empty and rejected before any network call.
const MinPayloadBytes = 1000

// Result is a successful transcription.
type Result struct {
	// Transcript is the plain-text transcript.
	Transcript string

	// Confidence is the provider's confidence in [0, 1].
	Confidence float64

	// DurationSeconds is the audio duration reported by the provider.
	DurationSeconds int

	// LanguageCode is the detected language (e.g., "en").
	LanguageCode string
}

// Provider converts audio bytes into a transcript. Implementations must be
// swappable without changing caller code.
type Provider interface {
	// Name returns the provider identifier for logs and configuration.
	Name() string

	// Transcribe converts the audio to text. Failures are StageErrors carrying
	// a classified code (rate_limited, timeout, malformed_response, ...).
	Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error)
}

// contentTypes maps file extensions to MIME types for upload requests.
var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".mp4":  "audio/mp4",
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// ContentTypeFor derives the upload content type from a filename. Unknown
// extensions default to a generic audio type.
func ContentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "audio/wav"
}

// ValidateInput rejects empty or implausibly small payloads before any
// network call is made.
func ValidateInput(audio []byte) error {
	if len(audio) == 0 {
		return &mderrors.StageError{
			Code:    mderrors.ErrInput,
			Message: "no audio data provided",
		}
	}
	if len(audio) < MinPayloadBytes {
		return &mderrors.StageError{
			Code:    mderrors.ErrInput,
			Message: fmt.Sprintf("audio data is only %d bytes, minimum %d required", len(audio), MinPayloadBytes),
		}
	}
	return nil
}
