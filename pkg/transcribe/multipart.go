package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
)

// MultipartConfig configures a speech-to-text service that accepts the whole
// recording as one multipart upload and answers synchronously.
type MultipartConfig struct {
	// Endpoint is the full transcription URL.
	Endpoint string

	// APIKey authenticates the request.
	APIKey string

	// APIHost is sent alongside the key when the gateway requires it.
	APIHost string

	// Language hints the expected language. Empty lets the service detect it.
	Language string

	// HTTPTimeout bounds one upload-and-transcribe round trip. Recordings are
	// large, so this is much longer than a typical API timeout.
	HTTPTimeout time.Duration
}

// DefaultMultipartConfig returns tunables suitable for hour-long recordings.
func DefaultMultipartConfig() MultipartConfig {
	return MultipartConfig{
		Language:    "en",
		HTTPTimeout: 5 * time.Minute,
	}
}

// MultipartProvider transcribes by uploading the full audio as a multipart
// form and reading the transcript from the synchronous response.
type MultipartProvider struct {
	client *http.Client
	config MultipartConfig
	logger logging.Logger
}

// NewMultipartProvider creates a provider for a synchronous upload service.
func NewMultipartProvider(cfg MultipartConfig, logger logging.Logger) *MultipartProvider {
	return &MultipartProvider{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		config: cfg,
		logger: logger.With(logging.F("component", "transcriber"), logging.F("provider", "multipart")),
	}
}

// Name returns the provider identifier.
func (p *MultipartProvider) Name() string { return "multipart" }

// multipartResponse is the subset of the service response we consume. The
// service nests results one level deep; both shapes are accepted.
type multipartResponse struct {
	Transcript string  `json:"transcript"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Duration   float64 `json:"duration"`
	Language   string  `json:"language"`
	Result     *struct {
		Transcript string  `json:"transcript"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Duration   float64 `json:"duration"`
		Language   string  `json:"language"`
	} `json:"result"`
}

// Transcribe uploads the audio and parses the synchronous response.
func (p *MultipartProvider) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	if err := ValidateInput(audio); err != nil {
		return nil, err
	}
	if p.config.Endpoint == "" || p.config.APIKey == "" {
		return nil, fmt.Errorf("multipart transcription: %w", mderrors.ErrNotConfigured)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write upload form: %w", err)
	}
	if p.config.Language != "" {
		if err := writer.WriteField("language", p.config.Language); err != nil {
			return nil, fmt.Errorf("failed to write upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", p.config.APIKey)
	if p.config.APIHost != "" {
		req.Header.Set("X-API-Host", p.config.APIHost)
	}

	p.logger.Info("Uploading audio for transcription",
		logging.F("bytes", len(audio)),
		logging.F("content_type", ContentTypeFor(filename)))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, mderrors.Classify(err, "transcription")
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, resp.Body); err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mderrors.Classify(err, "transcription")
	}

	var parsed multipartResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &mderrors.StageError{
			Code:    mderrors.ErrMalformedResponse,
			Stage:   "transcription",
			Message: fmt.Sprintf("provider returned non-JSON response: %s", truncate(string(payload), 200)),
			Cause:   err,
		}
	}
	if parsed.Result != nil {
		if parsed.Transcript == "" {
			parsed.Transcript = parsed.Result.Transcript
		}
		if parsed.Text == "" {
			parsed.Text = parsed.Result.Text
		}
		if parsed.Confidence == 0 {
			parsed.Confidence = parsed.Result.Confidence
		}
		if parsed.Duration == 0 {
			parsed.Duration = parsed.Result.Duration
		}
		if parsed.Language == "" {
			parsed.Language = parsed.Result.Language
		}
	}

	transcript := parsed.Transcript
	if transcript == "" {
		transcript = parsed.Text
	}
	if transcript == "" {
		return nil, &mderrors.StageError{
			Code:    mderrors.ErrMalformedResponse,
			Stage:   "transcription",
			Message: "provider returned 200 but no transcript field",
		}
	}

	return &Result{
		Transcript:      transcript,
		Confidence:      parsed.Confidence,
		DurationSeconds: int(parsed.Duration),
		LanguageCode:    parsed.Language,
	}, nil
}

// classifyStatus maps non-2xx responses to typed failures.
func classifyStatus(status int, body io.Reader) error {
	if status >= 200 && status < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(body, 512))
	msg := fmt.Sprintf("provider returned HTTP %d: %s", status, truncate(string(detail), 200))

	code := mderrors.ErrProvider
	switch {
	case status == http.StatusTooManyRequests:
		code = mderrors.ErrRateLimited
	case status == http.StatusRequestEntityTooLarge:
		code = mderrors.ErrPayloadTooLarge
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = mderrors.ErrConfiguration
	case status == http.StatusGatewayTimeout:
		code = mderrors.ErrTimeout
	case status >= 500:
		code = mderrors.ErrConnection
	}

	return &mderrors.StageError{
		Code:    code,
		Stage:   "transcription",
		Message: msg,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
