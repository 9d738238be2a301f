package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
)

// PollingConfig configures an asynchronous speech-to-text service: audio is
// uploaded first, a job is submitted for the upload, then the job is polled
// until it completes.
type PollingConfig struct {
	// BaseURL is the service root, e.g. "https://api.example.com/v2".
	BaseURL string

	// APIKey authenticates every request.
	APIKey string

	// PollInterval is the wait between job status checks.
	PollInterval time.Duration

	// PollTimeout bounds the total wait for one job.
	PollTimeout time.Duration

	// HTTPTimeout bounds a single request. The upload carries the whole
	// recording, so this is generous.
	HTTPTimeout time.Duration
}

// DefaultPollingConfig returns tunables suitable for hour-long recordings.
func DefaultPollingConfig() PollingConfig {
	return PollingConfig{
		PollInterval: 3 * time.Second,
		PollTimeout:  10 * time.Minute,
		HTTPTimeout:  2 * time.Minute,
	}
}

// PollingProvider transcribes through an upload-submit-poll job API.
type PollingProvider struct {
	client *http.Client
	config PollingConfig
	logger logging.Logger
}

// NewPollingProvider creates a provider for an asynchronous job service.
func NewPollingProvider(cfg PollingConfig, logger logging.Logger) *PollingProvider {
	return &PollingProvider{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		config: cfg,
		logger: logger.With(logging.F("component", "transcriber"), logging.F("provider", "polling")),
	}
}

// Name returns the provider identifier.
func (p *PollingProvider) Name() string { return "polling" }

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type jobResponse struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	AudioDuration float64 `json:"audio_duration"`
	LanguageCode  string  `json:"language_code"`
	Error         string  `json:"error"`
}

// Transcribe uploads the audio, submits a transcription job and polls until
// the job reaches a terminal state.
func (p *PollingProvider) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	if err := ValidateInput(audio); err != nil {
		return nil, err
	}
	if p.config.BaseURL == "" || p.config.APIKey == "" {
		return nil, fmt.Errorf("polling transcription: %w", mderrors.ErrNotConfigured)
	}

	audioURL, err := p.upload(ctx, audio, filename)
	if err != nil {
		return nil, err
	}

	jobID, err := p.submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Transcription job submitted", logging.F("job_id", jobID))
	return p.poll(ctx, jobID)
}

func (p *PollingProvider) upload(ctx context.Context, audio []byte, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", p.config.APIKey)
	req.Header.Set("Content-Type", ContentTypeFor(filename))

	var parsed uploadResponse
	if err := p.do(req, &parsed); err != nil {
		return "", err
	}
	if parsed.UploadURL == "" {
		return "", &mderrors.StageError{
			Code:    mderrors.ErrMalformedResponse,
			Stage:   "transcription",
			Message: "upload response missing upload_url",
		}
	}
	return parsed.UploadURL, nil
}

func (p *PollingProvider) submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build job request: %w", err)
	}
	req.Header.Set("Authorization", p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var parsed jobResponse
	if err := p.do(req, &parsed); err != nil {
		return "", err
	}
	if parsed.ID == "" {
		return "", &mderrors.StageError{
			Code:    mderrors.ErrMalformedResponse,
			Stage:   "transcription",
			Message: "job response missing id",
		}
	}
	return parsed.ID, nil
}

func (p *PollingProvider) poll(ctx context.Context, jobID string) (*Result, error) {
	deadline := time.Now().Add(p.config.PollTimeout)
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, mderrors.Classify(ctx.Err(), "transcription")
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return nil, &mderrors.StageError{
				Code:    mderrors.ErrTimeout,
				Stage:   "transcription",
				Message: fmt.Sprintf("job %s did not complete within %s", jobID, p.config.PollTimeout),
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/transcript/"+jobID, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build status request: %w", err)
		}
		req.Header.Set("Authorization", p.config.APIKey)

		var job jobResponse
		if err := p.do(req, &job); err != nil {
			return nil, err
		}

		switch job.Status {
		case "completed":
			if job.Text == "" {
				return nil, &mderrors.StageError{
					Code:    mderrors.ErrMalformedResponse,
					Stage:   "transcription",
					Message: fmt.Sprintf("job %s completed without a transcript", jobID),
				}
			}
			return &Result{
				Transcript:      job.Text,
				Confidence:      job.Confidence,
				DurationSeconds: int(job.AudioDuration),
				LanguageCode:    job.LanguageCode,
			}, nil
		case "error":
			return nil, &mderrors.StageError{
				Code:    mderrors.ErrProvider,
				Stage:   "transcription",
				Message: fmt.Sprintf("job %s failed: %s", jobID, job.Error),
			}
		default:
			p.logger.Debug("Transcription job still running",
				logging.F("job_id", jobID),
				logging.F("status", job.Status))
		}
	}
}

// do executes a request, classifies non-2xx responses and decodes the body.
func (p *PollingProvider) do(req *http.Request, out interface{}) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return mderrors.Classify(err, "transcription")
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, resp.Body); err != nil {
		return err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return mderrors.Classify(err, "transcription")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &mderrors.StageError{
			Code:    mderrors.ErrMalformedResponse,
			Stage:   "transcription",
			Message: fmt.Sprintf("provider returned non-JSON response: %s", truncate(string(payload), 200)),
			Cause:   err,
		}
	}
	return nil
}
