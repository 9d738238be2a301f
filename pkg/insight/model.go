// Package insight derives structured meeting intelligence from a raw
// transcript using a language model: a minute-level timeline, task drafts and
// meeting outcomes.
package insight

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

// Model generates text completions. Implementations must return the raw model
// output and leave parsing to the caller.
type Model interface {
	// Name returns the model identifier for logs.
	Name() string

	// Complete sends a prompt and returns the model's text response.
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig configures the hosted generative model client.
type GeminiConfig struct {
	// APIKey authenticates requests.
	APIKey string

	// ModelName selects the model, e.g. "gemini-2.0-flash".
	ModelName string

	// BaseURL overrides the API root. Empty uses the public endpoint.
	BaseURL string

	// Temperature controls sampling. Extraction wants it low.
	Temperature float64

	// MaxOutputTokens caps the response size.
	MaxOutputTokens int

	// HTTPTimeout bounds one completion request.
	HTTPTimeout time.Duration
}

// DefaultGeminiConfig returns settings tuned for deterministic extraction.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		ModelName:       "gemini-2.0-flash",
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Temperature:     0.1,
		MaxOutputTokens: 8192,
		HTTPTimeout:     2 * time.Minute,
	}
}

// GeminiModel calls the hosted generateContent endpoint.
type GeminiModel struct {
	client *http.Client
	config GeminiConfig
	logger logging.Logger
}

// NewGeminiModel creates a client for the hosted generative model.
func NewGeminiModel(cfg GeminiConfig, logger logging.Logger) *GeminiModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiConfig().BaseURL
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultGeminiConfig().ModelName
	}
	return &GeminiModel{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		config: cfg,
		logger: logger.With(logging.F("component", "insight_model"), logging.F("model", cfg.ModelName)),
	}
}

// Name returns the configured model name.
func (m *GeminiModel) Name() string { return m.config.ModelName }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete sends the prompt and returns the first candidate's text.
func (m *GeminiModel) Complete(ctx context.Context, prompt string) (string, error) {
	if m.config.APIKey == "" {
		return "", fmt.Errorf("insight model: %w", mderrors.ErrNotConfigured)
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{
			Temperature:     m.config.Temperature,
			MaxOutputTokens: m.config.MaxOutputTokens,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal model request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", m.config.BaseURL, m.config.ModelName, m.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", mderrors.Classify(err, "insight")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", mderrors.Classify(err, "insight")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", mderrors.NewStageError(mderrors.ErrRateLimited, "insight", "model returned HTTP 429")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", mderrors.NewStageError(mderrors.ErrProvider, "insight",
			"model returned HTTP %d: %s", resp.StatusCode, firstLine(string(body), 200))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &mderrors.StageError{
			Code:    mderrors.ErrMalformedResponse,
			Stage:   "insight",
			Message: "model returned non-JSON response",
			Cause:   err,
		}
	}
	if parsed.Error != nil {
		return "", mderrors.NewStageError(mderrors.ErrProvider, "insight",
			"model error %s: %s", parsed.Error.Status, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", mderrors.NewStageError(mderrors.ErrMalformedResponse, "insight",
			"model returned no candidates")
	}

	text := ""
	for _, part := range parsed.Candidates[0].Content.Parts {
		text += part.Text
	}
	m.logger.Debug("Model completion received",
		logging.F("prompt_len", len(prompt)),
		logging.F("response_len", len(text)))
	return text, nil
}

func firstLine(s string, max int) string {
	for i := 0; i < len(s) && i < max; i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	if len(s) > max {
		return s[:max]
	}
	return s
}
