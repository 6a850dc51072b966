package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"palisade/internal/tracing"
)

// Classifier is the abstract semantic classifier the dispatcher consults
// for content the keyword filter can't decide. Implementations are treated
// as unreliable: any error, timeout, or malformed response is recovered by
// the dispatcher, never surfaced to the end user.
type Classifier interface {
	Classify(ctx context.Context, content string) (*Verdict, error)
}

// HTTPClassifier calls an external moderation endpoint that accepts raw
// text and returns a structured verdict.
type HTTPClassifier struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// HTTPClassifierConfig configures an HTTPClassifier.
type HTTPClassifierConfig struct {
	// BaseURL of the classification endpoint (required).
	BaseURL string

	// APIKey sent as a bearer token, if the provider requires one.
	APIKey string

	// Model name forwarded to the provider.
	Model string

	// Timeout for classification requests (default: 10s).
	Timeout time.Duration
}

type classifyRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type classifyResponse struct {
	Violation  bool   `json:"violation"`
	Category   string `json:"category"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// NewHTTPClassifier creates a classifier client.
func NewHTTPClassifier(cfg HTTPClassifierConfig) (*HTTPClassifier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("classifier base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &HTTPClassifier{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Classify implements Classifier. The returned verdict always has its
// confidence clamped into [0, 100] and source set to classifier.
func (c *HTTPClassifier) Classify(ctx context.Context, content string) (*Verdict, error) {
	ctx, span := tracing.ClassifierSpan(ctx, c.model)
	defer span.End()

	payload, err := json.Marshal(classifyRequest{Model: c.model, Input: content})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, fmt.Errorf("classify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, fmt.Errorf("failed to read classify response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(body))
		tracing.EndWithError(span, err)
		return nil, err
	}

	var parsed classifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		tracing.EndWithError(span, err)
		return nil, fmt.Errorf("failed to parse classify response: %w", err)
	}

	verdict := &Verdict{
		IsViolation: parsed.Violation,
		Confidence:  ClampConfidence(parsed.Confidence),
		Reason:      parsed.Reason,
		Source:      SourceClassifier,
	}
	if parsed.Violation {
		verdict.ViolationType = ParseViolationType(parsed.Category)
	}

	return verdict, nil
}
