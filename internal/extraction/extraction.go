// Package extraction resolves attachment references into text enrichments.
// Extraction runs off the conversational hot path: the dialogue engine
// dispatches a reference and keeps talking, and the result is folded into
// the session later through a fresh load.
package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/planforge/planforge/internal/errors"
)

// Extractor turns an attachment reference into extracted text
type Extractor interface {
	// Extract fetches and extracts the content behind an attachment reference
	Extract(ctx context.Context, attachmentRef string) (string, error)
}

// HTTPExtractor calls an extraction service over HTTP. The service takes the
// attachment reference as a query parameter and returns extracted text.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExtractor creates an extractor backed by an HTTP extraction service
func NewHTTPExtractor(baseURL string, timeout time.Duration) *HTTPExtractor {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &HTTPExtractor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Extract implements Extractor
func (e *HTTPExtractor) Extract(ctx context.Context, attachmentRef string) (string, error) {
	endpoint := fmt.Sprintf("%s/extract?ref=%s", e.baseURL, url.QueryEscape(attachmentRef))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build extraction request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeServiceUnavailable, "extraction request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.ErrCodeServiceBadResponse,
			fmt.Sprintf("extraction service returned status %d for %s", resp.StatusCode, attachmentRef))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeServiceBadResponse, "read extraction response", err)
	}

	return string(body), nil
}
