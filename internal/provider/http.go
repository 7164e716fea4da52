package provider

import (
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/planforge/planforge/internal/errors"
)

// classifyTransportError maps a transport-level failure onto the service
// error taxonomy so the retry loop can decide whether to try again.
func classifyTransportError(service string, err error) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewServiceTimeoutError(service, err)
	}
	return errors.Wrap(errors.ErrCodeServiceUnavailable, fmt.Sprintf("%s request failed", service), err)
}

// classifyStatus maps a non-2xx HTTP status onto the service error taxonomy.
// Rate limits and 5xx are transient, auth failures are terminal.
func classifyStatus(service string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.ErrCodeServiceAuth, fmt.Sprintf("%s rejected credentials (status %d)", service, status)).
			WithSuggestion("Check the provider API key in your configuration")
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeServiceUnavailable, fmt.Sprintf("%s rate limited (status %d)", service, status))
	case status >= 500:
		return errors.New(errors.ErrCodeServiceUnavailable, fmt.Sprintf("%s returned status %d", service, status))
	default:
		return errors.New(errors.ErrCodeServiceBadResponse, fmt.Sprintf("%s returned status %d: %s", service, status, truncate(body, 200)))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
