package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader is set on every outbound request that does not carry one.
const RequestIDHeader = "X-Request-ID"

// RoundTripper logs outbound HTTP requests made by the negotiation client and
// the HTTP based transports. A nil next uses http.DefaultTransport.
func RoundTripper(logger Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingRoundTripper{logger: logger, next: next}
}

type loggingRoundTripper struct {
	logger Logger
	next   http.RoundTripper
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, requestID)
	}

	reqLogger := t.logger.WithContext(req.Context()).WithFields(
		String("request_id", requestID),
		String("method", req.Method),
		String("url", redactQuery(req)),
	)
	reqLogger.Debug("HTTP request started")

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		reqLogger.WithError(err).WithFields(Duration("duration", duration)).Debug("HTTP request failed")
		return nil, err
	}

	reqLogger.WithFields(
		Int("status", resp.StatusCode),
		Duration("duration", duration),
	).Debug("HTTP request completed")
	return resp, nil
}

// redactQuery drops the query string, which may carry an access token.
func redactQuery(req *http.Request) string {
	u := *req.URL
	if u.RawQuery != "" {
		u.RawQuery = "..."
	}
	return u.String()
}
