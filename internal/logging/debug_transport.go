package logging

import (
	"net/http"
	"time"
)

// DebugTransport logs every request and response passing through it at DEBUG level.
// Headers are not logged; the console logger redacts tokens that leak into URLs.
type DebugTransport struct {
	base   http.RoundTripper
	logger Logger
}

// NewDebugTransport wraps base; a nil base means http.DefaultTransport
func NewDebugTransport(base http.RoundTripper, logger Logger) *DebugTransport {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &DebugTransport{base: base, logger: logger}
}

// Wrap returns a copy of t that forwards to base
func (t *DebugTransport) Wrap(base http.RoundTripper) *DebugTransport {
	return &DebugTransport{base: base, logger: t.logger}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	logger := t.logger.WithContext(req.Context())
	logger.Debug("HTTP request",
		F("method", req.Method),
		F("url", req.URL.Redacted()),
		F("contentLength", req.ContentLength),
	)

	start := time.Now()
	resp, err := base.RoundTrip(req)
	if err != nil {
		logger.Debug("HTTP request failed",
			F("method", req.Method),
			F("url", req.URL.Redacted()),
			F("duration_ms", time.Since(start).Milliseconds()),
			F("error", err.Error()),
		)
		return nil, err
	}

	logger.Debug("HTTP response",
		F("method", req.Method),
		F("url", req.URL.Redacted()),
		F("status", resp.StatusCode),
		F("duration_ms", time.Since(start).Milliseconds()),
	)
	return resp, nil
}
