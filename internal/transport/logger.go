package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger logs each HTTP attempt. maxBodySize controls body logging:
//   - 0: no body logging
//   - -1: log entire body
//   - >0: log first N bytes of body
func Logger(logger zerolog.Logger, maxBodySize int) Middleware {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			logRequest(logger, req, maxBodySize)

			start := time.Now()
			resp, err := next.RoundTrip(req)
			duration := time.Since(start)

			if err != nil {
				logger.Error().Err(err).
					Str("method", req.Method).
					Str("url", req.URL.String()).
					Dur("duration", duration).
					Msg("http request failed")
				return resp, err
			}

			logResponse(logger, req, resp, duration, maxBodySize)
			return resp, nil
		})
	}
}

func logRequest(logger zerolog.Logger, req *http.Request, maxBodySize int) {
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}

	event := logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", req.Header.Get(RequestIDHeader))

	headers := zerolog.Dict()
	for k, v := range req.Header {
		if isSensitiveHeader(k) {
			headers.Str(k, "[REDACTED]")
		} else {
			headers.Str(k, strings.Join(v, ", "))
		}
	}
	event.Dict("headers", headers)

	if maxBodySize != 0 && req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			if body, err := readBody(rc, maxBodySize); err == nil && len(body) > 0 {
				event.Str("body", string(body))
			}
		}
	}

	event.Msg("http request")
}

func logResponse(logger zerolog.Logger, req *http.Request, resp *http.Response, duration time.Duration, maxBodySize int) {
	level := zerolog.DebugLevel
	if resp.StatusCode >= 400 {
		level = zerolog.WarnLevel
	}
	if resp.StatusCode >= 500 {
		level = zerolog.ErrorLevel
	}

	event := logger.WithLevel(level)
	if event == nil {
		return
	}
	event.Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("duration", duration)

	if maxBodySize != 0 && resp.Body != nil {
		body, err := readBody(resp.Body, -1)
		if err == nil {
			resp.Body = io.NopCloser(bytes.NewReader(body))
			if maxBodySize > 0 && len(body) > maxBodySize {
				body = body[:maxBodySize]
			}
			if len(body) > 0 {
				event.Str("body", string(body))
			}
		}
	}

	event.Msg("http response")
}

// readBody reads and closes body, keeping at most maxBodySize bytes (-1 for all).
func readBody(body io.ReadCloser, maxBodySize int) ([]byte, error) {
	defer body.Close()

	if maxBodySize == -1 {
		return io.ReadAll(body)
	}

	buf := make([]byte, maxBodySize)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return buf[:n], nil
}

func isSensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "cookie", "set-cookie", "x-api-key", "x-auth-token", "x-csrf-token":
		return true
	}
	return false
}
