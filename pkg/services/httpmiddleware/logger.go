package httpmiddleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const redacted = "[REDACTED]"

var (
	sensitiveHeaders = map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		"x-api-key":     {},
		"x-auth-token":  {},
	}

	// sensitiveFields are JSON body keys masked before logging. Terminal
	// login payloads carry the account password.
	sensitiveFields = map[string]struct{}{
		"password":   {},
		"token":      {},
		"passphrase": {},
	}
)

// Logger logs every request and response at debug level, escalating to warn
// and error for 4xx and 5xx replies. maxBodySize controls body logging:
//   - 0: no body logging
//   - -1: log entire body
//   - >0: log first N bytes of body
//
// Bodies are always restored in full for the next round tripper and caller.
func Logger(logger *slog.Logger, maxBodySize int) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			logRequest(logger, req, maxBodySize)

			start := time.Now()
			resp, err := next.RoundTrip(req)
			duration := time.Since(start)

			if err != nil {
				logger.Error("HTTP request failed",
					slog.String("method", req.Method),
					slog.String("url", req.URL.String()),
					slog.Duration("duration", duration),
					slog.Any("error", err))

				return resp, err
			}

			logResponse(logger, req, resp, duration, maxBodySize)

			return resp, nil
		})
	}
}

func logRequest(logger *slog.Logger, req *http.Request, maxBodySize int) {
	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
	}

	if len(req.Header) > 0 {
		attrs = append(attrs, slog.Any("headers", headerGroup(req.Header)))
	}

	if maxBodySize != 0 && req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
		if err == nil && len(body) > 0 {
			attrs = append(attrs, slog.String("body", truncate(redactBody(body), maxBodySize)))
		}
	}

	logger.LogAttrs(req.Context(), slog.LevelDebug, "📤 HTTP Request", attrs...)
}

func logResponse(logger *slog.Logger, req *http.Request, resp *http.Response, duration time.Duration, maxBodySize int) {
	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
	}

	if maxBodySize != 0 && resp.Body != nil {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		if err == nil && len(body) > 0 {
			attrs = append(attrs, slog.String("body", truncate(redactBody(body), maxBodySize)))
		}
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	if resp.StatusCode >= 500 {
		level = slog.LevelError
	}

	logger.LogAttrs(req.Context(), level, "📥 HTTP Response", attrs...)
}

func headerGroup(h http.Header) slog.Value {
	attrs := make([]slog.Attr, 0, len(h))
	for k, v := range h {
		if _, ok := sensitiveHeaders[strings.ToLower(k)]; ok {
			attrs = append(attrs, slog.String(k, redacted))
			continue
		}
		attrs = append(attrs, slog.String(k, strings.Join(v, ", ")))
	}
	return slog.GroupValue(attrs...)
}

// redactBody masks sensitive top-level keys of a JSON object body. Non-JSON
// bodies are returned unchanged.
func redactBody(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return string(body)
	}

	changed := false
	for k := range obj {
		if _, ok := sensitiveFields[strings.ToLower(k)]; ok {
			obj[k] = redacted
			changed = true
		}
	}
	if !changed {
		return string(body)
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return string(body)
	}
	return string(out)
}

func truncate(s string, max int) string {
	if max < 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
