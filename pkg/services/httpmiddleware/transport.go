package httpmiddleware

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultTransport returns a transport tuned for a single local gateway host.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Middleware wraps an http.RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// Wrap applies middlewares to base. The first middleware is the outermost.
func Wrap(base http.RoundTripper, middlewares ...Middleware) http.RoundTripper {
	for i := len(middlewares) - 1; i >= 0; i-- {
		base = middlewares[i](base)
	}
	return base
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RequestGetBodySetter buffers the request body so it can be replayed on
// redirects and read by the logger.
func RequestGetBodySetter(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			req.Body.Close()
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(body)), nil
			}
		}
		return next.RoundTrip(req)
	})
}

// BearerAuth sets the Authorization header on every outgoing request.
// An empty token leaves requests untouched.
func BearerAuth(token string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if token == "" {
			return next
		}
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(req)
		})
	}
}
