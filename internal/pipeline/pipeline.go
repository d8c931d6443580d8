package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"exchange-rates-client/internal/session"
	"exchange-rates-client/internal/transport"
)

// DefaultCSRFHeader is the header the rates API reads the antiforgery token from.
const DefaultCSRFHeader = "X-CSRF-TOKEN"

// maxPeekSize bounds how much of an error body is inspected for a CSRF marker.
const maxPeekSize = 64 << 10

// maxCSRFRetries caps RetryPolicy.MaxCSRFRetries: a CSRF-rejected request is
// renewed and replayed at most once.
const maxCSRFRetries = 1

// RetryPolicy bounds the automatic recovery performed by the pipeline.
type RetryPolicy struct {
	// MaxCSRFRetries is how many times a request rejected for its CSRF token
	// is re-issued after the token is renewed. Values outside [0, 1] are
	// clamped.
	MaxCSRFRetries int
}

// DefaultRetryPolicy re-issues a CSRF-rejected request once.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxCSRFRetries: 1}
}

// LoginRedirector is told when the session ended outside the login flow.
type LoginRedirector interface {
	RedirectToLogin(ctx context.Context, path string)
}

// LoginRedirectorFunc adapts a function to LoginRedirector.
type LoginRedirectorFunc func(ctx context.Context, path string)

func (f LoginRedirectorFunc) RedirectToLogin(ctx context.Context, path string) {
	f(ctx, path)
}

// Options configures a Pipeline.
type Options struct {
	CSRFHeader string
	Retry      RetryPolicy
	// CredentialPaths are path fragments whose 401 responses are a failed
	// login rather than an expired session.
	CredentialPaths []string
	Redirector      LoginRedirector
	Logger          zerolog.Logger
}

// Pipeline is the outermost round tripper of the API client. It attaches the
// session credentials and recovers from a rejected CSRF token.
type Pipeline struct {
	next   http.RoundTripper
	sess   *session.Manager
	opts   Options
	logger zerolog.Logger
}

// New wraps next. Zero option values fall back to defaults.
func New(next http.RoundTripper, sess *session.Manager, opts Options) *Pipeline {
	if next == nil {
		next = http.DefaultTransport
	}
	if opts.CSRFHeader == "" {
		opts.CSRFHeader = DefaultCSRFHeader
	}
	opts.Retry.MaxCSRFRetries = min(max(opts.Retry.MaxCSRFRetries, 0), maxCSRFRetries)
	if opts.CredentialPaths == nil {
		opts.CredentialPaths = []string{"/auth/login", "/auth/register"}
	}
	return &Pipeline{
		next:   next,
		sess:   sess,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// RoundTrip implements http.RoundTripper.
func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	mutating := isMutating(req.Method)

	var csrf string
	if mutating {
		buffered, err := transport.ReplayableBody(req)
		if err != nil {
			return nil, fmt.Errorf("buffer request body: %w", err)
		}
		req = buffered
		token, err := p.sess.EnsureCSRF(ctx)
		if err != nil {
			return nil, fmt.Errorf("obtain csrf token: %w", err)
		}
		csrf = token
	}

	for attempt := 0; ; attempt++ {
		out, err := p.prepare(req, csrf)
		if err != nil {
			return nil, err
		}

		resp, err := p.next.RoundTrip(out)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized {
			p.endSession(ctx, req.URL.Path)
			return resp, nil
		}

		if attempt >= p.opts.Retry.MaxCSRFRetries || !rejectedForCSRF(resp) {
			return resp, nil
		}

		drain(resp)
		p.logger.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("attempt", attempt+1).
			Msg("csrf token rejected, renewing")

		csrf, err = p.sess.RenewCSRF(ctx, csrf)
		if err != nil {
			return nil, fmt.Errorf("renew csrf token: %w", err)
		}
	}
}

// prepare clones req with credentials attached and a fresh body.
func (p *Pipeline) prepare(req *http.Request, csrf string) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		out.Body = body
	}

	attachBearer(out.Header, p.sess)
	if csrf != "" {
		out.Header.Set(p.opts.CSRFHeader, csrf)
	}
	return out, nil
}

func (p *Pipeline) endSession(ctx context.Context, path string) {
	if err := p.sess.ClearToken(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("failed to clear session token")
	}

	for _, fragment := range p.opts.CredentialPaths {
		if strings.Contains(path, fragment) {
			return
		}
	}

	p.logger.Info().Str("path", path).Msg("session expired")
	if p.opts.Redirector != nil {
		p.opts.Redirector.RedirectToLogin(ctx, path)
	}
}

// Bearer attaches only the bearer token. It serves requests that must not
// re-enter the CSRF handling, such as the CSRF token request itself.
func Bearer(sess *session.Manager) transport.Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return transport.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if _, ok := sess.Token(); !ok {
				return next.RoundTrip(req)
			}
			out := req.Clone(req.Context())
			attachBearer(out.Header, sess)
			return next.RoundTrip(out)
		})
	}
}

func attachBearer(h http.Header, sess *session.Manager) {
	if token, ok := sess.Token(); ok {
		h.Set("Authorization", "Bearer "+token)
	}
}

// IsCSRFRejection reports whether a response with this status and body is
// the server refusing the antiforgery token.
func IsCSRFRejection(status int, body []byte) bool {
	if status != http.StatusBadRequest && status != http.StatusForbidden {
		return false
	}
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, []byte("antiforgery")) || bytes.Contains(lower, []byte("csrf"))
}

// rejectedForCSRF peeks at the response body and restores it for the caller.
func rejectedForCSRF(resp *http.Response) bool {
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusForbidden {
		return false
	}
	if resp.Body == nil {
		return false
	}

	peek, err := io.ReadAll(io.LimitReader(resp.Body, maxPeekSize))
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(peek), resp.Body), resp.Body}
	if err != nil {
		return false
	}
	return IsCSRFRejection(resp.StatusCode, peek)
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPeekSize))
	resp.Body.Close()
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
