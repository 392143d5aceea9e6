// Package service implements the core proxy forwarding logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"factory-usage-proxy/internal/config"
	"factory-usage-proxy/internal/metrics"
	"factory-usage-proxy/internal/model"
)

// ErrMissingAuthorization is returned when the inbound request carries no credential.
var ErrMissingAuthorization = errors.New("authorization header is required")

// allowedUpstreamHosts restricts which hosts receive the caller's credential.
var allowedUpstreamHosts = map[string]bool{
	"app.factory.ai": true,
}

const defaultContentType = "application/json"

// Fetcher performs the upstream GET. *client.UsageClient implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) (*model.UpstreamResponse, error)
}

// ProxyService relays credentialed requests to the fixed upstream endpoint.
type ProxyService struct {
	client    Fetcher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	target    string
	userAgent string
}

// NewProxyService creates a ProxyService. The upstream host must be allowlisted.
// The metrics parameter is optional.
func NewProxyService(c Fetcher, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}

	if !allowedUpstreamHosts[u.Hostname()] {
		return nil, fmt.Errorf("upstream host %q is not in the allowlist", u.Hostname())
	}

	return newProxyService(c, cfg, logger, m, u), nil
}

// NewProxyServiceForTest creates a ProxyService without host allowlist validation.
// This is intended only for tests that use httptest servers on localhost.
func NewProxyServiceForTest(c Fetcher, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}

	return newProxyService(c, cfg, logger, m, u), nil
}

func newProxyService(c Fetcher, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, u *url.URL) *ProxyService {
	return &ProxyService{
		client:    c,
		logger:    logger.With("component", "proxy_service"),
		metrics:   m,
		target:    u.String(),
		userAgent: cfg.Upstream.UserAgent,
	}
}

// Forward relays pr to the upstream endpoint. The inbound path, query and
// body are ignored; only the Authorization header is carried over.
//
// The only error returned is ErrMissingAuthorization, in which case no
// upstream call is made. Every other failure is reported in the result.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ForwardResult, error) {
	auth := pr.Header.Get("Authorization")
	if auth == "" {
		s.count("missing_credential")
		return nil, ErrMissingAuthorization
	}

	header := make(http.Header)
	header.Set("Authorization", auth)
	header.Set("User-Agent", s.userAgent)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
	)

	result := s.fetch(pr.Ctx, header)
	s.count(result.Kind.String())
	return result, nil
}

func (s *ProxyService) fetch(ctx context.Context, header http.Header) *model.ForwardResult {
	resp, err := s.client.Fetch(ctx, s.target, header)
	if err != nil {
		return transportError(fmt.Errorf("forward to upstream: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.ForwardResult{
			Kind:       model.ForwardUpstreamError,
			StatusCode: resp.StatusCode,
			Reason:     resp.Reason,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(fmt.Errorf("read upstream body: %w", err))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	return &model.ForwardResult{
		Kind:        model.ForwardSuccess,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}
}

func (s *ProxyService) count(result string) {
	if s.metrics != nil {
		s.metrics.ForwardResults.WithLabelValues(result).Inc()
	}
}

func transportError(err error) *model.ForwardResult {
	return &model.ForwardResult{Kind: model.ForwardTransportError, Err: err}
}
