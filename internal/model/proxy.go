// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents a browser request to be relayed upstream.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	Path   string
	Header http.Header
}

// UpstreamResponse is the raw answer from the upstream API.
type UpstreamResponse struct {
	StatusCode int
	Reason     string
	Header     http.Header
	Body       io.ReadCloser
}

// ForwardKind identifies which variant a ForwardResult holds.
type ForwardKind int

const (
	// ForwardSuccess means the upstream answered 2xx and the body was read.
	ForwardSuccess ForwardKind = iota
	// ForwardUpstreamError means the upstream answered with a non-2xx status.
	ForwardUpstreamError
	// ForwardTransportError means no usable upstream answer was obtained.
	ForwardTransportError
)

// String returns the label used in logs and metrics.
func (k ForwardKind) String() string {
	switch k {
	case ForwardSuccess:
		return "success"
	case ForwardUpstreamError:
		return "upstream_error"
	case ForwardTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// ForwardResult is the outcome of one forward operation.
//
// Success fills StatusCode, ContentType and Body. UpstreamError fills
// StatusCode and Reason. TransportError fills Err.
type ForwardResult struct {
	Kind        ForwardKind
	StatusCode  int
	ContentType string
	Body        []byte
	Reason      string
	Err         error
}
