package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"factory-usage-proxy/internal/model"
	"factory-usage-proxy/internal/service"
)

// ProxyHandler relays /api/proxy requests to the upstream usage API.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle forwards the request and writes the outcome back to the browser.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:    req.Context(),
		Method: req.Method,
		Path:   req.URL.Path,
		Header: req.Header,
	}

	res, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	return h.writeResult(c, res)
}

func (h *ProxyHandler) writeResult(c echo.Context, res *model.ForwardResult) error {
	switch res.Kind {
	case model.ForwardSuccess:
		// Any 2xx from upstream is reported as 200.
		return c.Blob(http.StatusOK, res.ContentType, res.Body)

	case model.ForwardUpstreamError:
		h.logger.Warn("upstream rejected request",
			"status", res.StatusCode,
			"reason", res.Reason,
		)
		// The reason phrase is inserted verbatim; a phrase containing '"'
		// yields invalid JSON.
		body := []byte(`{"error": "` + res.Reason + `"}`)
		err := c.Blob(res.StatusCode, echo.MIMEApplicationJSON, body)
		if errors.Is(err, http.ErrBodyNotAllowed) {
			return nil
		}
		return err

	default:
		h.logger.Error("proxy error",
			"err", res.Err,
			"path", c.Request().URL.Path,
		)
		return c.String(http.StatusInternalServerError, "Proxy error: "+errorText(res.Err))
	}
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrMissingAuthorization) {
		h.logger.Debug("rejecting proxy request without credential",
			"path", c.Request().URL.Path,
		)
		return c.String(http.StatusBadRequest, "Authorization header is required")
	}

	h.logger.Error("proxy error",
		"err", err,
		"path", c.Request().URL.Path,
	)
	return c.String(http.StatusInternalServerError, "Proxy error: "+err.Error())
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
