package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"factory-usage-proxy/internal/config"
)

// StaticHandler serves files from the document root.
type StaticHandler struct {
	root  string
	serve echo.HandlerFunc
}

// NewStaticHandler creates a StaticHandler rooted at server.doc_root.
// Directories are served through their index.html, or listed when they
// have none. Missing files end in echo's 404.
func NewStaticHandler(cfg *config.Config) *StaticHandler {
	static := echomw.StaticWithConfig(echomw.StaticConfig{
		Root:       ".",
		Index:      "index.html",
		Browse:     true,
		Filesystem: http.Dir(cfg.Server.DocRoot),
	})

	return &StaticHandler{
		root:  cfg.Server.DocRoot,
		serve: static(notFound),
	}
}

// Handle serves the file addressed by the request path.
func (h *StaticHandler) Handle(c echo.Context) error {
	return h.serve(c)
}

// Root returns the document root directory.
func (h *StaticHandler) Root() string {
	return h.root
}

func notFound(echo.Context) error {
	return echo.ErrNotFound
}
