// Package middleware provides Echo middleware for CORS, logging and metrics.
package middleware

import (
	"github.com/labstack/echo/v4"
)

// corsHeaders are attached to every response, whatever produced it.
var corsHeaders = [][2]string{
	{echo.HeaderAccessControlAllowOrigin, "*"},
	{echo.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS"},
	{echo.HeaderAccessControlAllowHeaders, "Authorization, User-Agent, Content-Type"},
}

// hopByHopHeaders are stripped from inbound requests.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Upgrade",
}

// CORS returns an Echo middleware that sets the permissive CORS headers from a
// Response.Before hook, so they are present on anything written for the
// request, including echo's central error handler output.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			res := c.Response()
			res.Before(func() {
				for _, kv := range corsHeaders {
					res.Header().Set(kv[0], kv[1])
				}
			})

			return next(c)
		}
	}
}
