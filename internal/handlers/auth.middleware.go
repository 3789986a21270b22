package handlers

import (
	"crypto/subtle"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/whatsapp-inbox/pkg/http"
)

// RouteGroup is what the admin registrars need from a router group.
// *router.Group satisfies it directly; AdminGroup wraps one with auth.
type RouteGroup interface {
	GET(path string, handler xhttp.RequestHandler)
	POST(path string, handler xhttp.RequestHandler)
	PATCH(path string, handler xhttp.RequestHandler)
	DELETE(path string, handler xhttp.RequestHandler)
}

// AdminAuth guards one route with the shared X-Admin-Token header.
// An empty configured token locks the route entirely.
func AdminAuth(token string, next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		got := ctx.Request.Header.Peek("X-Admin-Token")
		if token == "" || subtle.ConstantTimeCompare(got, []byte(token)) != 1 {
			writeError(ctx, xhttp.StatusUnauthorized, "invalid admin token")
			return
		}
		next(ctx)
	}
}

type adminGroup struct {
	g     *router.Group
	token string
}

// NewAdminGroup wraps a router group so every route registered on it passes
// through AdminAuth first.
func NewAdminGroup(g *router.Group, token string) RouteGroup {
	return &adminGroup{g: g, token: token}
}

func (a *adminGroup) GET(path string, handler xhttp.RequestHandler) {
	a.g.GET(path, AdminAuth(a.token, handler))
}

func (a *adminGroup) POST(path string, handler xhttp.RequestHandler) {
	a.g.POST(path, AdminAuth(a.token, handler))
}

func (a *adminGroup) PATCH(path string, handler xhttp.RequestHandler) {
	a.g.PATCH(path, AdminAuth(a.token, handler))
}

func (a *adminGroup) DELETE(path string, handler xhttp.RequestHandler) {
	a.g.DELETE(path, AdminAuth(a.token, handler))
}
