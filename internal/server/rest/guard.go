package rest

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Guard checks bearer identity tokens on protected routes. Every predicate
// fails closed: a token that is absent or fails verification is 401 before
// any role or ownership check runs.
type Guard struct {
	secret []byte
	resp   *responder
}

func NewGuard(secretKey string, resp *responder) *Guard {
	return &Guard{secret: []byte(secretKey), resp: resp}
}

func (g *Guard) authenticate(c *gin.Context) (auth.Identity, bool) {
	header := c.GetHeader(common.AuthorizationHeaderName)
	if header == "" {
		g.resp.fail(c, fmt.Errorf("no token provided: %w", common.ErrUnauthorized))
		return auth.Identity{}, false
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) || strings.TrimSpace(token) == "" {
		g.resp.fail(c, fmt.Errorf("malformed authorization header: %w", common.ErrUnauthorized))
		return auth.Identity{}, false
	}

	id, err := auth.ParseIdentityToken(strings.TrimSpace(token), g.secret)
	if err != nil {
		g.resp.fail(c, err)
		return auth.Identity{}, false
	}

	c.Set(identityKey, id)
	return id, true
}

// require authenticates and then applies allow; a false result is 403.
func (g *Guard) require(allow func(c *gin.Context, id auth.Identity) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := g.authenticate(c)
		if !ok {
			return
		}
		if !allow(c, id) {
			g.resp.fail(c, common.ErrForbidden)
			return
		}
		c.Next()
	}
}

// Authenticated admits any caller with a valid token.
func (g *Guard) Authenticated() gin.HandlerFunc {
	return g.require(func(*gin.Context, auth.Identity) bool { return true })
}

// AdminOnly admits admins.
func (g *Guard) AdminOnly() gin.HandlerFunc {
	return g.require(func(_ *gin.Context, id auth.Identity) bool { return id.IsAdmin() })
}

// SelfOnly admits the user whose id is in the path parameter param.
func (g *Guard) SelfOnly(param string) gin.HandlerFunc {
	return g.require(func(c *gin.Context, id auth.Identity) bool { return id.UserID == c.Param(param) })
}

// SelfOrAdmin admits the user named by param, or any admin.
func (g *Guard) SelfOrAdmin(param string) gin.HandlerFunc {
	return g.require(func(c *gin.Context, id auth.Identity) bool {
		return id.IsAdmin() || id.UserID == c.Param(param)
	})
}

// identity returns the caller attached by the guard. Handlers are only
// mounted behind a guard, so a missing identity is a wiring bug.
func identity(c *gin.Context) auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		panic("rest: handler mounted without a guard")
	}
	return v.(auth.Identity)
}
