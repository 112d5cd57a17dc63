package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/akhilpenumudy/biodataahub/internal/models"
	appErrors "github.com/akhilpenumudy/biodataahub/pkg/errors"
	"github.com/akhilpenumudy/biodataahub/pkg/response"
)

// ContextUserKey is the gin context key storing session claims.
const ContextUserKey = "currentUser"

// SessionCookieName carries the access token for browser navigation.
const SessionCookieName = "session"

type sessionValidator interface {
	ValidateToken(token string) (*models.SessionClaims, error)
}

// GateConfig classifies the routes the session gate applies to.
// AuthPrefixes names the sign-in entry routes; session management
// endpoints like logout stay outside the gate.
type GateConfig struct {
	ProtectedPrefixes []string
	AuthPrefixes      []string
	LoginPath         string
	HomePath          string
}

// DefaultGateConfig matches the application's page routes.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ProtectedPrefixes: []string{"/dashboard", "/uploaddata"},
		AuthPrefixes:      []string{"/auth/login", "/auth/signup", "/auth/verify-email"},
		LoginPath:         "/auth/login",
		HomePath:          "/dashboard",
	}
}

// SessionGate redirects unauthenticated requests away from protected
// routes and authenticated requests away from auth routes. Paths
// outside the configured prefixes bypass the gate entirely. Any
// failure to resolve the session counts as no session.
func SessionGate(sessions sessionValidator, cfg GateConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		underAuth := false
		for _, prefix := range cfg.AuthPrefixes {
			if underPrefix(path, prefix) {
				underAuth = true
				break
			}
		}
		protected := false
		for _, prefix := range cfg.ProtectedPrefixes {
			if underPrefix(path, prefix) {
				protected = true
				break
			}
		}
		if !underAuth && !protected {
			c.Next()
			return
		}

		claims := resolveSession(c, sessions)

		if claims == nil && !underAuth {
			c.Redirect(http.StatusFound, cfg.LoginPath)
			c.Abort()
			return
		}
		if claims != nil && underAuth {
			c.Redirect(http.StatusFound, cfg.HomePath)
			c.Abort()
			return
		}
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

// RequireSession aborts with 401 when the gate did not attach claims.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserKey); !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalSession attaches claims when a valid session is present but
// never blocks or redirects. Used on routes outside the gate matcher.
func OptionalSession(sessions sessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := resolveSession(c, sessions); claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func resolveSession(c *gin.Context, sessions sessionValidator) *models.SessionClaims {
	if sessions == nil {
		return nil
	}
	token := bearerToken(c)
	if token == "" {
		if cookie, err := c.Cookie(SessionCookieName); err == nil {
			token = cookie
		}
	}
	if token == "" {
		return nil
	}
	claims, err := sessions.ValidateToken(token)
	if err != nil {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func underPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
