package authorization

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	contextUserIDKey       = "current_user_id"
	contextSessionTokenKey = "session_token"
)

// Guard gates requests on a valid logged-in session.
type Guard struct {
	sessions SessionStore
}

// NewGuard builds a guard over the given session store.
func NewGuard(sessions SessionStore) *Guard {
	if sessions == nil {
		return nil
	}
	return &Guard{sessions: sessions}
}

// Guard returns the guard backed by the module's session store.
func (m *Module) Guard() *Guard {
	if m == nil {
		return nil
	}
	return NewGuard(m.sessions)
}

// RequireAuthenticated rejects requests whose session cookie does not resolve
// to a logged-in session carrying a user id.
func (g *Guard) RequireAuthenticated() gin.HandlerFunc {
	if g == nil || g.sessions == nil {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		}
	}

	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		session, err := g.sessions.Get(c.Request.Context(), token)
		if err != nil || !session.LoggedIn || session.UserID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		c.Set(contextUserIDKey, session.UserID)
		c.Set(contextSessionTokenKey, token)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's id set by the guard.
func CurrentUserID(c *gin.Context) uint64 {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0
	}
	id, _ := value.(uint64)
	return id
}

// CurrentSessionToken returns the session token set by the guard.
func CurrentSessionToken(c *gin.Context) string {
	value, ok := c.Get(contextSessionTokenKey)
	if !ok {
		return ""
	}
	token, _ := value.(string)
	return token
}
