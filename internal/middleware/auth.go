package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/h4ks-com/fieldops/internal/services"
)

const (
	actorKey    = "actor"
	usernameKey = "username"
)

type AuthMiddleware struct {
	tokenService   *services.TokenService
	catalogService *services.CatalogService
	testMode       bool
}

func NewAuthMiddleware(tokenService *services.TokenService, catalogService *services.CatalogService, testMode bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService:   tokenService,
		catalogService: catalogService,
		testMode:       testMode,
	}
}

// RequireAuth resolves the caller to an active user and stores it as the
// request's actor. In test mode the X-Test-Username header names the user.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.testMode {
			username := c.GetHeader("X-Test-Username")
			if username == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-Test-Username header required in test mode"})
				return
			}
			user, err := m.catalogService.FindUserByUsername(username)
			if err != nil {
				if errors.Is(err, services.ErrNotFound) {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if !user.Active {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user is inactive"})
				return
			}
			setUser(c, user)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		user, err := m.tokenService.Authenticate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		setUser(c, user)
		c.Next()
	}
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(usernameKey, user.Username)
	c.Set(actorKey, services.ActorFromUser(user))
}

func GetUsername(c *gin.Context) string {
	username, exists := c.Get(usernameKey)
	if !exists {
		return ""
	}
	return username.(string)
}

// GetActor returns the authenticated actor; ok is false on unauthenticated routes.
func GetActor(c *gin.Context) (services.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return services.Actor{}, false
	}
	actor, ok := v.(services.Actor)
	return actor, ok
}
