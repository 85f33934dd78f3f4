package httpkit

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"lead_scoring_backend/platform/config"
	"lead_scoring_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// ContextUserIDKey is the gin context key for the authenticated user ID.
	ContextUserIDKey = "userID"
	// ContextRolesKey is the gin context key for the user's roles.
	ContextRolesKey = "roles"

	// RoleAdmin unlocks the scoring maintenance endpoints.
	RoleAdmin = "admin"

	tokenTypeAccess = "access"
	bearerPrefix    = "Bearer "

	errMissingToken = "missing token"
	errInvalidToken = "invalid token"
)

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// accessClaims is the token body issued by the identity service. Roles is
// either a list or a single string.
type accessClaims struct {
	jwt.RegisteredClaims
	Type  string `json:"type"`
	Roles any    `json:"roles"`
}

// Identity is the caller behind an authenticated request.
type Identity struct {
	UserID uuid.UUID
	Roles  []string
}

func (i Identity) HasRole(role string) bool { return slices.Contains(i.Roles, role) }

// GetIdentity reads what AuthRequired stored. ok is false for requests that
// did not pass through it.
func GetIdentity(c *gin.Context) (Identity, bool) {
	raw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return Identity{}, false
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return Identity{}, false
	}
	return Identity{UserID: userID, Roles: c.GetStringSlice(ContextRolesKey)}, true
}

// ActorLabel names the caller in logs.
func ActorLabel(c *gin.Context) string {
	id, ok := GetIdentity(c)
	if !ok {
		return "anonymous"
	}
	return id.UserID.String()
}

// AuthRequired accepts HMAC-signed access tokens from the Authorization
// header. Refresh tokens and tokens without an expiry are rejected.
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) || strings.TrimSpace(header[len(bearerPrefix):]) == "" {
			abortUnauthorized(c, errMissingToken)
			return
		}

		id, err := verifyAccessToken(strings.TrimSpace(header[len(bearerPrefix):]), []byte(cfg.GetJWTAccessSecret()))
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		c.Set(ContextUserIDKey, id.UserID)
		c.Set(ContextRolesKey, id.Roles)
		ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, id.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func verifyAccessToken(raw string, secret []byte) (Identity, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods(hmacMethods), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, err
	}
	if claims.Type != tokenTypeAccess {
		return Identity{}, errors.New("not an access token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: userID, Roles: rolesFromClaim(claims.Roles)}, nil
}

func rolesFromClaim(value any) []string {
	switch typed := value.(type) {
	case string:
		if typed == "" {
			return nil
		}
		return []string{typed}
	case []any:
		roles := make([]string, 0, len(typed))
		for _, item := range typed {
			if role, ok := item.(string); ok {
				roles = append(roles, role)
			}
		}
		return roles
	}
	return nil
}

// RequireRole lets through callers holding role and answers 403 otherwise.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok || !id.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody(c, "forbidden", nil))
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(c, message, nil))
}
