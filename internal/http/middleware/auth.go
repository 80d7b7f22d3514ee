package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fitcoach-core/server/internal/http/response"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

// UserIDKey holds the authenticated user id in the gin context.
const UserIDKey = "user_id"

const codeUnauthorized = "UNAUTHORIZED"

type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// RequireAuth accepts an HS256 bearer token and takes the user id from its
// subject.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.RespondStatus(c, http.StatusUnauthorized, codeUnauthorized, "missing or invalid token")
			return
		}
		userID, err := am.subject(tokenString)
		if err != nil {
			logx.Debug().Err(err).Msg("bearer token rejected")
			response.RespondStatus(c, http.StatusUnauthorized, codeUnauthorized, "missing or invalid token")
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func (am *AuthMiddleware) subject(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// IssueToken signs a token for userID. Used by the CLI and tests.
func IssueToken(secret, userID string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// UserID returns the authenticated user id.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
