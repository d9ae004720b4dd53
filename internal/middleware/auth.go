package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the gin context key holding the authenticated user's id as an int.
const UserIDKey = "user_id"

const tokenTTL = 72 * time.Hour

// IssueToken signs an HS256 token for the user.
func IssueToken(secret []byte, userID int, username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString(secret)
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authenticate(c, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the user when a valid token is present
// and lets anonymous requests through otherwise.
func OptionalAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := authenticate(c, secret); err == nil {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	}
}

var errNoToken = errors.New("missing bearer token")

func authenticate(c *gin.Context, secret []byte) (int, error) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return 0, errNoToken
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid token claims")
	}
	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return 0, errors.New("invalid user_id claim")
	}
	return int(id), nil
}
