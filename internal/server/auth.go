package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/models"
)

const ownerKey = "owner_id"

// IssueToken signs an HS256 token whose subject is the owner id.
func IssueToken(secret, ownerID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return "", err
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies tokenString and returns its subject.
func ParseToken(secret, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if err := models.ValidateOwnerID(claims.Subject); err != nil {
		return "", fmt.Errorf("token subject: %w", err)
	}
	return claims.Subject, nil
}

// RequireAuth resolves the bearer token into the owner id every handler
// scopes its reads and writes by.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		ownerID, err := ParseToken(secret, tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("Rejected token")
			RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("could not validate credentials"))
			return
		}
		c.Set(ownerKey, ownerID)
		c.Next()
	}
}

// EventSource clients cannot set headers, so the stream endpoint also accepts
// ?token=.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return c.Query("token")
}

func OwnerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}
