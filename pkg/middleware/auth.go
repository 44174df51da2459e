package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingIdentity = errors.New("missing caller identity")
	errInvalidToken    = errors.New("invalid bearer token")
)

const (
	// ContextKeyAccount is the gin context key holding the caller's
	// account identity.
	ContextKeyAccount = "account"

	// AccountHeader is the fallback identity header used when no JWT
	// secret is configured (load testing, local development).
	AccountHeader = "X-Account"
)

// AccountAuthConfig holds configuration for the account auth middleware
type AccountAuthConfig struct {
	// Secret verifies HS256 bearer tokens. When empty, identity is
	// taken from the X-Account header instead.
	Secret string
	// Issuer, when set, is required to match the token "iss" claim.
	Issuer string
}

// AccountAuth extracts the caller's account identity. Identity
// management itself is external: this middleware only carries the
// wallet-issued identity into the request context.
func AccountAuth(cfg *AccountAuthConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = &AccountAuthConfig{}
	}

	return func(c *gin.Context) {
		account, err := resolveAccount(c, cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
				"code":  "UNAUTHENTICATED",
			})
			return
		}
		c.Set(ContextKeyAccount, account)
		c.Next()
	}
}

// GetAccount returns the caller account stored by AccountAuth.
func GetAccount(c *gin.Context) (string, bool) {
	account := c.GetString(ContextKeyAccount)
	return account, account != ""
}

func resolveAccount(c *gin.Context, cfg *AccountAuthConfig) (string, error) {
	auth := c.GetHeader("Authorization")

	if cfg.Secret == "" {
		account := c.GetHeader(AccountHeader)
		if account == "" {
			return "", errMissingIdentity
		}
		return account, nil
	}

	if !strings.HasPrefix(auth, "Bearer ") {
		return "", errMissingIdentity
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return "", errInvalidToken
	}
	if claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}
