package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	actorKey       = "actor_id"
	identityHeader = "X-User-Id"
)

// AuthConfig controls how request identities are established
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	// AllowIdentityHeader trusts X-User-Id when no bearer token is sent
	AllowIdentityHeader bool
}

// Claims are the token claims the service reads
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator resolves the actor identity of a request
type Authenticator struct {
	config AuthConfig
}

// NewAuthenticator creates an Authenticator
func NewAuthenticator(config AuthConfig) *Authenticator {
	return &Authenticator{config: config}
}

// ParseToken validates an HS256 token and returns its claims
func (a *Authenticator) ParseToken(tokenStr string) (*Claims, error) {
	if a.config.JWTSecret == "" {
		return nil, errors.New("token authentication is not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.config.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Middleware sets the actor identity on the context. Requests without
// credentials continue anonymously; bad credentials are rejected.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				abortUnauthorized(c, "Authorization header format must be Bearer {token}")
				return
			}
			claims, err := a.ParseToken(parts[1])
			if err != nil {
				abortUnauthorized(c, "invalid token: "+err.Error())
				return
			}
			c.Set(actorKey, claims.Subject)
			c.Next()
			return
		}

		if a.config.AllowIdentityHeader {
			if id := strings.TrimSpace(c.GetHeader(identityHeader)); id != "" {
				c.Set(actorKey, id)
			}
		}
		c.Next()
	}
}

// ActorID returns the identity set by the auth middleware, or "" when anonymous
func ActorID(c *gin.Context) string {
	return c.GetString(actorKey)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Success: false, Error: msg})
}
