package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"Encyclopedia/internal/domain"
)

const actorKey = "actor"

// Claims carries the caller identity; Subject holds the user id.
type Claims struct {
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens.
type TokenVerifier struct {
	Secret []byte
	Issuer string
}

// Issue signs a token for actor valid for ttl.
func (v TokenVerifier) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: actor.Name,
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    v.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

// Parse returns the actor encoded in a signed token.
func (v TokenVerifier) Parse(raw string) (domain.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, err
	}
	if claims.Subject == "" {
		return domain.Actor{}, errors.New("token has no subject")
	}
	return domain.Actor{ID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid bearer token.
func (v TokenVerifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" || len(v.Secret) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		actor, err := v.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(domain.Actor); ok {
			return actor
		}
	}
	return domain.Actor{}
}
