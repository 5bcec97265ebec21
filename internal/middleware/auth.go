package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"retailpos/internal/model"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorKey = "actor"

var errInvalidClaims = errors.New("invalid token claims")

// Claims carries the actor of every core call. The token is issued by the
// identity service; this process only verifies it.
type Claims struct {
	BranchID string `json:"branch_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HMAC-signed access tokens.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Issue signs a token for actor. Used by tooling and tests.
func (a *Authenticator) Issue(actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		BranchID: actor.BranchID.String(),
		Role:     actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseActor validates tokenString and returns the actor it names.
func (a *Authenticator) ParseActor(tokenString string) (model.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return model.Actor{}, err
	}
	if !token.Valid {
		return model.Actor{}, errInvalidClaims
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Actor{}, errInvalidClaims
	}
	branchID, err := uuid.Parse(claims.BranchID)
	if err != nil {
		return model.Actor{}, errInvalidClaims
	}
	if claims.Role == "" {
		return model.Actor{}, errInvalidClaims
	}

	return model.Actor{UserID: userID, BranchID: branchID, Role: claims.Role}, nil
}

// RequireRole validates the token and checks the caller's role against
// allowedRoles. An empty list admits any authenticated caller.
func (a *Authenticator) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		actor, err := a.ParseActor(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		if len(allowedRoles) > 0 && !slices.Contains(allowedRoles, actor.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFromContext returns the actor stored by RequireRole.
func ActorFromContext(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}
