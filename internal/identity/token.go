package identity

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ctxCallbackClaims = "veritas_callback_claims"

// CallbackClaims are the JWT claims the attestation network attaches to
// completion callbacks.
type CallbackClaims struct {
	jwt.RegisteredClaims
	TaskID string `json:"task_id,omitempty"`
}

// NetworkTokenVerifier verifies HS256 bearer tokens signed with the shared
// callback secret agreed with the attestation network.
type NetworkTokenVerifier struct {
	secret []byte
	issuer string
}

// NewNetworkTokenVerifier creates a verifier for the shared secret.
// issuer, when non-empty, is required as the "iss" claim.
func NewNetworkTokenVerifier(secret, issuer string) *NetworkTokenVerifier {
	return &NetworkTokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Issue mints a signed callback token. Production tokens come from the
// network; this is used by tests and the send-callback helper.
func (v *NetworkTokenVerifier) Issue(taskID string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now().UTC()
	claims := CallbackClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   taskID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		TaskID: taskID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign callback token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a callback token, returning its claims.
func (v *NetworkTokenVerifier) Verify(tokenStr string) (*CallbackClaims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&CallbackClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return v.secret, nil
		},
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("verify callback token: %w", err)
	}

	claims, ok := token.Claims.(*CallbackClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid callback token claims")
	}
	return claims, nil
}

// RequireNetworkToken returns a Gin middleware that enforces a valid
// callback Bearer token. A nil verifier yields a no-op middleware, so an
// unconfigured secret leaves the route open (development mode).
//
// On success it injects the *CallbackClaims into the context under the
// "veritas_callback_claims" key.
func RequireNetworkToken(v *NetworkTokenVerifier) gin.HandlerFunc {
	if v == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := v.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxCallbackClaims, claims)
		c.Next()
	}
}

// CallbackClaimsFromCtx retrieves the claims injected by RequireNetworkToken.
// Returns nil if no token is present in the context.
func CallbackClaimsFromCtx(c *gin.Context) *CallbackClaims {
	v, _ := c.Get(ctxCallbackClaims)
	claims, _ := v.(*CallbackClaims)
	return claims
}
