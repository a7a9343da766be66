// Package auth verifies the signed identity tokens presented at the
// WebSocket handshake and on API requests. Tokens are HMAC-signed JWTs
// issued by the main application; this service only verifies them.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is the decoded identity bound to a connection for its lifetime.
type Claims struct {
	UserID   int64
	Username string
}

// Verifier validates tokens against the server-held secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token string. It rejects non-HMAC signing
// methods, bad signatures, expired tokens, and tokens without an integer
// userId claim.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	// Numeric JSON claims decode as float64.
	rawID, ok := mapClaims["userId"].(float64)
	if !ok || rawID <= 0 {
		return nil, fmt.Errorf("token missing userId claim")
	}

	username, _ := mapClaims["username"].(string)

	return &Claims{UserID: int64(rawID), Username: username}, nil
}

// Issue signs a token for the given identity. Used by the token CLI and by
// tests; the production issuer lives in the main application.
func (v *Verifier) Issue(userID int64, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":   userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
