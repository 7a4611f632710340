package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope grants access to a class of diagnostics routes.
type Scope string

const (
	// ScopeOperator may trigger session actions such as reconfigure.
	ScopeOperator Scope = "operator"
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

// DefaultTTL is used when GenerateToken is given a non-positive ttl.
const DefaultTTL = 15 * time.Minute

// Sentinel errors.
var (
	// ErrTokenInvalid is returned for malformed, forged, or incomplete tokens.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("token has expired")

	// ErrWeakSecret is returned for signing secrets shorter than MinSecretLength.
	ErrWeakSecret = errors.New("signing secret too short")
)

// Claims are the JWT claims of an operator token.
type Claims struct {
	jwt.RegisteredClaims
	Scope Scope `json:"scope"`
}

// GenerateToken creates a signed token.
//
// Parameters:
//   - subject: Who the token is issued to, e.g. an operator name
//   - scope: Granted scope
//   - secret: HS256 signing secret, at least MinSecretLength bytes
//   - ttl: Token lifetime; DefaultTTL if not positive
//
// Returns:
//   - string: The signed token
//   - error: ErrWeakSecret, or a signing error
func GenerateToken(subject string, scope Scope, secret string, ttl time.Duration) (string, error) {
	if len(secret) < MinSecretLength {
		return "", ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: scope,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns its claims.
//
// Returns:
//   - *Claims: Validated claims
//   - error: ErrTokenExpired or ErrTokenInvalid
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Scope == "" {
		return nil, fmt.Errorf("%w: missing scope", ErrTokenInvalid)
	}
	return claims, nil
}
