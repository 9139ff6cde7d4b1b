package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// MinSecretLength is the minimum HMAC key size accepted for HS256.
const MinSecretLength = 32

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWeakSecret   = errors.New("jwt secret must be at least 32 bytes")
)

// Claims are the identity token claims. Subject carries the username and ID
// the session identifier.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 identity tokens.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer returns an Issuer bound to secret and the iss claim value.
func NewIssuer(secret, issuer string) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for session.
func (i *Issuer) Issue(s domain.Session) (string, error) {
	claims := Claims{
		Role: string(s.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   s.Username,
			ID:        s.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			NotBefore: jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks algorithm, signature, issuer and expiry and returns the
// identity carried by the token.
func (i *Issuer) Verify(raw string) (domain.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return domain.Anonymous, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	role := domain.Role(claims.Role)
	if claims.Subject == "" || claims.ID == "" || !role.Valid() {
		return domain.Anonymous, fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}

	return domain.Identity{
		Username:  claims.Subject,
		Role:      role,
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
