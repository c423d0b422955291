package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmerrifield20/postledger/internal/postledger"
)

const tokenTypeCaller = "caller"

// CallerClaims are the JWT claims of a caller token.
type CallerClaims struct {
	jwt.RegisteredClaims
	Address postledger.Address `json:"address"`
	Type    string             `json:"type"`
}

// CallerTokenIssuer issues and verifies caller tokens signed with HS256.
type CallerTokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewCallerTokenIssuer creates a CallerTokenIssuer.
//
//	secret: shared HMAC key; must be non-empty.
//	issuer: the "iss" claim value, normally the ledgerd base URL.
//	ttl: token lifetime (default: 24 hours).
func NewCallerTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*CallerTokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("caller token secret must not be empty")
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &CallerTokenIssuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue creates a signed caller token for subject. The author address is
// derived from the subject and embedded in the token.
func (i *CallerTokenIssuer) Issue(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("subject must not be empty")
	}
	now := time.Now().UTC()
	claims := CallerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
		Address: AddressFromSubject(subject),
		Type:    tokenTypeCaller,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign caller token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a caller token, returning its claims.
// The address claim must match the subject, so a token cannot be edited to
// post under someone else's address without re-signing.
func (i *CallerTokenIssuer) Verify(tokenStr string) (*CallerClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&CallerClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify caller token: %w", err)
	}
	claims, ok := token.Claims.(*CallerClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid caller token claims")
	}
	if claims.Type != tokenTypeCaller {
		return nil, fmt.Errorf("not a caller token")
	}
	if claims.Address != AddressFromSubject(claims.Subject) {
		return nil, fmt.Errorf("address claim does not match subject")
	}
	return claims, nil
}
