package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "bulwark/pkg/domain-errors"
)

// Claims are the access-token claims the admission layer cares about:
// the subject identifies the actor whose per-user limits apply.
type Claims struct {
	DeviceID string `json:"did,omitempty"`
	jwt.RegisteredClaims
}

// HMACVerifier validates HS256 access tokens issued by the upstream identity
// service. The admission layer only needs the subject; it never issues
// tokens in production.
type HMACVerifier struct {
	key    []byte
	issuer string
}

// NewHMACVerifier builds a verifier. An empty issuer skips the issuer check.
func NewHMACVerifier(signingKey, issuer string) *HMACVerifier {
	return &HMACVerifier{key: []byte(signingKey), issuer: issuer}
}

// ValidateToken parses and verifies tokenString.
func (v *HMACVerifier) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Issue signs a token for subject. Used by the admin CLI and tests to mint
// tokens that match the verifier's expectations.
func (v *HMACVerifier) Issue(subject, deviceID string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(v.key)
}
