package jwtutil

import (
	"errors"
	"time"

	"wallet-service/pkg/xerrors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a reviewer access token.
type Claims struct {
	ReviewerID string `json:"rid"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates reviewer access tokens signed with a shared HMAC secret.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewVerifier(secret []byte, issuer, audience string) *Verifier {
	return &Verifier{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
	}
}

func (v *Verifier) ParseAndValidate(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	parser := jwt.NewParser(
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, xerrors.ErrExpiredToken
		}
		return nil, xerrors.ErrInvalidToken
	}
	if !token.Valid || claims.ReviewerID == "" {
		return nil, xerrors.ErrInvalidToken
	}
	return claims, nil
}

// Mint issues a reviewer access token. Used by the admin-identity
// collaborator and by tests.
func Mint(secret []byte, issuer, audience, reviewerID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ReviewerID: reviewerID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   reviewerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
