package jwtutil

import (
	"testing"
	"time"

	"wallet-service/pkg/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	v := NewVerifier(secret, "wallet-service", "admin-panel")

	token, err := Mint(secret, "wallet-service", "admin-panel", "rev_42", "reviewer", time.Hour)
	require.NoError(t, err)

	claims, err := v.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "rev_42", claims.ReviewerID)
	assert.Equal(t, "reviewer", claims.Role)
}

func TestVerifierRejects(t *testing.T) {
	secret := []byte("s3cret")
	v := NewVerifier(secret, "wallet-service", "admin-panel")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := Mint([]byte("other"), "wallet-service", "admin-panel", "rev_42", "reviewer", time.Hour)
		require.NoError(t, err)
		_, err = v.ParseAndValidate(token)
		assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := Mint(secret, "someone-else", "admin-panel", "rev_42", "reviewer", time.Hour)
		require.NoError(t, err)
		_, err = v.ParseAndValidate(token)
		assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token, err := Mint(secret, "wallet-service", "public-site", "rev_42", "reviewer", time.Hour)
		require.NoError(t, err)
		_, err = v.ParseAndValidate(token)
		assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := Mint(secret, "wallet-service", "admin-panel", "rev_42", "reviewer", -time.Minute)
		require.NoError(t, err)
		_, err = v.ParseAndValidate(token)
		assert.ErrorIs(t, err, xerrors.ErrExpiredToken)
	})

	t.Run("missing reviewer id", func(t *testing.T) {
		token, err := Mint(secret, "wallet-service", "admin-panel", "", "reviewer", time.Hour)
		require.NoError(t, err)
		_, err = v.ParseAndValidate(token)
		assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.ParseAndValidate("not.a.token")
		assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
	})
}
