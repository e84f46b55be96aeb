package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		token    func(t *testing.T) string
		expected bool
	}{
		{
			name:     "Empty token",
			token:    func(t *testing.T) string { return "" },
			expected: true,
		},
		{
			name:     "Garbage token",
			token:    func(t *testing.T) string { return "not.a.jwt" },
			expected: true,
		},
		{
			name: "Expiry in the future",
			token: func(t *testing.T) string {
				return signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
			},
			expected: false,
		},
		{
			name: "Expiry in the past",
			token: func(t *testing.T) string {
				return signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
			},
			expected: true,
		},
		{
			name: "Expiry exactly now",
			token: func(t *testing.T) string {
				return signedToken(t, jwt.MapClaims{"exp": now.Unix()})
			},
			expected: true,
		},
		{
			name: "No expiry claim",
			token: func(t *testing.T) string {
				return signedToken(t, jwt.MapClaims{"sub": "user-1"})
			},
			expected: false,
		},
		{
			name: "Malformed expiry claim",
			token: func(t *testing.T) string {
				return signedToken(t, jwt.MapClaims{"exp": "soon"})
			},
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := TokenExpired(tc.token(t), now)
			if got != tc.expected {
				t.Errorf("TokenExpired() = %v, want %v", got, tc.expected)
			}
		})
	}
}
