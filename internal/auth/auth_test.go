package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer("test-secret", "ai-fitness-coach", time.Hour)
	require.NoError(t, err)
	return i
}

func TestIssueAndVerify(t *testing.T) {
	i := newTestIssuer(t)

	token, err := i.Issue("subj-1", RoleClient)
	require.NoError(t, err)

	claims, err := i.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, RoleClient, claims.Role)
	assert.Equal(t, "subj-1", claims.Subject)
	assert.True(t, claims.CanAccess("subj-1"))
	assert.False(t, claims.CanAccess("subj-2"))

	coach, err := i.Issue("", RoleCoach)
	require.NoError(t, err)
	claims, err = i.Verify(coach)
	require.NoError(t, err)
	assert.True(t, claims.CanAccess("anyone"))
}

func TestIssue_Rejects(t *testing.T) {
	i := newTestIssuer(t)

	_, err := i.Issue("subj-1", Role("owner"))
	assert.Error(t, err)
	_, err = i.Issue("", RoleClient)
	assert.Error(t, err)

	_, err = NewIssuer("", "aud", time.Hour)
	assert.EqualError(t, err, "JWT_SECRET environment variable not set")
}

func TestVerify_Failures(t *testing.T) {
	i := newTestIssuer(t)
	token, err := i.Issue("subj-1", RoleClient)
	require.NoError(t, err)

	tests := []struct {
		name   string
		issuer func() *Issuer
		token  string
	}{
		{
			name:   "wrong secret",
			issuer: func() *Issuer { o, _ := NewIssuer("other", "ai-fitness-coach", time.Hour); return o },
			token:  token,
		},
		{
			name:   "wrong audience",
			issuer: func() *Issuer { o, _ := NewIssuer("test-secret", "someone-else", time.Hour); return o },
			token:  token,
		},
		{
			name: "expired",
			issuer: func() *Issuer {
				o := newTestIssuer(t)
				o.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
				return o
			},
			token: token,
		},
		{
			name:   "garbage",
			issuer: func() *Issuer { return i },
			token:  "not-a-token",
		},
		{
			name:   "unsigned",
			issuer: func() *Issuer { return i },
			token: func() string {
				s, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				return s
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.issuer().Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
