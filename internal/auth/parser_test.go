package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/lease-contracts/internal/model"
)

func TestParseRoundTrip(t *testing.T) {
	p := NewParser("secret")
	agency := int64(12)
	tok, err := p.Sign(model.Principal{UserID: 7, Role: model.RoleAgencyManager, AgencyID: &agency}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	principal, err := p.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), principal.UserID)
	assert.Equal(t, model.RoleAgencyManager, principal.Role)
	require.NotNil(t, principal.AgencyID)
	assert.Equal(t, agency, *principal.AgencyID)
}

func TestParseRejectsBadTokens(t *testing.T) {
	p := NewParser("secret")

	expired, err := p.Sign(model.Principal{UserID: 7, Role: model.RoleTenant}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = p.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewParser("other").Sign(model.Principal{UserID: 7, Role: model.RoleTenant}, jwt.RegisteredClaims{})
	require.NoError(t, err)
	_, err = p.Parse(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, err := p.Sign(model.Principal{Role: model.RoleTenant}, jwt.RegisteredClaims{})
	require.NoError(t, err)
	_, err = p.Parse(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
