package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRoundTrip(t *testing.T) {
	m := NewTicketManager("secret", 5)
	ticket, expiresAt, err := m.Issue("abc123")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	claims, err := m.Verify(ticket)
	require.NoError(t, err)
	assert.Equal(t, "abc123", claims.ConversationID)
	assert.NotEmpty(t, claims.ID)
}

func TestVerify_Rejects(t *testing.T) {
	m := NewTicketManager("secret", 5)
	ticket, _, err := m.Issue("")
	require.NoError(t, err)

	_, err = NewTicketManager("other", 5).Verify(ticket)
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = m.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidTicket)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, TicketClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   ticketSubject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidTicket)

	wrongSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, TicketClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "access",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	signed, err = wrongSubject.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}
