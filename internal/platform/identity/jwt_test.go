package identity

import (
	"context"
	"testing"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/adapters/memory"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newResolver(t *testing.T) (*JWTResolver, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SetAgent("admin", "admin", true)
	store.SetAgent("agent-1", "helper", false)
	resolver, err := NewJWTResolver(testSecret, store)
	require.NoError(t, err)
	return resolver, store
}

func TestResolveParticipantFromDirectory(t *testing.T) {
	resolver, _ := newResolver(t)

	token, err := Issue(testSecret, "admin", time.Hour, time.Now())
	require.NoError(t, err)

	participant, err := resolver.ResolveParticipant(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "admin", participant.ID)
	assert.True(t, participant.IsAdmin)
	assert.False(t, participant.IsBanned)
}

func TestResolveParticipantRejectsBadTokens(t *testing.T) {
	resolver, _ := newResolver(t)
	ctx := context.Background()

	expired, err := Issue(testSecret, "agent-1", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	wrongKey, err := Issue("other-secret", "agent-1", time.Hour, time.Now())
	require.NoError(t, err)
	unknown, err := Issue(testSecret, "ghost", time.Hour, time.Now())
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-jwt",
		"expired":   expired,
		"wrong key": wrongKey,
		"unknown":   unknown,
		"alg none":  none,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := resolver.ResolveParticipant(ctx, token)
			require.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
		})
	}
}

func TestResolveParticipantReadsBanState(t *testing.T) {
	resolver, store := newResolver(t)
	ctx := context.Background()

	_, err := store.UpsertBan(ctx, bannedAgent("agent-1"), nil)
	require.NoError(t, err)

	token, err := Issue(testSecret, "agent-1", time.Hour, time.Now())
	require.NoError(t, err)
	participant, err := resolver.ResolveParticipant(ctx, token)
	require.NoError(t, err)
	assert.True(t, participant.IsBanned)
	assert.False(t, participant.CanMutate())
}

func TestConstructorValidation(t *testing.T) {
	_, err := NewJWTResolver("", memory.NewStore())
	require.Error(t, err)
	_, err = NewJWTResolver(testSecret, nil)
	require.Error(t, err)
	_, err = Issue(testSecret, "", time.Hour, time.Now())
	require.Error(t, err)
}

func bannedAgent(id string) entities.BannedAgent {
	return entities.BannedAgent{AgentID: id, Reason: "spam", BannedBy: "admin", BannedAt: time.Now().UTC()}
}
