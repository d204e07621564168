package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"pestops-bknd/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, issuer string) *JWTManager {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewJWTManagerFromKeys(key, &key.PublicKey, issuer)
}

func TestGenerateAndVerify(t *testing.T) {
	m := newTestManager(t, "pestops")

	pair, err := m.GenerateTokenPair("user-1", time.Minute, time.Hour, 3, "local", "supervisor")
	require.NoError(t, err)

	claims, err := m.VerifyToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "supervisor", claims.Role)
	assert.Equal(t, AccessToken, claims.Kind)
	assert.Equal(t, 3, claims.TokenVersion)

	refresh, err := m.VerifyToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, RefreshToken, refresh.Kind)
	assert.Equal(t, pair.JTI, refresh.JTI)
}

func TestVerifyToken_RejectsForeignIssuerAndKey(t *testing.T) {
	m := newTestManager(t, "pestops")
	other := newTestManager(t, "someone-else")

	pair, err := other.GenerateTokenPair("user-1", time.Minute, time.Hour, 0, "local", "agent")
	require.NoError(t, err)

	_, err = m.VerifyToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestHashToken_Stable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestCan(t *testing.T) {
	agent := Principal{UserID: "a1", Role: models.RoleAgent}
	supervisor := Principal{UserID: "s1", Role: models.RoleSupervisor}
	admin := Principal{UserID: "ad", Role: models.RoleAdmin}
	client := Principal{UserID: "c1", Role: models.RoleClient}

	tests := []struct {
		name string
		p    Principal
		a    Action
		r    Resource
		want bool
	}{
		{"agent syncs", agent, ActionSync, Resource{}, true},
		{"agent submits own", agent, ActionSubmitForAgent, Resource{OwnerID: "a1"}, true},
		{"agent submits for other", agent, ActionSubmitForAgent, Resource{OwnerID: "a2"}, false},
		{"agent cannot retire stations", agent, ActionSetStationStatus, Resource{}, false},
		{"supervisor submits for agent", supervisor, ActionSubmitForAgent, Resource{OwnerID: "a2"}, true},
		{"supervisor sets status", supervisor, ActionSetStationStatus, Resource{}, true},
		{"supervisor cannot manage users", supervisor, ActionManageUsers, Resource{}, false},
		{"admin manages users", admin, ActionManageUsers, Resource{}, true},
		{"client reads own site", client, ActionReadSites, Resource{OwnerID: "c1"}, true},
		{"client reads other site", client, ActionReadSites, Resource{OwnerID: "c2"}, false},
		{"client cannot sync", client, ActionSync, Resource{}, false},
		{"anonymous denied", Principal{Role: models.RoleAdmin}, ActionSync, Resource{}, false},
		{"unknown role denied", Principal{UserID: "x", Role: "intern"}, ActionReadSites, Resource{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.p, tt.a, tt.r))
		})
	}
}
