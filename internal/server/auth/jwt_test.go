package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brooklin-io/taskassign/pkg/config"
)

func TestManager_IssueThenValidate(t *testing.T) {
	m, err := NewManager(config.JWTConfig{SecretKey: "test-secret", ExpiryHours: 1, Issuer: "taskassign"})
	require.NoError(t, err)

	token, err := m.Issue("alice", []string{RoleOperator})
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, []string{RoleOperator}, claims.Roles)
}

func TestManager_RejectsTokenFromDifferentSecret(t *testing.T) {
	m1, err := NewManager(config.JWTConfig{SecretKey: "secret-one"})
	require.NoError(t, err)
	m2, err := NewManager(config.JWTConfig{SecretKey: "secret-two"})
	require.NoError(t, err)

	token, err := m1.Issue("alice", nil)
	require.NoError(t, err)

	_, err = m2.Validate(token)
	assert.Error(t, err)
}

func TestManager_EmptySecretRejected(t *testing.T) {
	_, err := NewManager(config.JWTConfig{})
	assert.Error(t, err)
}
