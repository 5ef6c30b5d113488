package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type openController struct{}

func (openController) Authorized(ctx context.Context, access ...Access) (context.Context, error) {
	return WithUser(ctx, UserInfo{Name: "anonymous", Roles: []string{RoleAdmin}}), nil
}

func TestRegister(t *testing.T) {
	require.NoError(t, Register("auth-test", func(map[string]any) (AccessController, error) {
		return openController{}, nil
	}))
	require.Error(t, Register("auth-test", nil))

	ac, err := GetAccessController("auth-test", nil)
	require.NoError(t, err)

	ctx, err := ac.Authorized(context.Background())
	require.NoError(t, err)
	require.Equal(t, "anonymous", ctx.Value(UserNameKey))
	require.True(t, ctx.Value(UserKey).(UserInfo).HasRole(RoleAdmin))

	_, err = GetAccessController("auth-missing", nil)
	require.Error(t, err)
}

func TestUserInfoHasRole(t *testing.T) {
	require.False(t, UserInfo{Name: "bob"}.HasRole(RoleAdmin))
	require.True(t, UserInfo{Name: "alice", Roles: []string{"viewer", RoleAdmin}}.HasRole(RoleAdmin))
}
