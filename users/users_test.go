package users_test

import (
	"encoding/json"
	"testing"

	"github.com/kiddiebus/kiddiebus-client/internal/utils"
	"github.com/kiddiebus/kiddiebus-client/users"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Run("known roles", func(t *testing.T) {
		for _, s := range []string{"parent", "operator", "admin", "Operator"} {
			_, err := users.ParseRole(s)
			require.NoError(t, err, s)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := users.ParseRole("driver")
		require.Error(t, err)
		require.Contains(t, err.Error(), "unknown role")
	})
}

func TestRoleSet(t *testing.T) {
	set := users.Roles(users.RoleAdmin, users.RoleOperator)

	require.True(t, set.Contains(users.RoleOperator))
	require.False(t, set.Contains(users.RoleParent))
	require.Equal(t, []users.RoleType{users.RoleOperator, users.RoleAdmin}, set.Slice())
	require.Equal(t, "[operator, admin]", set.String())

	var unrestricted users.RoleSet
	require.False(t, unrestricted.Contains(users.RoleAdmin))
}

func TestUser_RolePredicates(t *testing.T) {
	admin := &users.User{Role: users.RoleAdmin}
	operator := &users.User{Role: users.RoleOperator}
	parent := &users.User{Role: users.RoleParent}
	var nobody *users.User

	require.True(t, admin.IsOperator())
	require.True(t, admin.IsAdmin())
	require.True(t, operator.IsOperator())
	require.False(t, operator.IsAdmin())
	require.True(t, parent.IsParent())
	require.False(t, parent.IsOperator())
	require.False(t, nobody.IsOperator())
	require.False(t, nobody.IsParent())
}

func TestUser_DecodesServerPayload(t *testing.T) {
	payload := `{"id": 4, "email": "op@example.com", "first_name": "Olive", "last_name": "Brown", "role": "operator", "is_active": true}`

	var u users.User
	require.NoError(t, json.Unmarshal([]byte(payload), &u))
	require.Equal(t, 4, u.ID)
	require.Equal(t, users.RoleOperator, u.Role)
	require.Equal(t, "Olive Brown", u.FullName())
}

func TestRegistration_Validate(t *testing.T) {
	valid := users.Registration{
		Email:     "parent@example.com",
		Password:  "Secret123",
		FirstName: "Pat",
		LastName:  "Lee",
		Role:      users.RoleParent,
	}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.LastName = " "
	err := missing.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "last_name is required")

	badRole := valid
	badRole.Role = "driver"
	require.Error(t, badRole.Validate())
}

func TestProfileUpdate_Empty(t *testing.T) {
	require.True(t, users.ProfileUpdate{}.Empty())
	require.False(t, users.ProfileUpdate{Phone: utils.Ptr("555-0100")}.Empty())

	body, err := json.Marshal(users.ProfileUpdate{FirstName: utils.Ptr("Sam")})
	require.NoError(t, err)
	require.JSONEq(t, `{"first_name": "Sam"}`, string(body))
}
