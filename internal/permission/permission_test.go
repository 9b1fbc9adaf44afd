package permission

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophBank/internal/models"
)

func TestHasCapability_MirrorsStoredFlags(t *testing.T) {
	caps := []Capability{
		CanViewPasswords, CanAddPasswords, CanEditPasswords, CanDeletePasswords,
		CanManageUsers, CanManageRoles, CanManageSettings, CanChangePermissions, CanViewAll,
	}
	for _, c := range caps {
		for _, flag := range []bool{true, false} {
			role := &models.Role{Permissions: permissionsWith(c, flag)}
			assert.Equal(t, flag, HasCapability(role, c), "capability %s flag %v", c, flag)
		}
	}
}

func TestHasCapability_NilRoleAndUnknown(t *testing.T) {
	assert.False(t, HasCapability(nil, CanAddPasswords))

	full := &models.Role{Permissions: models.FullPermissions()}
	assert.False(t, HasCapability(full, Capability("canLaunchRockets")))
}

func TestViewScope(t *testing.T) {
	t.Run("view all ignores categories", func(t *testing.T) {
		role := &models.Role{Permissions: models.Permissions{
			CanViewPasswords: true,
			CanViewAll:       true,
			ViewCategories:   []string{"Work"},
		}}
		s := ViewScope(role)
		assert.True(t, s.IsAll())
		assert.True(t, s.Allows("Personal"))
		assert.Nil(t, s.CategoryList())
	})

	t.Run("categories", func(t *testing.T) {
		role := &models.Role{Permissions: models.Permissions{
			CanViewPasswords: true,
			ViewCategories:   []string{"Work", "Infra", "Work"},
		}}
		s := ViewScope(role)
		assert.False(t, s.IsAll())
		assert.False(t, s.IsEmpty())
		assert.True(t, s.Allows("Work"))
		assert.False(t, s.Allows("Personal"))
		assert.Equal(t, []string{"Work", "Infra"}, s.CategoryList())
	})

	t.Run("empty categories see nothing", func(t *testing.T) {
		role := &models.Role{Permissions: models.Permissions{CanViewPasswords: true}}
		s := ViewScope(role)
		assert.True(t, s.IsEmpty())
		assert.False(t, s.Allows(models.DefaultCategory))
	})

	t.Run("nil role sees nothing", func(t *testing.T) {
		assert.True(t, ViewScope(nil).IsEmpty())
	})
}

func TestScopeFilter(t *testing.T) {
	entries := []models.Password{
		{ID: "1", Category: "Work"},
		{ID: "2", Category: "Personal"},
		{ID: "3", Category: "Work"},
	}

	assert.Len(t, All().Filter(entries), 3)

	work := Categories("Work").Filter(entries)
	require.Len(t, work, 2)
	assert.Equal(t, "1", work[0].ID)
	assert.Equal(t, "3", work[1].ID)

	assert.Empty(t, Categories().Filter(entries))
}

func TestEffectiveRole(t *testing.T) {
	bank := &models.Bank{
		ID:      "b1",
		OwnerID: "u1",
		Members: []models.Member{{UserID: "u1", RoleID: "r1"}, {UserID: "u2", RoleID: "gone"}},
		Roles:   []string{"r1"},
	}
	roles := []models.Role{{ID: "r1", Name: models.TopLevelRoleName, Permissions: models.FullPermissions()}}

	role, err := EffectiveRole(bank, roles, "u1")
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.Equal(t, "r1", role.ID)

	role, err = EffectiveRole(bank, roles, "u2")
	require.NoError(t, err)
	assert.Nil(t, role)
	assert.False(t, HasCapability(role, CanViewPasswords))

	_, err = EffectiveRole(bank, roles, "stranger")
	assert.True(t, errors.Is(err, ErrNotAMember))

	_, err = EffectiveRole(nil, roles, "u1")
	assert.True(t, errors.Is(err, ErrNotAMember))
}

func TestIsOwner(t *testing.T) {
	bank := &models.Bank{OwnerID: "u1"}
	assert.True(t, IsOwner(bank, "u1"))
	assert.False(t, IsOwner(bank, "u2"))
	assert.False(t, IsOwner(bank, ""))
	assert.False(t, IsOwner(nil, "u1"))
}

func permissionsWith(c Capability, v bool) models.Permissions {
	var p models.Permissions
	switch c {
	case CanViewPasswords:
		p.CanViewPasswords = v
	case CanAddPasswords:
		p.CanAddPasswords = v
	case CanEditPasswords:
		p.CanEditPasswords = v
	case CanDeletePasswords:
		p.CanDeletePasswords = v
	case CanManageUsers:
		p.CanManageUsers = v
	case CanManageRoles:
		p.CanManageRoles = v
	case CanManageSettings:
		p.CanManageSettings = v
	case CanChangePermissions:
		p.CanChangePermissions = v
	case CanViewAll:
		p.CanViewAll = v
	}
	return p
}
