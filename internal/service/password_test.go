package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophBank/internal/apperr"
	"github.com/atinyakov/GophBank/internal/models"
)

func TestOwnerSeesOwnEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")

	created, err := f.passwords.Create(ctx, bank.ID, u1, models.PasswordInput{
		Title:    "Email",
		Username: "u1",
		Password: "p1",
		Category: "Work",
	})
	require.NoError(t, err)
	assert.Equal(t, u1, created.CreatedBy)
	assert.Equal(t, "", created.Notes)

	list, err := f.passwords.List(ctx, bank.ID, u1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, "Email", list[0].Title)
	assert.Equal(t, "u1", list[0].Username)
	assert.Equal(t, "p1", list[0].Password)
	assert.Equal(t, "Work", list[0].Category)
}

func TestCategoryScopedViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")
	workOnly := f.createRole(t, bank.ID, u1, "Work viewer", models.Permissions{
		CanViewPasswords: true,
		CanViewAll:       false,
		ViewCategories:   []string{"Work"},
	})
	u2 := f.join(t, bank, "u2", workOnly.ID)
	work := f.addPassword(t, bank.ID, u1, "Email", "Work")
	f.addPassword(t, bank.ID, u1, "Bank", "Personal")

	list, err := f.passwords.List(ctx, bank.ID, u2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, work.ID, list[0].ID)

	byCat, err := f.passwords.ListByCategory(ctx, bank.ID, u2, "Personal")
	require.NoError(t, err)
	assert.Empty(t, byCat)

	byCat, err = f.passwords.ListByCategory(ctx, bank.ID, u2, "Work")
	require.NoError(t, err)
	assert.Len(t, byCat, 1)
}

func TestEmptyViewCategoriesSeeNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")
	blind := f.createRole(t, bank.ID, u1, "Blind", models.Permissions{CanViewPasswords: true})
	u2 := f.join(t, bank, "u2", blind.ID)
	f.addPassword(t, bank.ID, u1, "Email", models.DefaultCategory)

	list, err := f.passwords.List(ctx, bank.ID, u2)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestPasswordCapabilities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")
	nothing := f.createRole(t, bank.ID, u1, "Nothing", models.Permissions{})
	u2 := f.join(t, bank, "u2", nothing.ID)
	stranger := f.register(t, "u3")
	entry := f.addPassword(t, bank.ID, u1, "Email", "Work")

	in := models.PasswordInput{Title: "t", Username: "u", Password: "p"}
	title := "new"
	for _, userID := range []string{u2, stranger} {
		_, err := f.passwords.Create(ctx, bank.ID, userID, in)
		requireKind(t, err, apperr.ErrForbidden)
		_, err = f.passwords.List(ctx, bank.ID, userID)
		requireKind(t, err, apperr.ErrForbidden)
		_, err = f.passwords.Update(ctx, bank.ID, entry.ID, userID, models.PasswordUpdate{Title: &title})
		requireKind(t, err, apperr.ErrForbidden)
		err = f.passwords.Delete(ctx, bank.ID, entry.ID, userID)
		requireKind(t, err, apperr.ErrForbidden)
	}

	_, err := f.passwords.Create(ctx, "missing", u1, in)
	requireKind(t, err, apperr.ErrNotFound)
}

func TestOwnerFollowsRoleForEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")

	_, err := f.roles.UpdateRole(ctx, bank.ID, bank.Roles[0], u1, models.Permissions{CanViewPasswords: true, CanViewAll: true})
	require.NoError(t, err)

	_, err = f.passwords.Create(ctx, bank.ID, u1, models.PasswordInput{Title: "t", Username: "u", Password: "p"})
	requireKind(t, err, apperr.ErrForbidden)

	_, err = f.banks.ClearAllPasswords(ctx, bank.ID, u1)
	require.NoError(t, err, "owner may always clear")
}

func TestCreatePassword_Validation(t *testing.T) {
	f := newFixture(t)
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")

	_, err := f.passwords.Create(context.Background(), bank.ID, u1, models.PasswordInput{Title: "t"})
	requireKind(t, err, apperr.ErrValidation)
	assert.Len(t, apperr.Fields(err), 2)

	p := f.addPassword(t, bank.ID, u1, "Email", "")
	assert.Equal(t, models.DefaultCategory, p.Category)
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")
	editor := f.createRole(t, bank.ID, u1, "Editor", models.Permissions{CanEditPasswords: true})
	u2 := f.join(t, bank, "u2", editor.ID)
	entry := f.addPassword(t, bank.ID, u1, "Email", "Work")

	f.passwords.now = fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	notes := "rotated"
	updated, err := f.passwords.Update(ctx, bank.ID, entry.ID, u2, models.PasswordUpdate{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "Email", updated.Title)
	assert.Equal(t, "Work", updated.Category)
	assert.Equal(t, "rotated", updated.Notes)
	assert.Equal(t, entry.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(entry.UpdatedAt))

	empty := ""
	_, err = f.passwords.Update(ctx, bank.ID, entry.ID, u2, models.PasswordUpdate{Title: &empty})
	requireKind(t, err, apperr.ErrValidation)

	other := f.createBank(t, u1, "Other")
	_, err = f.passwords.Update(ctx, other.ID, entry.ID, u1, models.PasswordUpdate{Notes: &notes})
	requireKind(t, err, apperr.ErrNotFound)

	require.NoError(t, f.passwords.Delete(ctx, bank.ID, entry.ID, u1))
	_, err = f.passwords.Update(ctx, bank.ID, entry.ID, u2, models.PasswordUpdate{Notes: &notes})
	requireKind(t, err, apperr.ErrNotFound)
}

func TestDeleteAndRestorePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")
	entry := f.addPassword(t, bank.ID, u1, "Email", "Work")

	require.NoError(t, f.passwords.Delete(ctx, bank.ID, entry.ID, u1))
	err := f.passwords.Delete(ctx, bank.ID, entry.ID, u1)
	requireKind(t, err, apperr.ErrNotFound)

	list, err := f.passwords.List(ctx, bank.ID, u1)
	require.NoError(t, err)
	assert.Empty(t, list)

	trash, err := f.passwords.ListDeleted(ctx, bank.ID, u1)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.True(t, trash[0].Deleted)

	restored, err := f.passwords.Restore(ctx, bank.ID, entry.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, restored.ID)
	assert.Equal(t, entry.CreatedAt, restored.CreatedAt)
	assert.Equal(t, entry.UpdatedAt, restored.UpdatedAt)
	assert.False(t, restored.Deleted)

	_, err = f.passwords.Restore(ctx, bank.ID, entry.ID, u1)
	requireKind(t, err, apperr.ErrNotFound)

	list, err = f.passwords.List(ctx, bank.ID, u1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entry.ID, list[0].ID)
}

func TestListByCategory_OutsideScopeIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")
	workOnly := f.createRole(t, bank.ID, u1, "Work viewer", models.Permissions{
		CanViewPasswords: true,
		ViewCategories:   []string{"Work"},
	})
	u2 := f.join(t, bank, "u2", workOnly.ID)
	f.addPassword(t, bank.ID, u1, "Bank", "Personal")

	list, err := f.passwords.ListByCategory(ctx, bank.ID, u2, "Personal")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	list, err = f.passwords.ListByCategory(ctx, bank.ID, u1, "Personal")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.passwords.ListByCategory(ctx, bank.ID, u2, " ")
	requireKind(t, err, apperr.ErrValidation)
}

func TestListDeleted_ScopedToDeleter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.register(t, "u1")
	bank := f.createBank(t, u1, "Family")
	workDeleter := f.createRole(t, bank.ID, u1, "Work cleaner", models.Permissions{
		CanViewPasswords:   true,
		CanDeletePasswords: true,
		ViewCategories:     []string{"Work"},
	})
	viewer := f.createRole(t, bank.ID, u1, "Viewer", models.Permissions{
		CanViewPasswords: true,
		CanViewAll:       true,
	})
	u2 := f.join(t, bank, "u2", workDeleter.ID)
	u3 := f.join(t, bank, "u3", viewer.ID)

	work := f.addPassword(t, bank.ID, u1, "Email", "Work")
	personal := f.addPassword(t, bank.ID, u1, "Bank", "Personal")
	require.NoError(t, f.passwords.Delete(ctx, bank.ID, work.ID, u1))
	require.NoError(t, f.passwords.Delete(ctx, bank.ID, personal.ID, u1))

	trash, err := f.passwords.ListDeleted(ctx, bank.ID, u2)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, work.ID, trash[0].ID)

	trash, err = f.passwords.ListDeleted(ctx, bank.ID, u1)
	require.NoError(t, err)
	assert.Len(t, trash, 2)

	_, err = f.passwords.ListDeleted(ctx, bank.ID, u3)
	requireKind(t, err, apperr.ErrForbidden)
}
