package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/atinyakov/GophBank/internal/models"
)

var passwordCols = []string{
	"id", "bank_id", "title", "username", "password", "category",
	"created_by", "notes", "deleted", "deleted_at", "created_at", "updated_at",
}

func TestListPasswords(t *testing.T) {
	tests := []struct {
		name       string
		categories []string
		query      string
		args       int
	}{
		{"all categories", nil, `WHERE bank_id = $1 AND deleted = false ORDER BY position`, 1},
		{"scoped", []string{"Work"}, `WHERE bank_id = $1 AND deleted = false AND category = ANY($2) ORDER BY position`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMock(t)
			repo := NewPostgresPasswordRepository(db, time.Second)

			expect := mock.ExpectQuery(regexp.QuoteMeta(tt.query))
			if tt.args == 1 {
				expect = expect.WithArgs("b1")
			} else {
				expect = expect.WithArgs("b1", sqlmock.AnyArg())
			}
			expect.WillReturnRows(sqlmock.NewRows(passwordCols).
				AddRow("p1", "b1", "Email", "u1", "p1", "Work", "u1", "", false, nil, ts, ts))

			list, err := repo.ListPasswords(context.Background(), "b1", tt.categories)
			if err != nil {
				t.Fatalf("ListPasswords returned error: %v", err)
			}
			if len(list) != 1 || list[0].Title != "Email" || list[0].DeletedAt != nil {
				t.Errorf("ListPasswords = %+v", list)
			}
		})
	}
}

func TestListPasswords_EmptyIsNotNil(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPostgresPasswordRepository(db, time.Second)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM passwords WHERE bank_id = $1 AND deleted = true`)).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(passwordCols))

	list, err := repo.ListDeletedPasswords(context.Background(), "b1")
	if err != nil {
		t.Fatalf("ListDeletedPasswords returned error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("ListDeletedPasswords = %#v; want empty slice", list)
	}
}

func TestGetPassword_Deleted(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPostgresPasswordRepository(db, time.Second)

	deletedAt := ts.Add(time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM passwords WHERE id = $1 AND bank_id = $2`)).
		WithArgs("p1", "b1").
		WillReturnRows(sqlmock.NewRows(passwordCols).
			AddRow("p1", "b1", "Email", "u1", "p1", "Work", "u1", "n", true, deletedAt, ts, ts))

	p, err := repo.GetPassword(context.Background(), "b1", "p1")
	if err != nil {
		t.Fatalf("GetPassword returned error: %v", err)
	}
	if !p.Deleted || p.DeletedAt == nil || !p.DeletedAt.Equal(deletedAt) {
		t.Errorf("deleted state = %v %v", p.Deleted, p.DeletedAt)
	}
}

func TestSoftDeletePassword_AlreadyDeleted(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPostgresPasswordRepository(db, time.Second)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE passwords SET deleted = true, deleted_at = $3`)).
		WithArgs("p1", "b1", ts).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDeletePassword(context.Background(), "b1", "p1", ts)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("SoftDeletePassword error = %v; want ErrNotFound", err)
	}
}

func TestClearAndRestoreBankPasswords(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPostgresPasswordRepository(db, time.Second)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE passwords SET deleted = true, deleted_at = $2 WHERE bank_id = $1 AND deleted = false`)).
		WithArgs("b1", ts).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`AND deleted_at = $2`)).
		WithArgs("b1", ts).
		WillReturnResult(sqlmock.NewResult(0, 3))

	cleared, err := repo.SoftDeleteBankPasswords(context.Background(), "b1", ts)
	if err != nil || cleared != 3 {
		t.Fatalf("SoftDeleteBankPasswords = %d, %v; want 3", cleared, err)
	}
	restored, err := repo.RestoreBankPasswords(context.Background(), "b1", ts)
	if err != nil || restored != 3 {
		t.Fatalf("RestoreBankPasswords = %d, %v; want 3", restored, err)
	}
}

func TestUpdatePassword(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPostgresPasswordRepository(db, time.Second)

	p := &models.Password{ID: "p1", BankID: "b1", Title: "Mail", Username: "u", Password: "x", Category: "Work", UpdatedAt: ts}
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE passwords`)).
		WithArgs("p1", "b1", "Mail", "u", "x", "Work", "", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdatePassword(context.Background(), p); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}
}
