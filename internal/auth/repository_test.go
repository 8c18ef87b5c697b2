package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestRepositoryFindByUsername(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "username", "name", "email", "password_hash", "created_at", "updated_at"}).
		AddRow("u1", "alice01", "Alice", "alice@example.com", "hash", now, now)

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*username,.*FROM users\s+WHERE username = \$1`).
		WithArgs("alice01").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "alice01")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "alice01", user.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindByUsername_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*username,.*FROM users\s+WHERE username = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUsername(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepositoryExistsByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE email = \$1\)`).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := repo.ExistsByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryInsertUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)INSERT INTO users\b.*VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$6\)`).
		WithArgs(sqlmock.AnyArg(), "alice01", "Alice", "alice@example.com", "hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := repo.Insert(context.Background(), User{
		Username:     "alice01",
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpsertByUserID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)INSERT INTO auth_refresh_tokens\b.*ON CONFLICT \(user_id\).*DO UPDATE SET token = EXCLUDED\.token`).
		WithArgs("u1", "tok123", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertByUserID(context.Background(), "u1", "tok123"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateByUserID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE auth_refresh_tokens\s+SET token = \$2,.*WHERE user_id = \$1`).
		WithArgs("u1", "tok456", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateByUserID(context.Background(), "u1", "tok456"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindByUserAndToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT user_id, token,.*FROM auth_refresh_tokens\s+WHERE user_id = \$1 AND token = \$2`).
		WithArgs("u1", "tok123").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "token", "created_at", "updated_at"}).
			AddRow("u1", "tok123", now, now))

	record, err := repo.FindByUserAndToken(context.Background(), "u1", "tok123")
	require.NoError(t, err)
	assert.Equal(t, "tok123", record.Token)
}

func TestRepositoryFindByUserAndToken_Rotated(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT user_id, token,.*FROM auth_refresh_tokens\s+WHERE user_id = \$1 AND token = \$2`).
		WithArgs("u1", "stale-token").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUserAndToken(context.Background(), "u1", "stale-token")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepositoryDeleteByToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)DELETE FROM auth_refresh_tokens\s+WHERE token = \$1`).
		WithArgs("tok123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByToken(context.Background(), "tok123"))

	// Deleting a token that is already gone is still a success.
	mock.ExpectExec(`(?s)DELETE FROM auth_refresh_tokens\s+WHERE token = \$1`).
		WithArgs("tok123").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteByToken(context.Background(), "tok123"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDeleteStale(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	cutoff := time.Now().UTC().Add(-14 * 24 * time.Hour)
	mock.ExpectExec(`(?s)WITH stale AS.*DELETE FROM auth_refresh_tokens t`).
		WithArgs(cutoff, 500).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteStale(context.Background(), cutoff, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}

func TestRepositoryDeleteByToken_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)DELETE FROM auth_refresh_tokens\s+WHERE token = \$1`).
		WithArgs("tok123").
		WillReturnError(errors.New("db down"))

	err := repo.DeleteByToken(context.Background(), "tok123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete refresh token")
}
