package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/akhilpenumudy/biodataahub/internal/models"
)

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUserRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Email:        "ada@example.com",
		PasswordHash: "hash",
		FullName:     "Ada Lovelace",
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "email_verified", "last_login", "created_at", "updated_at"}).
		AddRow(user.ID, user.Email, user.PasswordHash, user.FullName, false, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name")).
		WithArgs("ada@example.com").
		WillReturnRows(rows)

	found, err := repo.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)
	require.False(t, found.EmailVerified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailMissing(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name")).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryMarkEmailVerified(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email_verified = TRUE")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkEmailVerified(context.Background(), "user-1", time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryProfilesByIDs(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id", "email", "full_name"}).
		AddRow("user-1", "ada@example.com", "Ada Lovelace").
		AddRow("user-2", "grace@example.com", "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name FROM users WHERE id IN")).
		WillReturnRows(rows)

	profiles, err := repo.ProfilesByIDs(context.Background(), []string{"user-1", "user-2", "user-3"})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	require.Equal(t, "Ada Lovelace", profiles["user-1"].FullName)
	_, ok := profiles["user-3"]
	require.False(t, ok)
}

func TestUserRepositoryProfilesByIDsEmptyInput(t *testing.T) {
	db, _, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	profiles, err := repo.ProfilesByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, profiles)
}

func TestUserRepositoryRefreshTokenLifecycle(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.RefreshToken{
		UserID:    "user-1",
		Token:     "tok-value",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), token))

	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"}).
		AddRow(token.ID, token.UserID, token.Token, token.ExpiresAt, time.Now(), false, nil, "", "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, token, expires_at")).
		WithArgs("tok-value").
		WillReturnRows(rows)

	found, err := repo.FindRefreshToken(context.Background(), "tok-value")
	require.NoError(t, err)
	require.Equal(t, "user-1", found.UserID)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1")).
		WithArgs(token.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeRefreshToken(context.Background(), token.ID, time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}
