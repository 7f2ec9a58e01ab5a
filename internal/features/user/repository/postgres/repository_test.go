package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunaexecutor-backend/internal/features/user/models"
	"lunaexecutor-backend/internal/features/user/repository"
)

var userCols = []string{
	"id", "username", "email", "password_hash", "is_verified", "verification_token",
	"is_admin", "member_since", "last_login", "task_count", "success_rate",
}

var statCols = []string{"id", "user_id", "date", "executions", "success_count", "failure_count"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	since := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	token := "tok-1"

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("lunafan", "luna@example.com", "hash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "lunafan", "luna@example.com", "hash", false, token, false, since, nil, 0, 0.0))

	user, err := repo.Create(context.Background(), &models.User{
		Username:          "lunafan",
		Email:             "luna@example.com",
		PasswordHash:      "hash",
		VerificationToken: &token,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	require.NotNil(t, user.VerificationToken)
	assert.Equal(t, token, *user.VerificationToken)
	assert.Nil(t, user.LastLogin)
	assert.Equal(t, since, user.MemberSince)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Conflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.Create(context.Background(), &models.User{Username: "taken"})
	assert.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUsername(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	since := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	lastLogin := since.Add(24 * time.Hour)

	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("lunafan").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(3, "lunafan", "luna@example.com", "hash", true, nil, true, since, lastLogin, 12, 91.67))

	user, err := repo.GetByUsername(context.Background(), "lunafan")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
	assert.Nil(t, user.VerificationToken)
	require.NotNil(t, user.LastLogin)
	assert.Equal(t, lastLogin, *user.LastLogin)
	assert.Equal(t, 12, user.TaskCount)
	assert.InDelta(t, 91.67, user.SuccessRate, 0.001)
}

func TestGetBy_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ctx := context.Background()

	mock.ExpectQuery(`WHERE id = \$1`).WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectQuery(`WHERE email = \$1`).WithArgs("x@example.com").WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectQuery(`WHERE verification_token = \$1`).WithArgs("nope").WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetByID(ctx, 9)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "x@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByVerificationToken(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET is_verified = TRUE, verification_token = NULL`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET is_verified`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Verify(context.Background(), 1))
	assert.ErrorIs(t, repo.Verify(context.Background(), 2), repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfile_Conflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE users SET username = \$2, email = \$3`).
		WithArgs(int64(1), "taken", "a@example.com").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.UpdateProfile(context.Background(), 1, "taken", "a@example.com")
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestTouchLastLogin(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE users SET last_login = \$2`).
		WithArgs(int64(1), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.TouchLastLogin(context.Background(), 1, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserStats(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	day1 := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	mock.ExpectQuery(`FROM user_stats\s+WHERE user_id = \$1\s+ORDER BY date ASC`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(statCols).
			AddRow(1, 42, day1, 3, 2, 1).
			AddRow(2, 42, day2, 1, 1, 0))

	stats, err := repo.GetUserStats(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, day1, stats[0].Date)
	assert.Equal(t, 3, stats[0].Executions)
	assert.Equal(t, day2, stats[1].Date)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserStats_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM user_stats`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(statCols))

	stats, err := repo.GetUserStats(context.Background(), 42)
	require.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
}

func TestRecordExecution(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO user_stats`).
		WithArgs(int64(42), "2024-03-15", 1, 0).
		WillReturnRows(sqlmock.NewRows(statCols).AddRow(5, 42, day, 2, 2, 0))
	mock.ExpectExec(`UPDATE users SET\s+task_count = task_count \+ 1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stat, err := repo.RecordExecution(context.Background(), 42, true, day)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stat.ID)
	assert.Equal(t, 2, stat.Executions)
	assert.Equal(t, 2, stat.SuccessCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExecution_UnknownUserRollsBack(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO user_stats`).
		WithArgs(int64(7), "2024-03-15", 0, 1).
		WillReturnRows(sqlmock.NewRows(statCols).AddRow(1, 7, day, 1, 0, 1))
	mock.ExpectExec(`UPDATE users SET`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.RecordExecution(context.Background(), 7, false, day)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExecution_UpsertFailure(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO user_stats`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.RecordExecution(context.Background(), 1, true, time.Now().UTC())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert user stat")
	require.NoError(t, mock.ExpectationsWereMet())
}
