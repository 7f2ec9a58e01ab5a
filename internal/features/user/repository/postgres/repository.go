package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lunaexecutor-backend/internal/features/user/models"
	"lunaexecutor-backend/internal/features/user/repository"
	"lunaexecutor-backend/internal/platform/postgres"
)

const userColumns = `id, username, email, password_hash, is_verified, verification_token,
		is_admin, member_since, last_login, task_count, success_rate`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a repository implementing both user and stats access.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var (
	_ repository.UserRepository  = (*PostgresRepository)(nil)
	_ repository.StatsRepository = (*PostgresRepository)(nil)
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u         models.User
		token     sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsVerified, &token,
		&u.IsAdmin, &u.MemberSince, &lastLogin, &u.TaskCount, &u.SuccessRate)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		u.VerificationToken = &token.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, verification_token)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.VerificationToken))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", repository.ErrConflict, postgres.ConstraintName(err))
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = $1", username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = $1", email)
}

func (r *PostgresRepository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, "verification_token = $1", token)
}

func (r *PostgresRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Verify marks the user verified and clears the token
func (r *PostgresRepository) Verify(ctx context.Context, id int64) error {
	return r.exec(ctx, "verify user",
		`UPDATE users SET is_verified = TRUE, verification_token = NULL WHERE id = $1`, id)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, username, email string) (*models.User, error) {
	query := `
		UPDATE users SET username = $2, email = $3
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id, username, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", repository.ErrConflict, postgres.ConstraintName(err))
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	return r.exec(ctx, "set admin flag",
		`UPDATE users SET is_admin = $2 WHERE id = $1`, id, isAdmin)
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, "update last login",
		`UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
}

func (r *PostgresRepository) GetUserStats(ctx context.Context, userID int64) ([]*models.UserStat, error) {
	query := `
		SELECT id, user_id, date, executions, success_count, failure_count
		FROM user_stats
		WHERE user_id = $1
		ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user stats: %w", err)
	}
	defer rows.Close()

	stats := make([]*models.UserStat, 0)
	for rows.Next() {
		var s models.UserStat
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.Executions, &s.SuccessCount, &s.FailureCount); err != nil {
			return nil, fmt.Errorf("failed to scan user stat: %w", err)
		}
		stats = append(stats, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user stats: %w", err)
	}
	return stats, nil
}

func (r *PostgresRepository) RecordExecution(ctx context.Context, userID int64, success bool, day time.Time) (*models.UserStat, error) {
	successInc, failureInc := 0, 1
	if success {
		successInc, failureInc = 1, 0
	}

	var stat models.UserStat
	err := postgres.WithTx(ctx, r.db, func(ctx context.Context, tx postgres.DBTX) error {
		upsert := `
			INSERT INTO user_stats (user_id, date, executions, success_count, failure_count)
			VALUES ($1, $2, 1, $3, $4)
			ON CONFLICT (user_id, date) DO UPDATE SET
				executions = user_stats.executions + 1,
				success_count = user_stats.success_count + EXCLUDED.success_count,
				failure_count = user_stats.failure_count + EXCLUDED.failure_count
			RETURNING id, user_id, date, executions, success_count, failure_count`

		err := tx.QueryRowContext(ctx, upsert, userID, day.Format("2006-01-02"), successInc, failureInc).
			Scan(&stat.ID, &stat.UserID, &stat.Date, &stat.Executions, &stat.SuccessCount, &stat.FailureCount)
		if err != nil {
			return fmt.Errorf("failed to upsert user stat: %w", err)
		}

		totals := `
			UPDATE users SET
				task_count = task_count + 1,
				success_rate = (
					SELECT COALESCE(ROUND(100.0 * SUM(success_count) / NULLIF(SUM(executions), 0), 2), 0)
					FROM user_stats WHERE user_id = $1
				)
			WHERE id = $1`

		result, err := tx.ExecContext(ctx, totals, userID)
		if err != nil {
			return fmt.Errorf("failed to update user totals: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stat, nil
}
