// Package users implements the credential store on PostgreSQL.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// uniqueViolation is the SQLSTATE Postgres reports for a duplicate key.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db      dbx.DBTX
	timeout time.Duration
}

// NewPostgresRepository binds the store to db. Each call is limited to
// timeout; zero means the caller's deadline alone applies.
func NewPostgresRepository(db dbx.DBTX, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout}
}

// FindByEmail returns common.ErrorNotFound when no row matches. Matching is
// exact, so emails differing only in case are distinct users.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	ctx, cancel := dbx.WithTimeout(ctx, r.timeout)
	defer cancel()

	query :=
		`SELECT id, email, password, created_at FROM users
		 WHERE email = $1
		 `

	user := &models.UserRecord{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.Classify(ctx, err)
	}

	return user, nil
}

// Insert stores a new user. A duplicate email yields common.ErrUserExists.
func (r *PostgresRepository) Insert(ctx context.Context, user *models.UserRecord) error {
	ctx, cancel := dbx.WithTimeout(ctx, r.timeout)
	defer cancel()

	query :=
		`INSERT INTO users (id, email, password)
         VALUES ($1, $2, $3)
		 `

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash)

	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrUserExists
		}
		return dbx.Classify(ctx, err)
	}

	return nil
}

// Ping runs a trivial query to prove the store answers.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := dbx.WithTimeout(ctx, r.timeout)
	defer cancel()

	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return dbx.Classify(ctx, err)
	}
	if one != 1 {
		return fmt.Errorf("db error: unexpected ping result %d", one)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ Repository = (*PostgresRepository)(nil)
