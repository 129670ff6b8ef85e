package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/9182192619/web-chat/internal/db"
	"github.com/9182192619/web-chat/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	Close() error
}

// Open picks the store for dsn: a postgres:// URL goes to PostgreSQL, anything
// else is a SQLite file path.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (UserRepository, error) {
	if db.IsPostgres(dsn) {
		pool, err := db.ConnectPostgres(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return NewPostgresUserRepo(pool), nil
	}

	sqlDB, err := db.OpenSQLite(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	return NewSQLiteUserRepo(sqlDB), nil
}

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	const query = `INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3) RETURNING created_at`

	err := r.pool.QueryRow(ctx, query, user.ID, user.Username, user.PasswordHash).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1`

	user := &models.User{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) Close() error {
	r.pool.Close()
	return nil
}

type SQLiteUserRepo struct {
	db *sql.DB
}

func NewSQLiteUserRepo(sqlDB *sql.DB) *SQLiteUserRepo {
	return &SQLiteUserRepo{db: sqlDB}
}

func (r *SQLiteUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	const query = `INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, query, user.ID.String(), user.Username, user.PasswordHash, user.CreatedAt.UnixMilli())
	if err != nil {
		if isConstraintError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *SQLiteUserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?`

	var (
		id        string
		createdAt int64
	)
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&id, &user.Username, &user.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", id, err)
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	return user, nil
}

func (r *SQLiteUserRepo) Close() error {
	return r.db.Close()
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
