package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"user_service/internal/config"
	"user_service/internal/models"
	"user_service/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Postgres) (*PostgresRepo, error) {
	return Open(ctx, dsn(cfg), cfg.MaxConns, cfg.MinConns)
}

// * Open connects to dsn and pings the database before returning.
func Open(ctx context.Context, dsn string, maxConns, minConns int32) (*PostgresRepo, error) {
	const op = "storage.postgres.Open"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	if minConns > 0 && minConns <= poolConfig.MaxConns {
		poolConfig.MinConns = minConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// * Migrate applies the embedded schema. Every statement is idempotent.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const accountColumns = `id, name, email, password_hash, role, status, phone, address, department, picture_path, created_at, updated_at`

func (r *PostgresRepo) SaveAccount(
	ctx context.Context,
	name, email string,
	passHash []byte,
	role models.Role,
) (int64, error) {
	const op = "storage.postgres.SaveAccount"

	query := `
		INSERT INTO accounts (name, email, password_hash, role, status)
		VALUES ($1, $2, $3, $4, 'active')
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, name, email, passHash, string(role)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save account: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) Account(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.postgres.Account"

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1;`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrUserNotFound
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (r *PostgresRepo) AccountByID(ctx context.Context, id int64) (models.Account, error) {
	const op = "storage.postgres.AccountByID"

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1;`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrUserNotFound
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (r *PostgresRepo) Accounts(ctx context.Context) ([]models.Account, error) {
	const op = "storage.postgres.Accounts"

	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC, id DESC;`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return accounts, nil
}

// * EmailExists reports whether another account (id != excludeID) uses email.
func (r *PostgresRepo) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	const op = "storage.postgres.EmailExists"

	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1 AND id <> $2);`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (r *PostgresRepo) UpdateRole(ctx context.Context, id int64, role models.Role) error {
	const op = "storage.postgres.UpdateRole"

	query := `UPDATE accounts SET role = $1, updated_at = NOW() WHERE id = $2;`

	return r.execOne(ctx, op, query, string(role), id)
}

func (r *PostgresRepo) SetStatus(ctx context.Context, id int64, status models.Status) error {
	const op = "storage.postgres.SetStatus"

	query := `UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2;`

	return r.execOne(ctx, op, query, string(status), id)
}

func (r *PostgresRepo) UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (models.Account, error) {
	const op = "storage.postgres.UpdateProfile"

	query := `
		UPDATE accounts
		SET name = $1, email = $2, phone = $3, address = $4, department = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING ` + accountColumns + `;`

	a, err := scanAccount(r.pool.QueryRow(ctx, query,
		update.Name, update.Email, update.Phone, update.Address, update.Department, id,
	))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return models.Account{}, storage.ErrUserNotFound
		case isUniqueViolation(err):
			return models.Account{}, storage.ErrUserExists
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

// * DeleteAccount removes the account; its refresh tokens go with it (ON DELETE CASCADE).
func (r *PostgresRepo) DeleteAccount(ctx context.Context, id int64) error {
	const op = "storage.postgres.DeleteAccount"

	return r.execOne(ctx, op, `DELETE FROM accounts WHERE id = $1;`, id)
}

func (r *PostgresRepo) Stats(ctx context.Context, since time.Time) (models.Stats, error) {
	const op = "storage.postgres.Stats"

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE created_at >= $1)
		FROM accounts;
	`

	var s models.Stats
	if err := r.pool.QueryRow(ctx, query, since).Scan(&s.TotalUsers, &s.ActiveUsers, &s.NewToday); err != nil {
		return models.Stats{}, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var (
		a      models.Account
		role   string
		status string
	)

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PassHash,
		&role,
		&status,
		&a.Phone,
		&a.Address,
		&a.Department,
		&a.PicturePath,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	a.Role = models.Role(role)
	a.Status = models.Status(status)

	return a, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// * dsn builds the connection string from config.
func dsn(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
}
