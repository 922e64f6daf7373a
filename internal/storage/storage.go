package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"mygizmo/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

const uniqueViolation = "23505"

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

const accountColumns = `id, username, email, password_hash, stripe_customer_id, subscription_status, created_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.StripeCustomerID, &a.SubscriptionStatus, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts acc and fills its generated fields.
func (s *Storage) CreateAccount(ctx context.Context, acc *models.Account) error {
	const op = "storage.CreateAccount"

	if acc.SubscriptionStatus == "" {
		acc.SubscriptionStatus = models.SubscriptionInactive
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (username, email, password_hash, stripe_customer_id, subscription_status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		acc.Username, acc.Email, acc.PasswordHash, acc.StripeCustomerID, acc.SubscriptionStatus,
	).Scan(&acc.ID, &acc.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

func (s *Storage) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	const op = "storage.GetAccountByID"
	acc, err := scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return acc, nil
}

func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	acc, err := scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return acc, nil
}

// AccountTaken reports whether the username or email is already registered.
func (s *Storage) AccountTaken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	const op = "storage.AccountTaken"
	err = s.pool.QueryRow(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM accounts WHERE username = $1),
			EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($2))`,
		username, email).Scan(&usernameTaken, &emailTaken)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", op, err)
	}
	return usernameTaken, emailTaken, nil
}

// SetSubscriptionStatus updates the account billed as customerID.
func (s *Storage) SetSubscriptionStatus(ctx context.Context, customerID, status string) (*models.Account, error) {
	const op = "storage.SetSubscriptionStatus"
	acc, err := scanAccount(s.pool.QueryRow(ctx,
		`UPDATE accounts SET subscription_status = $2 WHERE stripe_customer_id = $1
		 RETURNING `+accountColumns,
		customerID, status))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return acc, nil
}

// DeleteAccount removes the account and, by cascade, its file metadata.
// It returns the stored names the account owned.
func (s *Storage) DeleteAccount(ctx context.Context, id int64) ([]string, error) {
	const op = "storage.DeleteAccount"

	var names []string
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT stored_name FROM stored_files WHERE account_id = $1`, id)
		if err != nil {
			return err
		}
		names, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return names, nil
}

// CreateStoredFile inserts f and runs persist inside the same transaction.
// If persist fails the row is rolled back.
func (s *Storage) CreateStoredFile(ctx context.Context, f *models.StoredFile, persist func(ctx context.Context) error) error {
	const op = "storage.CreateStoredFile"

	err := s.execTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO stored_files (id, original_name, stored_name, tool, account_id)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			f.ID, f.OriginalName, f.StoredName, f.Tool, f.AccountID,
		).Scan(&f.CreatedAt)
		if err != nil {
			return err
		}
		return persist(ctx)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

const storedFileColumns = `id, original_name, stored_name, tool, created_at, account_id`

func scanStoredFile(row pgx.Row) (models.StoredFile, error) {
	var f models.StoredFile
	err := row.Scan(&f.ID, &f.OriginalName, &f.StoredName, &f.Tool, &f.CreatedAt, &f.AccountID)
	return f, err
}

// GetStoredFile looks up a stored name owned by accountID. Files owned by
// someone else are reported as ErrNotFound.
func (s *Storage) GetStoredFile(ctx context.Context, storedName string, accountID int64) (*models.StoredFile, error) {
	const op = "storage.GetStoredFile"
	f, err := scanStoredFile(s.pool.QueryRow(ctx,
		`SELECT `+storedFileColumns+` FROM stored_files WHERE stored_name = $1 AND account_id = $2`,
		storedName, accountID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return &f, nil
}

// ListStoredFiles returns the newest files of an account first.
func (s *Storage) ListStoredFiles(ctx context.Context, accountID int64, limit int) ([]models.StoredFile, error) {
	const op = "storage.ListStoredFiles"
	rows, err := s.pool.Query(ctx,
		`SELECT `+storedFileColumns+` FROM stored_files
		 WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	files, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.StoredFile, error) {
		return scanStoredFile(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return files, nil
}

func (s *Storage) execTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
