package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"hesab/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the canonical store for transactions, the category
// registry, users and the activity log.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTransaction inserts a new transaction at version 1, pending export.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, type, amount_cents, category, description, date, created_by, created_at, version, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, 'pending')`,
		t.ID, string(t.Type), t.Amount.Cents, t.Category, t.Description,
		t.Date.String(), t.CreatedBy, t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"category", t.Category)
	return nil
}

// GetTransaction returns a transaction by id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, amount_cents, category, description, date, created_by, created_at, version
		FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NewNotFoundError("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransaction replaces the mutable fields of a transaction, bumping
// its version. Last write wins; there is no conflict detection.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET type = ?, amount_cents = ?, category = ?, description = ?, date = ?,
		    version = version + 1, sync_status = 'pending', synced_at = NULL
		WHERE id = ?`,
		string(t.Type), t.Amount.Cents, t.Category, t.Description, t.Date.String(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows affected: %w", err)
	}
	if affected == 0 {
		return core.NewNotFoundError("transaction", t.ID)
	}
	return nil
}

// DeleteTransaction removes a transaction. Deleting an id twice reports the
// second attempt as not found.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if affected == 0 {
		return core.NewNotFoundError("transaction", id)
	}
	return nil
}

// ListTransactions returns the full snapshot, ordered by date with ties
// broken by insertion order. A single query gives the consistent view
// report computation relies on.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, amount_cents, category, description, date, created_by, created_at, version
		FROM transactions ORDER BY date, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		typ     string
		dateStr string
	)
	if err := row.Scan(&t.ID, &typ, &t.Amount.Cents, &t.Category, &t.Description,
		&dateStr, &t.CreatedBy, &t.CreatedAt, &t.Version); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	date, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	t.Date = date
	return t, nil
}

// CreateCategory registers a category name. Duplicate names conflict.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO categories (name, applicable_type) VALUES (?, ?)`,
		c.Name, string(c.ApplicableType),
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert category rows affected: %w", err)
	}
	if affected == 0 {
		return core.NewConflictError("category", c.Name)
	}
	return nil
}

// CategoryExists reports whether name is registered for the given type.
func (r *SQLiteRepository) CategoryExists(ctx context.Context, name string, typ core.CategoryType) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM categories WHERE name = ? AND applicable_type = ?`,
		name, string(typ)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, applicable_type FROM categories ORDER BY applicable_type, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ApplicableType = core.CategoryType(typ)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// CreateUser stores a user with its password hash. Duplicate username or
// email conflicts.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, username, email, full_name, role, password_hash, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.FullName, string(u.Role), passwordHash,
		boolToInt(u.IsActive), u.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user rows affected: %w", err)
	}
	if affected == 0 {
		return core.NewConflictError("user", u.Username)
	}
	return nil
}

// GetUserByUsername returns the user and its stored password hash.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, full_name, role, password_hash, is_active, created_at, last_login
		FROM users WHERE username = ?`, username)
	u, hash, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, "", core.NewNotFoundError("user", username)
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("get user by username: %w", err)
	}
	return u, hash, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, full_name, role, password_hash, is_active, created_at, last_login
		FROM users WHERE id = ?`, id)
	u, _, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NewNotFoundError("user", id)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, email, full_name, role, password_hash, is_active, created_at, last_login
		FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, _, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows affected: %w", err)
	}
	if affected == 0 {
		return core.NewNotFoundError("user", id)
	}
	return nil
}

func (r *SQLiteRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE username = ?`,
		at.UTC(), username)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func scanUser(row rowScanner) (core.User, string, error) {
	var (
		u         core.User
		role      string
		hash      string
		isActive  int64
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &role, &hash,
		&isActive, &u.CreatedAt, &lastLogin); err != nil {
		return core.User{}, "", err
	}
	u.Role = core.Role(role)
	u.IsActive = isActive != 0
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLogin = &t
	}
	return u, hash, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// AppendActivity records one audit entry. Failures here are the caller's
// call to swallow or surface; the store does not retry.
func (r *SQLiteRepository) AppendActivity(ctx context.Context, entry core.ActivityLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, details, ip_address, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Action, entry.Details,
		nullIfEmpty(entry.IPAddress), entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// ListActivity returns audit entries, most recent first.
func (r *SQLiteRepository) ListActivity(ctx context.Context) ([]core.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, details, ip_address, timestamp
		FROM activity_logs ORDER BY timestamp DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	defer rows.Close()

	var out []core.ActivityLog
	for rows.Next() {
		var entry core.ActivityLog
		var ip sql.NullString
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Details,
			&ip, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		entry.IPAddress = ip.String
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity logs: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetPendingSync returns transactions awaiting spreadsheet export.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, amount_cents, category, description, date, created_by, created_at, version
		FROM transactions WHERE sync_status = 'pending' ORDER BY created_at, rowid LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending transactions: %w", err)
	}
	return out, nil
}

// MarkSynced marks a transaction as successfully exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'synced', synced_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a transaction whose export failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}
