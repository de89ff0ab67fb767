package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hesab/internal/auth"
	"hesab/internal/core"
	"hesab/internal/report"
)

// ErrInvalidCredentials covers every authentication failure: unknown user,
// wrong password, deactivated account. Callers must not reveal which.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Store is the persistence surface the ledger service needs.
type Store interface {
	CreateTransaction(ctx context.Context, t core.Transaction) error
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CountTransactions(ctx context.Context) (int64, error)

	CreateCategory(ctx context.Context, c core.Category) error
	CategoryExists(ctx context.Context, name string, typ core.CategoryType) (bool, error)
	ListCategories(ctx context.Context) ([]core.Category, error)

	CreateUser(ctx context.Context, u core.User, passwordHash string) error
	GetUserByUsername(ctx context.Context, username string) (core.User, string, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (int64, error)
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error

	AppendActivity(ctx context.Context, entry core.ActivityLog) error
	ListActivity(ctx context.Context) ([]core.ActivityLog, error)
}

// SyncPublisher notifies the export pipeline about changed transactions.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id string, version int64) error
}

// LedgerService orchestrates ledger operations across SQLite and AMQP.
// Writes land in SQLite first; spreadsheet export is asynchronous and its
// failures never fail the request.
type LedgerService struct {
	store     Store
	publisher SyncPublisher
	now       func() time.Time
}

func NewLedgerService(store Store, publisher SyncPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateTransaction validates, persists and queues a new transaction for
// export. The category must be registered for the transaction's type.
func (s *LedgerService) CreateTransaction(ctx context.Context, actor core.User, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	t.ID = uuid.NewString()
	t.CreatedBy = actor.Username
	t.CreatedAt = s.now().UTC()
	t.Version = 1

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.logActivity(ctx, actor, "create_transaction",
		fmt.Sprintf("%s %s in %s", t.Type, t.Amount, t.Category))
	s.publishSync(ctx, t.ID, t.Version)

	return t, nil
}

// UpdateTransaction replaces a transaction's fields. Last write wins.
func (s *LedgerService) UpdateTransaction(ctx context.Context, actor core.User, id string, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	t.ID = id
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	s.logActivity(ctx, actor, "update_transaction", "Updated transaction "+id)
	s.publishSync(ctx, updated.ID, updated.Version)

	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, actor core.User, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.logActivity(ctx, actor, "delete_transaction", "Deleted transaction "+id)
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

func (s *LedgerService) checkCategory(ctx context.Context, t core.Transaction) error {
	ok, err := s.store.CategoryExists(ctx, t.Category, t.Type.CategoryType())
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return core.NewValidationError("category",
			fmt.Sprintf("%q is not registered for type %s", t.Category, t.Type))
	}
	return nil
}

// snapshot reads the full transaction list in one query so every report
// computes over a single consistent view.
func (s *LedgerService) snapshot(ctx context.Context) (report.Snapshot, error) {
	list, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return report.Snapshot(list), nil
}

// ProfitLoss builds an income statement over [start, end]. Zero endpoints
// leave the range unbounded on that side.
func (s *LedgerService) ProfitLoss(ctx context.Context, start, end core.Date) (report.ProfitLossReport, error) {
	if !start.IsZero() && !end.IsZero() && start.Time.After(end.Time) {
		return report.ProfitLossReport{}, core.NewValidationError("start_date", "must not be after end_date")
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.ProfitLossReport{}, err
	}
	return report.ProfitLoss(snap, start, end), nil
}

// BalanceSheet builds a position statement as of the given date. A zero
// date means today.
func (s *LedgerService) BalanceSheet(ctx context.Context, asOf core.Date) (report.BalanceSheetReport, error) {
	if asOf.IsZero() {
		asOf = core.DateOf(s.now())
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.BalanceSheetReport{}, err
	}
	return report.BalanceSheet(snap, asOf), nil
}

func (s *LedgerService) CashFlow(ctx context.Context, period core.Period) (report.CashFlowReport, error) {
	if !period.Valid() {
		return report.CashFlowReport{}, core.NewValidationError("period", "must be daily, weekly, monthly or yearly")
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.CashFlowReport{}, err
	}
	return report.CashFlow(snap, period), nil
}

func (s *LedgerService) Trends(ctx context.Context, windowMonths int) (report.TrendsReport, error) {
	if windowMonths <= 0 {
		windowMonths = report.DefaultTrendsWindow
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.TrendsReport{}, err
	}
	return report.Trends(snap, windowMonths, s.now()), nil
}

// DashboardStats is the landing-page summary.
type DashboardStats struct {
	TotalIncome        core.Money         `json:"total_income"`
	TotalExpenses      core.Money         `json:"total_expenses"`
	NetProfit          core.Money         `json:"net_profit"`
	TransactionCount   int                `json:"transaction_count"`
	UserCount          int64              `json:"user_count"`
	RecentTransactions []core.Transaction `json:"recent_transactions"`
}

const recentTransactionLimit = 5

func (s *LedgerService) DashboardStats(ctx context.Context) (DashboardStats, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return DashboardStats{}, err
	}

	users, err := s.store.CountUsers(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("count users: %w", err)
	}

	income := report.Total(snap, core.Income, core.Date{}, core.Date{})
	expenses := report.Total(snap, core.Expense, core.Date{}, core.Date{})

	recent := make([]core.Transaction, 0, recentTransactionLimit)
	for i := len(snap) - 1; i >= 0 && len(recent) < recentTransactionLimit; i-- {
		recent = append(recent, snap[i])
	}

	return DashboardStats{
		TotalIncome:        income,
		TotalExpenses:      expenses,
		NetProfit:          income.Sub(expenses),
		TransactionCount:   len(snap),
		UserCount:          users,
		RecentTransactions: recent,
	}, nil
}

// RegisterCategory adds a name to the category registry.
func (s *LedgerService) RegisterCategory(ctx context.Context, actor core.User, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	s.logActivity(ctx, actor, "create_category",
		fmt.Sprintf("Registered %s category %q", c.ApplicableType, c.Name))
	return c, nil
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

// Authenticate checks credentials and records the login. Every failure maps
// to ErrInvalidCredentials so responses don't leak which part was wrong.
func (s *LedgerService) Authenticate(ctx context.Context, username, password, ipAddress string) (core.User, error) {
	user, hash, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		var notFound *core.NotFoundError
		if errors.As(err, &notFound) {
			return core.User{}, ErrInvalidCredentials
		}
		return core.User{}, fmt.Errorf("look up user: %w", err)
	}
	if !user.IsActive {
		return core.User{}, ErrInvalidCredentials
	}
	if !auth.VerifyPassword(hash, password) {
		return core.User{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.store.UpdateLastLogin(ctx, username, now); err != nil {
		slog.ErrorContext(ctx, "Failed to update last login", "username", username, "error", err)
	}
	user.LastLogin = &now

	s.appendActivity(ctx, user.ID, "login", "User logged in", ipAddress)
	return user, nil
}

// CurrentUser resolves the user behind a verified token.
func (s *LedgerService) CurrentUser(ctx context.Context, username string) (core.User, error) {
	user, _, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return core.User{}, err
	}
	return user, nil
}

// RegisterUser creates an account with the given role.
func (s *LedgerService) RegisterUser(ctx context.Context, actor core.User, u core.User, password string) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}

	u.ID = uuid.NewString()
	u.IsActive = true
	u.CreatedAt = s.now().UTC()
	u.LastLogin = nil

	if err := s.store.CreateUser(ctx, u, hash); err != nil {
		return core.User{}, err
	}

	s.logActivity(ctx, actor, "create_user",
		fmt.Sprintf("Created user %s with role %s", u.Username, u.Role))
	return u, nil
}

func (s *LedgerService) ListUsers(ctx context.Context) ([]core.User, error) {
	return s.store.ListUsers(ctx)
}

// DeleteUser removes an account. Nobody deletes themselves.
func (s *LedgerService) DeleteUser(ctx context.Context, actor core.User, id string) error {
	if actor.ID == id {
		return core.NewValidationError("id", "cannot delete own account")
	}
	target, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logActivity(ctx, actor, "delete_user", "Deleted user "+target.Username)
	return nil
}

func (s *LedgerService) ActivityLogs(ctx context.Context) ([]core.ActivityLog, error) {
	return s.store.ListActivity(ctx)
}

// EnsureAdmin bootstraps the initial admin account at startup if it does
// not exist yet.
func (s *LedgerService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	_, _, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	var notFound *core.NotFoundError
	if !errors.As(err, &notFound) {
		return fmt.Errorf("check admin account: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := core.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		FullName:  "Administrator",
		Role:      core.RoleAdmin,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, admin, hash); err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	slog.InfoContext(ctx, "Bootstrapped admin account", "username", username)
	return nil
}

func (s *LedgerService) logActivity(ctx context.Context, actor core.User, action, details string) {
	s.appendActivity(ctx, actor.ID, action, details, "")
}

// appendActivity is best-effort: audit failures are logged, never surfaced.
func (s *LedgerService) appendActivity(ctx context.Context, userID, action, details, ipAddress string) {
	entry := core.ActivityLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		Timestamp: s.now().UTC(),
		IPAddress: ipAddress,
	}
	if err := s.store.AppendActivity(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "Failed to append activity log",
			"action", action, "user_id", userID, "error", err)
	}
}

func (s *LedgerService) publishSync(ctx context.Context, id string, version int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping sync message")
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "version", version, "error", err)
		// The transaction is saved locally; the worker's pending sweep
		// will pick it up.
	}
}
