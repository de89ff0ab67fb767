package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	// Balance-sheet-only category types. No transaction carries them
	// directly; the registry uses them to type asset and liability
	// vocabularies.
	Asset     CategoryType = "asset"
	Liability CategoryType = "liability"

	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"

	RoleAdmin            Role = "admin"
	RoleAccountant       Role = "accountant"
	RoleViewer           Role = "viewer"
	RoleDataAnalyst      Role = "data_analyst"
	RoleFinancialManager Role = "financial_manager"
	RoleAuditor          Role = "auditor"
)

type (
	TransactionType string

	CategoryType string

	Period string

	Role string

	Transaction struct {
		ID          string          `json:"id"`
		Type        TransactionType `json:"type"`
		Amount      Money           `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		CreatedBy   string          `json:"created_by"`
		CreatedAt   time.Time       `json:"created_at"`
		Version     int64           `json:"version"`
	}

	Category struct {
		Name           string       `json:"name"`
		ApplicableType CategoryType `json:"applicable_type"`
	}

	User struct {
		ID        string     `json:"id"`
		Username  string     `json:"username"`
		Email     string     `json:"email"`
		FullName  string     `json:"full_name"`
		Role      Role       `json:"role"`
		IsActive  bool       `json:"is_active"`
		CreatedAt time.Time  `json:"created_at"`
		LastLogin *time.Time `json:"last_login,omitempty"`
	}

	ActivityLog struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Action    string    `json:"action"`
		Details   string    `json:"details"`
		Timestamp time.Time `json:"timestamp"`
		IPAddress string    `json:"ip_address,omitempty"`
	}
)

// Valid reports whether t is one of the two transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// CategoryType returns the registry type matching this transaction type.
func (t TransactionType) CategoryType() CategoryType {
	return CategoryType(t)
}

func (c CategoryType) Valid() bool {
	switch c {
	case CategoryType(Income), CategoryType(Expense), Asset, Liability:
		return true
	}
	return false
}

func (p Period) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Roles enumerates every known role, in matrix order.
func Roles() []Role {
	return []Role{
		RoleAdmin, RoleAccountant, RoleFinancialManager,
		RoleViewer, RoleDataAnalyst, RoleAuditor,
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAccountant, RoleViewer,
		RoleDataAnalyst, RoleFinancialManager, RoleAuditor:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return NewValidationError("type", "must be income or expense")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return NewValidationError("category", "must not be empty")
	}
	if len(t.Description) > 200 {
		return NewValidationError("description", "too long (max 200 characters)")
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", "must not be empty")
	}
	if !c.ApplicableType.Valid() {
		return NewValidationError("applicable_type", "must be income, expense, asset or liability")
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return NewValidationError("username", "must not be empty")
	}
	if !strings.Contains(u.Email, "@") {
		return NewValidationError("email", "must be a valid address")
	}
	if !u.Role.Valid() {
		return NewValidationError("role", "unknown role "+string(u.Role))
	}
	return nil
}
