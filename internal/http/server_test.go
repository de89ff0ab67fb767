package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"hesab/internal/auth"
	"hesab/internal/core"
	"hesab/internal/services"
)

// fakeStore is an in-memory services.Store for handler tests.
type fakeStore struct {
	transactions map[string]core.Transaction
	order        []string
	categories   map[string]core.Category
	users        map[string]core.User
	hashes       map[string]string
	activity     []core.ActivityLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		transactions: make(map[string]core.Transaction),
		categories:   make(map[string]core.Category),
		users:        make(map[string]core.User),
		hashes:       make(map[string]string),
	}
}

func (m *fakeStore) CreateTransaction(_ context.Context, t core.Transaction) error {
	m.transactions[t.ID] = t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *fakeStore) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	t, ok := m.transactions[id]
	if !ok {
		return core.Transaction{}, core.NewNotFoundError("transaction", id)
	}
	return t, nil
}

func (m *fakeStore) UpdateTransaction(_ context.Context, t core.Transaction) error {
	existing, ok := m.transactions[t.ID]
	if !ok {
		return core.NewNotFoundError("transaction", t.ID)
	}
	t.CreatedBy = existing.CreatedBy
	t.CreatedAt = existing.CreatedAt
	t.Version = existing.Version + 1
	m.transactions[t.ID] = t
	return nil
}

func (m *fakeStore) DeleteTransaction(_ context.Context, id string) error {
	if _, ok := m.transactions[id]; !ok {
		return core.NewNotFoundError("transaction", id)
	}
	delete(m.transactions, id)
	for i, other := range m.order {
		if other == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *fakeStore) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.transactions[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Time.Before(out[j].Date.Time)
	})
	return out, nil
}

func (m *fakeStore) CountTransactions(_ context.Context) (int64, error) {
	return int64(len(m.transactions)), nil
}

func (m *fakeStore) CreateCategory(_ context.Context, c core.Category) error {
	if _, ok := m.categories[c.Name]; ok {
		return core.NewConflictError("category", c.Name)
	}
	m.categories[c.Name] = c
	return nil
}

func (m *fakeStore) CategoryExists(_ context.Context, name string, typ core.CategoryType) (bool, error) {
	c, ok := m.categories[name]
	return ok && c.ApplicableType == typ, nil
}

func (m *fakeStore) ListCategories(_ context.Context) ([]core.Category, error) {
	out := make([]core.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *fakeStore) CreateUser(_ context.Context, u core.User, passwordHash string) error {
	if _, ok := m.users[u.Username]; ok {
		return core.NewConflictError("user", u.Username)
	}
	m.users[u.Username] = u
	m.hashes[u.Username] = passwordHash
	return nil
}

func (m *fakeStore) GetUserByUsername(_ context.Context, username string) (core.User, string, error) {
	u, ok := m.users[username]
	if !ok {
		return core.User{}, "", core.NewNotFoundError("user", username)
	}
	return u, m.hashes[username], nil
}

func (m *fakeStore) GetUserByID(_ context.Context, id string) (core.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, core.NewNotFoundError("user", id)
}

func (m *fakeStore) ListUsers(_ context.Context) ([]core.User, error) {
	out := make([]core.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *fakeStore) DeleteUser(_ context.Context, id string) error {
	for username, u := range m.users {
		if u.ID == id {
			delete(m.users, username)
			delete(m.hashes, username)
			return nil
		}
	}
	return core.NewNotFoundError("user", id)
}

func (m *fakeStore) CountUsers(_ context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

func (m *fakeStore) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	u, ok := m.users[username]
	if !ok {
		return core.NewNotFoundError("user", username)
	}
	u.LastLogin = &at
	m.users[username] = u
	return nil
}

func (m *fakeStore) AppendActivity(_ context.Context, entry core.ActivityLog) error {
	m.activity = append(m.activity, entry)
	return nil
}

func (m *fakeStore) ListActivity(_ context.Context) ([]core.ActivityLog, error) {
	out := make([]core.ActivityLog, len(m.activity))
	copy(out, m.activity)
	return out, nil
}

type testEnv struct {
	server *Server
	store  *fakeStore
	tokens *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	ctx := context.Background()
	for _, c := range []core.Category{
		{Name: "sales", ApplicableType: core.CategoryType(core.Income)},
		{Name: "rent", ApplicableType: core.CategoryType(core.Expense)},
	} {
		if err := store.CreateCategory(ctx, c); err != nil {
			t.Fatalf("seed category: %v", err)
		}
	}

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	for i, u := range []core.User{
		{Username: "admin", Email: "admin@example.com", Role: core.RoleAdmin},
		{Username: "bookkeeper", Email: "bk@example.com", Role: core.RoleAccountant},
		{Username: "reader", Email: "reader@example.com", Role: core.RoleViewer},
		{Username: "analyst", Email: "analyst@example.com", Role: core.RoleDataAnalyst},
	} {
		u.ID = fmt.Sprintf("u-%d", i+1)
		u.IsActive = true
		u.CreatedAt = time.Now().UTC()
		if err := store.CreateUser(ctx, u, hash); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	tokens, err := auth.NewTokenManager([]byte("test-secret"), "hesab", 30*time.Minute, nil)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	ledger := services.NewLedgerService(store, nil)
	server := NewServer(":0", ledger, tokens)
	t.Cleanup(func() {
		_ = server.Shutdown(context.Background())
	})

	return &testEnv{server: server, store: store, tokens: tokens}
}

func (e *testEnv) tokenFor(t *testing.T, username string) string {
	t.Helper()
	user, ok := e.store.users[username]
	if !ok {
		t.Fatalf("unknown test user %q", username)
	}
	token, err := e.tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid credentials", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{
			Username: "admin", Password: "password123",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		resp := decodeInto[loginResponse](t, rec)
		if resp.AccessToken == "" {
			t.Error("expected access token")
		}
		if resp.TokenType != "bearer" {
			t.Errorf("token_type = %q, want bearer", resp.TokenType)
		}
		if resp.User.Username != "admin" {
			t.Errorf("user = %q, want admin", resp.User.Username)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{
			Username: "admin", Password: "nope",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{
			Username: "ghost", Password: "password123",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/transactions", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/transactions", "not-a-jwt", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("token for deleted user", func(t *testing.T) {
		token := env.tokenFor(t, "reader")
		delete(env.store.users, "reader")
		rec := env.do(t, http.MethodGet, "/api/transactions", token, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestTransactionCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "bookkeeper")

	rec := env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"type":        "income",
		"amount":      "100",
		"category":    "sales",
		"description": "January invoice",
		"date":        "2024-01-15",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeInto[core.Transaction](t, rec)
	if created.ID == "" || created.Version != 1 {
		t.Fatalf("created = %+v, want id and version 1", created)
	}
	if created.Amount.Cents != 10000 {
		t.Errorf("Amount.Cents = %d, want 10000", created.Amount.Cents)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/transactions/"+created.ID, token, map[string]any{
		"type":     "income",
		"amount":   120.5,
		"category": "sales",
		"date":     "2024-01-16",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	updated := decodeInto[core.Transaction](t, rec)
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}
	if updated.Amount.Cents != 12050 {
		t.Errorf("Amount.Cents = %d, want 12050", updated.Amount.Cents)
	}

	rec = env.do(t, http.MethodDelete, "/api/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "bookkeeper")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unregistered category", map[string]any{
			"type": "income", "amount": "10", "category": "consulting", "date": "2024-01-15",
		}},
		{"zero amount", map[string]any{
			"type": "income", "amount": 0, "category": "sales", "date": "2024-01-15",
		}},
		{"negative amount", map[string]any{
			"type": "income", "amount": "-5", "category": "sales", "date": "2024-01-15",
		}},
		{"bad type", map[string]any{
			"type": "transfer", "amount": "10", "category": "sales", "date": "2024-01-15",
		}},
		{"bad date", map[string]any{
			"type": "income", "amount": "10", "category": "sales", "date": "15/01/2024",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/transactions", token, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRoleGates(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		user   string
		method string
		path   string
		body   any
		want   int
	}{
		{"viewer cannot create transactions", "reader", http.MethodPost, "/api/transactions",
			map[string]any{"type": "income", "amount": "10", "category": "sales", "date": "2024-01-15"},
			http.StatusForbidden},
		{"viewer reads transactions", "reader", http.MethodGet, "/api/transactions", nil, http.StatusOK},
		{"viewer reads reports", "reader", http.MethodGet, "/api/reports/profit-loss", nil, http.StatusOK},
		{"viewer cannot read trends", "reader", http.MethodGet, "/api/reports/trends", nil, http.StatusForbidden},
		{"viewer cannot list users", "reader", http.MethodGet, "/api/users", nil, http.StatusForbidden},
		{"viewer cannot export", "reader", http.MethodGet, "/api/export/transactions", nil, http.StatusForbidden},
		{"analyst reads trends", "analyst", http.MethodGet, "/api/reports/trends", nil, http.StatusOK},
		{"analyst cannot read transactions", "analyst", http.MethodGet, "/api/transactions", nil, http.StatusForbidden},
		{"analyst cannot read reports", "analyst", http.MethodGet, "/api/reports/profit-loss", nil, http.StatusForbidden},
		{"analyst reads logs", "analyst", http.MethodGet, "/api/logs", nil, http.StatusOK},
		{"accountant cannot list users", "bookkeeper", http.MethodGet, "/api/users", nil, http.StatusForbidden},
		{"accountant cannot read logs", "bookkeeper", http.MethodGet, "/api/logs", nil, http.StatusForbidden},
		{"admin lists users", "admin", http.MethodGet, "/api/users", nil, http.StatusOK},
		{"admin reads logs", "admin", http.MethodGet, "/api/logs", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, env.tokenFor(t, tt.user), tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestReportValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "reader")

	t.Run("inverted range", func(t *testing.T) {
		rec := env.do(t, http.MethodGet,
			"/api/reports/profit-loss?start_date=2024-02-01&end_date=2024-01-01", token, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("bad date", func(t *testing.T) {
		rec := env.do(t, http.MethodGet,
			"/api/reports/profit-loss?start_date=yesterday", token, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("bad period", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/reports/cash-flow?period=hourly", token, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestProfitLossThroughAPI(t *testing.T) {
	env := newTestEnv(t)
	writeToken := env.tokenFor(t, "bookkeeper")

	for _, body := range []map[string]any{
		{"type": "income", "amount": "100", "category": "sales", "date": "2024-01-10"},
		{"type": "expense", "amount": "40", "category": "rent", "date": "2024-01-20"},
	} {
		rec := env.do(t, http.MethodPost, "/api/transactions", writeToken, body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed transaction: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, http.MethodGet,
		"/api/reports/profit-loss?start_date=2024-01-01&end_date=2024-01-31", writeToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var rep struct {
		TotalIncome   json.Number `json:"total_income"`
		TotalExpenses json.Number `json:"total_expenses"`
		NetProfit     json.Number `json:"net_profit"`
		ProfitMargin  float64     `json:"profit_margin"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.TotalIncome.String() != "100" {
		t.Errorf("total_income = %s, want 100", rep.TotalIncome)
	}
	if rep.NetProfit.String() != "60" {
		t.Errorf("net_profit = %s, want 60", rep.NetProfit)
	}
	if rep.ProfitMargin != 60.0 {
		t.Errorf("profit_margin = %v, want 60", rep.ProfitMargin)
	}
}

func TestReportCacheInvalidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "bookkeeper")

	seed := map[string]any{"type": "income", "amount": "100", "category": "sales", "date": "2024-01-10"}
	if rec := env.do(t, http.MethodPost, "/api/transactions", token, seed); rec.Code != http.StatusCreated {
		t.Fatalf("seed: %d", rec.Code)
	}

	path := "/api/reports/profit-loss?start_date=2024-01-01&end_date=2024-01-31"
	first := env.do(t, http.MethodGet, path, token, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first read: %d", first.Code)
	}

	more := map[string]any{"type": "income", "amount": "50", "category": "sales", "date": "2024-01-11"}
	if rec := env.do(t, http.MethodPost, "/api/transactions", token, more); rec.Code != http.StatusCreated {
		t.Fatalf("second write: %d", rec.Code)
	}

	second := env.do(t, http.MethodGet, path, token, nil)
	if second.Code != http.StatusOK {
		t.Fatalf("second read: %d", second.Code)
	}
	if first.Body.String() == second.Body.String() {
		t.Error("report response unchanged after write; cache not invalidated")
	}
}

func TestUserManagement(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.tokenFor(t, "admin")

	rec := env.do(t, http.MethodPost, "/api/auth/register", adminToken, registerRequest{
		Username: "carol",
		Email:    "carol@example.com",
		FullName: "Carol",
		Role:     core.RoleAuditor,
		Password: "longenough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeInto[core.User](t, rec)
	if created.Role != core.RoleAuditor {
		t.Errorf("role = %q, want auditor", created.Role)
	}

	t.Run("duplicate username conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/register", adminToken, registerRequest{
			Username: "carol",
			Email:    "carol2@example.com",
			Role:     core.RoleViewer,
			Password: "longenough",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("new user can log in", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{
			Username: "carol", Password: "longenough",
		})
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("self delete rejected", func(t *testing.T) {
		admin := env.store.users["admin"]
		rec := env.do(t, http.MethodDelete, "/api/users/"+admin.ID, adminToken, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("delete user", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/users/"+created.ID, adminToken, nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}

func TestMeEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/me", env.tokenFor(t, "analyst"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	me := decodeInto[core.User](t, rec)
	if me.Username != "analyst" || me.Role != core.RoleDataAnalyst {
		t.Errorf("me = %+v, want analyst/data_analyst", me)
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "bookkeeper")

	rec := env.do(t, http.MethodPost, "/api/categories", token, core.Category{
		Name: "consulting", ApplicableType: core.CategoryType(core.Income),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category status = %d, body = %s", rec.Code, rec.Body.String())
	}

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/categories", token, core.Category{
			Name: "consulting", ApplicableType: core.CategoryType(core.Expense),
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("any authenticated role lists categories", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/categories", env.tokenFor(t, "analyst"), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		list := decodeInto[[]core.Category](t, rec)
		if len(list) != 3 {
			t.Errorf("got %d categories, want 3", len(list))
		}
	})
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "bookkeeper")

	seed := map[string]any{"type": "income", "amount": "100", "category": "sales", "date": "2024-01-10"}
	if rec := env.do(t, http.MethodPost, "/api/transactions", token, seed); rec.Code != http.StatusCreated {
		t.Fatalf("seed: %d", rec.Code)
	}

	t.Run("json", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/export/transactions", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		list := decodeInto[[]core.Transaction](t, rec)
		if len(list) != 1 {
			t.Errorf("got %d transactions, want 1", len(list))
		}
	})

	t.Run("csv", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/export/transactions?format=csv", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("Content-Type = %q, want text/csv", ct)
		}
		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("got %d CSV lines, want header + 1 row", len(lines))
		}
		if !strings.HasPrefix(lines[0], "id,date,type,amount") {
			t.Errorf("unexpected header %q", lines[0])
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/export/transactions?format=xml", token, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestDashboardStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "bookkeeper")

	for _, body := range []map[string]any{
		{"type": "income", "amount": "150", "category": "sales", "date": "2024-01-10"},
		{"type": "expense", "amount": "40", "category": "rent", "date": "2024-01-12"},
	} {
		if rec := env.do(t, http.MethodPost, "/api/transactions", token, body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: %d", rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/dashboard/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats struct {
		TotalIncome      json.Number       `json:"total_income"`
		NetProfit        json.Number       `json:"net_profit"`
		TransactionCount int               `json:"transaction_count"`
		UserCount        int               `json:"user_count"`
		Recent           []json.RawMessage `json:"recent_transactions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalIncome.String() != "150" {
		t.Errorf("total_income = %s, want 150", stats.TotalIncome)
	}
	if stats.NetProfit.String() != "110" {
		t.Errorf("net_profit = %s, want 110", stats.NetProfit)
	}
	if stats.TransactionCount != 2 {
		t.Errorf("transaction_count = %d, want 2", stats.TransactionCount)
	}
	if stats.UserCount != 4 {
		t.Errorf("user_count = %d, want 4", stats.UserCount)
	}
	if len(stats.Recent) != 2 {
		t.Errorf("recent_transactions = %d entries, want 2", len(stats.Recent))
	}
}
