package auth

import (
	"testing"

	"hesab/internal/core"
)

func TestCanMatrix(t *testing.T) {
	// one row per operation, columns in the order of core.Roles():
	// admin, accountant, financial_manager, viewer, data_analyst, auditor
	matrix := map[Operation][6]bool{
		OpViewTransactions:   {true, true, true, true, false, false},
		OpManageTransactions: {true, true, true, false, false, false},
		OpViewReports:        {true, true, true, true, false, true},
		OpViewTrends:         {true, false, true, false, true, false},
		OpManageUsers:        {true, false, false, false, false, false},
		OpViewLogs:           {true, false, false, false, true, false},
	}

	roles := core.Roles()
	for op, row := range matrix {
		for i, role := range roles {
			if got := Can(role, op); got != row[i] {
				t.Fatalf("Can(%s, %s) = %v, want %v", role, op, got, row[i])
			}
		}
	}
}

func TestCanFailsClosed(t *testing.T) {
	if Can("superuser", OpManageUsers) {
		t.Fatalf("unknown role must be denied")
	}
	if Can(core.RoleAdmin, "drop_database") {
		t.Fatalf("unknown operation must be denied")
	}
	if Can("", "") {
		t.Fatalf("empty role and operation must be denied")
	}
}

func TestCanDeterministic(t *testing.T) {
	for _, role := range core.Roles() {
		for _, op := range Operations() {
			first := Can(role, op)
			for i := 0; i < 3; i++ {
				if Can(role, op) != first {
					t.Fatalf("Can(%s, %s) changed between calls", role, op)
				}
			}
		}
	}
}
