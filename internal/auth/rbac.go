// Package auth implements the access control gate and token handling.
//
// The gate is a pure, total mapping from (role, operation) to a boolean.
// Unknown roles and unknown operations deny (fail closed). It holds no
// state and is consulted before every store or report access.
package auth

import "hesab/internal/core"

// Operation is an action subject to the permission matrix.
type Operation string

const (
	OpViewTransactions   Operation = "view_transactions"
	OpManageTransactions Operation = "manage_transactions"
	OpViewReports        Operation = "view_reports"
	OpViewTrends         Operation = "view_trends"
	OpManageUsers        Operation = "manage_users"
	OpViewLogs           Operation = "view_logs"
)

// Operations enumerates the fixed operation set.
func Operations() []Operation {
	return []Operation{
		OpViewTransactions, OpManageTransactions, OpViewReports,
		OpViewTrends, OpManageUsers, OpViewLogs,
	}
}

var permissions = map[core.Role]map[Operation]bool{
	core.RoleAdmin: {
		OpViewTransactions:   true,
		OpManageTransactions: true,
		OpViewReports:        true,
		OpViewTrends:         true,
		OpManageUsers:        true,
		OpViewLogs:           true,
	},
	core.RoleAccountant: {
		OpViewTransactions:   true,
		OpManageTransactions: true,
		OpViewReports:        true,
	},
	core.RoleFinancialManager: {
		OpViewTransactions:   true,
		OpManageTransactions: true,
		OpViewReports:        true,
		OpViewTrends:         true,
	},
	core.RoleViewer: {
		OpViewTransactions: true,
		OpViewReports:      true,
	},
	core.RoleDataAnalyst: {
		OpViewTrends: true,
		OpViewLogs:   true,
	},
	core.RoleAuditor: {
		OpViewReports: true,
	},
}

// Can reports whether role may perform op. Deterministic and side-effect
// free; unknown role or operation always denies.
func Can(role core.Role, op Operation) bool {
	return permissions[role][op]
}
