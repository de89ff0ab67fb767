package sheets

import (
	"context"

	"hesab/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter appends one transaction to an external spreadsheet.
	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}
)
