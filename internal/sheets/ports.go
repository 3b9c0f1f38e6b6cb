package sheets

import (
	"context"

	"spendsmart/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror keeps a spreadsheet copy of the ledger, one row per transaction.
	Mirror interface {
		// Upsert writes tx into the row holding its id, appending a new row
		// when the id is not present yet.
		Upsert(ctx context.Context, tx core.Transaction) (rowRef string, err error)
		// Clear blanks the row holding id. Unknown ids are ignored.
		Clear(ctx context.Context, id int64) error
	}
)
