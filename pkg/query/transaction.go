package query

import (
	"context"

	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// TransactionBuilder runs several statements as one atomic unit (§4.6,
// scenario S5): if any statement fails to stage or validate, none of the
// others' effects are committed either.
type TransactionBuilder struct {
	db *DB
}

// Exec freezes every statement and runs them together. A SELECT's result
// slice lands at its position in the returned slice; write statements
// occupy their position with a nil slice.
func (b *TransactionBuilder) Exec(ctx context.Context, statements ...Statement) ([][]schema.Row, error) {
	queries := make([]*qcontext.Context, len(statements))
	for i, stmt := range statements {
		q, err := stmt.Freeze()
		if err != nil {
			return nil, err
		}
		queries[i] = q
	}
	return b.db.engine.Execute(ctx, queries)
}
