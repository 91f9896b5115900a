package core

import "context"

// Transactor runs fn inside a single storage transaction.
// Repositories called with the ctx handed to fn take part in that transaction;
// the transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
