package repository

import "context"

type contextKey string

const contextKeyTx contextKey = "capscan:tx"

// FromContext returns the Tx embedded by WithContext, if any
func FromContext(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(contextKeyTx).(*Tx)
	return tx, ok
}

// WithContext returns a copy of ctx carrying tx
func WithContext(ctx context.Context, tx *Tx) context.Context {
	return context.WithValue(ctx, contextKeyTx, tx)
}
