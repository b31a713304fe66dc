package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Beginner abre transações. *pgxpool.Pool satisfaz; testes podem trocar
// por um iniciador em memória.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ Beginner = (*pgxpool.Pool)(nil)

// WithTx executa fn dentro de uma transação: commit se fn devolver nil,
// rollback caso contrário. Usado pelos fluxos que gravam em mais de uma
// tabela (promoção de faixa, conclusão de convite).
func WithTx(ctx context.Context, pool Beginner, fn func(pctx context.Context, tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
