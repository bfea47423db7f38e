package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// Postgres guarda as contas do token nativo do torneio. Transferência é
// atômica e falha alto: conta inexistente ou saldo insuficiente abortam.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			account TEXT PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0)
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Mint credita saldo numa conta, criando-a se não existir.
func (p *Postgres) Mint(ctx context.Context, account string, amount int64) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO accounts (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance
		RETURNING balance`, account, amount).Scan(&balance)
	return balance, err
}

func (p *Postgres) Balance(ctx context.Context, account string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE account=$1`, account).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrAccountNotFound
	}
	return balance, err
}

// Transfer move amount entre contas com lock pessimista na origem.
// O destino é criado se não existir.
func (p *Postgres) Transfer(ctx context.Context, from, to string, amount int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE account=$1 FOR UPDATE`, from).Scan(&balance)
	if err == sql.ErrNoRows {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx, `UPDATE accounts SET balance = balance - $1 WHERE account=$2`, amount, from); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`, to, amount); err != nil {
		return err
	}

	return tx.Commit()
}
