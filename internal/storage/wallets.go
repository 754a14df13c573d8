package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

type Wallet struct {
	UserID  string
	Balance int64
	XP      int64
}

// EnsureWallet creates the wallet with the starting balance when it does not exist yet.
func (s *Store) EnsureWallet(ctx context.Context, userID string, starting int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO wallets (user_id, balance, xp, updated_at) VALUES (?, ?, 0, ?)
		ON CONFLICT(user_id) DO NOTHING
	`), userID, starting, time.Now().Unix())
	return err
}

func (s *Store) GetWallet(ctx context.Context, userID string, starting int64) (Wallet, error) {
	if err := s.EnsureWallet(ctx, userID, starting); err != nil {
		return Wallet{}, err
	}
	return s.readWallet(ctx, s.db, userID)
}

// Credit adds amount and returns the new balance.
func (s *Store) Credit(ctx context.Context, userID string, amount, starting int64) (int64, error) {
	return s.adjust(ctx, s.rebind(`UPDATE wallets SET balance = balance + ?, updated_at = ? WHERE user_id = ?`),
		userID, starting, amount, time.Now().Unix(), userID)
}

// Debit subtracts amount only when the balance covers it. On ErrInsufficientFunds nothing changes.
func (s *Store) Debit(ctx context.Context, userID string, amount, starting int64) (int64, error) {
	if err := s.EnsureWallet(ctx, userID, starting); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE wallets SET balance = balance - ?, updated_at = ?
		WHERE user_id = ? AND balance >= ?
	`), amount, time.Now().Unix(), userID, amount)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrInsufficientFunds
	}
	wallet, err := s.readWallet(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, tx.Commit()
}

// AddXP adds delta experience and returns the new total.
func (s *Store) AddXP(ctx context.Context, userID string, delta, starting int64) (int64, error) {
	if err := s.EnsureWallet(ctx, userID, starting); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE wallets SET xp = xp + ?, updated_at = ? WHERE user_id = ?`),
		delta, time.Now().Unix(), userID); err != nil {
		return 0, err
	}
	wallet, err := s.readWallet(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.XP, tx.Commit()
}

func (s *Store) adjust(ctx context.Context, query, userID string, starting int64, args ...any) (int64, error) {
	if err := s.EnsureWallet(ctx, userID, starting); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, err
	}
	wallet, err := s.readWallet(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) readWallet(ctx context.Context, q queryer, userID string) (Wallet, error) {
	wallet := Wallet{UserID: userID}
	err := q.QueryRowContext(ctx, s.rebind(`SELECT balance, xp FROM wallets WHERE user_id = ?`), userID).
		Scan(&wallet.Balance, &wallet.XP)
	return wallet, err
}
