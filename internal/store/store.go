// Package store is the persistence collaborator: keyed get/put/delete with
// read-modify-write atomicity per key. Two implementations share the Store
// interface, a Redis one for deployment and an in-memory one for tests.
package store

import (
	"context"
	"errors"
	"time"

	"casino-core/internal/models"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSessionExists     = errors.New("session already exists")
	ErrNotFound          = errors.New("not found")
)

// Store is keyed storage for wallets, sessions, tables, ledger history and
// deposit artifacts. Implementations must make ApplyBalance and
// CreateSession atomic per key; everything else is plain keyed access and
// callers serialize through the coordinator's per-session locks.
type Store interface {
	// GetWallet returns the wallet for (account, mode), creating it on
	// first access. Demo wallets start with the configured demo balance,
	// real wallets start empty.
	GetWallet(ctx context.Context, accountID int64, mode models.Mode) (*models.Wallet, error)

	// NextNonce atomically hands out the wallet's current (clientSeed,
	// nonce) pair and increments the stored nonce. SetClientSeed atomically
	// installs a fresh seed and resets the nonce to zero. Neither touches
	// the balance fields, so they can race ApplyBalance without losing a
	// concurrent credit or debit.
	NextNonce(ctx context.Context, accountID int64, mode models.Mode) (string, int64, error)
	SetClientSeed(ctx context.Context, accountID int64, mode models.Mode, seed string) error

	// ApplyBalance atomically adds delta to the wallet balance, failing
	// with ErrInsufficientFunds when the result would go below zero.
	// wagered and won adjust the lifetime counters in the same write.
	// Returns the balance after the change.
	ApplyBalance(ctx context.Context, accountID int64, mode models.Mode, delta, wagered, won int64) (int64, error)

	AppendEntry(ctx context.Context, e *models.LedgerEntry) error
	RecentEntries(ctx context.Context, accountID int64, mode models.Mode, limit int64) ([]*models.LedgerEntry, error)

	// CreateSession fails with ErrSessionExists when a session is already
	// stored under (account, mode, kind).
	CreateSession(ctx context.Context, s *models.GameSession) error
	GetSession(ctx context.Context, accountID int64, mode models.Mode, kind models.GameKind) (*models.GameSession, error)
	SaveSession(ctx context.Context, s *models.GameSession) error
	DeleteSession(ctx context.Context, accountID int64, mode models.Mode, kind models.GameKind) error

	GetTable(ctx context.Context, mode models.Mode, tableID string) (*models.TableState, error)
	SaveTable(ctx context.Context, t *models.TableState) error
	DeleteTable(ctx context.Context, mode models.Mode, tableID string) error

	// PushCrashRecord prepends to the bounded, order-preserving crash
	// history ring; CrashHistory reads newest first.
	PushCrashRecord(ctx context.Context, mode models.Mode, rec *models.CrashRecord) error
	CrashHistory(ctx context.Context, mode models.Mode, limit int64) ([]*models.CrashRecord, error)

	ActiveMode(ctx context.Context, accountID int64) (models.Mode, error)
	SetActiveMode(ctx context.Context, accountID int64, mode models.Mode) error

	SaveDeposit(ctx context.Context, d *models.DepositArtifact) error
	GetDeposit(ctx context.Context, id string) (*models.DepositArtifact, error)

	// IncrCounter bumps a windowed counter, for the rate-limit shim in
	// front of the core.
	IncrCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	Close() error
}
