package services

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"casino-core/internal/models"
	"casino-core/internal/store"
)

// Ledger owns every balance mutation. Debit is a single atomic
// check-and-subtract delegated to the store, so under concurrent debits on
// one wallet only the ones that keep the balance at or above zero succeed.
type Ledger struct {
	store store.Store
}

func NewLedger(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// Debit removes amount from the wallet and appends a ledger entry with the
// negative signed amount. Fails with ErrInsufficientFunds before any
// mutation when the wallet cannot cover it.
func (l *Ledger) Debit(ctx context.Context, accountID int64, mode models.Mode, amount int64, kind models.EntryKind, meta map[string]string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var wagered int64
	if kind == models.EntryKindBet {
		wagered = amount
	}

	balance, err := l.store.ApplyBalance(ctx, accountID, mode, -amount, wagered, 0)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return 0, ErrInsufficientFunds
		}
		return 0, err
	}

	l.append(ctx, accountID, mode, -amount, kind, balance, meta)
	return balance, nil
}

// Credit adds amount to the wallet. It cannot fail on the balance check;
// callers rely on that when issuing compensating refunds.
func (l *Ledger) Credit(ctx context.Context, accountID int64, mode models.Mode, amount int64, kind models.EntryKind, meta map[string]string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var won int64
	if kind == models.EntryKindWin {
		won = amount
	}

	balance, err := l.store.ApplyBalance(ctx, accountID, mode, amount, 0, won)
	if err != nil {
		return 0, err
	}

	l.append(ctx, accountID, mode, amount, kind, balance, meta)
	return balance, nil
}

// append records the history row. The balance change is already committed
// at this point, so a failed append is logged rather than unwound.
func (l *Ledger) append(ctx context.Context, accountID int64, mode models.Mode, amount int64, kind models.EntryKind, balanceAfter int64, meta map[string]string) {
	entry := &models.LedgerEntry{
		ID:           models.GenerateEntryID(),
		AccountID:    accountID,
		Mode:         mode,
		Amount:       amount,
		Kind:         kind,
		BalanceAfter: balanceAfter,
		Meta:         meta,
		CreatedAt:    models.NowMilli(),
	}
	if err := l.store.AppendEntry(ctx, entry); err != nil {
		log.WithFields(log.Fields{
			"account": accountID,
			"mode":    mode,
			"kind":    kind,
			"amount":  amount,
		}).Warnf("ledger entry append failed: %v", err)
	}
}

func (l *Ledger) Wallet(ctx context.Context, accountID int64, mode models.Mode) (*models.Wallet, error) {
	return l.store.GetWallet(ctx, accountID, mode)
}

func (l *Ledger) Entries(ctx context.Context, accountID int64, mode models.Mode, limit int64) ([]*models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return l.store.RecentEntries(ctx, accountID, mode, limit)
}

// SwitchMode flips which wallet partition is active for the account. No
// funds move: the partitions stay fully isolated.
func (l *Ledger) SwitchMode(ctx context.Context, accountID int64, mode models.Mode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	return l.store.SetActiveMode(ctx, accountID, mode)
}

func (l *Ledger) ActiveMode(ctx context.Context, accountID int64) (models.Mode, error) {
	return l.store.ActiveMode(ctx, accountID)
}
