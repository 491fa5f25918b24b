package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"casino-core/internal/models"
	"casino-core/internal/store"
)

// RoundSettlement is the outcome of a finished round: the per-hand results
// and the dealer's final hand, captured before the table resets for the
// next betting phase.
type RoundSettlement struct {
	Results     []models.RoundResult `json:"results"`
	DealerCards []models.Card        `json:"dealer_cards"`
	DealerValue int                  `json:"dealer_value"`
}

// TableRound pairs the table view with the settlement of a round that
// finished during the triggering call.
type TableRound struct {
	View       *models.TableView `json:"table"`
	Settlement *RoundSettlement  `json:"settlement,omitempty"`
}

// JoinTable seats the account at the given table, or opens a fresh one
// when no table id is supplied. The blackjack session envelope enforces
// one table per (account, mode); the table state itself lives under its
// own key because several accounts share it. Lock order is always the
// account's session lock first, then the table lock.
func (c *Coordinator) JoinTable(ctx context.Context, accountID int64, mode models.Mode, tableID string) (*models.TableView, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}

	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindBlackjack))
	defer unlock()

	if _, err := c.store.GetSession(ctx, accountID, mode, models.GameKindBlackjack); err == nil {
		return nil, ErrSessionExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var t *models.TableState
	if tableID == "" {
		nt, err := c.tables.NewTable(mode)
		if err != nil {
			return nil, err
		}
		t = nt
		tableID = t.ID
	}

	unlockTable := c.locks.Lock(tableLockKey(mode, tableID))
	defer unlockTable()

	if t == nil {
		existing, err := c.store.GetTable(ctx, mode, tableID)
		if err != nil {
			return nil, err
		}
		t = existing
	}

	if err := c.tables.Join(t, accountID); err != nil {
		return nil, err
	}

	sess := &models.GameSession{
		ID:        models.GenerateGameID(),
		AccountID: accountID,
		Mode:      mode,
		Kind:      models.GameKindBlackjack,
		Table:     &models.TableRef{TableID: t.ID},
		CreatedAt: models.NowMilli(),
	}
	if err := c.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	if err := c.saveTable(ctx, t); err != nil {
		return nil, err
	}

	view := c.tables.View(t, accountID)
	c.events.Publish(accountID, "table:joined", view)
	return view, nil
}

// LeaveTable vacates the seat. A stake bet into a round that never dealt
// comes back as a refund; leaving mid-play is rejected by the engine. The
// last seat out deletes the table.
func (c *Coordinator) LeaveTable(ctx context.Context, accountID int64, mode models.Mode) error {
	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindBlackjack))
	defer unlock()

	sess, err := c.tableSession(ctx, accountID, mode)
	if err != nil {
		return err
	}

	unlockTable := c.locks.Lock(tableLockKey(mode, sess.Table.TableID))
	defer unlockTable()

	t, err := c.store.GetTable(ctx, mode, sess.Table.TableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The table is gone; just drop the dangling session.
			return c.store.DeleteSession(ctx, accountID, mode, models.GameKindBlackjack)
		}
		return err
	}

	refund, err := c.tables.Leave(t, accountID)
	if err != nil {
		return err
	}

	if len(t.Seats) == 0 {
		if err := c.store.DeleteTable(ctx, mode, t.ID); err != nil {
			return err
		}
	} else if err := c.saveTable(ctx, t); err != nil {
		return err
	}

	if refund > 0 {
		if _, err := c.ledger.Credit(ctx, accountID, mode, refund, models.EntryKindRefund, map[string]string{
			"game": "blackjack",
			"op":   "leave",
		}); err != nil {
			return c.criticalPayout(sess, refund, err)
		}
	}
	return c.store.DeleteSession(ctx, accountID, mode, models.GameKindBlackjack)
}

// TableBet debits the stake and places it. When the bet completes the
// betting phase the table deals, and dealt naturals all round can finish
// it immediately, in which case settlement runs in the same call.
func (c *Coordinator) TableBet(ctx context.Context, accountID int64, mode models.Mode, amount int64) (*TableRound, error) {
	if err := c.validateBet(amount); err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindBlackjack))
	defer unlock()

	sess, err := c.tableSession(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}

	unlockTable := c.locks.Lock(tableLockKey(mode, sess.Table.TableID))
	defer unlockTable()

	t, err := c.store.GetTable(ctx, mode, sess.Table.TableID)
	if err != nil {
		return nil, err
	}

	if _, err := c.ledger.Debit(ctx, accountID, mode, amount, models.EntryKindBet, map[string]string{
		"game":  "blackjack",
		"table": t.ID,
	}); err != nil {
		return nil, err
	}

	dealt, err := c.tables.PlaceBet(t, accountID, amount)
	if err != nil {
		if cerr := c.compensate(ctx, accountID, mode, amount, "table bet", err); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}

	var settled *RoundSettlement
	if dealt && c.tables.RoundFinished(t) {
		settled, err = c.settleRound(ctx, t)
		if err != nil {
			return nil, err
		}
	}
	if err := c.saveTable(ctx, t); err != nil {
		return nil, err
	}

	round := &TableRound{View: c.tables.View(t, accountID), Settlement: settled}
	if dealt {
		c.events.Publish(accountID, "table:dealt", round.View)
	}
	return round, nil
}

// TableAction validates, debits the action's cost if it has one, then
// applies it. Costed actions (double, split, insurance) follow the same
// debit-before-play rule as the opening bet.
func (c *Coordinator) TableAction(ctx context.Context, accountID int64, mode models.Mode, action string, amount int64) (*TableRound, error) {
	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindBlackjack))
	defer unlock()

	sess, err := c.tableSession(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}

	unlockTable := c.locks.Lock(tableLockKey(mode, sess.Table.TableID))
	defer unlockTable()

	t, err := c.store.GetTable(ctx, mode, sess.Table.TableID)
	if err != nil {
		return nil, err
	}

	cost, err := c.tables.ValidateAction(t, accountID, action, amount)
	if err != nil {
		return nil, err
	}
	if cost > 0 {
		if _, err := c.ledger.Debit(ctx, accountID, mode, cost, models.EntryKindBet, map[string]string{
			"game":   "blackjack",
			"table":  t.ID,
			"action": action,
		}); err != nil {
			return nil, err
		}
	}

	c.tables.ApplyAction(t, accountID, action, amount)

	var settled *RoundSettlement
	if c.tables.RoundFinished(t) {
		settled, err = c.settleRound(ctx, t)
		if err != nil {
			return nil, err
		}
	}
	if err := c.saveTable(ctx, t); err != nil {
		return nil, err
	}

	return &TableRound{View: c.tables.View(t, accountID), Settlement: settled}, nil
}

// TableStatus returns the caller's projection of their table.
func (c *Coordinator) TableStatus(ctx context.Context, accountID int64, mode models.Mode) (*models.TableView, error) {
	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindBlackjack))
	defer unlock()

	sess, err := c.tableSession(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}

	unlockTable := c.locks.Lock(tableLockKey(mode, sess.Table.TableID))
	defer unlockTable()

	t, err := c.store.GetTable(ctx, mode, sess.Table.TableID)
	if err != nil {
		return nil, err
	}
	return c.tables.View(t, accountID), nil
}

// settleRound runs the dealer, credits every payout and resets the table
// for the next betting phase. Payouts include the returned stake. A
// credit that fails is escalated per hand with a support reference the
// result carries out, but never stops the rest of the settlement: the
// other seats' money must still move.
func (c *Coordinator) settleRound(ctx context.Context, t *models.TableState) (*RoundSettlement, error) {
	c.tables.PlayDealer(t)
	results := c.tables.Settle(t)

	settled := &RoundSettlement{
		Results:     results,
		DealerCards: append([]models.Card(nil), t.Dealer.Cards...),
	}
	settled.DealerValue, _ = t.Dealer.Value()

	for i := range results {
		res := &results[i]
		total := res.Payout + res.Insurance
		if total <= 0 {
			continue
		}
		if _, err := c.ledger.Credit(ctx, res.AccountID, t.Mode, total, models.EntryKindWin, map[string]string{
			"game":    "blackjack",
			"table":   t.ID,
			"outcome": res.Outcome,
		}); err != nil {
			crit := &CriticalInconsistency{
				Ref:       uuid.NewString(),
				Op:        "blackjack payout",
				AccountID: res.AccountID,
				Mode:      t.Mode,
				Amount:    total,
				Cause:     err,
			}
			res.SupportRef = crit.Ref
			log.WithFields(log.Fields{
				"ref":     crit.Ref,
				"table":   t.ID,
				"account": res.AccountID,
				"mode":    t.Mode,
				"amount":  total,
			}).Errorf("round payout credit failed, manual reconciliation required: %v", crit.Cause)
		}
	}

	if err := c.tables.ResetRound(t); err != nil {
		return settled, err
	}

	for _, s := range t.Seats {
		c.events.Publish(s.AccountID, "table:settled", settled)
	}
	return settled, nil
}

func (c *Coordinator) tableSession(ctx context.Context, accountID int64, mode models.Mode) (*models.GameSession, error) {
	sess, err := c.store.GetSession(ctx, accountID, mode, models.GameKindBlackjack)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	if sess.Table == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}

func (c *Coordinator) saveTable(ctx context.Context, t *models.TableState) error {
	t.UpdatedAt = models.NowMilli()
	return c.store.SaveTable(ctx, t)
}
