package services

import (
	"context"
	"errors"

	"casino-core/internal/models"
	"casino-core/internal/store"
)

// StartCrash debits the bet and opens a crash round. A leftover session
// that already crashed is finalized on the way in; a still-live one
// rejects the new bet.
func (c *Coordinator) StartCrash(ctx context.Context, accountID int64, mode models.Mode, amount int64, autoCashout float64) (*models.CrashStatus, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	if err := c.validateBet(amount); err != nil {
		return nil, err
	}
	if autoCashout != 0 && autoCashout <= 1.0 {
		return nil, ErrInvalidAmount
	}

	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindCrash))
	defer unlock()

	if sess, err := c.store.GetSession(ctx, accountID, mode, models.GameKindCrash); err == nil {
		if _, gone, oerr := c.observeCrash(ctx, sess); oerr != nil {
			return nil, oerr
		} else if !gone {
			return nil, ErrSessionExists
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	clientSeed, nonce, err := c.nextSeed(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}

	if _, err := c.ledger.Debit(ctx, accountID, mode, amount, models.EntryKindBet, map[string]string{"game": "crash"}); err != nil {
		return nil, err
	}

	st, err := c.crash.NewRound(clientSeed, nonce, autoCashout)
	if err != nil {
		if cerr := c.compensate(ctx, accountID, mode, amount, "crash start", err); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}

	sess := &models.GameSession{
		ID:        models.GenerateGameID(),
		AccountID: accountID,
		Mode:      mode,
		Kind:      models.GameKindCrash,
		BetAmount: amount,
		Crash:     st,
		CreatedAt: models.NowMilli(),
	}
	if err := c.store.CreateSession(ctx, sess); err != nil {
		if cerr := c.compensate(ctx, accountID, mode, amount, "crash start", err); cerr != nil {
			return nil, cerr
		}
		if errors.Is(err, store.ErrSessionExists) {
			return nil, ErrSessionExists
		}
		return nil, err
	}

	status := c.crashStatus(sess, models.CrashPhaseBetting, 1.0)
	c.events.Publish(accountID, "crash:start", status)
	return status, nil
}

// CrashStatus derives the live state of the account's crash round. The
// call may settle an auto-cashout or finalize a crash as side effects of
// the observation; both happen under the session lock.
func (c *Coordinator) CrashStatus(ctx context.Context, accountID int64, mode models.Mode) (*models.CrashStatus, error) {
	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindCrash))
	defer unlock()

	sess, err := c.store.GetSession(ctx, accountID, mode, models.GameKindCrash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	status, _, err := c.observeCrash(ctx, sess)
	return status, err
}

// CrashCashout settles the round at the current multiplier. Only legal
// while running and only once; an auto-cashout threshold that already
// triggered wins over the manual request.
func (c *Coordinator) CrashCashout(ctx context.Context, accountID int64, mode models.Mode) (*models.CrashStatus, error) {
	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindCrash))
	defer unlock()

	sess, err := c.store.GetSession(ctx, accountID, mode, models.GameKindCrash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	st := sess.Crash
	now := models.NowMilli()
	phase, mult := c.crash.PhaseAt(st, now)

	if c.crash.AutoCashoutDue(st, mult) {
		// The threshold fired first; the manual request just observes it.
		status, _, err := c.observeCrash(ctx, sess)
		return status, err
	}
	if st.CashedOut {
		return nil, ErrAlreadyCashedOut
	}
	if phase != models.CrashPhaseRunning {
		return nil, ErrWrongPhase
	}

	if err := c.settleCrashCashout(ctx, sess, mult); err != nil {
		return nil, err
	}
	return c.crashStatus(sess, phase, mult), nil
}

// observeCrash is the single status-derivation path: applies a due
// auto-cashout, finalizes a reached crash point into the rolling history,
// and reports whether the session was deleted.
func (c *Coordinator) observeCrash(ctx context.Context, sess *models.GameSession) (*models.CrashStatus, bool, error) {
	st := sess.Crash
	now := models.NowMilli()
	phase, mult := c.crash.PhaseAt(st, now)

	if c.crash.AutoCashoutDue(st, mult) {
		if err := c.settleCrashCashout(ctx, sess, st.AutoCashout); err != nil {
			return nil, false, err
		}
	}

	if phase != models.CrashPhaseCrashed {
		return c.crashStatus(sess, phase, mult), false, nil
	}

	rec := &models.CrashRecord{
		GameID:         sess.ID,
		CrashPoint:     st.CrashPoint,
		ServerSeedHash: st.ServerSeedHash,
		ServerSeed:     st.ServerSeed,
		ClientSeed:     st.ClientSeed,
		Nonce:          st.Nonce,
		CrashedAt:      now,
	}
	if err := c.store.PushCrashRecord(ctx, sess.Mode, rec); err != nil {
		return nil, false, err
	}
	if err := c.store.DeleteSession(ctx, sess.AccountID, sess.Mode, sess.Kind); err != nil {
		return nil, false, err
	}

	status := c.crashStatus(sess, models.CrashPhaseCrashed, st.CrashPoint)
	c.events.Publish(sess.AccountID, "crash:crashed", status)
	return status, true, nil
}

// settleCrashCashout pays out at the given multiplier. The cashed-out
// flag is persisted before the credit so a re-entrant request can never
// pay twice; a credit that then fails is escalated, not retried blindly.
func (c *Coordinator) settleCrashCashout(ctx context.Context, sess *models.GameSession, multiplier float64) error {
	payout := c.crash.Cashout(sess.Crash, multiplier, sess.BetAmount)
	if err := c.store.SaveSession(ctx, sess); err != nil {
		return err
	}

	if _, err := c.ledger.Credit(ctx, sess.AccountID, sess.Mode, payout, models.EntryKindWin, map[string]string{
		"game":       "crash",
		"game_id":    sess.ID,
		"multiplier": formatMultiplier(multiplier),
	}); err != nil {
		return c.criticalPayout(sess, payout, err)
	}

	c.events.Publish(sess.AccountID, "crash:cashout", c.crashStatus(sess, models.CrashPhaseRunning, multiplier))
	return nil
}

func (c *Coordinator) crashStatus(sess *models.GameSession, phase models.CrashPhase, multiplier float64) *models.CrashStatus {
	st := sess.Crash
	status := &models.CrashStatus{
		GameID:            sess.ID,
		Phase:             phase,
		Multiplier:        multiplier,
		BetAmount:         sess.BetAmount,
		AutoCashout:       st.AutoCashout,
		CashedOut:         st.CashedOut,
		CashoutMultiplier: st.CashoutMultiplier,
		CashoutPayout:     st.CashoutPayout,
		ServerSeedHash:    st.ServerSeedHash,
	}
	if phase == models.CrashPhaseCrashed {
		status.CrashPoint = st.CrashPoint
		status.ServerSeed = st.ServerSeed
	}
	return status
}

// CrashHistory reads the public rolling history, newest first.
func (c *Coordinator) CrashHistory(ctx context.Context, mode models.Mode, limit int64) ([]*models.CrashRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return c.store.CrashHistory(ctx, mode, limit)
}

// StartMines debits the bet and lays out a fresh grid.
func (c *Coordinator) StartMines(ctx context.Context, accountID int64, mode models.Mode, amount int64, minesCount int) (*models.MinesView, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	if err := c.validateBet(amount); err != nil {
		return nil, err
	}
	if minesCount < 1 || minesCount > c.mines.GridSize()-1 {
		return nil, ErrInvalidMines
	}

	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindMines))
	defer unlock()

	// Reject up front so a live hand never costs a nonce or a ledger
	// bet/refund pair.
	if _, err := c.store.GetSession(ctx, accountID, mode, models.GameKindMines); err == nil {
		return nil, ErrSessionExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	clientSeed, nonce, err := c.nextSeed(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}

	if _, err := c.ledger.Debit(ctx, accountID, mode, amount, models.EntryKindBet, map[string]string{"game": "mines"}); err != nil {
		return nil, err
	}

	st, err := c.mines.NewBoard(clientSeed, nonce, minesCount)
	if err != nil {
		if cerr := c.compensate(ctx, accountID, mode, amount, "mines start", err); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}

	sess := &models.GameSession{
		ID:        models.GenerateGameID(),
		AccountID: accountID,
		Mode:      mode,
		Kind:      models.GameKindMines,
		BetAmount: amount,
		Mines:     st,
		CreatedAt: models.NowMilli(),
	}
	if err := c.store.CreateSession(ctx, sess); err != nil {
		if cerr := c.compensate(ctx, accountID, mode, amount, "mines start", err); cerr != nil {
			return nil, cerr
		}
		if errors.Is(err, store.ErrSessionExists) {
			return nil, ErrSessionExists
		}
		return nil, err
	}

	return c.minesView(sess, false, false, 0), nil
}

// MinesStatus returns the live view of the account's grid.
func (c *Coordinator) MinesStatus(ctx context.Context, accountID int64, mode models.Mode) (*models.MinesView, error) {
	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindMines))
	defer unlock()

	sess, err := c.minesSession(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}
	return c.minesView(sess, false, false, 0), nil
}

// RevealMines uncovers one cell. A mine ends the hand as a terminal loss
// with the full mine set revealed; a safe cell advances the multiplier.
func (c *Coordinator) RevealMines(ctx context.Context, accountID int64, mode models.Mode, pos int) (*models.MinesView, error) {
	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindMines))
	defer unlock()

	sess, err := c.minesSession(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}

	hit, err := c.mines.Reveal(sess.Mines, pos)
	if err != nil {
		return nil, err
	}

	if hit {
		if err := c.store.DeleteSession(ctx, accountID, mode, models.GameKindMines); err != nil {
			return nil, err
		}
		view := c.minesView(sess, true, false, 0)
		c.events.Publish(accountID, "mines:bust", view)
		return view, nil
	}

	if err := c.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return c.minesView(sess, false, false, 0), nil
}

// CashoutMines pays floor(bet * M(r)); at least one safe reveal is
// required. The session is deleted before the credit so two racing
// cash-outs cannot both pay.
func (c *Coordinator) CashoutMines(ctx context.Context, accountID int64, mode models.Mode) (*models.MinesView, error) {
	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindMines))
	defer unlock()

	sess, err := c.minesSession(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}
	if len(sess.Mines.Revealed) < 1 {
		return nil, ErrNothingRevealed
	}

	payout := c.mines.Payout(sess.Mines, sess.BetAmount)
	if err := c.store.DeleteSession(ctx, accountID, mode, models.GameKindMines); err != nil {
		return nil, err
	}

	if _, err := c.ledger.Credit(ctx, accountID, mode, payout, models.EntryKindWin, map[string]string{
		"game":       "mines",
		"game_id":    sess.ID,
		"multiplier": formatMultiplier(sess.Mines.Multiplier),
	}); err != nil {
		return nil, c.criticalPayout(sess, payout, err)
	}

	view := c.minesView(sess, true, true, payout)
	c.events.Publish(accountID, "mines:cashout", view)
	return view, nil
}

// AbandonMines forfeits the bet unconditionally and ends the hand.
func (c *Coordinator) AbandonMines(ctx context.Context, accountID int64, mode models.Mode) (*models.MinesView, error) {
	unlock := c.locks.Lock(sessionLockKey(accountID, mode, models.GameKindMines))
	defer unlock()

	sess, err := c.minesSession(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}
	if err := c.store.DeleteSession(ctx, accountID, mode, models.GameKindMines); err != nil {
		return nil, err
	}
	return c.minesView(sess, true, false, 0), nil
}

func (c *Coordinator) minesSession(ctx context.Context, accountID int64, mode models.Mode) (*models.GameSession, error) {
	sess, err := c.store.GetSession(ctx, accountID, mode, models.GameKindMines)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	return sess, nil
}

func (c *Coordinator) minesView(sess *models.GameSession, gameOver, win bool, payout int64) *models.MinesView {
	st := sess.Mines
	view := &models.MinesView{
		GameID:         sess.ID,
		BetAmount:      sess.BetAmount,
		GridSize:       st.GridSize,
		MinesCount:     st.MinesCount,
		Revealed:       st.Revealed,
		Multiplier:     st.Multiplier,
		GameOver:       gameOver,
		Win:            win,
		Payout:         payout,
		ServerSeedHash: st.ServerSeedHash,
	}
	if gameOver {
		view.Mines = st.Mines
		view.ServerSeed = st.ServerSeed
	} else if left := st.GridSize - st.MinesCount - len(st.Revealed); left > 0 {
		view.NextMultiplier = c.mines.Multiplier(len(st.Revealed)+1, st.MinesCount)
	}
	return view
}
