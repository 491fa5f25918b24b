package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"casino-core/internal/config"
	"casino-core/internal/fairness"
	"casino-core/internal/models"
	"casino-core/internal/store"
)

// Coordinator orchestrates debit-before-play and credit-after-settle
// across the ledger and the three engines. Every session mutation runs
// under a per-(account, mode, game-kind) lock and every table mutation
// under a per-table lock: the single-writer discipline that keeps
// concurrent requests from double-spending a session.
type Coordinator struct {
	cfg    *config.Config
	store  store.Store
	ledger *Ledger
	crash  *CrashEngine
	mines  *MinesEngine
	tables *TableEngine
	locks  *keyedLocks
	minter Minter
	events Broadcaster
}

func NewCoordinator(cfg *config.Config, st store.Store, minter Minter, events Broadcaster) *Coordinator {
	if events == nil {
		events = NopBroadcaster{}
	}
	return &Coordinator{
		cfg:    cfg,
		store:  st,
		ledger: NewLedger(st),
		crash:  NewCrashEngine(cfg.CrashRTP, cfg.CrashMaxMultiplier, cfg.CrashGrowthRate, cfg.CrashBetWindow),
		mines:  NewMinesEngine(cfg.MinesRTP, cfg.MinesGridSize),
		tables: NewTableEngine(cfg.ShoeDecks, cfg.TableSeats),
		locks:  newKeyedLocks(),
		minter: minter,
		events: events,
	}
}

func (c *Coordinator) Ledger() *Ledger { return c.ledger }

func sessionLockKey(accountID int64, mode models.Mode, kind models.GameKind) string {
	return fmt.Sprintf("session:%d:%s:%s", accountID, mode, kind)
}

func tableLockKey(mode models.Mode, tableID string) string {
	return fmt.Sprintf("table:%s:%s", mode, tableID)
}

func (c *Coordinator) validateBet(amount int64) error {
	if amount < c.cfg.MinBet || amount > c.cfg.MaxBet {
		return ErrInvalidAmount
	}
	return nil
}

// nextSeed hands out the wallet's client seed with the next nonce. The
// store advances the nonce atomically, so no two rounds ever share a
// (seed, nonce) roll and no concurrent balance change is lost.
func (c *Coordinator) nextSeed(ctx context.Context, accountID int64, mode models.Mode) (string, int64, error) {
	return c.store.NextNonce(ctx, accountID, mode)
}

// compensate issues the refund credit that undoes an already-committed
// debit after a downstream step failed. If the credit itself cannot be
// confirmed the funds are dangling: that is the irreducible residual
// case, so it is escalated as a CriticalInconsistency with a support
// reference and pushed to the operator channel.
func (c *Coordinator) compensate(ctx context.Context, accountID int64, mode models.Mode, amount int64, op string, cause error) error {
	_, err := c.ledger.Credit(ctx, accountID, mode, amount, models.EntryKindRefund, map[string]string{
		"op":     op,
		"reason": cause.Error(),
	})
	if err == nil {
		return nil
	}

	crit := &CriticalInconsistency{
		Ref:       uuid.NewString(),
		Op:        op,
		AccountID: accountID,
		Mode:      mode,
		Amount:    amount,
		Cause:     err,
	}
	log.WithFields(log.Fields{
		"ref":     crit.Ref,
		"op":      op,
		"account": accountID,
		"mode":    mode,
		"amount":  amount,
	}).Errorf("compensating credit failed, manual reconciliation required: %v (original failure: %v)", err, cause)
	return crit
}

// criticalPayout escalates a failed win credit. The session state that
// makes the payout unrepeatable has already been persisted, so the funds
// are dangling until an operator reconciles the reference.
func (c *Coordinator) criticalPayout(sess *models.GameSession, payout int64, cause error) error {
	crit := &CriticalInconsistency{
		Ref:       uuid.NewString(),
		Op:        string(sess.Kind) + " payout",
		AccountID: sess.AccountID,
		Mode:      sess.Mode,
		Amount:    payout,
		Cause:     cause,
	}
	log.WithFields(log.Fields{
		"ref":     crit.Ref,
		"game":    sess.Kind,
		"game_id": sess.ID,
		"account": sess.AccountID,
		"mode":    sess.Mode,
		"amount":  payout,
	}).Errorf("payout credit failed after settlement was recorded: %v", cause)
	return crit
}

func formatMultiplier(m float64) string {
	return strconv.FormatFloat(m, 'f', 2, 64)
}

// ActiveMode resolves which wallet partition the account currently plays.
func (c *Coordinator) ActiveMode(ctx context.Context, accountID int64) (models.Mode, error) {
	return c.ledger.ActiveMode(ctx, accountID)
}

// SwitchMode flips the active partition; no funds move.
func (c *Coordinator) SwitchMode(ctx context.Context, accountID int64, mode models.Mode) error {
	return c.ledger.SwitchMode(ctx, accountID, mode)
}

func (c *Coordinator) Balance(ctx context.Context, accountID int64, mode models.Mode) (*models.BalanceView, error) {
	w, err := c.ledger.Wallet(ctx, accountID, mode)
	if err != nil {
		return nil, err
	}
	return &models.BalanceView{
		Mode:         w.Mode,
		Balance:      w.Balance,
		TotalWagered: w.TotalWagered,
		TotalWon:     w.TotalWon,
		ClientSeed:   w.ClientSeed,
		Nonce:        w.Nonce,
	}, nil
}

func (c *Coordinator) Entries(ctx context.Context, accountID int64, mode models.Mode, limit int64) ([]*models.LedgerEntry, error) {
	return c.ledger.Entries(ctx, accountID, mode, limit)
}

// RotateClientSeed lets a player pick up a fresh client seed between
// games; the nonce restarts because the seed changed.
func (c *Coordinator) RotateClientSeed(ctx context.Context, accountID int64, mode models.Mode) (*models.BalanceView, error) {
	seed, err := fairness.NewClientSeed()
	if err != nil {
		return nil, err
	}
	if err := c.store.SetClientSeed(ctx, accountID, mode, seed); err != nil {
		return nil, err
	}
	return c.Balance(ctx, accountID, mode)
}

// Withdraw debits first, then asks the custodial collaborator to mint a
// bearer token. A mint failure is recovered with a compensating refund;
// the successful path parks the token as a pending artifact the account
// must claim before it expires.
func (c *Coordinator) Withdraw(ctx context.Context, accountID int64, mode models.Mode, amount int64) (*models.DepositArtifact, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := c.ledger.Debit(ctx, accountID, mode, amount, models.EntryKindWithdraw, map[string]string{"op": "withdraw"}); err != nil {
		return nil, err
	}

	token, err := c.minter.Mint(ctx, amount)
	if err != nil {
		if cerr := c.compensate(ctx, accountID, mode, amount, "withdraw", err); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: mint: %v", ErrExternalService, err)
	}

	now := models.NowMilli()
	artifact := &models.DepositArtifact{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Mode:      mode,
		Amount:    amount,
		Token:     token,
		Status:    models.DepositPending,
		ExpiresAt: now + c.cfg.WithdrawTTL.Milliseconds(),
		CreatedAt: now,
	}
	if err := c.store.SaveDeposit(ctx, artifact); err != nil {
		// The token exists and the debit is committed; losing the artifact
		// record must not strand the funds silently.
		log.WithFields(log.Fields{
			"account": accountID,
			"mode":    mode,
			"amount":  amount,
		}).Errorf("failed to persist withdrawal artifact: %v", err)
	}
	return artifact, nil
}

// observeArtifact applies lazy expiry: a pending artifact past its
// deadline turns terminal and the debited funds come back as a refund.
// There is no background sweep; expiry happens on whatever observation
// comes first.
func (c *Coordinator) observeArtifact(ctx context.Context, d *models.DepositArtifact) (*models.DepositArtifact, error) {
	if d.Status != models.DepositPending || models.NowMilli() <= d.ExpiresAt {
		return d, nil
	}

	d.Status = models.DepositExpired
	if err := c.store.SaveDeposit(ctx, d); err != nil {
		return nil, err
	}
	if cerr := c.compensate(ctx, d.AccountID, d.Mode, d.Amount, "withdraw expiry", errors.New("artifact expired unclaimed")); cerr != nil {
		return nil, cerr
	}
	return d, nil
}

func (c *Coordinator) GetWithdrawal(ctx context.Context, accountID int64, id string) (*models.DepositArtifact, error) {
	unlock := c.locks.Lock("deposit:" + id)
	defer unlock()

	d, err := c.store.GetDeposit(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	return c.observeArtifact(ctx, d)
}

// ClaimWithdrawal hands out the minted token exactly once.
func (c *Coordinator) ClaimWithdrawal(ctx context.Context, accountID int64, id string) (*models.DepositArtifact, error) {
	unlock := c.locks.Lock("deposit:" + id)
	defer unlock()

	d, err := c.store.GetDeposit(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	d, err = c.observeArtifact(ctx, d)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DepositPending {
		return nil, ErrDepositUnavailable
	}

	d.Status = models.DepositClaimed
	if err := c.store.SaveDeposit(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Deposit redeems a custodial token and credits its value. The redeem
// consumes the token, so a credit failure afterwards is critical: the
// value would otherwise vanish.
func (c *Coordinator) Deposit(ctx context.Context, accountID int64, mode models.Mode, token string) (int64, error) {
	amount, err := c.minter.Redeem(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("%w: redeem: %v", ErrExternalService, err)
	}

	balance, err := c.ledger.Credit(ctx, accountID, mode, amount, models.EntryKindDeposit, map[string]string{"op": "deposit"})
	if err != nil {
		crit := &CriticalInconsistency{
			Ref:       uuid.NewString(),
			Op:        "deposit",
			AccountID: accountID,
			Mode:      mode,
			Amount:    amount,
			Cause:     err,
		}
		log.WithFields(log.Fields{
			"ref":     crit.Ref,
			"account": accountID,
			"mode":    mode,
			"amount":  amount,
		}).Errorf("deposit credit failed after token redeem: %v", err)
		return 0, crit
	}
	return balance, nil
}

// VerifyResult carries the re-derived outcome for a revealed seed pair so
// players can check a settled game independently.
type VerifyResult struct {
	Kind           models.GameKind `json:"kind"`
	ServerSeedHash string          `json:"server_seed_hash"`
	CrashPoint     float64         `json:"crash_point,omitempty"`
	Mines          []int           `json:"mines,omitempty"`
	Cards          []string        `json:"cards,omitempty"`
}

// Verify recomputes a game outcome from a revealed server seed. For
// blackjack the "client seed" is the table id and the nonce is the round,
// matching how the shoe digest is rolled.
func (c *Coordinator) Verify(req *models.VerifyRequest) (*VerifyResult, error) {
	res := &VerifyResult{
		Kind:           req.Kind,
		ServerSeedHash: fairness.HashSeed(req.ServerSeed),
	}

	switch req.Kind {
	case models.GameKindCrash:
		res.CrashPoint = c.crash.CrashPoint(req.ServerSeed, req.ClientSeed, req.Nonce)
	case models.GameKindMines:
		if req.MinesCount < 1 || req.MinesCount > c.mines.GridSize()-1 {
			return nil, ErrInvalidMines
		}
		res.Mines = c.mines.MinePositions(req.ServerSeed, req.ClientSeed, req.Nonce, req.MinesCount)
	case models.GameKindBlackjack:
		res.Cards = c.tables.ShoePrefix(req.ServerSeed, req.ClientSeed, req.Nonce, 16)
	default:
		return nil, ErrInvalidKind
	}
	return res, nil
}

// DepositArtifactTTL is exposed for handlers to report claim deadlines.
func (c *Coordinator) DepositArtifactTTL() time.Duration {
	return c.cfg.WithdrawTTL
}
