package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"casino-core/internal/fairness"
	"casino-core/internal/models"
)

// MemoryStore implements Store with in-process maps, mirroring the Redis
// semantics (per-key atomicity under one mutex). It backs unit tests and
// local development without a Redis instance.
type MemoryStore struct {
	mu        sync.Mutex
	demoStart int64

	wallets  map[string]*models.Wallet
	ledgers  map[string][]*models.LedgerEntry
	sessions map[string]*models.GameSession
	tables   map[string]*models.TableState
	history  map[models.Mode][]*models.CrashRecord
	modes    map[int64]models.Mode
	deposits map[string]*models.DepositArtifact
	counters map[string]*counterWindow
}

type counterWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryStore(demoStart int64) *MemoryStore {
	return &MemoryStore{
		demoStart: demoStart,
		wallets:   make(map[string]*models.Wallet),
		ledgers:   make(map[string][]*models.LedgerEntry),
		sessions:  make(map[string]*models.GameSession),
		tables:    make(map[string]*models.TableState),
		history:   make(map[models.Mode][]*models.CrashRecord),
		modes:     make(map[int64]models.Mode),
		deposits:  make(map[string]*models.DepositArtifact),
		counters:  make(map[string]*counterWindow),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetWallet(ctx context.Context, accountID int64, mode models.Mode) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walletLocked(accountID, mode)
}

func (s *MemoryStore) walletLocked(accountID int64, mode models.Mode) (*models.Wallet, error) {
	key := fmt.Sprintf(keyWallet, accountID, mode)
	if w, ok := s.wallets[key]; ok {
		return clone(w), nil
	}

	seed, err := fairness.NewClientSeed()
	if err != nil {
		return nil, err
	}
	var balance int64
	if mode == models.ModeDemo {
		balance = s.demoStart
	}
	now := models.NowMilli()
	w := &models.Wallet{
		AccountID:  accountID,
		Mode:       mode,
		Balance:    balance,
		ClientSeed: seed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.wallets[key] = w
	return clone(w), nil
}

func (s *MemoryStore) NextNonce(ctx context.Context, accountID int64, mode models.Mode) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.walletLocked(accountID, mode); err != nil {
		return "", 0, err
	}
	w := s.wallets[fmt.Sprintf(keyWallet, accountID, mode)]
	seed, nonce := w.ClientSeed, w.Nonce
	w.Nonce++
	w.UpdatedAt = models.NowMilli()
	return seed, nonce, nil
}

func (s *MemoryStore) SetClientSeed(ctx context.Context, accountID int64, mode models.Mode, seed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.walletLocked(accountID, mode); err != nil {
		return err
	}
	w := s.wallets[fmt.Sprintf(keyWallet, accountID, mode)]
	w.ClientSeed = seed
	w.Nonce = 0
	w.UpdatedAt = models.NowMilli()
	return nil
}

func (s *MemoryStore) ApplyBalance(ctx context.Context, accountID int64, mode models.Mode, delta, wagered, won int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.walletLocked(accountID, mode); err != nil {
		return 0, err
	}
	w := s.wallets[fmt.Sprintf(keyWallet, accountID, mode)]

	if w.Balance+delta < 0 {
		return 0, ErrInsufficientFunds
	}
	w.Balance += delta
	w.TotalWagered += wagered
	w.TotalWon += won
	w.UpdatedAt = models.NowMilli()
	return w.Balance, nil
}

func (s *MemoryStore) AppendEntry(ctx context.Context, e *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf(keyLedger, e.AccountID, e.Mode)
	entries := append([]*models.LedgerEntry{clone(e)}, s.ledgers[key]...)
	if len(entries) > ledgerKeep {
		entries = entries[:ledgerKeep]
	}
	s.ledgers[key] = entries
	return nil
}

func (s *MemoryStore) RecentEntries(ctx context.Context, accountID int64, mode models.Mode, limit int64) ([]*models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf(keyLedger, accountID, mode)
	entries := s.ledgers[key]
	if int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	out := make([]*models.LedgerEntry, len(entries))
	for i, e := range entries {
		out[i] = clone(e)
	}
	return out, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess *models.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf(keySession, sess.AccountID, sess.Mode, sess.Kind)
	if _, ok := s.sessions[key]; ok {
		return ErrSessionExists
	}
	s.sessions[key] = clone(sess)
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, accountID int64, mode models.Mode, kind models.GameKind) (*models.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[fmt.Sprintf(keySession, accountID, mode, kind)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(sess), nil
}

func (s *MemoryStore) SaveSession(ctx context.Context, sess *models.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UpdatedAt = models.NowMilli()
	s.sessions[fmt.Sprintf(keySession, sess.AccountID, sess.Mode, sess.Kind)] = clone(sess)
	return nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, accountID int64, mode models.Mode, kind models.GameKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, fmt.Sprintf(keySession, accountID, mode, kind))
	return nil
}

func (s *MemoryStore) GetTable(ctx context.Context, mode models.Mode, tableID string) (*models.TableState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[fmt.Sprintf(keyTable, mode, tableID)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(t), nil
}

func (s *MemoryStore) SaveTable(ctx context.Context, t *models.TableState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.UpdatedAt = models.NowMilli()
	s.tables[fmt.Sprintf(keyTable, t.Mode, t.ID)] = clone(t)
	return nil
}

func (s *MemoryStore) DeleteTable(ctx context.Context, mode models.Mode, tableID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, fmt.Sprintf(keyTable, mode, tableID))
	return nil
}

func (s *MemoryStore) PushCrashRecord(ctx context.Context, mode models.Mode, rec *models.CrashRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := append([]*models.CrashRecord{clone(rec)}, s.history[mode]...)
	if len(records) > crashHistoryKeep {
		records = records[:crashHistoryKeep]
	}
	s.history[mode] = records
	return nil
}

func (s *MemoryStore) CrashHistory(ctx context.Context, mode models.Mode, limit int64) ([]*models.CrashRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.history[mode]
	if int64(len(records)) > limit {
		records = records[:limit]
	}
	out := make([]*models.CrashRecord, len(records))
	for i, r := range records {
		out[i] = clone(r)
	}
	return out, nil
}

func (s *MemoryStore) ActiveMode(ctx context.Context, accountID int64) (models.Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode, ok := s.modes[accountID]; ok {
		return mode, nil
	}
	return models.ModeDemo, nil
}

func (s *MemoryStore) SetActiveMode(ctx context.Context, accountID int64, mode models.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[accountID] = mode
	return nil
}

func (s *MemoryStore) SaveDeposit(ctx context.Context, d *models.DepositArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits[d.ID] = clone(d)
	return nil
}

func (s *MemoryStore) GetDeposit(ctx context.Context, id string) (*models.DepositArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deposits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(d), nil
}

func (s *MemoryStore) IncrCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.counters[key]
	if !ok || now.After(w.resetAt) {
		w = &counterWindow{resetAt: now.Add(window)}
		s.counters[key] = w
	}
	w.count++
	return w.count, nil
}

// clone round-trips through JSON so callers never share pointers with the
// store, matching the isolation a real Redis read gives.
func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("store: marshal %T: %v", v, err))
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("store: unmarshal %T: %v", v, err))
	}
	return out
}
