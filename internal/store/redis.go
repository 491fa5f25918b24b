package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"casino-core/internal/fairness"
	"casino-core/internal/models"
)

type RedisStore struct {
	client    *redis.Client
	demoStart int64
}

func NewRedisStore(addr, password string, db int, demoStart int64) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, demoStart: demoStart}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetWallet(ctx context.Context, accountID int64, mode models.Mode) (*models.Wallet, error) {
	key := fmt.Sprintf(keyWallet, accountID, mode)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		w, err := newWallet(accountID, mode, s.demoStart)
		if err != nil {
			return nil, err
		}
		// NX so two first-touch requests cannot both seed the wallet.
		set, err := s.client.SetNX(ctx, key, mustJSON(w), 0).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		if set {
			return w, nil
		}
		return s.GetWallet(ctx, accountID, mode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var w models.Wallet
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}
	return &w, nil
}

// nextNonceScript and setClientSeedScript mutate only the seed fields.
// They run atomically against the same key as applyBalanceScript, so a
// concurrent balance change is never overwritten.
var nextNonceScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)
	local seed = wallet.client_seed
	local nonce = wallet.nonce

	wallet.nonce = nonce + 1
	wallet.updated_at = now

	redis.call("SET", key, cjson.encode(wallet))

	return {seed, nonce}
`)

func (s *RedisStore) NextNonce(ctx context.Context, accountID int64, mode models.Mode) (string, int64, error) {
	key := fmt.Sprintf(keyWallet, accountID, mode)

	// Make sure the wallet exists before the script runs.
	if _, err := s.GetWallet(ctx, accountID, mode); err != nil {
		return "", 0, err
	}

	res, err := nextNonceScript.Run(ctx, s.client, []string{key}, models.NowMilli()).Slice()
	if err != nil {
		return "", 0, fmt.Errorf("failed to advance nonce: %w", err)
	}
	if len(res) != 2 {
		return "", 0, fmt.Errorf("failed to advance nonce: unexpected reply %v", res)
	}
	seed, _ := res[0].(string)
	nonce, _ := res[1].(int64)
	return seed, nonce, nil
}

var setClientSeedScript = redis.NewScript(`
	local key = KEYS[1]
	local seed = ARGV[1]
	local now = tonumber(ARGV[2])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)
	wallet.client_seed = seed
	wallet.nonce = 0
	wallet.updated_at = now

	redis.call("SET", key, cjson.encode(wallet))

	return redis.status_reply("OK")
`)

func (s *RedisStore) SetClientSeed(ctx context.Context, accountID int64, mode models.Mode, seed string) error {
	key := fmt.Sprintf(keyWallet, accountID, mode)

	if _, err := s.GetWallet(ctx, accountID, mode); err != nil {
		return err
	}

	if err := setClientSeedScript.Run(ctx, s.client, []string{key}, seed, models.NowMilli()).Err(); err != nil {
		return fmt.Errorf("failed to set client seed: %w", err)
	}
	return nil
}

// applyBalanceScript is the single atomic check-and-adjust every money
// movement funnels through. The balance floor is enforced inside Redis so
// concurrent debits cannot both pass the check.
var applyBalanceScript = redis.NewScript(`
	local key = KEYS[1]
	local delta = tonumber(ARGV[1])
	local wagered = tonumber(ARGV[2])
	local won = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)

	if wallet.balance + delta < 0 then
		return redis.error_reply("insufficient funds")
	end

	wallet.balance = wallet.balance + delta
	wallet.total_wagered = wallet.total_wagered + wagered
	wallet.total_won = wallet.total_won + won
	wallet.updated_at = now

	redis.call("SET", key, cjson.encode(wallet))

	return wallet.balance
`)

func (s *RedisStore) ApplyBalance(ctx context.Context, accountID int64, mode models.Mode, delta, wagered, won int64) (int64, error) {
	key := fmt.Sprintf(keyWallet, accountID, mode)

	// Make sure the wallet exists before the script runs.
	if _, err := s.GetWallet(ctx, accountID, mode); err != nil {
		return 0, err
	}

	balance, err := applyBalanceScript.Run(ctx, s.client, []string{key},
		delta, wagered, won, models.NowMilli()).Int64()
	if err != nil {
		if strings.Contains(err.Error(), "insufficient funds") {
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to apply balance: %w", err)
	}
	return balance, nil
}

func (s *RedisStore) AppendEntry(ctx context.Context, e *models.LedgerEntry) error {
	key := fmt.Sprintf(keyLedger, e.AccountID, e.Mode)

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, mustJSON(e))
	pipe.LTrim(ctx, key, 0, ledgerKeep-1)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentEntries(ctx context.Context, accountID int64, mode models.Mode, limit int64) ([]*models.LedgerEntry, error) {
	key := fmt.Sprintf(keyLedger, accountID, mode)

	raw, err := s.client.LRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	entries := make([]*models.LedgerEntry, 0, len(raw))
	for _, item := range raw {
		var e models.LedgerEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

func (s *RedisStore) CreateSession(ctx context.Context, sess *models.GameSession) error {
	key := fmt.Sprintf(keySession, sess.AccountID, sess.Mode, sess.Kind)

	set, err := s.client.SetNX(ctx, key, mustJSON(sess), TTLSession).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !set {
		return ErrSessionExists
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, accountID int64, mode models.Mode, kind models.GameKind) (*models.GameSession, error) {
	key := fmt.Sprintf(keySession, accountID, mode, kind)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess models.GameSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, sess *models.GameSession) error {
	sess.UpdatedAt = models.NowMilli()
	key := fmt.Sprintf(keySession, sess.AccountID, sess.Mode, sess.Kind)
	return s.client.Set(ctx, key, mustJSON(sess), TTLSession).Err()
}

func (s *RedisStore) DeleteSession(ctx context.Context, accountID int64, mode models.Mode, kind models.GameKind) error {
	key := fmt.Sprintf(keySession, accountID, mode, kind)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) GetTable(ctx context.Context, mode models.Mode, tableID string) (*models.TableState, error) {
	key := fmt.Sprintf(keyTable, mode, tableID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}

	var t models.TableState
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table: %w", err)
	}
	return &t, nil
}

func (s *RedisStore) SaveTable(ctx context.Context, t *models.TableState) error {
	t.UpdatedAt = models.NowMilli()
	key := fmt.Sprintf(keyTable, t.Mode, t.ID)
	return s.client.Set(ctx, key, mustJSON(t), TTLTable).Err()
}

func (s *RedisStore) DeleteTable(ctx context.Context, mode models.Mode, tableID string) error {
	key := fmt.Sprintf(keyTable, mode, tableID)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) PushCrashRecord(ctx context.Context, mode models.Mode, rec *models.CrashRecord) error {
	key := fmt.Sprintf(keyCrashHistory, mode)

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, mustJSON(rec))
	pipe.LTrim(ctx, key, 0, crashHistoryKeep-1)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to push crash record: %w", err)
	}
	return nil
}

func (s *RedisStore) CrashHistory(ctx context.Context, mode models.Mode, limit int64) ([]*models.CrashRecord, error) {
	key := fmt.Sprintf(keyCrashHistory, mode)

	raw, err := s.client.LRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read crash history: %w", err)
	}

	records := make([]*models.CrashRecord, 0, len(raw))
	for _, item := range raw {
		var rec models.CrashRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

func (s *RedisStore) ActiveMode(ctx context.Context, accountID int64) (models.Mode, error) {
	key := fmt.Sprintf(keyActiveMode, accountID)

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return models.ModeDemo, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get active mode: %w", err)
	}

	mode := models.Mode(val)
	if !mode.Valid() {
		return models.ModeDemo, nil
	}
	return mode, nil
}

func (s *RedisStore) SetActiveMode(ctx context.Context, accountID int64, mode models.Mode) error {
	key := fmt.Sprintf(keyActiveMode, accountID)
	return s.client.Set(ctx, key, string(mode), 0).Err()
}

func (s *RedisStore) SaveDeposit(ctx context.Context, d *models.DepositArtifact) error {
	key := fmt.Sprintf(keyDeposit, d.ID)
	return s.client.Set(ctx, key, mustJSON(d), TTLDeposit).Err()
}

func (s *RedisStore) GetDeposit(ctx context.Context, id string) (*models.DepositArtifact, error) {
	key := fmt.Sprintf(keyDeposit, id)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	var d models.DepositArtifact
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deposit: %w", err)
	}
	return &d, nil
}

func (s *RedisStore) IncrCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := fmt.Sprintf(keyRateLimit, key)

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump counter: %w", err)
	}
	if count == 1 {
		s.client.Expire(ctx, k, window)
	}
	return count, nil
}

func newWallet(accountID int64, mode models.Mode, demoStart int64) (*models.Wallet, error) {
	seed, err := fairness.NewClientSeed()
	if err != nil {
		return nil, err
	}

	var balance int64
	if mode == models.ModeDemo {
		balance = demoStart
	}

	now := models.NowMilli()
	return &models.Wallet{
		AccountID:  accountID,
		Mode:       mode,
		Balance:    balance,
		ClientSeed: seed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("store: marshal %T: %v", v, err))
	}
	return data
}
