package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Minter is the custodial token collaborator. The core calls it only after
// the corresponding ledger movement has already committed, and treats every
// failure as recoverable through a compensating ledger entry.
type Minter interface {
	// Mint issues an opaque bearer token worth amount.
	Mint(ctx context.Context, amount int64) (string, error)
	// Redeem consumes a bearer token and returns its value.
	Redeem(ctx context.Context, token string) (int64, error)
}

// LocalMinter signs self-contained tokens with an HMAC key and tracks
// redeemed token ids in memory. It stands in for the custodial service in
// development and tests; a deployment swaps in a client for the real one.
type LocalMinter struct {
	key []byte

	mu       sync.Mutex
	redeemed map[string]bool
}

func NewLocalMinter(secret string) *LocalMinter {
	return &LocalMinter{
		key:      []byte(secret),
		redeemed: make(map[string]bool),
	}
}

func (m *LocalMinter) Mint(ctx context.Context, amount int64) (string, error) {
	id := uuid.NewString()
	body := fmt.Sprintf("%s:%d", id, amount)
	return base64.RawURLEncoding.EncodeToString([]byte(body)) + "." + m.sign(body), nil
}

func (m *LocalMinter) Redeem(ctx context.Context, token string) (int64, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return 0, errors.New("malformed token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return 0, errors.New("malformed token")
	}
	body := string(raw)
	if !hmac.Equal([]byte(m.sign(body)), []byte(parts[1])) {
		return 0, errors.New("bad token signature")
	}

	fields := strings.SplitN(body, ":", 2)
	if len(fields) != 2 {
		return 0, errors.New("malformed token")
	}
	amount, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || amount <= 0 {
		return 0, errors.New("malformed token")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redeemed[fields[0]] {
		return 0, errors.New("token already redeemed")
	}
	m.redeemed[fields[0]] = true
	return amount, nil
}

func (m *LocalMinter) sign(body string) string {
	mac := hmac.New(sha256.New, m.key)
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}
