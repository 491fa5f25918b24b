package services_test

import (
	"context"
	"errors"
	"testing"

	"casino-core/internal/models"
	"casino-core/internal/services"
	"casino-core/internal/store"
)

func TestLedgerDebitCredit(t *testing.T) {
	ledger := services.NewLedger(store.NewMemoryStore(10000))
	ctx := context.Background()

	balance, err := ledger.Debit(ctx, 1, models.ModeDemo, 4000, models.EntryKindBet, map[string]string{"game": "crash"})
	if err != nil {
		t.Fatalf("Failed to debit: %v", err)
	}
	if balance != 6000 {
		t.Errorf("Expected 6000 after debit, got %d", balance)
	}

	balance, err = ledger.Credit(ctx, 1, models.ModeDemo, 8000, models.EntryKindWin, nil)
	if err != nil {
		t.Fatalf("Failed to credit: %v", err)
	}
	if balance != 14000 {
		t.Errorf("Expected 14000 after credit, got %d", balance)
	}

	w, err := ledger.Wallet(ctx, 1, models.ModeDemo)
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	if w.TotalWagered != 4000 || w.TotalWon != 8000 {
		t.Errorf("Lifetime counters off: wagered %d, won %d", w.TotalWagered, w.TotalWon)
	}

	entries, err := ledger.Entries(ctx, 1, models.ModeDemo, 10)
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	// Newest first, signed amounts, running balance.
	if entries[0].Amount != 8000 || entries[0].BalanceAfter != 14000 {
		t.Errorf("Win entry wrong: %+v", entries[0])
	}
	if entries[1].Amount != -4000 || entries[1].BalanceAfter != 6000 {
		t.Errorf("Bet entry wrong: %+v", entries[1])
	}
	if entries[1].Meta["game"] != "crash" {
		t.Error("Entry metadata should round-trip")
	}
}

func TestLedgerRejectsOverdraft(t *testing.T) {
	ledger := services.NewLedger(store.NewMemoryStore(1000))
	ctx := context.Background()

	if _, err := ledger.Debit(ctx, 2, models.ModeDemo, 2000, models.EntryKindBet, nil); !errors.Is(err, services.ErrInsufficientFunds) {
		t.Fatalf("Overdraft should fail with ErrInsufficientFunds, got %v", err)
	}

	w, _ := ledger.Wallet(ctx, 2, models.ModeDemo)
	if w.Balance != 1000 || w.TotalWagered != 0 {
		t.Error("A failed debit must leave no trace")
	}

	entries, _ := ledger.Entries(ctx, 2, models.ModeDemo, 10)
	if len(entries) != 0 {
		t.Errorf("A failed debit must not write history, got %d entries", len(entries))
	}
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	ledger := services.NewLedger(store.NewMemoryStore(1000))
	ctx := context.Background()

	if _, err := ledger.Debit(ctx, 3, models.ModeDemo, 0, models.EntryKindBet, nil); !errors.Is(err, services.ErrInvalidAmount) {
		t.Errorf("Zero debit should be rejected, got %v", err)
	}
	if _, err := ledger.Debit(ctx, 3, models.ModeDemo, -5, models.EntryKindBet, nil); !errors.Is(err, services.ErrInvalidAmount) {
		t.Errorf("Negative debit should be rejected, got %v", err)
	}
	if _, err := ledger.Credit(ctx, 3, models.ModeDemo, -5, models.EntryKindWin, nil); !errors.Is(err, services.ErrInvalidAmount) {
		t.Errorf("Negative credit should be rejected, got %v", err)
	}
}

func TestLocalMinterRoundTrip(t *testing.T) {
	minter := services.NewLocalMinter("secret")
	ctx := context.Background()

	token, err := minter.Mint(ctx, 2500)
	if err != nil {
		t.Fatalf("Failed to mint: %v", err)
	}

	amount, err := minter.Redeem(ctx, token)
	if err != nil {
		t.Fatalf("Failed to redeem: %v", err)
	}
	if amount != 2500 {
		t.Errorf("Expected 2500, got %d", amount)
	}

	if _, err := minter.Redeem(ctx, token); err == nil {
		t.Error("A token redeems exactly once")
	}
	if _, err := minter.Redeem(ctx, "garbage"); err == nil {
		t.Error("Malformed tokens should be rejected")
	}

	other := services.NewLocalMinter("different-secret")
	fresh, _ := minter.Mint(ctx, 100)
	if _, err := other.Redeem(ctx, fresh); err == nil {
		t.Error("Tokens from a different key should fail the signature check")
	}
}
