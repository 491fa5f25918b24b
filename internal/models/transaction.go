package models

type EntryKind string

const (
	EntryKindBet      EntryKind = "bet"
	EntryKindWin      EntryKind = "win"
	EntryKindRefund   EntryKind = "refund"
	EntryKindDeposit  EntryKind = "deposit"
	EntryKindWithdraw EntryKind = "withdraw"
)

// LedgerEntry is one immutable row of the append-only transaction log.
// Amount is signed: debits are negative, credits positive. BalanceAfter is
// the wallet balance the moment the entry was committed, so the log doubles
// as an audit trail without replaying sums.
type LedgerEntry struct {
	ID           string            `json:"id" redis:"id"`
	AccountID    int64             `json:"account_id" redis:"account_id"`
	Mode         Mode              `json:"mode" redis:"mode"`
	Amount       int64             `json:"amount" redis:"amount"`
	Kind         EntryKind         `json:"kind" redis:"kind"`
	BalanceAfter int64             `json:"balance_after" redis:"balance_after"`
	Meta         map[string]string `json:"meta,omitempty" redis:"meta"`
	CreatedAt    int64             `json:"created_at" redis:"created_at"`
}
