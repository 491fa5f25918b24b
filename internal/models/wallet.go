package models

// Mode is a wallet partition. Partitions are fully isolated: funds never
// move between them and every balance, session and ledger entry is keyed
// by (account, mode).
type Mode string

const (
	ModeReal Mode = "real"
	ModeDemo Mode = "demo"
)

func (m Mode) Valid() bool {
	return m == ModeReal || m == ModeDemo
}

// Wallet holds the cached balance for one (account, mode) partition.
// All amounts are in the smallest currency unit (cents). The balance is
// derivable from the ledger but cached here for O(1) reads; every mutation
// goes through the ledger service.
type Wallet struct {
	AccountID int64 `json:"account_id" redis:"account_id"`
	Mode      Mode  `json:"mode" redis:"mode"`
	Balance   int64 `json:"balance" redis:"balance"`

	TotalWagered int64 `json:"total_wagered" redis:"total_wagered"`
	TotalWon     int64 `json:"total_won" redis:"total_won"`

	// Provably fair seeds. The client seed is mixed into every outcome
	// derivation; the nonce increments per game so no two games share a roll.
	ClientSeed string `json:"client_seed" redis:"client_seed"`
	Nonce      int64  `json:"nonce" redis:"nonce"`

	CreatedAt int64 `json:"created_at" redis:"created_at"`
	UpdatedAt int64 `json:"updated_at" redis:"updated_at"`
}

type BalanceView struct {
	Mode         Mode   `json:"mode"`
	Balance      int64  `json:"balance"`
	TotalWagered int64  `json:"total_wagered"`
	TotalWon     int64  `json:"total_won"`
	ClientSeed   string `json:"client_seed"`
	Nonce        int64  `json:"nonce"`
}
