package models

type GameKind string

const (
	GameKindCrash     GameKind = "crash"
	GameKindMines     GameKind = "mines"
	GameKindBlackjack GameKind = "blackjack"
)

func (k GameKind) Valid() bool {
	switch k {
	case GameKindCrash, GameKindMines, GameKindBlackjack:
		return true
	}
	return false
}

// GameSession is the envelope for one in-progress game. At most one session
// exists per (account, mode, kind); exactly one of the per-kind state
// pointers is set, matching Kind.
type GameSession struct {
	ID        string   `json:"id" redis:"id"`
	AccountID int64    `json:"account_id" redis:"account_id"`
	Mode      Mode     `json:"mode" redis:"mode"`
	Kind      GameKind `json:"kind" redis:"kind"`
	BetAmount int64    `json:"bet_amount" redis:"bet_amount"`

	Crash *CrashState `json:"crash,omitempty"`
	Mines *MinesState `json:"mines,omitempty"`
	Table *TableRef   `json:"table,omitempty"`

	CreatedAt int64 `json:"created_at" redis:"created_at"`
	UpdatedAt int64 `json:"updated_at" redis:"updated_at"`
}

type CrashPhase string

const (
	CrashPhaseBetting CrashPhase = "betting"
	CrashPhaseRunning CrashPhase = "running"
	CrashPhaseCrashed CrashPhase = "crashed"
)

// CrashState holds everything fixed at creation time. The live phase and
// multiplier are never stored: they are pure functions of wall-clock time
// plus these fields, so status survives a process restart unchanged.
type CrashState struct {
	ServerSeed     string `json:"server_seed"` // secret until the round settles
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int64  `json:"nonce"`

	CrashPoint   float64 `json:"crash_point"` // fixed at creation, never recomputed
	BetWindowEnd int64   `json:"bet_window_end"` // unix milli
	StartTime    int64   `json:"start_time"`     // unix milli

	AutoCashout       float64 `json:"auto_cashout,omitempty"` // 0 = disabled
	CashedOut         bool    `json:"cashed_out"`
	CashoutMultiplier float64 `json:"cashout_multiplier,omitempty"`
	CashoutPayout     int64   `json:"cashout_payout,omitempty"`
}

// CrashStatus is the derived, client-safe view of a crash session.
type CrashStatus struct {
	GameID            string     `json:"game_id"`
	Phase             CrashPhase `json:"phase"`
	Multiplier        float64    `json:"multiplier"`
	BetAmount         int64      `json:"bet_amount"`
	AutoCashout       float64    `json:"auto_cashout,omitempty"`
	CashedOut         bool       `json:"cashed_out"`
	CashoutMultiplier float64    `json:"cashout_multiplier,omitempty"`
	CashoutPayout     int64      `json:"cashout_payout,omitempty"`
	CrashPoint        float64    `json:"crash_point,omitempty"` // set once crashed
	ServerSeedHash    string     `json:"server_seed_hash"`
	ServerSeed        string     `json:"server_seed,omitempty"` // revealed once crashed
}

// CrashRecord is one row of the public rolling crash history: the crash
// point plus the commit-reveal pair, enough to re-derive the outcome.
type CrashRecord struct {
	GameID         string  `json:"game_id"`
	CrashPoint     float64 `json:"crash_point"`
	ServerSeedHash string  `json:"server_seed_hash"`
	ServerSeed     string  `json:"server_seed"`
	ClientSeed     string  `json:"client_seed"`
	Nonce          int64   `json:"nonce"`
	CrashedAt      int64   `json:"crashed_at"`
}

// MinesState is the grid game: GridSize cells, Mines secret positions
// chosen without replacement, Revealed strictly disjoint from Mines while
// the hand is live.
type MinesState struct {
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int64  `json:"nonce"`

	GridSize   int   `json:"grid_size"`
	MinesCount int   `json:"mines_count"`
	Mines      []int `json:"mines"` // secret until the hand ends
	Revealed   []int `json:"revealed"`

	Multiplier float64 `json:"multiplier"`
}

func (m *MinesState) IsRevealed(pos int) bool {
	for _, p := range m.Revealed {
		if p == pos {
			return true
		}
	}
	return false
}

func (m *MinesState) IsMine(pos int) bool {
	for _, p := range m.Mines {
		if p == pos {
			return true
		}
	}
	return false
}

// MinesView is the client-safe projection of a mines hand. Mine positions
// are only populated once the hand is over.
type MinesView struct {
	GameID         string  `json:"game_id"`
	BetAmount      int64   `json:"bet_amount"`
	GridSize       int     `json:"grid_size"`
	MinesCount     int     `json:"mines_count"`
	Revealed       []int   `json:"revealed"`
	Multiplier     float64 `json:"multiplier"`
	NextMultiplier float64 `json:"next_multiplier,omitempty"`
	GameOver       bool    `json:"game_over"`
	Win            bool    `json:"win,omitempty"`
	Payout         int64   `json:"payout,omitempty"`
	Mines          []int   `json:"mines,omitempty"`
	ServerSeedHash string  `json:"server_seed_hash"`
	ServerSeed     string  `json:"server_seed,omitempty"`
}

// TableRef ties an account's blackjack session to the shared table it is
// seated at. The table itself is stored under its own key because several
// accounts share it.
type TableRef struct {
	TableID string `json:"table_id"`
}

// DepositStatus follows the lifecycle of a custodial token artifact.
// Expiry is observed lazily: a pending artifact past its deadline becomes
// terminal on the next read, never via a background sweep.
type DepositStatus string

const (
	DepositPending DepositStatus = "pending"
	DepositClaimed DepositStatus = "claimed"
	DepositExpired DepositStatus = "expired"
)

// DepositArtifact is a minted payout token waiting to be claimed. The
// ledger debit that funded it has already been committed; expiry refunds it.
type DepositArtifact struct {
	ID        string        `json:"id" redis:"id"`
	AccountID int64         `json:"account_id" redis:"account_id"`
	Mode      Mode          `json:"mode" redis:"mode"`
	Amount    int64         `json:"amount" redis:"amount"`
	Token     string        `json:"token" redis:"token"`
	Status    DepositStatus `json:"status" redis:"status"`
	ExpiresAt int64         `json:"expires_at" redis:"expires_at"`
	CreatedAt int64         `json:"created_at" redis:"created_at"`
}
