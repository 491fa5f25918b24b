package models

// Card ranks use "T" for ten so every rank is a single byte.
var (
	Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A"}
	Suits = []string{"S", "H", "D", "C"}
)

type Card struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

func (c Card) String() string { return c.Rank + c.Suit }

// baseValue is the hard value of a card; aces count 1 here and the soft
// upgrade to 11 is applied at hand level.
func (c Card) baseValue() int {
	switch c.Rank {
	case "A":
		return 1
	case "T", "J", "Q", "K":
		return 10
	default:
		return int(c.Rank[0] - '0')
	}
}

type HandStatus string

const (
	HandActive      HandStatus = "active"
	HandStand       HandStatus = "stand"
	HandBust        HandStatus = "bust"
	HandSurrendered HandStatus = "surrendered"
	HandBlackjack   HandStatus = "blackjack"
)

// Hand is one bet-carrying set of cards. A seat starts each round with a
// single hand; splits insert additional hands after the current one.
type Hand struct {
	Cards     []Card     `json:"cards"`
	Bet       int64      `json:"bet"`
	Status    HandStatus `json:"status"`
	Insurance int64      `json:"insurance,omitempty"`
	Acted     bool       `json:"acted"`      // any hit/stand/double/split taken
	FromSplit bool       `json:"from_split"` // split hands cannot be naturals
	Doubled   bool       `json:"doubled"`
}

// Value returns the best blackjack value of the hand and whether it is
// soft (an ace currently counted as 11).
func (h *Hand) Value() (int, bool) {
	total, aces := 0, 0
	for _, c := range h.Cards {
		total += c.baseValue()
		if c.Rank == "A" {
			aces++
		}
	}
	if aces > 0 && total+10 <= 21 {
		return total + 10, true
	}
	return total, false
}

func (h *Hand) IsBust() bool {
	v, _ := h.Value()
	return v > 21
}

// IsNatural reports a two-card 21 on an unsplit hand.
func (h *Hand) IsNatural() bool {
	if len(h.Cards) != 2 || h.FromSplit {
		return false
	}
	v, _ := h.Value()
	return v == 21
}

// IsPair reports whether the first two cards share a rank, the split
// precondition.
func (h *Hand) IsPair() bool {
	return len(h.Cards) == 2 && h.Cards[0].Rank == h.Cards[1].Rank
}

type SeatStatus string

const (
	SeatWaiting SeatStatus = "waiting" // joined mid-round, sits out until next betting phase
	SeatBetting SeatStatus = "betting"
	SeatReady   SeatStatus = "ready" // bet placed, waiting for the deal
)

type Seat struct {
	AccountID int64      `json:"account_id"`
	Status    SeatStatus `json:"status"`
	Hands     []*Hand    `json:"hands"`
	HandIndex int        `json:"hand_index"`
	Stake     int64      `json:"stake"` // sum of hand bets this round
}

// CurrentHand returns the seat's hand the turn pointer addresses, or nil
// when the seat has no live hand left.
func (s *Seat) CurrentHand() *Hand {
	if s.HandIndex < 0 || s.HandIndex >= len(s.Hands) {
		return nil
	}
	return s.Hands[s.HandIndex]
}

type TablePhase string

const (
	TableWaiting TablePhase = "waiting"
	TableBetting TablePhase = "betting"
	TablePlaying TablePhase = "playing"
	TablePayout  TablePhase = "payout"
)

// TableState is one shared blackjack table. The shoe and the dealer's hole
// card are secrets; handlers project through TableView before anything
// reaches a client. Turn is the index of the acting seat, or -1 when play
// has passed to the dealer.
type TableState struct {
	ID    string     `json:"id"`
	Mode  Mode       `json:"mode"`
	Phase TablePhase `json:"phase"`
	Round int64      `json:"round"`

	Seats  []*Seat `json:"seats"`
	Dealer *Hand   `json:"dealer"`
	Shoe   []Card  `json:"shoe"`
	Turn   int     `json:"turn"`

	// Commit-reveal pair for the current shoe; a fresh pair is committed
	// every round when the shoe is rebuilt.
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	Nonce          int64  `json:"nonce"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

func (t *TableState) SeatOf(accountID int64) (*Seat, int) {
	for i, s := range t.Seats {
		if s.AccountID == accountID {
			return s, i
		}
	}
	return nil, -1
}

// SeatView and TableView are the client-safe projections.
type SeatView struct {
	AccountID int64      `json:"account_id"`
	Status    SeatStatus `json:"status"`
	Hands     []*Hand    `json:"hands"`
	HandIndex int        `json:"hand_index"`
	Stake     int64      `json:"stake"`
}

type TableView struct {
	TableID        string     `json:"table_id"`
	Phase          TablePhase `json:"phase"`
	Round          int64      `json:"round"`
	Seats          []SeatView `json:"seats"`
	DealerUpcard   *Card      `json:"dealer_upcard,omitempty"`
	Turn           int        `json:"turn"`
	YourSeat       int        `json:"your_seat"`
	ServerSeedHash string     `json:"server_seed_hash"`
}

// RoundResult reports one hand's settlement to the caller. SupportRef is
// set only when the payout credit failed and an operator has to reconcile
// the hand by that reference.
type RoundResult struct {
	SeatIndex  int    `json:"seat_index"`
	HandIndex  int    `json:"hand_index"`
	AccountID  int64  `json:"account_id"`
	Outcome    string `json:"outcome"` // blackjack, win, push, loss, surrender, bust
	Bet        int64  `json:"bet"`
	Payout     int64  `json:"payout"`
	Insurance  int64  `json:"insurance_payout,omitempty"`
	SupportRef string `json:"support_ref,omitempty"`
}
