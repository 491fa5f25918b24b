package services

import (
	"casino-core/internal/fairness"
	"casino-core/internal/models"
)

// TableEngine runs the multi-seat blackjack table automaton. It mutates
// TableState only; every money movement stays with the coordinator, which
// validates an action's cost first, debits, and only then applies it.
// House rules: dealer stands on all 17s, blackjack pays 3:2, insurance
// pays 2:1 against a dealer natural, surrender forfeits half the bet.
type TableEngine struct {
	decks    int
	maxSeats int
}

func NewTableEngine(decks, maxSeats int) *TableEngine {
	return &TableEngine{decks: decks, maxSeats: maxSeats}
}

func (e *TableEngine) NewTable(mode models.Mode) (*models.TableState, error) {
	pair, err := fairness.Commit()
	if err != nil {
		return nil, err
	}

	now := models.NowMilli()
	return &models.TableState{
		ID:             models.GenerateTableID(),
		Mode:           mode,
		Phase:          models.TableWaiting,
		Round:          1,
		Dealer:         &models.Hand{},
		Turn:           -1,
		ServerSeed:     pair.Seed,
		ServerSeedHash: pair.Hash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Join seats an account. Mid-round joiners wait out the current hand and
// enter play at the next betting phase.
func (e *TableEngine) Join(t *models.TableState, accountID int64) error {
	if seat, _ := t.SeatOf(accountID); seat != nil {
		return ErrActionNotAllowed
	}
	if len(t.Seats) >= e.maxSeats {
		return ErrTableFull
	}

	status := models.SeatBetting
	if t.Phase == models.TablePlaying || t.Phase == models.TablePayout {
		status = models.SeatWaiting
	}

	t.Seats = append(t.Seats, &models.Seat{
		AccountID: accountID,
		Status:    status,
		Hands:     []*models.Hand{},
	})
	return nil
}

// Leave removes a seat outside of live play. The returned amount is the
// stake to refund when the seat had already bet into an undealt round.
func (e *TableEngine) Leave(t *models.TableState, accountID int64) (int64, error) {
	seat, idx := t.SeatOf(accountID)
	if seat == nil {
		return 0, ErrNotSeated
	}
	if t.Phase == models.TablePlaying && len(seat.Hands) > 0 {
		return 0, ErrActionNotAllowed
	}

	refund := int64(0)
	if seat.Status == models.SeatReady {
		refund = seat.Stake
	}

	t.Seats = append(t.Seats[:idx], t.Seats[idx+1:]...)
	if t.Turn > idx {
		t.Turn--
	}
	return refund, nil
}

// PlaceBet stakes one bet for the round; the caller has already debited
// it. When every seated (non-waiting) account has bet, the table deals and
// the returned flag is true.
func (e *TableEngine) PlaceBet(t *models.TableState, accountID int64, amount int64) (bool, error) {
	seat, _ := t.SeatOf(accountID)
	if seat == nil {
		return false, ErrNotSeated
	}
	if t.Phase != models.TableWaiting && t.Phase != models.TableBetting {
		return false, ErrWrongPhase
	}
	if seat.Status == models.SeatWaiting {
		return false, ErrWrongPhase
	}
	if seat.Status == models.SeatReady {
		return false, ErrActionNotAllowed
	}

	// First bet moves the table out of waiting for good; the cycle only
	// loops betting -> playing -> payout -> betting from here on.
	t.Phase = models.TableBetting

	seat.Hands = []*models.Hand{{Bet: amount, Status: models.HandActive, Cards: []models.Card{}}}
	seat.HandIndex = 0
	seat.Stake = amount
	seat.Status = models.SeatReady

	if !e.allReady(t) {
		return false, nil
	}
	e.deal(t)
	return true, nil
}

func (e *TableEngine) allReady(t *models.TableState) bool {
	ready := 0
	for _, s := range t.Seats {
		switch s.Status {
		case models.SeatWaiting:
		case models.SeatReady:
			ready++
		default:
			return false
		}
	}
	return ready > 0
}

// deal builds the shoe from the committed seed and hands out the opening
// cards: two per ready seat, two to the dealer with the hole card hidden
// from views.
func (e *TableEngine) deal(t *models.TableState) {
	e.buildShoe(t)

	for pass := 0; pass < 2; pass++ {
		for _, s := range t.Seats {
			if s.Status != models.SeatReady {
				continue
			}
			h := s.Hands[0]
			h.Cards = append(h.Cards, e.draw(t))
		}
		t.Dealer.Cards = append(t.Dealer.Cards, e.draw(t))
	}

	for _, s := range t.Seats {
		if s.Status != models.SeatReady {
			continue
		}
		if s.Hands[0].IsNatural() {
			s.Hands[0].Status = models.HandBlackjack
		}
	}

	t.Phase = models.TablePlaying
	t.Turn = 0
	for _, s := range t.Seats {
		s.HandIndex = 0
	}
	e.advance(t)
}

func (e *TableEngine) buildShoe(t *models.TableState) {
	cards := make([]models.Card, 0, e.decks*52)
	for d := 0; d < e.decks; d++ {
		for _, suit := range models.Suits {
			for _, rank := range models.Ranks {
				cards = append(cards, models.Card{Rank: rank, Suit: suit})
			}
		}
	}

	digest := fairness.Roll(t.ServerSeed, t.ID, t.Round, "blackjack")
	perm := fairness.Perm(digest, len(cards))

	shoe := make([]models.Card, len(cards))
	for i, p := range perm {
		shoe[i] = cards[p]
	}
	t.Shoe = shoe
	t.Nonce = t.Round
}

// ShoePrefix re-derives the first n cards of the shoe a revealed seed
// produced, for independent verification of a settled round. The client
// seed is the table id and the nonce is the round number.
func (e *TableEngine) ShoePrefix(serverSeed, clientSeed string, nonce int64, n int) []string {
	cards := make([]models.Card, 0, e.decks*52)
	for d := 0; d < e.decks; d++ {
		for _, suit := range models.Suits {
			for _, rank := range models.Ranks {
				cards = append(cards, models.Card{Rank: rank, Suit: suit})
			}
		}
	}

	digest := fairness.Roll(serverSeed, clientSeed, nonce, "blackjack")
	perm := fairness.Perm(digest, len(cards))

	if n > len(cards) {
		n = len(cards)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, cards[perm[i]].String())
	}
	return out
}

func (e *TableEngine) draw(t *models.TableState) models.Card {
	if len(t.Shoe) == 0 {
		// A six-deck shoe outlasts any legal round; rebuild if it
		// somehow runs dry.
		e.buildShoe(t)
	}
	c := t.Shoe[0]
	t.Shoe = t.Shoe[1:]
	return c
}

// advance moves the turn pointer to the next active hand in seat order,
// hand order within a seat, resuming from wherever the pointer stands.
// When no active hand remains it drops to -1, signalling the dealer.
func (e *TableEngine) advance(t *models.TableState) {
	if t.Turn < 0 {
		return
	}
	for si := t.Turn; si < len(t.Seats); si++ {
		seat := t.Seats[si]
		if si != t.Turn {
			seat.HandIndex = 0
		}
		for seat.HandIndex < len(seat.Hands) {
			if seat.Hands[seat.HandIndex].Status == models.HandActive {
				t.Turn = si
				return
			}
			seat.HandIndex++
		}
	}
	t.Turn = -1
}

// RoundFinished reports that every hand has resolved and the dealer
// automaton plus settlement are due.
func (e *TableEngine) RoundFinished(t *models.TableState) bool {
	return t.Phase == models.TablePlaying && t.Turn == -1
}

// ValidateAction checks legality for the acting account and returns the
// additional stake the action costs (double and split re-stake the hand
// bet, insurance stakes the side bet). Nothing is mutated.
func (e *TableEngine) ValidateAction(t *models.TableState, accountID int64, action string, amount int64) (int64, error) {
	if t.Phase != models.TablePlaying {
		return 0, ErrWrongPhase
	}
	seat, idx := t.SeatOf(accountID)
	if seat == nil {
		return 0, ErrNotSeated
	}
	if idx != t.Turn {
		return 0, ErrNotYourTurn
	}
	hand := seat.CurrentHand()
	if hand == nil || hand.Status != models.HandActive {
		return 0, ErrActionNotAllowed
	}

	switch action {
	case "hit", "stand":
		return 0, nil
	case "double":
		if len(hand.Cards) != 2 || hand.Doubled {
			return 0, ErrActionNotAllowed
		}
		return hand.Bet, nil
	case "split":
		if !hand.IsPair() {
			return 0, ErrActionNotAllowed
		}
		return hand.Bet, nil
	case "surrender":
		if hand.Acted || len(hand.Cards) != 2 || hand.FromSplit {
			return 0, ErrActionNotAllowed
		}
		return 0, nil
	case "insurance":
		if len(t.Dealer.Cards) == 0 || t.Dealer.Cards[0].Rank != "A" {
			return 0, ErrActionNotAllowed
		}
		if hand.Acted || hand.Insurance > 0 {
			return 0, ErrActionNotAllowed
		}
		if amount <= 0 || amount > hand.Bet/2 {
			return 0, ErrInvalidAmount
		}
		return amount, nil
	default:
		return 0, ErrActionNotAllowed
	}
}

// ApplyAction mutates the table for a previously validated action. The
// cost returned by ValidateAction has already been debited.
func (e *TableEngine) ApplyAction(t *models.TableState, accountID int64, action string, amount int64) {
	seat, _ := t.SeatOf(accountID)
	hand := seat.CurrentHand()

	switch action {
	case "hit":
		hand.Acted = true
		hand.Cards = append(hand.Cards, e.draw(t))
		e.resolveDrawn(t, hand)
	case "stand":
		hand.Acted = true
		hand.Status = models.HandStand
		e.advance(t)
	case "double":
		hand.Acted = true
		hand.Doubled = true
		seat.Stake += hand.Bet
		hand.Bet *= 2
		hand.Cards = append(hand.Cards, e.draw(t))
		if hand.IsBust() {
			hand.Status = models.HandBust
		} else {
			hand.Status = models.HandStand
		}
		e.advance(t)
	case "split":
		hand.Acted = true
		second := hand.Cards[1]
		hand.FromSplit = true
		hand.Cards = []models.Card{hand.Cards[0], e.draw(t)}
		split := &models.Hand{
			Cards:     []models.Card{second, e.draw(t)},
			Bet:       hand.Bet,
			Status:    models.HandActive,
			FromSplit: true,
		}
		seat.Stake += hand.Bet
		// The new hand plays immediately after the current one.
		hands := append([]*models.Hand{}, seat.Hands[:seat.HandIndex+1]...)
		hands = append(hands, split)
		hands = append(hands, seat.Hands[seat.HandIndex+1:]...)
		seat.Hands = hands
		e.resolveDrawn(t, hand)
	case "surrender":
		hand.Acted = true
		hand.Status = models.HandSurrendered
		e.advance(t)
	case "insurance":
		hand.Insurance = amount
	}
}

// resolveDrawn applies the auto-advance rules after a draw: bust ends the
// hand, exactly 21 stands it, anything else keeps the turn.
func (e *TableEngine) resolveDrawn(t *models.TableState, hand *models.Hand) {
	v, _ := hand.Value()
	switch {
	case v > 21:
		hand.Status = models.HandBust
		e.advance(t)
	case v == 21:
		hand.Status = models.HandStand
		e.advance(t)
	}
}

// PlayDealer runs the dealer automaton once every player hand resolved:
// hit below 17, stand on all 17s, soft included.
func (e *TableEngine) PlayDealer(t *models.TableState) {
	t.Phase = models.TablePayout
	for {
		v, _ := t.Dealer.Value()
		if v >= 17 {
			return
		}
		t.Dealer.Cards = append(t.Dealer.Cards, e.draw(t))
	}
}

// Settle computes every hand's payout against the finished dealer hand.
// Payouts include the returned stake, since the full bet was debited when
// staked. The caller credits them and then calls ResetRound; together the
// two form the atomic end of the round cycle.
func (e *TableEngine) Settle(t *models.TableState) []models.RoundResult {
	dealerV, _ := t.Dealer.Value()
	dealerBust := dealerV > 21
	dealerNatural := len(t.Dealer.Cards) == 2 && dealerV == 21

	var results []models.RoundResult
	for si, seat := range t.Seats {
		for hi, hand := range seat.Hands {
			res := models.RoundResult{
				SeatIndex: si,
				HandIndex: hi,
				AccountID: seat.AccountID,
				Bet:       hand.Bet,
			}

			if hand.Insurance > 0 && dealerNatural {
				res.Insurance = hand.Insurance * 3 // 2:1 plus the side bet back
			}

			switch hand.Status {
			case models.HandSurrendered:
				res.Outcome = "surrender"
				res.Payout = hand.Bet / 2
			case models.HandBust:
				res.Outcome = "bust"
			case models.HandBlackjack:
				if dealerNatural {
					res.Outcome = "push"
					res.Payout = hand.Bet
				} else {
					res.Outcome = "blackjack"
					res.Payout = hand.Bet + hand.Bet*3/2
				}
			default:
				hv, _ := hand.Value()
				switch {
				case dealerNatural:
					res.Outcome = "loss"
				case dealerBust || hv > dealerV:
					res.Outcome = "win"
					res.Payout = hand.Bet * 2
				case hv == dealerV:
					res.Outcome = "push"
					res.Payout = hand.Bet
				default:
					res.Outcome = "loss"
				}
			}

			results = append(results, res)
		}
	}
	return results
}

// ResetRound clears the round in one step so no seat is ever left stale
// between rounds: hands gone, stakes zero, statuses back to betting, shoe
// and dealer rebuilt under a fresh commit.
func (e *TableEngine) ResetRound(t *models.TableState) error {
	pair, err := fairness.Commit()
	if err != nil {
		return err
	}

	for _, s := range t.Seats {
		s.Hands = []*models.Hand{}
		s.HandIndex = 0
		s.Stake = 0
		s.Status = models.SeatBetting
	}
	t.Dealer = &models.Hand{}
	t.Shoe = nil
	t.Turn = -1
	t.Phase = models.TableBetting
	t.Round++
	t.ServerSeed = pair.Seed
	t.ServerSeedHash = pair.Hash
	return nil
}

// View projects the table for one account, hiding the shoe, the seed and
// the dealer hole card. The dealer's finished hand travels with the
// settlement report, since the table has already reset by the time a view
// of it could show the hand.
func (e *TableEngine) View(t *models.TableState, accountID int64) *models.TableView {
	view := &models.TableView{
		TableID:        t.ID,
		Phase:          t.Phase,
		Round:          t.Round,
		Turn:           t.Turn,
		YourSeat:       -1,
		ServerSeedHash: t.ServerSeedHash,
	}

	for i, s := range t.Seats {
		if s.AccountID == accountID {
			view.YourSeat = i
		}
		view.Seats = append(view.Seats, models.SeatView{
			AccountID: s.AccountID,
			Status:    s.Status,
			Hands:     s.Hands,
			HandIndex: s.HandIndex,
			Stake:     s.Stake,
		})
	}

	if len(t.Dealer.Cards) > 0 {
		up := t.Dealer.Cards[0]
		view.DealerUpcard = &up
	}
	return view
}
