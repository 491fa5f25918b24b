package services

import (
	"math"
	"time"

	"casino-core/internal/fairness"
	"casino-core/internal/models"
)

// CrashEngine runs the continuous-multiplier game. Nothing ticks: the
// crash point and phase boundaries are fixed at creation and every status
// call derives phase and multiplier from the wall clock, which makes the
// game restart-safe by construction.
type CrashEngine struct {
	rtp        float64 // target return-to-player, e.g. 0.97
	maxPoint   float64 // hard cap on the crash point
	growthRate float64 // exponential growth rate per second
	betWindow  time.Duration
}

func NewCrashEngine(rtp, maxPoint, growthRate float64, betWindow time.Duration) *CrashEngine {
	return &CrashEngine{
		rtp:        rtp,
		maxPoint:   maxPoint,
		growthRate: growthRate,
		betWindow:  betWindow,
	}
}

// CrashPoint maps the round's HMAC digest to a multiplier >= 1.0 on a
// heavy-tailed distribution: floor(100*rtp/(1-r))/100 truncated to cents
// of a multiplier, clamped to [1.0, maxPoint].
func (e *CrashEngine) CrashPoint(serverSeed, clientSeed string, nonce int64) float64 {
	digest := fairness.Roll(serverSeed, clientSeed, nonce, "crash")
	r := fairness.DigestFloat(digest)

	point := math.Floor(100*e.rtp/(1-r)) / 100.0
	if point < 1.0 {
		point = 1.0
	}
	if point > e.maxPoint {
		point = e.maxPoint
	}
	return point
}

// NewRound commits a fresh seed pair and fixes every outcome-determining
// parameter. The round starts when the bet window closes.
func (e *CrashEngine) NewRound(clientSeed string, nonce int64, autoCashout float64) (*models.CrashState, error) {
	pair, err := fairness.Commit()
	if err != nil {
		return nil, err
	}

	now := models.NowMilli()
	start := now + e.betWindow.Milliseconds()

	return &models.CrashState{
		ServerSeed:     pair.Seed,
		ServerSeedHash: pair.Hash,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		CrashPoint:     e.CrashPoint(pair.Seed, clientSeed, nonce),
		BetWindowEnd:   start,
		StartTime:      start,
		AutoCashout:    autoCashout,
	}, nil
}

// MultiplierAt derives the displayed multiplier at a point in time,
// truncated to two decimals and pinned at the crash point.
func (e *CrashEngine) MultiplierAt(st *models.CrashState, nowMilli int64) float64 {
	if nowMilli <= st.StartTime {
		return 1.0
	}
	elapsed := float64(nowMilli-st.StartTime) / 1000.0
	m := math.Floor(math.Exp(e.growthRate*elapsed)*100) / 100.0
	if m >= st.CrashPoint {
		return st.CrashPoint
	}
	return m
}

// PhaseAt derives the phase purely from the clock and the fixed state.
func (e *CrashEngine) PhaseAt(st *models.CrashState, nowMilli int64) (models.CrashPhase, float64) {
	if nowMilli < st.BetWindowEnd {
		return models.CrashPhaseBetting, 1.0
	}
	m := e.MultiplierAt(st, nowMilli)
	if m >= st.CrashPoint {
		return models.CrashPhaseCrashed, st.CrashPoint
	}
	return models.CrashPhaseRunning, m
}

// AutoCashoutDue reports whether the configured auto-cashout threshold has
// been crossed and is still payable. The check is deterministic: a
// threshold strictly below the crash point was necessarily reached while
// the round was running, no matter when the status is observed.
func (e *CrashEngine) AutoCashoutDue(st *models.CrashState, multiplier float64) bool {
	if st.CashedOut || st.AutoCashout <= 0 {
		return false
	}
	if st.AutoCashout >= st.CrashPoint {
		return false // the round crashes before the threshold
	}
	return multiplier >= st.AutoCashout
}

// Cashout marks the state cashed out at the given multiplier and returns
// the payout. The session stays alive so the crash point is still reached
// and recorded for history.
func (e *CrashEngine) Cashout(st *models.CrashState, multiplier float64, bet int64) int64 {
	payout := int64(math.Floor(float64(bet) * multiplier))
	st.CashedOut = true
	st.CashoutMultiplier = multiplier
	st.CashoutPayout = payout
	return payout
}
