package services_test

import (
	"math"
	"testing"
	"time"

	"casino-core/internal/fairness"
	"casino-core/internal/models"
	"casino-core/internal/services"
)

func newCrashEngine() *services.CrashEngine {
	return services.NewCrashEngine(0.97, 1000.0, 0.06, 5*time.Second)
}

func TestCrashPointDeterministic(t *testing.T) {
	engine := newCrashEngine()

	a := engine.CrashPoint("server_seed", "client_seed", 1)
	b := engine.CrashPoint("server_seed", "client_seed", 1)
	if a != b {
		t.Errorf("Same inputs should give the same crash point: %f vs %f", a, b)
	}

	if engine.CrashPoint("server_seed", "client_seed", 2) == a &&
		engine.CrashPoint("server_seed", "client_seed", 3) == a {
		t.Error("Different nonces should not all collide on one crash point")
	}
}

func TestCrashPointRange(t *testing.T) {
	engine := newCrashEngine()

	for nonce := int64(0); nonce < 500; nonce++ {
		point := engine.CrashPoint("seed", "client", nonce)
		if point < 1.0 || point > 1000.0 {
			t.Fatalf("Crash point out of [1, 1000]: %f at nonce %d", point, nonce)
		}
		// Two-decimal truncation.
		if math.Abs(point*100-math.Round(point*100)) > 1e-9 {
			t.Fatalf("Crash point not truncated to cents: %f", point)
		}
	}
}

func TestNewRoundCommit(t *testing.T) {
	engine := newCrashEngine()

	st, err := engine.NewRound("client", 5, 0)
	if err != nil {
		t.Fatalf("Failed to create round: %v", err)
	}

	if fairness.HashSeed(st.ServerSeed) != st.ServerSeedHash {
		t.Error("Published hash should commit to the server seed")
	}
	if st.CrashPoint != engine.CrashPoint(st.ServerSeed, "client", 5) {
		t.Error("Crash point should be fixed from the committed seeds")
	}
	if st.StartTime != st.BetWindowEnd {
		t.Error("The round should start when the bet window closes")
	}
}

func TestDerivedPhases(t *testing.T) {
	engine := newCrashEngine()

	now := models.NowMilli()
	st := &models.CrashState{
		CrashPoint:   2.0,
		BetWindowEnd: now,
		StartTime:    now,
	}

	phase, mult := engine.PhaseAt(st, now-1000)
	if phase != models.CrashPhaseBetting || mult != 1.0 {
		t.Errorf("Before the window closes: expected betting at 1.0, got %s at %f", phase, mult)
	}

	phase, mult = engine.PhaseAt(st, now+1000)
	if phase != models.CrashPhaseRunning {
		t.Errorf("One second in: expected running, got %s", phase)
	}
	if mult != 1.06 {
		t.Errorf("exp(0.06) truncated should be 1.06, got %f", mult)
	}

	// Far enough in the future the growth curve passes the crash point.
	phase, mult = engine.PhaseAt(st, now+60_000)
	if phase != models.CrashPhaseCrashed {
		t.Errorf("Past the crash point: expected crashed, got %s", phase)
	}
	if mult != 2.0 {
		t.Errorf("Multiplier should pin at the crash point, got %f", mult)
	}

	// The same observations re-derive identically, as if after a restart.
	phase2, mult2 := engine.PhaseAt(st, now+60_000)
	if phase2 != phase || mult2 != mult {
		t.Error("Phase derivation should be a pure function of time and state")
	}
}

func TestMultiplierMonotonic(t *testing.T) {
	engine := newCrashEngine()

	st := &models.CrashState{CrashPoint: 1000.0, StartTime: 0}
	prev := 0.0
	for ms := int64(0); ms <= 30_000; ms += 500 {
		m := engine.MultiplierAt(st, ms)
		if m < prev {
			t.Fatalf("Multiplier decreased: %f after %f at %dms", m, prev, ms)
		}
		prev = m
	}
}

func TestAutoCashout(t *testing.T) {
	engine := newCrashEngine()

	// Threshold 2.0 below crash point 3.45: deterministically payable at
	// exactly the threshold regardless of when the status is observed.
	st := &models.CrashState{CrashPoint: 3.45, AutoCashout: 2.0}
	if !engine.AutoCashoutDue(st, 3.45) {
		t.Error("Threshold below the crash point should be due once reached")
	}
	if engine.AutoCashoutDue(st, 1.5) {
		t.Error("Threshold not yet reached should not be due")
	}

	payout := engine.Cashout(st, st.AutoCashout, 50)
	if payout != 100 {
		t.Errorf("50 at 2.0x should pay exactly 100, got %d", payout)
	}
	if !st.CashedOut || st.CashoutMultiplier != 2.0 {
		t.Error("Cashout should record the settled multiplier")
	}
	if engine.AutoCashoutDue(st, 3.45) {
		t.Error("A settled cashout must never trigger again")
	}

	// Threshold at or above the crash point: the round crashes first.
	late := &models.CrashState{CrashPoint: 2.0, AutoCashout: 2.0}
	if engine.AutoCashoutDue(late, 2.0) {
		t.Error("Threshold at the crash point should lose the race")
	}
}

func TestCashoutPayoutFloor(t *testing.T) {
	engine := newCrashEngine()

	st := &models.CrashState{CrashPoint: 10.0}
	payout := engine.Cashout(st, 1.33, 100)
	if payout != 133 {
		t.Errorf("100 at 1.33x should pay 133, got %d", payout)
	}

	st2 := &models.CrashState{CrashPoint: 10.0}
	payout = engine.Cashout(st2, 1.07, 15)
	if payout != 16 { // floor(16.05)
		t.Errorf("15 at 1.07x should floor to 16, got %d", payout)
	}
}
