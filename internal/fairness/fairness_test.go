package fairness_test

import (
	"testing"

	"casino-core/internal/fairness"
)

func TestCommitReveal(t *testing.T) {
	pair, err := fairness.Commit()
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	if len(pair.Seed) != 64 {
		t.Errorf("Expected 64 hex chars of seed, got %d", len(pair.Seed))
	}
	if fairness.HashSeed(pair.Seed) != pair.Hash {
		t.Error("Published hash should match the hashed seed")
	}

	other, err := fairness.Commit()
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	if other.Seed == pair.Seed {
		t.Error("Two commits should never share a seed")
	}
}

func TestRollDeterminism(t *testing.T) {
	a := fairness.Roll("server", "client", 7, "crash")
	b := fairness.Roll("server", "client", 7, "crash")
	if string(a) != string(b) {
		t.Error("Identical inputs should produce identical digests")
	}

	if string(fairness.Roll("server", "client", 8, "crash")) == string(a) {
		t.Error("Changing the nonce should change the digest")
	}
	if string(fairness.Roll("server", "client", 7, "mines")) == string(a) {
		t.Error("Changing the label should change the digest")
	}
}

func TestDigestFloatRange(t *testing.T) {
	for nonce := int64(0); nonce < 1000; nonce++ {
		r := fairness.DigestFloat(fairness.Roll("seed", "client", nonce, "crash"))
		if r < 0 || r >= 1 {
			t.Fatalf("DigestFloat out of [0,1): %f at nonce %d", r, nonce)
		}
	}
}

func TestSampleDistinct(t *testing.T) {
	digest := fairness.Roll("seed", "client", 1, "mines")

	picked := fairness.SampleDistinct(digest, 25, 24)
	if len(picked) != 24 {
		t.Fatalf("Expected 24 samples, got %d", len(picked))
	}

	seen := make(map[int]bool)
	for _, p := range picked {
		if p < 0 || p >= 25 {
			t.Errorf("Sample out of range: %d", p)
		}
		if seen[p] {
			t.Errorf("Duplicate sample: %d", p)
		}
		seen[p] = true
	}

	again := fairness.SampleDistinct(digest, 25, 24)
	for i := range picked {
		if picked[i] != again[i] {
			t.Fatal("Sampling should be deterministic for one digest")
		}
	}
}

func TestPerm(t *testing.T) {
	digest := fairness.Roll("seed", "table_1", 3, "blackjack")

	p := fairness.Perm(digest, 312)
	if len(p) != 312 {
		t.Fatalf("Expected a permutation of 312, got %d elements", len(p))
	}

	seen := make([]bool, len(p))
	for _, v := range p {
		if v < 0 || v >= len(p) || seen[v] {
			t.Fatalf("Not a permutation: %d", v)
		}
		seen[v] = true
	}
}
