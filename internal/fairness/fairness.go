// Package fairness is the single source of outcome-determining randomness:
// cryptographically secure seeds, commit-reveal pairs, and deterministic
// derivations from HMAC digests. A client seed is always mixed into a roll
// but never determines a result on its own, because the server seed is
// committed before the client ever sees the round.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// SeedPair is one commit-reveal pair. Hash is published at round creation;
// Seed stays secret until the round settles.
type SeedPair struct {
	Seed string
	Hash string
}

func Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("fairness: rng failed: %w", err)
	}
	return b, nil
}

func NewClientSeed() (string, error) {
	b, err := Random(16)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func Commit() (SeedPair, error) {
	b, err := Random(32)
	if err != nil {
		return SeedPair{}, err
	}
	seed := hex.EncodeToString(b)
	return SeedPair{Seed: seed, Hash: HashSeed(seed)}, nil
}

func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Roll derives the outcome digest for one game: HMAC-SHA256 keyed by the
// secret server seed over "label:clientSeed:nonce". The label keeps rolls
// for different games disjoint even under identical seeds and nonce.
func Roll(serverSeed, clientSeed string, nonce int64, label string) []byte {
	h := hmac.New(sha256.New, []byte(serverSeed))
	fmt.Fprintf(h, "%s:%s:%d", label, clientSeed, nonce)
	return h.Sum(nil)
}

// DigestFloat maps the first 52 bits of a digest to a uniform value in
// [0, 1). 52 bits so the value is exactly representable as a float64.
func DigestFloat(digest []byte) float64 {
	u := binary.BigEndian.Uint64(digest[:8]) >> 12
	return float64(u) / float64(uint64(1)<<52)
}

// Stream expands a digest into an unbounded deterministic byte stream by
// hashing the digest with a running counter block by block.
type Stream struct {
	seed  []byte
	block []byte
	off   int
	ctr   uint64
}

func NewStream(digest []byte) *Stream {
	s := &Stream{seed: append([]byte(nil), digest...)}
	s.next()
	return s
}

func (s *Stream) next() {
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], s.ctr)
	sum := sha256.Sum256(append(s.seed, ctr[:]...))
	s.block = sum[:]
	s.off = 0
	s.ctr++
}

func (s *Stream) uint32() uint32 {
	if s.off+4 > len(s.block) {
		s.next()
	}
	v := binary.BigEndian.Uint32(s.block[s.off : s.off+4])
	s.off += 4
	return v
}

// Intn returns a uniform value in [0, n) using rejection sampling, so the
// distribution carries no modulo bias.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		panic("fairness: Intn on non-positive n")
	}
	limit := (1 << 32) / uint64(n) * uint64(n)
	for {
		v := uint64(s.uint32())
		if v < limit {
			return int(v % uint64(n))
		}
	}
}

// SampleDistinct draws k distinct values from [0, n) without replacement.
func SampleDistinct(digest []byte, n, k int) []int {
	s := NewStream(digest)
	picked := make([]int, 0, k)
	used := make(map[int]bool, k)
	for len(picked) < k {
		v := s.Intn(n)
		if used[v] {
			continue
		}
		used[v] = true
		picked = append(picked, v)
	}
	return picked
}

// Perm returns a Fisher-Yates permutation of [0, n) driven by the digest.
func Perm(digest []byte, n int) []int {
	s := NewStream(digest)
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}
