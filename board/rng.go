package board

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/uuid"
)

// RNG yields uniformly distributed floats in [0, 1).
type RNG interface {
	Float64() float64
}

// HMACSource is a reproducible RNG: SHA256-HMAC keyed by the seed over a round
// counter, consumed four bytes per float.
type HMACSource struct {
	seed   []byte
	round  uint64
	pos    int
	buffer [sha256.Size]byte
}

// NewSeeded returns an RNG that always produces the same sequence for seed.
func NewSeeded(seed string) *HMACSource {
	s := &HMACSource{seed: []byte(seed)}
	s.generateRound()
	return s
}

// NewRandom returns an RNG seeded with a fresh random UUID.
func NewRandom() *HMACSource {
	return NewSeeded(uuid.NewString())
}

func (s *HMACSource) next() byte {
	if s.pos >= len(s.buffer) {
		s.round++
		s.pos = 0
		s.generateRound()
	}
	b := s.buffer[s.pos]
	s.pos++
	return b
}

func (s *HMACSource) generateRound() {
	h := hmac.New(sha256.New, s.seed)
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], s.round)
	h.Write(counter[:])
	copy(s.buffer[:], h.Sum(nil))
}

// Float64 folds four bytes into a float: sum(b_i / 256^(i+1)).
func (s *HMACSource) Float64() float64 {
	result := 0.0
	divider := 1.0
	for i := 0; i < 4; i++ {
		divider *= 256
		result += float64(s.next()) / divider
	}
	return result
}
