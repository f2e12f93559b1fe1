// Package rng provides the deterministic random sub-streams used by
// expedition resolution and sidecast generation.
//
// A sub-stream is keyed by (campaign seed, event index) so re-running the same
// logical action at the same event index reproduces the same rolls even when
// unrelated actions are interleaved differently. Call order on a stream is
// part of the reproducibility contract: every call site documents the fixed
// sequence of draws it performs.
package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/rand"
)

// ErrEmptyWeights indicates a weighted draw was requested with no usable weights.
var ErrEmptyWeights = errors.New("at least one positive weight is required")

// Stream is a deterministic pseudo-random sequence for one logical action.
type Stream struct {
	rand *rand.Rand
}

// NewStream derives the sub-stream for the given campaign seed and event index.
//
// The derivation hashes both inputs so neighboring event indexes produce
// unrelated sequences; identical inputs always produce identical streams.
func NewStream(campaignSeed int64, eventIndex uint64) *Stream {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(campaignSeed))
	binary.LittleEndian.PutUint64(buf[8:16], eventIndex)
	digest := sha256.Sum256(buf[:])
	seed := int64(binary.LittleEndian.Uint64(digest[:8]))
	return &Stream{rand: rand.New(rand.NewSource(seed))}
}

// D100 draws a uniform integer in [1,100].
func (s *Stream) D100() int {
	return s.rand.Intn(100) + 1
}

// Intn draws a uniform integer in [0,n).
func (s *Stream) Intn(n int) int {
	return s.rand.Intn(n)
}

// Float64 draws a uniform float in [0,1).
func (s *Stream) Float64() float64 {
	return s.rand.Float64()
}

// WeightedIndex draws an index from the discrete distribution described by
// weights. Non-positive weights are skipped. Ties break on the first matching
// cumulative weight, so the result depends only on slice order, never on map
// iteration.
func (s *Stream) WeightedIndex(weights []int) (int, error) {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return 0, ErrEmptyWeights
	}

	draw := s.rand.Intn(total)
	cumulative := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if draw < cumulative {
			return i, nil
		}
	}
	// Unreachable: draw < total and the loop covers every positive weight.
	return len(weights) - 1, nil
}
