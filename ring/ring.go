//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package ring implements fixed-width modular integer arithmetic and
// the 3-party replicated secret sharing scheme built on it. A secret
// v is split into three additive components a0+a1+a2 = v (mod 2^W);
// party i holds the pair (a_i, a_{i+1 mod 3}) so that no single party
// holds the full value.
package ring

import (
	"github.com/cockroachdb/errors"
)

// NumParties is the number of parties in the replicated scheme.
const NumParties = 3

// Ring implements arithmetic modulo 2^Bits for 1 <= Bits <= 64.
type Ring struct {
	Bits uint
	mask uint64
}

// New creates a new ring of the argument bit width. Width 1 gives
// boolean circuits: Add is XOR and Mul is AND.
func New(bits uint) (Ring, error) {
	if bits < 1 || bits > 64 {
		return Ring{}, errors.Newf("invalid ring width %d: expected [1...64]",
			bits)
	}
	var mask uint64
	if bits == 64 {
		mask = ^uint64(0)
	} else {
		mask = 1<<bits - 1
	}
	return Ring{
		Bits: bits,
		mask: mask,
	}, nil
}

// Mask returns the bit mask selecting the ring's value bits.
func (r Ring) Mask() uint64 {
	return r.mask
}

// Add computes a+b in the ring.
func (r Ring) Add(a, b uint64) uint64 {
	return (a + b) & r.mask
}

// Sub computes a-b in the ring.
func (r Ring) Sub(a, b uint64) uint64 {
	return (a - b) & r.mask
}

// Mul computes a*b in the ring.
func (r Ring) Mul(a, b uint64) uint64 {
	return (a * b) & r.mask
}

// Neg computes -a in the ring.
func (r Ring) Neg(a uint64) uint64 {
	return (-a) & r.mask
}
