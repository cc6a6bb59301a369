//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package prg implements the pairwise pseudorandom generators that
// provide correlated randomness for the replicated sharing protocol.
// Each ordered pair of parties shares one deterministic generator;
// both endpoints must consume it in lock-step, which the evaluator
// enforces by drawing only at fixed points of the circuit order.
package prg

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"

	"github.com/markkurossi/rep3/ring"
)

// SeedSize is the pairwise seed size in bytes.
const SeedSize = chacha20.KeySize

// ContributionSize is the per-party seed contribution size in bytes.
const ContributionSize = 16

var bo = binary.BigEndian

// Pair is a deterministic stream of ring-sized values derived from a
// pairwise seed. Both endpoints of the pair construct an identical
// stream without communication.
type Pair struct {
	cipher *chacha20.Cipher
	buf    [8]byte
	count  uint64
}

// NewPair creates a generator from a SeedSize-byte seed.
func NewPair(seed []byte) (*Pair, error) {
	if len(seed) != SeedSize {
		return nil, errors.Newf("invalid seed length %d: expected %d",
			len(seed), SeedSize)
	}
	var nonce [chacha20.NonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(seed, nonce[:])
	if err != nil {
		return nil, err
	}
	return &Pair{
		cipher: cipher,
	}, nil
}

// Next returns the next value of the stream.
func (p *Pair) Next() uint64 {
	for i := range p.buf {
		p.buf[i] = 0
	}
	p.cipher.XORKeyStream(p.buf[:], p.buf[:])
	p.count++
	return bo.Uint64(p.buf[:])
}

// Count returns the number of values drawn so far.
func (p *Pair) Count() uint64 {
	return p.count
}

// DeriveSeed derives the pairwise seed from the two parties'
// contributions, bound to the session identifier so that no two
// sessions ever share a generator. lo is the contribution of the
// pair's first party in ring order: party i for the pair (i, i+1).
func DeriveSeed(session uuid.UUID, lo, hi []byte) ([]byte, error) {
	if len(lo) != ContributionSize || len(hi) != ContributionSize {
		return nil, errors.Newf("invalid contribution lengths %d, %d",
			len(lo), len(hi))
	}
	secret := make([]byte, 0, 2*ContributionSize)
	secret = append(secret, lo...)
	secret = append(secret, hi...)

	seed := make([]byte, SeedSize)
	r := hkdf.New(sha256.New, secret, session[:], []byte("rep3 pair seed"))
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// Engine holds one party's pairwise generators: one shared with the
// next party and one shared with the previous party.
type Engine struct {
	ring  ring.Ring
	party int
	next  *Pair
	prev  *Pair
}

// NewEngine creates the generator engine for the argument party.
// nextSeed is the seed shared with party+1, prevSeed with party-1.
func NewEngine(r ring.Ring, party int, nextSeed, prevSeed []byte) (
	*Engine, error) {

	if party < 0 || party >= ring.NumParties {
		return nil, errors.Newf("invalid party %d: expected [0...%d[",
			party, ring.NumParties)
	}
	next, err := NewPair(nextSeed)
	if err != nil {
		return nil, err
	}
	prev, err := NewPair(prevSeed)
	if err != nil {
		return nil, err
	}
	return &Engine{
		ring:  r,
		party: party,
		next:  next,
		prev:  prev,
	}, nil
}

// Next draws the next value of the generator shared with the
// argument peer.
func (e *Engine) Next(peer int) (uint64, error) {
	switch peer {
	case (e.party + 1) % ring.NumParties:
		return e.next.Next() & e.ring.Mask(), nil
	case (e.party + 2) % ring.NumParties:
		return e.prev.Next() & e.ring.Mask(), nil
	default:
		return 0, errors.Newf("party %d shares no generator with %d",
			e.party, peer)
	}
}

// Zero draws this party's component of a fresh sharing of zero:
// s_{i,i+1} - s_{i-1,i}. The three components over all parties sum
// to zero, which is what re-randomizes multiplication results
// without communication.
func (e *Engine) Zero() uint64 {
	return e.ring.Sub(e.next.Next()&e.ring.Mask(), e.prev.Next()&e.ring.Mask())
}
