//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package eval

import (
	"bytes"
	"encoding/binary"
	"hash"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/markkurossi/rep3"
	"github.com/markkurossi/rep3/p2p"
	"github.com/markkurossi/rep3/ring"
)

var bo = binary.BigEndian

// Transcript directions: the peer the values flowed to or from.
const (
	DirNext = iota
	DirPrev
)

// Transcript accumulates running digests over the protocol values
// exchanged with both peers, keyed by round and transmission
// direction. The digests are compared pairwise at verification
// checkpoints: each value crossing a channel is hashed by both
// endpoints, so a substituted component diverges the two digests.
type Transcript struct {
	sent  [2]hash.Hash
	recvd [2]hash.Hash
}

// NewTranscript creates an empty transcript.
func NewTranscript() (*Transcript, error) {
	t := new(Transcript)
	for dir := DirNext; dir <= DirPrev; dir++ {
		h, err := blake2b.New256(nil)
		if err != nil {
			return nil, err
		}
		t.sent[dir] = h
		h, err = blake2b.New256(nil)
		if err != nil {
			return nil, err
		}
		t.recvd[dir] = h
	}
	return t, nil
}

// Sent records a value sent towards the direction's peer.
func (t *Transcript) Sent(dir, round int, v uint64) {
	record(t.sent[dir], round, v)
}

// Received records a value received from the direction's peer.
func (t *Transcript) Received(dir, round int, v uint64) {
	record(t.recvd[dir], round, v)
}

func record(h hash.Hash, round int, v uint64) {
	var buf [12]byte
	bo.PutUint32(buf[0:4], uint32(round))
	bo.PutUint64(buf[4:12], v)
	h.Write(buf[:])
}

// SentSum returns the current digest of the direction's sent values.
func (t *Transcript) SentSum(dir int) []byte {
	return t.sent[dir].Sum(nil)
}

// ReceivedSum returns the current digest of the direction's received
// values.
func (t *Transcript) ReceivedSum(dir int) []byte {
	return t.recvd[dir].Sum(nil)
}

// verify runs a verification checkpoint: both peers receive our
// digests of the values sent to and received from them, and we check
// theirs against ours. Any divergence aborts the session before any
// output component is revealed.
func (p *Player) verify(round int) error {
	p.state = Verifying

	conns := []*p2p.Conn{p.next, p.prev}
	for dir, conn := range conns {
		if err := conn.SendHeader(p2p.MsgDigest, round); err != nil {
			return p2p.IOError(err)
		}
		if err := conn.SendData(p.transcript.SentSum(dir)); err != nil {
			return p2p.IOError(err)
		}
		if err := conn.SendData(p.transcript.ReceivedSum(dir)); err != nil {
			return p2p.IOError(err)
		}
		if err := conn.Flush(); err != nil {
			return p2p.IOError(err)
		}
	}

	p.nw.SetRoundDeadline(p.timeout)

	var implicated [ring.NumParties]bool
	for dir, conn := range conns {
		if err := conn.ReceiveHeader(p2p.MsgDigest, round); err != nil {
			return err
		}
		peerSent, err := conn.ReceiveData()
		if err != nil {
			return p2p.IOError(err)
		}
		peerRecvd, err := conn.ReceiveData()
		if err != nil {
			return p2p.IOError(err)
		}

		peer := (p.id + 1 + dir) % ring.NumParties
		if !bytes.Equal(p.transcript.SentSum(dir), peerRecvd) ||
			!bytes.Equal(p.transcript.ReceivedSum(dir), peerSent) {
			implicated[peer] = true
		}
	}

	var bad []int
	for peer, hit := range implicated {
		if hit {
			bad = append(bad, peer)
		}
	}
	switch len(bad) {
	case 0:
		p.Debugf("P%s: transcript verified at round %d\n",
			p.IDString(), round)
		return nil
	case 1:
		return errors.Wrapf(rep3.ErrInconsistency,
			"round %d: transcript diverged with party %d", round, bad[0])
	default:
		return errors.Wrapf(rep3.ErrInconsistency,
			"round %d: transcript diverged among parties %v", round, bad)
	}
}
