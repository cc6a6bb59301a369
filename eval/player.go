//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package eval implements the protocol state machine driving the
// 3-party replicated-sharing circuit evaluation: input sharing,
// layered gate evaluation with one communication round per
// multiplicative layer, transcript verification, and output
// reconstruction.
package eval

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/markkurossi/text/superscript"

	"github.com/markkurossi/rep3"
	"github.com/markkurossi/rep3/circuit"
	"github.com/markkurossi/rep3/p2p"
	"github.com/markkurossi/rep3/prg"
	"github.com/markkurossi/rep3/ring"
)

// State defines the protocol states.
type State int

// Protocol states.
const (
	Init State = iota
	Setup
	Evaluating
	Verifying
	Output
	Terminated
	Aborted
)

var stateNames = map[State]string{
	Init:       "INIT",
	Setup:      "SETUP",
	Evaluating: "EVALUATING",
	Verifying:  "VERIFYING",
	Output:     "OUTPUT",
	Terminated: "TERMINATED",
	Aborted:    "ABORTED",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if ok {
		return name
	}
	return fmt.Sprintf("{State %d}", int(s))
}

// Config specifies the session parameters of one party.
type Config struct {
	// Party is this party's index.
	Party int

	// Timeout bounds each round barrier's receive window. Zero
	// disables the deadline.
	Timeout time.Duration

	// VerifyEvery runs the verification checkpoint every N
	// multiplicative layers to bound transcript memory. Zero
	// verifies once, before output.
	VerifyEvery int

	Verbose bool
}

// Player is one party's protocol state machine. A Player owns its
// network and generator engine exclusively for the session's
// duration; an aborted session must be restarted from a fresh Player
// with fresh key material.
type Player struct {
	Verbose     bool
	id          int
	ring        ring.Ring
	circ        *circuit.Circuit
	timeout     time.Duration
	verifyEvery int

	state      State
	nw         *p2p.Network
	next       *p2p.Conn
	prev       *p2p.Conn
	session    uuid.UUID
	engine     *prg.Engine
	transcript *Transcript
	wires      []ring.Share
}

// NewPlayer creates a player for the circuit.
func NewPlayer(cfg Config, circ *circuit.Circuit) (*Player, error) {
	if cfg.Party < 0 || cfg.Party >= ring.NumParties {
		return nil, errors.Newf("invalid party %d: expected [0...%d[",
			cfg.Party, ring.NumParties)
	}
	r, err := ring.New(circ.Bits)
	if err != nil {
		return nil, err
	}
	transcript, err := NewTranscript()
	if err != nil {
		return nil, err
	}
	return &Player{
		Verbose:     cfg.Verbose,
		id:          cfg.Party,
		ring:        r,
		circ:        circ,
		timeout:     cfg.Timeout,
		verifyEvery: cfg.VerifyEvery,
		state:       Init,
		transcript:  transcript,
		wires:       make([]ring.Share, circ.NumWires),
	}, nil
}

// Debugf prints a debugging message if verbose debugging is enabled
// for this Player.
func (p *Player) Debugf(format string, a ...interface{}) {
	if !p.Verbose {
		return
	}
	fmt.Printf(format, a...)
}

// IDString returns the player ID as string.
func (p *Player) IDString() string {
	return superscript.Itoa(p.id)
}

// State returns the player's protocol state.
func (p *Player) State() State {
	return p.state
}

// Session returns the session identifier. It is valid after SETUP.
func (p *Player) Session() uuid.UUID {
	return p.session
}

// Run runs the protocol over the connected network and returns the
// reconstructed output values in circuit-declared order. The inputs
// argument holds this party's private values for the input gates it
// owns. Run consumes the network: it is closed on return and no
// partial output is ever returned after a failure.
func (p *Player) Run(nw *p2p.Network, inputs []uint64) ([]uint64, error) {
	result, err := p.run(nw, inputs)
	if nw != nil {
		nw.Close()
	}
	if err != nil {
		p.state = Aborted
		return nil, errors.Wrapf(err, "party %d: %s", p.id, p.state)
	}
	p.state = Terminated
	return result, nil
}

func (p *Player) run(nw *p2p.Network, inputs []uint64) ([]uint64, error) {
	if p.state != Init {
		return nil, errors.Newf("invalid state %s: expected %s",
			p.state, Init)
	}
	if len(inputs) != len(p.circ.Inputs[p.id]) {
		return nil, errors.Newf("got %d inputs, expected %d",
			len(inputs), len(p.circ.Inputs[p.id]))
	}

	if err := p.setup(nw); err != nil {
		return nil, err
	}
	if err := p.evaluate(inputs); err != nil {
		return nil, err
	}
	if err := p.verify(p.circ.NumLayers()); err != nil {
		return nil, err
	}
	return p.open()
}

// setup resolves the peer connections, distributes the session
// identifier, and derives the pairwise generator seeds.
func (p *Player) setup(nw *p2p.Network) error {
	p.state = Setup
	p.nw = nw

	nextID := (p.id + 1) % ring.NumParties
	prevID := (p.id + 2) % ring.NumParties

	next, err := nw.Peer(nextID)
	if err != nil {
		return err
	}
	prev, err := nw.Peer(prevID)
	if err != nil {
		return err
	}
	p.next = next.Conn
	p.prev = prev.Conn

	nw.SetRoundDeadline(p.timeout)

	// Party 0 mints the session identifier. Seeds are bound to it so
	// that a restarted session can never reuse generator state.
	if p.id == 0 {
		p.session = uuid.New()
		for _, conn := range []*p2p.Conn{p.next, p.prev} {
			if err := conn.SendHeader(p2p.MsgSession, 0); err != nil {
				return p2p.IOError(err)
			}
			if err := conn.SendData(p.session[:]); err != nil {
				return p2p.IOError(err)
			}
			if err := conn.Flush(); err != nil {
				return p2p.IOError(err)
			}
		}
	} else {
		conn := p.prev
		if p.id == 2 {
			conn = p.next
		}
		if err := conn.ReceiveHeader(p2p.MsgSession, 0); err != nil {
			return err
		}
		data, err := conn.ReceiveData()
		if err != nil {
			return p2p.IOError(err)
		}
		p.session, err = uuid.FromBytes(data)
		if err != nil {
			return errors.Wrapf(rep3.ErrNetwork, "invalid session id: %v", err)
		}
	}
	p.Debugf("P%s: session %v\n", p.IDString(), p.session)

	// Pairwise seed contributions.
	var myNext, myPrev [prg.ContributionSize]byte
	if _, err := rand.Read(myNext[:]); err != nil {
		return err
	}
	if _, err := rand.Read(myPrev[:]); err != nil {
		return err
	}
	for idx, conn := range []*p2p.Conn{p.next, p.prev} {
		contrib := myNext[:]
		if idx == 1 {
			contrib = myPrev[:]
		}
		if err := conn.SendHeader(p2p.MsgSeed, 0); err != nil {
			return p2p.IOError(err)
		}
		if err := conn.SendData(contrib); err != nil {
			return p2p.IOError(err)
		}
		if err := conn.Flush(); err != nil {
			return p2p.IOError(err)
		}
	}
	var theirs [2][]byte
	for idx, conn := range []*p2p.Conn{p.next, p.prev} {
		if err := conn.ReceiveHeader(p2p.MsgSeed, 0); err != nil {
			return err
		}
		data, err := conn.ReceiveData()
		if err != nil {
			return p2p.IOError(err)
		}
		theirs[idx] = data
	}

	// The pair (i, i+1) orders contributions by its first party in
	// ring order; both endpoints derive the same seed independently.
	nextSeed, err := prg.DeriveSeed(p.session, myNext[:], theirs[0])
	if err != nil {
		return err
	}
	prevSeed, err := prg.DeriveSeed(p.session, theirs[1], myPrev[:])
	if err != nil {
		return err
	}
	p.engine, err = prg.NewEngine(p.ring, p.id, nextSeed, prevSeed)
	if err != nil {
		return err
	}

	return nil
}

// evaluate processes the circuit layers in order. Linear gates are
// local; each layer's input and multiplication messages are batched
// into one round, ended by the round barrier.
func (p *Player) evaluate(inputs []uint64) error {
	p.state = Evaluating

	nextID := (p.id + 1) % ring.NumParties
	prevID := (p.id + 2) % ring.NumParties

	var taken int
	var mulLayers int

	for layer := 0; layer < p.circ.NumLayers(); layer++ {
		round := layer + 1

		// Staged sends and pending wire assignments.
		var inToNext, inToPrev []uint64
		var inFromNext, inFromPrev []int
		var mulOut []uint64
		var mulGates []int

		for _, idx := range p.circ.Layers[layer] {
			g := &p.circ.Gates[idx]
			switch g.Op {
			case circuit.Input:
				switch g.Owner {
				case p.id:
					r1, err := p.engine.Next(nextID)
					if err != nil {
						return err
					}
					r2, err := p.engine.Next(prevID)
					if err != nil {
						return err
					}
					v := inputs[taken] & p.ring.Mask()
					taken++
					// Components a_o, a_{o+1}, a_{o+2}: peers derive
					// one from the shared generator, the other is
					// sent by the owner.
					a0 := p.ring.Sub(p.ring.Sub(v, r1), r2)
					p.setWire(g.Out, ring.Share{A: a0, B: r1})
					inToNext = append(inToNext, r2)
					inToPrev = append(inToPrev, a0)

				case nextID:
					// I am owner+2: derive a_{o+2}, owner sends a_o.
					a2, err := p.engine.Next(nextID)
					if err != nil {
						return err
					}
					p.setWire(g.Out, ring.Share{A: a2})
					inFromNext = append(inFromNext, idx)

				case prevID:
					// I am owner+1: derive a_{o+1}, owner sends
					// a_{o+2}.
					a1, err := p.engine.Next(prevID)
					if err != nil {
						return err
					}
					p.setWire(g.Out, ring.Share{A: a1})
					inFromPrev = append(inFromPrev, idx)
				}

			case circuit.Add:
				p.setWire(g.Out, p.ring.AddShares(
					p.wires[g.In0.ID()], p.wires[g.In1.ID()]))

			case circuit.Neg:
				p.setWire(g.Out, p.ring.NegShare(p.wires[g.In0.ID()]))

			case circuit.Mul:
				z := p.ring.MulLocal(p.wires[g.In0.ID()],
					p.wires[g.In1.ID()], p.engine.Zero())
				mulOut = append(mulOut, z)
				mulGates = append(mulGates, idx)

			case circuit.Output:
				// Opened in the OUTPUT state.

			default:
				return errors.Newf("invalid gate %s", g.Op)
			}
		}

		// Input exchange: the owner's missing components flow to
		// both peers in layer gate order.
		if p.circ.Stats[circuit.Input] > 0 && layer == 0 {
			if err := p.sendVals(p.next, DirNext, p2p.MsgInput, round,
				inToNext); err != nil {
				return err
			}
			if err := p.sendVals(p.prev, DirPrev, p2p.MsgInput, round,
				inToPrev); err != nil {
				return err
			}
			p.nw.SetRoundDeadline(p.timeout)
			vals, err := p.recvVals(p.next, DirNext, p2p.MsgInput, round,
				len(inFromNext))
			if err != nil {
				return err
			}
			for i, idx := range inFromNext {
				g := &p.circ.Gates[idx]
				s := p.wires[g.Out.ID()]
				s.B = vals[i] & p.ring.Mask()
				p.wires[g.Out.ID()] = s
			}
			vals, err = p.recvVals(p.prev, DirPrev, p2p.MsgInput, round,
				len(inFromPrev))
			if err != nil {
				return err
			}
			for i, idx := range inFromPrev {
				g := &p.circ.Gates[idx]
				s := p.wires[g.Out.ID()]
				s.B = vals[i] & p.ring.Mask()
				p.wires[g.Out.ID()] = s
			}
		}

		// Multiplication round: my additive components flow to the
		// previous party, the next party's to me. After receipt the
		// pair again satisfies the replicated invariant.
		if len(mulGates) > 0 {
			if err := p.sendVals(p.prev, DirPrev, p2p.MsgMul, round,
				mulOut); err != nil {
				return err
			}
			p.nw.SetRoundDeadline(p.timeout)
			vals, err := p.recvVals(p.next, DirNext, p2p.MsgMul, round,
				len(mulGates))
			if err != nil {
				return err
			}
			for i, idx := range mulGates {
				g := &p.circ.Gates[idx]
				p.setWire(g.Out, ring.Share{
					A: mulOut[i],
					B: vals[i] & p.ring.Mask(),
				})
			}
			mulLayers++
			if p.verifyEvery > 0 && mulLayers%p.verifyEvery == 0 {
				if err := p.verify(round); err != nil {
					return err
				}
				p.state = Evaluating
			}
		}
		p.Debugf("P%s: layer %d/%d done\n", p.IDString(), layer+1,
			p.circ.NumLayers())
	}

	return nil
}

// setWire assigns the write-once wire value. Double assignment is
// rejected at circuit load time.
func (p *Player) setWire(w circuit.Wire, s ring.Share) {
	p.wires[w.ID()] = s
}

// sendVals sends a batch of ring values under the round tag and
// records them in the transcript.
func (p *Player) sendVals(conn *p2p.Conn, dir int, t p2p.MsgType,
	round int, vals []uint64) error {

	if err := conn.SendHeader(t, round); err != nil {
		return p2p.IOError(err)
	}
	if err := conn.SendUint32(len(vals)); err != nil {
		return p2p.IOError(err)
	}
	for _, v := range vals {
		if err := conn.SendUint64(v); err != nil {
			return p2p.IOError(err)
		}
		p.transcript.Sent(dir, round, v)
	}
	if err := conn.Flush(); err != nil {
		return p2p.IOError(err)
	}
	return nil
}

// recvVals receives a batch of ring values, checks the round tag and
// count, and records the values in the transcript.
func (p *Player) recvVals(conn *p2p.Conn, dir int, t p2p.MsgType,
	round, count int) ([]uint64, error) {

	if err := conn.ReceiveHeader(t, round); err != nil {
		return nil, err
	}
	n, err := conn.ReceiveUint32()
	if err != nil {
		return nil, p2p.IOError(err)
	}
	if n != count {
		return nil, errors.Wrapf(rep3.ErrNetwork,
			"round %d: got %d values, expected %d", round, n, count)
	}
	vals := make([]uint64, count)
	for i := 0; i < count; i++ {
		vals[i], err = conn.ReceiveUint64()
		if err != nil {
			return nil, p2p.IOError(err)
		}
		p.transcript.Received(dir, round, vals[i])
	}
	return vals, nil
}

// open reconstructs the output values. It is reachable only after
// the verification checkpoint succeeded for the full transcript.
func (p *Player) open() ([]uint64, error) {
	p.state = Output

	round := p.circ.NumLayers() + 1

	// My first component completes the next party's components; the
	// previous party's completes mine.
	vals := make([]uint64, 0, len(p.circ.Outputs))
	for _, idx := range p.circ.Outputs {
		g := &p.circ.Gates[idx]
		vals = append(vals, p.wires[g.In0.ID()].A)
	}
	if err := p.next.SendHeader(p2p.MsgOutput, round); err != nil {
		return nil, p2p.IOError(err)
	}
	if err := p.next.SendUint32(len(vals)); err != nil {
		return nil, p2p.IOError(err)
	}
	for _, v := range vals {
		if err := p.next.SendUint64(v); err != nil {
			return nil, p2p.IOError(err)
		}
	}
	if err := p.next.Flush(); err != nil {
		return nil, p2p.IOError(err)
	}

	p.nw.SetRoundDeadline(p.timeout)
	if err := p.prev.ReceiveHeader(p2p.MsgOutput, round); err != nil {
		return nil, err
	}
	n, err := p.prev.ReceiveUint32()
	if err != nil {
		return nil, p2p.IOError(err)
	}
	if n != len(p.circ.Outputs) {
		return nil, errors.Wrapf(rep3.ErrNetwork,
			"output round: got %d values, expected %d",
			n, len(p.circ.Outputs))
	}

	result := make([]uint64, 0, len(p.circ.Outputs))
	for _, idx := range p.circ.Outputs {
		g := &p.circ.Gates[idx]
		missing, err := p.prev.ReceiveUint64()
		if err != nil {
			return nil, p2p.IOError(err)
		}
		s := p.wires[g.In0.ID()]
		result = append(result, p.ring.Reconstruct(ring.Components{
			s.A, s.B, missing & p.ring.Mask(),
		}))
	}
	p.Debugf("P%s: %d outputs reconstructed\n", p.IDString(), len(result))

	return result, nil
}
