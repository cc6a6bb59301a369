//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3"
)

var bo = binary.BigEndian

// MsgType defines the protocol message types.
type MsgType byte

// Protocol messages. Every message starts with the header
// (MsgType, round) so that a party can never consume round-R+1
// payloads before completing round R's barrier.
const (
	MsgSession MsgType = iota
	MsgSeed
	MsgInput
	MsgMul
	MsgDigest
	MsgOutput
)

var msgTypes = map[MsgType]string{
	MsgSession: "session",
	MsgSeed:    "seed",
	MsgInput:   "input",
	MsgMul:     "mul",
	MsgDigest:  "digest",
	MsgOutput:  "output",
}

func (t MsgType) String() string {
	name, ok := msgTypes[t]
	if ok {
		return name
	}
	return fmt.Sprintf("{MsgType %d}", byte(t))
}

// SendHeader sends a message header.
func (c *Conn) SendHeader(t MsgType, round int) error {
	if err := c.SendByte(byte(t)); err != nil {
		return err
	}
	return c.SendUint32(round)
}

// ReceiveHeader receives a message header and checks it against the
// barrier's expectation. A mismatch is a protocol violation.
func (c *Conn) ReceiveHeader(want MsgType, round int) error {
	b, err := c.ReceiveByte()
	if err != nil {
		return IOError(err)
	}
	r, err := c.ReceiveUint32()
	if err != nil {
		return IOError(err)
	}
	if MsgType(b) != want || r != round {
		return errors.Wrapf(rep3.ErrNetwork,
			"protocol violation: got %v round %d, expected %v round %d",
			MsgType(b), r, want, round)
	}
	return nil
}

// IOError classifies a transport error: deadline overruns map to
// rep3.ErrTimeout, everything else to rep3.ErrNetwork.
func IOError(err error) error {
	if err == nil {
		return nil
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return errors.Wrapf(rep3.ErrTimeout, "%v", err)
	}
	return errors.Wrapf(rep3.ErrNetwork, "%v", err)
}
