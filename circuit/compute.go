//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3/ring"
)

// Compute evaluates the circuit in plaintext. The inputs argument
// holds each party's input values in circuit-declared order. Compute
// is the reference against which the protocol evaluation is tested;
// it is never used on the protocol path.
func (c *Circuit) Compute(inputs [ring.NumParties][]uint64) ([]uint64, error) {
	r, err := ring.New(c.Bits)
	if err != nil {
		return nil, err
	}
	for party, gates := range c.Inputs {
		if len(inputs[party]) != len(gates) {
			return nil, errors.Newf(
				"party %d: got %d inputs, expected %d",
				party, len(inputs[party]), len(gates))
		}
	}

	wires := make([]uint64, c.NumWires)
	taken := make([]int, ring.NumParties)
	var result []uint64

	for _, layer := range c.Layers {
		for _, idx := range layer {
			g := &c.Gates[idx]
			switch g.Op {
			case Input:
				wires[g.Out.ID()] = inputs[g.Owner][taken[g.Owner]] & r.Mask()
				taken[g.Owner]++

			case Add:
				wires[g.Out.ID()] = r.Add(wires[g.In0.ID()], wires[g.In1.ID()])

			case Mul:
				wires[g.Out.ID()] = r.Mul(wires[g.In0.ID()], wires[g.In1.ID()])

			case Neg:
				wires[g.Out.ID()] = r.Neg(wires[g.In0.ID()])

			case Output:
				// Collected below in declared order.

			default:
				return nil, errors.Newf("invalid gate %s", g.Op)
			}
		}
	}
	for _, idx := range c.Outputs {
		result = append(result, wires[c.Gates[idx].In0.ID()])
	}

	return result, nil
}
