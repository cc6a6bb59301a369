//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package circuit implements arithmetic circuits over a fixed-width
// integer ring. A circuit is an acyclic gate list partitioned into
// dependency layers; all multiplicative gates of a layer are batched
// into one communication round by the evaluator.
package circuit

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3"
	"github.com/markkurossi/rep3/ring"
)

// Op specifies the gate operation.
type Op byte

// Gate operations.
const (
	Input Op = iota
	Add
	Mul
	Neg
	Output
)

// Stats holds per-operation gate counts.
type Stats [Output + 1]int

func (op Op) String() string {
	switch op {
	case Input:
		return "IN"
	case Add:
		return "ADD"
	case Mul:
		return "MUL"
	case Neg:
		return "NEG"
	case Output:
		return "OUT"
	default:
		return fmt.Sprintf("{Op %d}", op)
	}
}

// Wire specifies a wire ID. Wires are write-once: assigned by
// exactly one producing gate and read any number of times.
type Wire uint32

// ID returns the wire ID as integer.
func (w Wire) ID() int {
	return int(w)
}

func (w Wire) String() string {
	return fmt.Sprintf("w%d", w)
}

// Gate specifies an arithmetic gate.
type Gate struct {
	Op    Op
	In0   Wire
	In1   Wire
	Out   Wire
	Owner int // Input gates: the party providing the value.
	Layer int
}

func (g Gate) String() string {
	switch g.Op {
	case Input:
		return fmt.Sprintf("%s p%d %v", g.Op, g.Owner, g.Out)
	case Output:
		return fmt.Sprintf("%s %v", g.Op, g.In0)
	case Neg:
		return fmt.Sprintf("%s %v %v", g.Op, g.In0, g.Out)
	default:
		return fmt.Sprintf("%s %v %v %v", g.Op, g.In0, g.In1, g.Out)
	}
}

// Inputs returns the gate's input wires.
func (g Gate) Inputs() []Wire {
	switch g.Op {
	case Add, Mul:
		return []Wire{g.In0, g.In1}
	case Neg, Output:
		return []Wire{g.In0}
	default:
		return nil
	}
}

// Circuit specifies an arithmetic circuit.
type Circuit struct {
	Bits     uint
	NumWires int
	Gates    []Gate
	Layers   [][]int
	Inputs   [ring.NumParties][]int
	Outputs  []int
	Stats    Stats
}

func (c *Circuit) String() string {
	var stats string
	for op := Input; op <= Output; op++ {
		if len(stats) > 0 {
			stats += " "
		}
		stats += fmt.Sprintf("%s=%d", op, c.Stats[op])
	}
	return fmt.Sprintf("#gates=%d (%s) #w=%d W=%d",
		len(c.Gates), stats, c.NumWires, c.Bits)
}

// Dump prints a debug dump of the circuit.
func (c *Circuit) Dump() {
	fmt.Printf("circuit %s\n", c)
	for id, gate := range c.Gates {
		fmt.Printf("%04d\tL%d\t%s\n", id, gate.Layer, gate)
	}
}

// NumLayers returns the number of dependency layers.
func (c *Circuit) NumLayers() int {
	return len(c.Layers)
}

// assignLayers validates the gate list and partitions it into
// dependency layers. All structural errors are reported as
// rep3.ErrMalformedCircuit: the caller must fail before any network
// activity begins.
func (c *Circuit) assignLayers() error {
	producer := make([]int, c.NumWires)
	for i := range producer {
		producer[i] = -1
	}
	for idx := range c.Gates {
		g := &c.Gates[idx]
		c.Stats[g.Op]++

		for _, w := range append(g.Inputs(), g.outWires()...) {
			if w.ID() >= c.NumWires {
				return errors.Wrapf(rep3.ErrMalformedCircuit,
					"gate %d: wire %v out of range [0...%d[",
					idx, w, c.NumWires)
			}
		}
		if g.Op == Output {
			continue
		}
		if producer[g.Out.ID()] >= 0 {
			return errors.Wrapf(rep3.ErrMalformedCircuit,
				"gate %d: wire %v already assigned by gate %d",
				idx, g.Out, producer[g.Out.ID()])
		}
		producer[g.Out.ID()] = idx
		if g.Op == Input {
			if g.Owner < 0 || g.Owner >= ring.NumParties {
				return errors.Wrapf(rep3.ErrMalformedCircuit,
					"gate %d: invalid input owner %d", idx, g.Owner)
			}
			c.Inputs[g.Owner] = append(c.Inputs[g.Owner], idx)
		}
	}

	// Kahn's algorithm over the gate dependency graph.
	indeg := make([]int, len(c.Gates))
	consumers := make([][]int, len(c.Gates))
	for idx := range c.Gates {
		g := &c.Gates[idx]
		for _, w := range g.Inputs() {
			p := producer[w.ID()]
			if p < 0 {
				return errors.Wrapf(rep3.ErrMalformedCircuit,
					"gate %d: dangling wire %v", idx, w)
			}
			if p == idx {
				return errors.Wrapf(rep3.ErrMalformedCircuit,
					"gate %d: wire %v consumes its own output", idx, w)
			}
			indeg[idx]++
			consumers[p] = append(consumers[p], idx)
		}
	}

	var queue []int
	for idx := range c.Gates {
		if indeg[idx] == 0 {
			queue = append(queue, idx)
			c.Gates[idx].Layer = 0
		}
	}
	var done int
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		done++

		g := &c.Gates[idx]
		if g.Layer >= len(c.Layers) {
			c.Layers = append(c.Layers, nil)
		}
		c.Layers[g.Layer] = append(c.Layers[g.Layer], idx)
		if g.Op == Output {
			c.Outputs = append(c.Outputs, idx)
		}

		for _, next := range consumers[idx] {
			if g.Layer+1 > c.Gates[next].Layer {
				c.Gates[next].Layer = g.Layer + 1
			}
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if done < len(c.Gates) {
		return errors.Wrapf(rep3.ErrMalformedCircuit,
			"cycle among %d gates", len(c.Gates)-done)
	}

	// Kahn's queue order is not the circuit order; fix the in-layer
	// and output ordering so message ordering is deterministic.
	for _, layer := range c.Layers {
		sort.Ints(layer)
	}
	sort.Ints(c.Outputs)

	return nil
}

func (g Gate) outWires() []Wire {
	if g.Op == Output {
		return nil
	}
	return []Wire{g.Out}
}
