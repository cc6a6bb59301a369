//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3"
)

// The circuit description format is a line-oriented gate list:
//
//	rep3 <numWires> <ringBits>
//	in   <owner> <out>
//	add  <in0> <in1> <out>
//	mul  <in0> <in1> <out>
//	neg  <in> <out>
//	out  <in>
//
// Fields are whitespace-separated decimal numbers, `#` starts a
// comment. Input and output gates are in circuit-declared order; the
// per-party input files and the output files follow that order.

// Parse parses a circuit description. Malformed input fails with
// rep3.ErrMalformedCircuit before any network activity begins.
func Parse(in io.Reader) (*Circuit, error) {
	c := new(Circuit)

	r := bufio.NewScanner(in)
	var lineno int
	var header bool
	for r.Scan() {
		lineno++
		line := r.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if !header {
			if fields[0] != "rep3" || len(fields) != 3 {
				return nil, errors.Wrapf(rep3.ErrMalformedCircuit,
					"line %d: expected header `rep3 <numWires> <ringBits>'",
					lineno)
			}
			numWires, err := strconv.Atoi(fields[1])
			if err != nil || numWires <= 0 {
				return nil, errors.Wrapf(rep3.ErrMalformedCircuit,
					"line %d: invalid wire count %q", lineno, fields[1])
			}
			bits, err := strconv.ParseUint(fields[2], 10, 8)
			if err != nil || bits < 1 || bits > 64 {
				return nil, errors.Wrapf(rep3.ErrMalformedCircuit,
					"line %d: invalid ring width %q", lineno, fields[2])
			}
			c.NumWires = numWires
			c.Bits = uint(bits)
			header = true
			continue
		}

		gate, err := parseGate(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineno)
		}
		c.Gates = append(c.Gates, gate)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, errors.Wrap(rep3.ErrMalformedCircuit, "empty circuit")
	}
	if err := c.assignLayers(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseFile parses a circuit description file.
func ParseFile(name string) (*Circuit, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

func parseGate(fields []string) (Gate, error) {
	var gate Gate
	var wires []int

	for _, f := range fields[1:] {
		w, err := strconv.Atoi(f)
		if err != nil || w < 0 {
			return gate, errors.Wrapf(rep3.ErrMalformedCircuit,
				"invalid operand %q", f)
		}
		wires = append(wires, w)
	}

	switch fields[0] {
	case "in":
		if len(wires) != 2 {
			return gate, errors.Wrapf(rep3.ErrMalformedCircuit,
				"in: expected 2 operands, got %d", len(wires))
		}
		gate = Gate{
			Op:    Input,
			Owner: wires[0],
			Out:   Wire(wires[1]),
		}

	case "add", "mul":
		if len(wires) != 3 {
			return gate, errors.Wrapf(rep3.ErrMalformedCircuit,
				"%s: expected 3 operands, got %d", fields[0], len(wires))
		}
		op := Add
		if fields[0] == "mul" {
			op = Mul
		}
		gate = Gate{
			Op:  op,
			In0: Wire(wires[0]),
			In1: Wire(wires[1]),
			Out: Wire(wires[2]),
		}

	case "neg":
		if len(wires) != 2 {
			return gate, errors.Wrapf(rep3.ErrMalformedCircuit,
				"neg: expected 2 operands, got %d", len(wires))
		}
		gate = Gate{
			Op:  Neg,
			In0: Wire(wires[0]),
			Out: Wire(wires[1]),
		}

	case "out":
		if len(wires) != 1 {
			return gate, errors.Wrapf(rep3.ErrMalformedCircuit,
				"out: expected 1 operand, got %d", len(wires))
		}
		gate = Gate{
			Op:  Output,
			In0: Wire(wires[0]),
		}

	default:
		return gate, errors.Wrapf(rep3.ErrMalformedCircuit,
			"unknown gate %q", fields[0])
	}

	return gate, nil
}
