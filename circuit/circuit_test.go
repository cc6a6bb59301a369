//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3"
	"github.com/markkurossi/rep3/ring"
)

// (a+b)*c with one input per party.
const testMul = `
rep3 5 32
in 0 0
in 1 1
in 2 2
add 0 1 3
mul 3 2 4
out 4
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(testMul))
	if err != nil {
		t.Fatal(err)
	}
	if c.Bits != 32 || c.NumWires != 5 {
		t.Errorf("header: W=%d #w=%d", c.Bits, c.NumWires)
	}
	if c.Stats[Input] != 3 || c.Stats[Add] != 1 || c.Stats[Mul] != 1 ||
		c.Stats[Output] != 1 {
		t.Errorf("stats: %v", c.Stats)
	}
	if c.NumLayers() != 4 {
		t.Errorf("layers: got %d, expected 4", c.NumLayers())
	}
	for party := 0; party < ring.NumParties; party++ {
		if len(c.Inputs[party]) != 1 {
			t.Errorf("party %d: %d inputs", party, len(c.Inputs[party]))
		}
	}
	if len(c.Outputs) != 1 {
		t.Errorf("outputs: %v", c.Outputs)
	}
	// Input gates have no dependencies.
	for _, idx := range c.Layers[0] {
		if c.Gates[idx].Op != Input {
			t.Errorf("layer 0 contains %s", c.Gates[idx].Op)
		}
	}
}

func TestParseComments(t *testing.T) {
	data := `
# comment before the header
rep3 2 8  # trailing comment
in 0 0
neg 0 1   # unary
out 1
`
	c, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Gates) != 3 {
		t.Errorf("got %d gates", len(c.Gates))
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"bad header", "rep4 5 32\n"},
		{"bad width", "rep3 5 65\n"},
		{"bad wire count", "rep3 0 32\n"},
		{"unknown gate", "rep3 2 32\nin 0 0\nxor 0 0 1\n"},
		{"bad operand count", "rep3 2 32\nadd 0 1\n"},
		{"bad owner", "rep3 1 32\nin 3 0\nout 0\n"},
		{"wire out of range", "rep3 1 32\nin 0 0\nneg 0 1\n"},
		{"dangling wire", "rep3 2 32\nin 0 0\nout 1\n"},
		{"double assignment", "rep3 2 32\nin 0 0\nin 1 0\nout 0\n"},
		{"self loop", "rep3 2 32\nin 0 0\nadd 0 1 1\nout 1\n"},
		{"cycle", "rep3 3 32\nin 0 0\nadd 0 2 1\nadd 0 1 2\nout 1\n"},
	}
	for _, test := range tests {
		_, err := Parse(strings.NewReader(test.data))
		if err == nil {
			t.Errorf("%s: parse succeeded", test.name)
			continue
		}
		if !errors.Is(err, rep3.ErrMalformedCircuit) {
			t.Errorf("%s: wrong error class: %v", test.name, err)
		}
	}
}

func TestCompute(t *testing.T) {
	c, err := Parse(strings.NewReader(testMul))
	if err != nil {
		t.Fatal(err)
	}
	result, err := c.Compute([ring.NumParties][]uint64{
		{5}, {7}, {3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 || result[0] != 36 {
		t.Errorf("got %v, expected [36]", result)
	}

	// Input count mismatch.
	_, err = c.Compute([ring.NumParties][]uint64{
		{5}, {7}, {},
	})
	if err == nil {
		t.Error("Compute accepted missing inputs")
	}
}

func TestComputeWrap(t *testing.T) {
	data := `
rep3 3 8
in 0 0
in 1 1
mul 0 1 2
out 2
`
	c, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	result, err := c.Compute([ring.NumParties][]uint64{
		{200}, {3}, {},
	})
	if err != nil {
		t.Fatal(err)
	}
	// 600 mod 256.
	if result[0] != 88 {
		t.Errorf("got %d, expected 88", result[0])
	}
}

func TestComputeNeg(t *testing.T) {
	data := `
rep3 4 16
in 0 0
in 1 1
neg 1 2
add 0 2 3
out 3
`
	c, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	result, err := c.Compute([ring.NumParties][]uint64{
		{10}, {4}, {},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result[0] != 6 {
		t.Errorf("got %d, expected 6", result[0])
	}
}
